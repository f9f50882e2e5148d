// Package transit tracks content item ids that are mid-mutation: applied
// locally but not yet confirmed by the remote store. While any id is in
// transit the sync listener suppresses remote snapshots, which is how local
// optimistic state survives the window between a write landing and the
// store's next snapshot reflecting it.
package transit

import (
	"sync"
	"time"
)

// DefaultSettleDelay is how long an id stays busy after its remote write is
// confirmed. The subscription can deliver a snapshot generated just before
// the write landed; releasing only after the delay avoids a visible snap
// back to the stale location.
const DefaultSettleDelay = 400 * time.Millisecond

// Tracker is a set of item ids currently undergoing an unconfirmed local
// mutation. Safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	busy        map[string]struct{}
	timers      map[string]*time.Timer
	settleDelay time.Duration
}

// New creates a tracker with the given settle delay. A non-positive delay
// releases ids immediately on End, which is what tests want.
func New(settleDelay time.Duration) *Tracker {
	return &Tracker{
		busy:        make(map[string]struct{}),
		timers:      make(map[string]*time.Timer),
		settleDelay: settleDelay,
	}
}

// Begin marks an id as in transit. Re-entrant Begin cancels any pending
// release so the id stays busy until the newest mutation settles.
func (t *Tracker) Begin(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
	t.busy[id] = struct{}{}
}

// End schedules the id's release after the settle delay. The id remains
// busy until the delay elapses.
func (t *Tracker) End(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.busy[id]; !ok {
		return
	}

	if t.settleDelay <= 0 {
		delete(t.busy, id)
		return
	}

	if timer, ok := t.timers[id]; ok {
		timer.Stop()
	}
	t.timers[id] = time.AfterFunc(t.settleDelay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.busy, id)
		delete(t.timers, id)
	})
}

// Release removes the id immediately, skipping the settle delay. Used on
// mutation rollback: the optimistic state is already gone, so remote
// snapshots should flow again at once.
func (t *Tracker) Release(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
	delete(t.busy, id)
}

// IsBusy reports whether the id is in transit. The UI consults this to
// disable drag and approve affordances mid-flight.
func (t *Tracker) IsBusy(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.busy[id]
	return ok
}

// Empty reports whether no id is in transit. The sync listener applies
// remote snapshots only when the tracker is empty.
func (t *Tracker) Empty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.busy) == 0
}

// Len returns the number of ids currently in transit.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.busy)
}

// Clear releases every id immediately and cancels pending release timers.
// Called on channel switch and engine teardown so no stale timer outlives
// the tracker's owner.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
	t.busy = make(map[string]struct{})
}
