// Package sweeper removes malformed content items from the registry and the
// remote board. Malformed entries come from legacy or partial writes; they
// are corrected silently rather than surfaced to the user.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/davack/slate/internal/registry"
	"github.com/davack/slate/pkg/boardstore"
)

const (
	// maxRetries bounds remote cleanup attempts beyond the first try.
	maxRetries = 2

	// baseBackoff is the delay before the first retry; it doubles per attempt.
	baseBackoff = 250 * time.Millisecond
)

// remover is the slice of the board client the sweeper needs.
type remover interface {
	DeleteItems(ctx context.Context, channel boardstore.Channel, itemIDs []string) error
}

// Sweeper scans the registry for invalid items whenever it changes and
// removes them locally and remotely. Ids already handled are remembered so
// the same broken entry is not re-attempted every tick.
type Sweeper struct {
	client  remover
	channel boardstore.Channel

	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates a sweeper for one channel.
func New(client remover, channel boardstore.Channel) *Sweeper {
	return &Sweeper{
		client:  client,
		channel: channel,
		seen:    make(map[string]struct{}),
	}
}

// Invalid reports whether an item is malformed: no usable media reference,
// no title, or a location outside the pool/slot-key grammar.
func Invalid(item *boardstore.ContentItem) bool {
	if item.MediaURL == "" {
		return true
	}
	if item.Title == "" {
		return true
	}
	return !boardstore.IsValidLocation(item.Location)
}

// Sweep removes every invalid item from the registry immediately and issues
// one batched remote delete with bounded retry. Returns the ids it removed
// this pass. Remote failure is logged, never surfaced: the ids stay in the
// seen-set either way, so a persistently failing delete is attempted once.
func (s *Sweeper) Sweep(ctx context.Context, reg *registry.Registry) []string {
	var invalid []string
	for id, item := range reg.Snapshot() {
		if !Invalid(item) {
			continue
		}
		if s.markSeen(id) {
			invalid = append(invalid, id)
		}
	}

	if len(invalid) == 0 {
		return nil
	}
	sort.Strings(invalid)

	for _, id := range invalid {
		reg.Remove(id)
		log.Printf("[Sweeper] Removing invalid item %s from channel %s", id, s.channel)
	}

	if err := s.removeRemote(ctx, invalid); err != nil {
		log.Printf("[Sweeper] Remote cleanup failed for channel %s: %v", s.channel, err)
	}

	return invalid
}

// markSeen records the id and reports whether it was new.
func (s *Sweeper) markSeen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// removeRemote deletes the batch from the board, retrying transient
// failures with doubling backoff.
func (s *Sweeper) removeRemote(ctx context.Context, ids []string) error {
	backoff := baseBackoff

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if err = s.client.DeleteItems(ctx, s.channel, ids); err == nil {
			return nil
		}
	}

	return fmt.Errorf("gave up after %d attempts: %w", maxRetries+1, err)
}
