// Package engine wires the content registry, transit tracker, sweeper and
// notification fanout into the channel-scoped sync engine. One engine exists
// per (project, channel) pair; switching channels tears the engine down and
// builds a fresh one, so partial cross-channel state is never visible.
//
// The engine has two writers of the registry and only two: the sync listener
// (remote snapshots, Run) and the mutation coordinator (optimistic local
// mutations, mutations.go). They exclude each other through the transit
// tracker gating rule: while any local mutation is unconfirmed, remote
// snapshots are dropped wholesale. This is advisory, not a lock; the remote
// store's last-write-wins semantics decide genuine races and every client
// converges on the next applied snapshot.
package engine

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/davack/slate/internal/fanout"
	"github.com/davack/slate/internal/identity"
	"github.com/davack/slate/internal/registry"
	"github.com/davack/slate/internal/sweeper"
	"github.com/davack/slate/internal/transit"
	"github.com/davack/slate/pkg/boardstore"
)

// Store is the slice of the board client the engine drives. *boardstore.Client
// satisfies it; tests substitute failing stubs to exercise rollback.
type Store interface {
	CreateItem(ctx context.Context, channel boardstore.Channel, item *boardstore.ContentItem) error
	PatchItemFields(ctx context.Context, channel boardstore.Channel, itemID string, fields map[string]interface{}) error
	DeleteItem(ctx context.Context, channel boardstore.Channel, itemID string) error
	DeleteItems(ctx context.Context, channel boardstore.Channel, itemIDs []string) error
	GetChannelSnapshot(ctx context.Context, channel boardstore.Channel) (*boardstore.Snapshot, error)
	SubscribeChannel(ctx context.Context, channel boardstore.Channel) (*boardstore.Subscription, error)
}

// Notifier fans a qualifying mutation out to project members.
type Notifier interface {
	Notify(ctx context.Context, event fanout.Event) error
}

// Options tunes the engine timers. Zero values mean immediate, which is what
// tests want; production callers take the defaults from config.
type Options struct {
	Debounce      time.Duration // snapshot ingestion debounce
	Settle        time.Duration // transit settle delay after write confirmation
	ApprovalGuard time.Duration // toggle-approval idempotency window
}

// Hooks are optional callbacks into the surrounding UI. All hooks are invoked
// from the engine's event loop or the mutating call; they must not block.
type Hooks struct {
	OnApply       func(*boardstore.Snapshot) // a remote snapshot was applied to the registry
	OnError       func(error)                // the subscription reported a retryable error
	OnItemDeleted func(itemID string)        // an item was deleted; close any detail view showing it
}

// Engine is the sync and mutation coordinator for one channel.
type Engine struct {
	store   Store
	channel boardstore.Channel
	actor   identity.User
	opts    Options
	hooks   Hooks

	reg     *registry.Registry
	tracker *transit.Tracker
	sweep   *sweeper.Sweeper
	notify  Notifier

	mu            sync.Mutex
	approvalGuard map[string]time.Time // item id -> guard expiry
}

// New creates an engine for one channel with a fresh registry and tracker.
// notify may be nil, in which case qualifying mutations skip fanout.
func New(store Store, channel boardstore.Channel, actor identity.User, notify Notifier, opts Options, hooks Hooks) *Engine {
	return &Engine{
		store:         store,
		channel:       channel,
		actor:         actor,
		opts:          opts,
		hooks:         hooks,
		reg:           registry.New(),
		tracker:       transit.New(opts.Settle),
		sweep:         sweeper.New(store, channel),
		notify:        notify,
		approvalGuard: make(map[string]time.Time),
	}
}

// Registry exposes the engine's read views (pool order, slot groups) to the
// surrounding UI.
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// Channel returns the channel this engine is scoped to.
func (e *Engine) Channel() boardstore.Channel {
	return e.channel
}

// IsBusy reports whether an item is mid-mutation. The UI consults this to
// disable drag and approve affordances.
func (e *Engine) IsBusy(itemID string) bool {
	return e.tracker.IsBusy(itemID)
}

// Prime loads the current snapshot into the registry without subscribing.
// One-shot callers (CLI mutations) use it to get a view to validate against;
// long-lived callers use Run instead.
func (e *Engine) Prime(ctx context.Context) error {
	snapshot, err := e.store.GetChannelSnapshot(ctx, e.channel)
	if err != nil {
		return err
	}
	e.reg.ReplaceAll(snapshot.Items)
	return nil
}

// Run subscribes to the channel and ingests remote snapshots until the
// context is cancelled. Incoming ticks are debounced so a burst of provider
// writes coalesces into one registry update; the freshest snapshot always
// wins. Subscription errors clear the registry and surface through the
// OnError hook while the subscription stays outstanding.
//
// Run returning tears down the tracker, so no settle timer can outlive the
// engine and write into a registry that is no longer current.
func (e *Engine) Run(ctx context.Context) error {
	sub, err := e.store.SubscribeChannel(ctx, e.channel)
	if err != nil {
		return err
	}
	defer sub.Close()
	defer e.tracker.Clear()

	log.Printf("[Engine] Subscribed to channel '%s'", e.channel)

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	var pending *boardstore.Snapshot

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Engine] Shutting down channel '%s'", e.channel)
			return nil

		case snapshot, ok := <-sub.Snapshots():
			if !ok {
				log.Printf("[Engine] Subscription closed for channel '%s'", e.channel)
				return nil
			}
			// Last write wins: a fresh tick replaces the pending snapshot
			// and restarts the debounce timer.
			pending = snapshot
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(e.opts.Debounce)

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			log.Printf("[Engine] Subscription error on channel '%s': %v", e.channel, err)
			pending = nil
			e.reg.Clear()
			if e.hooks.OnError != nil {
				e.hooks.OnError(err)
			}

		case <-debounce.C:
			if pending == nil {
				continue
			}
			e.ingest(ctx, pending)
			pending = nil
		}
	}
}

// ingest applies one debounced remote snapshot, unless a local mutation is
// still in flight, in which case the whole snapshot is dropped for this tick.
// The next tick carries complete state, so a dropped snapshot loses nothing
// for good.
func (e *Engine) ingest(ctx context.Context, snapshot *boardstore.Snapshot) {
	if !e.tracker.Empty() {
		e.logEvent("snapshot_suppressed", map[string]interface{}{
			"in_transit": e.tracker.Len(),
			"items":      len(snapshot.Items),
		})
		return
	}

	e.reg.ReplaceAll(snapshot.Items)
	e.logEvent("snapshot_applied", map[string]interface{}{
		"items": len(snapshot.Items),
	})

	if removed := e.sweep.Sweep(ctx, e.reg); len(removed) > 0 {
		e.logEvent("invalid_items_swept", map[string]interface{}{
			"removed": removed,
		})
	}

	if e.hooks.OnApply != nil {
		e.hooks.OnApply(snapshot)
	}
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "engine"
	data["event_type"] = eventType
	data["channel"] = string(e.channel)

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Engine] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
