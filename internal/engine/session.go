package engine

import (
	"context"
	"log"
	"sync"

	"github.com/davack/slate/internal/identity"
	"github.com/davack/slate/pkg/boardstore"
)

// Session owns the engine lifecycle across channel switches. Exactly one
// engine (and therefore one registry and one tracker) is live at a time;
// switching channels cancels the old engine's subscription and debounce
// timers before the replacement starts, so no stale timer can ever write
// into a registry that is no longer current.
type Session struct {
	store  Store
	actor  identity.User
	notify Notifier
	opts   Options
	hooks  Hooks

	mu      sync.Mutex
	current *Engine
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSession creates a session with no active channel.
func NewSession(store Store, actor identity.User, notify Notifier, opts Options, hooks Hooks) *Session {
	return &Session{
		store:  store,
		actor:  actor,
		notify: notify,
		opts:   opts,
		hooks:  hooks,
	}
}

// Use switches the session to a channel: the previous engine is torn down
// completely, then a fresh engine with a fresh registry and tracker starts
// running. The returned engine is in the loading state until its first
// snapshot arrives.
func (s *Session) Use(ctx context.Context, channel boardstore.Channel) (*Engine, error) {
	if err := channel.Validate(); err != nil {
		return nil, err
	}

	s.teardown()

	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	eng := New(s.store, channel, s.actor, s.notify, s.opts, s.hooks)
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := eng.Run(runCtx); err != nil {
			log.Printf("[Session] Engine for channel '%s' exited: %v", channel, err)
		}
	}()

	s.current = eng
	s.cancel = cancel
	s.done = done
	return eng, nil
}

// Engine returns the currently active engine, or nil when no channel is in
// use.
func (s *Session) Engine() *Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close tears down the active engine. Safe to call with none active.
func (s *Session) Close() {
	s.teardown()
}

// teardown cancels the active engine and waits for its loop to exit, so the
// caller never observes two live engines.
func (s *Session) teardown() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.current = nil
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
