// Package registry holds the in-memory content item collection for the
// active channel. It is the single source of truth for the UI: derived views
// (pool order, calendar slot groups) are computed from it and nothing in
// this package touches the network.
package registry

import (
	"sort"
	"sync"

	"github.com/davack/slate/pkg/boardstore"
)

// Registry is a keyed in-memory collection of content items for one channel.
// It starts in the loading state and leaves it on the first ReplaceAll, so a
// channel switch never shows partial cross-channel state.
type Registry struct {
	mu      sync.RWMutex
	items   map[string]*boardstore.ContentItem
	loading bool
}

// New creates an empty registry in the loading state.
func New() *Registry {
	return &Registry{
		items:   make(map[string]*boardstore.ContentItem),
		loading: true,
	}
}

// Loading reports whether the registry is still waiting for its first
// snapshot.
func (r *Registry) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

// ReplaceAll swaps the entire collection for the given items and clears the
// loading state. Items are cloned on the way in so later registry mutations
// never alias the caller's data.
func (r *Registry) ReplaceAll(items map[string]*boardstore.ContentItem) {
	next := make(map[string]*boardstore.ContentItem, len(items))
	for id, item := range items {
		next[id] = item.Clone()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = next
	r.loading = false
}

// Upsert inserts or replaces a single item.
func (r *Registry) Upsert(item *boardstore.ContentItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = item.Clone()
}

// Remove deletes an item by id. Removing a missing id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}

// Get returns a copy of the item with the given id, or nil if absent.
func (r *Registry) Get(id string) *boardstore.ContentItem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil
	}
	return item.Clone()
}

// Len returns the number of items held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Clear empties the collection and returns the registry to the loading
// state. Used on channel switch and on subscription errors.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]*boardstore.ContentItem)
	r.loading = true
}

// Snapshot returns a deep copy of the full collection, suitable for mutation
// rollback: restoring it puts the registry back byte-for-byte.
func (r *Registry) Snapshot() map[string]*boardstore.ContentItem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*boardstore.ContentItem, len(r.items))
	for id, item := range r.items {
		out[id] = item.Clone()
	}
	return out
}

// Restore replaces the collection with a previously captured snapshot
// without touching the loading state.
func (r *Registry) Restore(snapshot map[string]*boardstore.ContentItem) {
	next := make(map[string]*boardstore.ContentItem, len(snapshot))
	for id, item := range snapshot {
		next[id] = item.Clone()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = next
}

// PoolItems returns the items in the holding pool, most recently moved
// first. Ties break by id so the order is deterministic.
func (r *Registry) PoolItems() []*boardstore.ContentItem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pool []*boardstore.ContentItem
	for _, item := range r.items {
		if item.Location == boardstore.LocationPool {
			pool = append(pool, item.Clone())
		}
	}

	sort.Slice(pool, func(i, j int) bool {
		if pool[i].LastMovedMs != pool[j].LastMovedMs {
			return pool[i].LastMovedMs > pool[j].LastMovedMs
		}
		return pool[i].ID < pool[j].ID
	})

	return pool
}

// SlotGroups returns the scheduled items grouped by slot key. A slot
// conventionally holds one item, but the grouping tolerates duplicates so a
// racing remote write never hides an item from the view.
func (r *Registry) SlotGroups() map[string][]*boardstore.ContentItem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make(map[string][]*boardstore.ContentItem)
	for _, item := range r.items {
		if item.Location == boardstore.LocationPool {
			continue
		}
		groups[item.Location] = append(groups[item.Location], item.Clone())
	}

	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
	}

	return groups
}

// SlotOccupant returns the item currently occupying a slot in the local
// view, or nil if the slot is free. When duplicates exist the lowest id
// wins, matching SlotGroups ordering.
func (r *Registry) SlotOccupant(slotKey string) *boardstore.ContentItem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var occupant *boardstore.ContentItem
	for _, item := range r.items {
		if item.Location != slotKey {
			continue
		}
		if occupant == nil || item.ID < occupant.ID {
			occupant = item
		}
	}

	if occupant == nil {
		return nil
	}
	return occupant.Clone()
}
