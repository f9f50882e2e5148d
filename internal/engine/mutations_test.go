package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/davack/slate/internal/fanout"
	"github.com/davack/slate/internal/identity"
	"github.com/davack/slate/pkg/boardstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedPatch is one PatchItemFields call captured by the fake store.
type recordedPatch struct {
	itemID string
	fields map[string]interface{}
}

// fakeStore is an in-memory Store with switchable failure modes, used to
// exercise the optimistic apply and rollback paths without Redis.
type fakeStore struct {
	mu      sync.Mutex
	items   map[string]*boardstore.ContentItem
	patches []recordedPatch

	failCreate bool
	failPatch  bool
	failDelete bool
}

func newFakeStore(items ...*boardstore.ContentItem) *fakeStore {
	s := &fakeStore{items: make(map[string]*boardstore.ContentItem)}
	for _, item := range items {
		s.items[item.ID] = item.Clone()
	}
	return s
}

func (s *fakeStore) CreateItem(ctx context.Context, channel boardstore.Channel, item *boardstore.ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return fmt.Errorf("remote write rejected")
	}
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *fakeStore) PatchItemFields(ctx context.Context, channel boardstore.Channel, itemID string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPatch {
		return fmt.Errorf("remote write rejected")
	}
	s.patches = append(s.patches, recordedPatch{itemID: itemID, fields: fields})
	return nil
}

func (s *fakeStore) DeleteItem(ctx context.Context, channel boardstore.Channel, itemID string) error {
	return s.DeleteItems(ctx, channel, []string{itemID})
}

func (s *fakeStore) DeleteItems(ctx context.Context, channel boardstore.Channel, itemIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete {
		return fmt.Errorf("remote delete rejected")
	}
	for _, id := range itemIDs {
		delete(s.items, id)
	}
	return nil
}

func (s *fakeStore) GetChannelSnapshot(ctx context.Context, channel boardstore.Channel) (*boardstore.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := &boardstore.Snapshot{Channel: channel, Items: make(map[string]*boardstore.ContentItem, len(s.items))}
	for id, item := range s.items {
		snapshot.Items[id] = item.Clone()
	}
	return snapshot, nil
}

func (s *fakeStore) SubscribeChannel(ctx context.Context, channel boardstore.Channel) (*boardstore.Subscription, error) {
	return nil, fmt.Errorf("subscriptions not supported by this stub")
}

func (s *fakeStore) lastPatch(t *testing.T) recordedPatch {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.patches)
	return s.patches[len(s.patches)-1]
}

func (s *fakeStore) patchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patches)
}

// fakeNotifier records fanout events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []fanout.Event
}

func (f *fakeNotifier) Notify(ctx context.Context, event fanout.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeNotifier) all() []fanout.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fanout.Event(nil), f.events...)
}

func poolItem(title string) *boardstore.ContentItem {
	return &boardstore.ContentItem{
		ID:          uuid.New().String(),
		MediaURL:    "https://cdn.example.com/a.jpg",
		Title:       title,
		Label:       boardstore.LabelReadyForApproval,
		ContentType: boardstore.ContentTypePhoto,
		Location:    boardstore.LocationPool,
		LastMovedMs: 1000,
		Attachments: []boardstore.Attachment{},
		Comments:    []boardstore.ItemComment{},
	}
}

// setupEngine builds an engine over a fake store pre-seeded with the given
// items and primes the registry from it. Zero settle delay keeps items out of
// transit between subtests.
func setupEngine(t *testing.T, store *fakeStore) (*Engine, *fakeNotifier) {
	t.Helper()
	notifier := &fakeNotifier{}
	eng := New(store, boardstore.ChannelInstagram, identity.User{ID: "ana", Name: "Ana"},
		notifier, Options{ApprovalGuard: time.Second}, Hooks{})
	require.NoError(t, eng.Prime(context.Background()))
	return eng, notifier
}

func TestMoveToSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("moves item and patches only location fields", func(t *testing.T) {
		item := poolItem("Promo")
		store := newFakeStore(item)
		eng, _ := setupEngine(t, store)

		result := eng.MoveToSlot(ctx, item.ID, "2025-0-14")
		require.True(t, result.OK, result.Message)

		got := eng.Registry().Get(item.ID)
		require.NotNil(t, got)
		assert.Equal(t, "2025-0-14", got.Location)
		assert.Greater(t, got.LastMovedMs, int64(1000))

		patch := store.lastPatch(t)
		assert.Equal(t, item.ID, patch.itemID)
		assert.Len(t, patch.fields, 2)
		assert.Equal(t, "2025-0-14", patch.fields[boardstore.FieldLocation])
	})

	t.Run("rejects malformed slot key", func(t *testing.T) {
		item := poolItem("Promo")
		eng, _ := setupEngine(t, newFakeStore(item))

		result := eng.MoveToSlot(ctx, item.ID, "2025-12-14")
		assert.False(t, result.OK)
		assert.Contains(t, result.Message, "invalid slot")
	})

	t.Run("rejects unknown item", func(t *testing.T) {
		eng, _ := setupEngine(t, newFakeStore())
		result := eng.MoveToSlot(ctx, uuid.New().String(), "2025-0-14")
		assert.False(t, result.OK)
		assert.Contains(t, result.Message, "unknown item")
	})

	t.Run("rejects occupied slot", func(t *testing.T) {
		occupant := poolItem("First")
		occupant.Location = "2025-0-14"
		mover := poolItem("Second")
		eng, _ := setupEngine(t, newFakeStore(occupant, mover))

		result := eng.MoveToSlot(ctx, mover.ID, "2025-0-14")
		assert.False(t, result.OK)
		assert.Contains(t, result.Message, "already occupied")
	})

	t.Run("moving within the same slot is allowed", func(t *testing.T) {
		item := poolItem("Promo")
		item.Location = "2025-0-14"
		eng, _ := setupEngine(t, newFakeStore(item))

		result := eng.MoveToSlot(ctx, item.ID, "2025-0-14")
		assert.True(t, result.OK)
	})

	t.Run("rejects item still settling", func(t *testing.T) {
		item := poolItem("Promo")
		store := newFakeStore(item)
		notifier := &fakeNotifier{}
		eng := New(store, boardstore.ChannelInstagram, identity.User{ID: "ana", Name: "Ana"},
			notifier, Options{Settle: time.Minute}, Hooks{})
		require.NoError(t, eng.Prime(ctx))

		first := eng.MoveToSlot(ctx, item.ID, "2025-0-14")
		require.True(t, first.OK)
		assert.True(t, eng.IsBusy(item.ID))

		second := eng.MoveToSlot(ctx, item.ID, "2025-0-15")
		assert.False(t, second.OK)
		assert.Contains(t, second.Message, "settling")
	})
}

func TestMoveToPool(t *testing.T) {
	ctx := context.Background()

	t.Run("moves slotted item back to the pool", func(t *testing.T) {
		item := poolItem("Promo")
		item.Location = "2025-0-14"
		store := newFakeStore(item)
		eng, _ := setupEngine(t, store)

		result := eng.MoveToPool(ctx, item.ID)
		require.True(t, result.OK, result.Message)
		assert.Equal(t, boardstore.LocationPool, eng.Registry().Get(item.ID).Location)
	})

	t.Run("rejects item without a media asset", func(t *testing.T) {
		item := poolItem("Broken")
		item.Location = "2025-0-14"
		item.MediaURL = ""
		store := newFakeStore(item)
		eng, _ := setupEngine(t, store)

		result := eng.MoveToPool(ctx, item.ID)
		assert.False(t, result.OK)
		assert.Contains(t, result.Message, "no media asset")
		assert.Equal(t, 0, store.patchCount())
	})
}

func TestMutationRollback(t *testing.T) {
	ctx := context.Background()

	t.Run("failed patch restores the registry exactly", func(t *testing.T) {
		item := poolItem("Promo")
		store := newFakeStore(item)
		eng, _ := setupEngine(t, store)

		before := eng.Registry().Snapshot()
		store.failPatch = true

		result := eng.MoveToSlot(ctx, item.ID, "2025-0-14")
		assert.False(t, result.OK)
		assert.Contains(t, result.Message, "remote write rejected")

		after := eng.Registry().Snapshot()
		assert.Equal(t, before, after)
	})

	t.Run("failed patch releases the transit id immediately", func(t *testing.T) {
		item := poolItem("Promo")
		store := newFakeStore(item)
		store.failPatch = true
		notifier := &fakeNotifier{}
		eng := New(store, boardstore.ChannelInstagram, identity.User{ID: "ana", Name: "Ana"},
			notifier, Options{Settle: time.Minute}, Hooks{})
		require.NoError(t, eng.Prime(ctx))

		result := eng.MoveToSlot(ctx, item.ID, "2025-0-14")
		assert.False(t, result.OK)
		assert.False(t, eng.IsBusy(item.ID))
	})

	t.Run("failed mutations never fan out", func(t *testing.T) {
		item := poolItem("Promo")
		store := newFakeStore(item)
		store.failPatch = true
		eng, notifier := setupEngine(t, store)

		eng.AddComment(ctx, item.ID, "doomed")
		assert.Empty(t, notifier.all())
	})
}

func TestToggleApproval(t *testing.T) {
	ctx := context.Background()

	t.Run("flips ready_for_approval to approved and back", func(t *testing.T) {
		item := poolItem("Promo")
		store := newFakeStore(item)
		notifier := &fakeNotifier{}
		// no guard window so the round trip is immediate
		eng := New(store, boardstore.ChannelInstagram, identity.User{ID: "ana", Name: "Ana"},
			notifier, Options{}, Hooks{})
		require.NoError(t, eng.Prime(ctx))

		result := eng.ToggleApproval(ctx, item.ID)
		require.True(t, result.OK, result.Message)
		assert.Equal(t, boardstore.LabelApproved, eng.Registry().Get(item.ID).Label)

		result = eng.ToggleApproval(ctx, item.ID)
		require.True(t, result.OK, result.Message)
		assert.Equal(t, boardstore.LabelReadyForApproval, eng.Registry().Get(item.ID).Label)

		events := notifier.all()
		require.Len(t, events, 2)
		assert.Equal(t, fanout.TypeApproval, events[0].Type)
	})

	t.Run("repeat toggle inside the guard window is ignored", func(t *testing.T) {
		item := poolItem("Promo")
		store := newFakeStore(item)
		eng, notifier := setupEngine(t, store)

		first := eng.ToggleApproval(ctx, item.ID)
		require.True(t, first.OK)

		second := eng.ToggleApproval(ctx, item.ID)
		assert.True(t, second.OK)
		assert.Contains(t, second.Message, "already in flight")

		// only the first toggle reached the store and fanned out
		assert.Equal(t, 1, store.patchCount())
		assert.Len(t, notifier.all(), 1)
		assert.Equal(t, boardstore.LabelApproved, eng.Registry().Get(item.ID).Label)
	})

	t.Run("guard is per item", func(t *testing.T) {
		a, b := poolItem("A"), poolItem("B")
		store := newFakeStore(a, b)
		eng, _ := setupEngine(t, store)

		require.True(t, eng.ToggleApproval(ctx, a.ID).OK)
		result := eng.ToggleApproval(ctx, b.ID)
		require.True(t, result.OK)
		assert.NotContains(t, result.Message, "already in flight")
		assert.Equal(t, 2, store.patchCount())
	})

	t.Run("needs_revision is not toggleable", func(t *testing.T) {
		item := poolItem("Promo")
		item.Label = boardstore.LabelNeedsRevision
		eng, _ := setupEngine(t, newFakeStore(item))

		result := eng.ToggleApproval(ctx, item.ID)
		assert.False(t, result.OK)
		assert.Contains(t, result.Message, "cannot be toggled")
	})

	t.Run("failed toggle drops the guard for retry", func(t *testing.T) {
		item := poolItem("Promo")
		store := newFakeStore(item)
		store.failPatch = true
		eng, _ := setupEngine(t, store)

		first := eng.ToggleApproval(ctx, item.ID)
		assert.False(t, first.OK)

		store.failPatch = false
		second := eng.ToggleApproval(ctx, item.ID)
		assert.True(t, second.OK)
		assert.NotContains(t, second.Message, "already in flight")
	})
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	validInput := func() CreateInput {
		return CreateInput{
			Title:       "New promo",
			Label:       boardstore.LabelReadyForApproval,
			ContentType: boardstore.ContentTypePhoto,
			MediaURL:    "https://cdn.example.com/new.jpg",
		}
	}

	t.Run("creates item in the pool", func(t *testing.T) {
		store := newFakeStore()
		eng, _ := setupEngine(t, store)

		result := eng.Create(ctx, validInput())
		require.True(t, result.OK, result.Message)
		require.NotEmpty(t, result.ItemID)

		created := eng.Registry().Get(result.ItemID)
		require.NotNil(t, created)
		assert.Equal(t, boardstore.LocationPool, created.Location)
		assert.Equal(t, "New promo", created.Title)
	})

	t.Run("requires title, media, label and type", func(t *testing.T) {
		eng, _ := setupEngine(t, newFakeStore())

		in := validInput()
		in.Title = ""
		assert.False(t, eng.Create(ctx, in).OK)

		in = validInput()
		in.MediaURL = ""
		assert.False(t, eng.Create(ctx, in).OK)

		in = validInput()
		in.Label = ""
		assert.False(t, eng.Create(ctx, in).OK)

		in = validInput()
		in.ContentType = "hologram"
		assert.False(t, eng.Create(ctx, in).OK)
	})

	t.Run("failed create rolls the item back out", func(t *testing.T) {
		store := newFakeStore()
		store.failCreate = true
		eng, _ := setupEngine(t, store)

		result := eng.Create(ctx, validInput())
		assert.False(t, result.OK)
		assert.Equal(t, 0, eng.Registry().Len())
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes item and fires hook", func(t *testing.T) {
		item := poolItem("Doomed")
		store := newFakeStore(item)
		var deleted []string
		notifier := &fakeNotifier{}
		eng := New(store, boardstore.ChannelInstagram, identity.User{ID: "ana", Name: "Ana"},
			notifier, Options{}, Hooks{OnItemDeleted: func(id string) { deleted = append(deleted, id) }})
		require.NoError(t, eng.Prime(ctx))

		result := eng.Delete(ctx, item.ID)
		require.True(t, result.OK, result.Message)
		assert.Nil(t, eng.Registry().Get(item.ID))
		assert.Equal(t, []string{item.ID}, deleted)
	})

	t.Run("failed delete restores the item", func(t *testing.T) {
		item := poolItem("Survivor")
		store := newFakeStore(item)
		store.failDelete = true
		eng, _ := setupEngine(t, store)

		result := eng.Delete(ctx, item.ID)
		assert.False(t, result.OK)
		assert.NotNil(t, eng.Registry().Get(item.ID))
	})

	t.Run("unknown item", func(t *testing.T) {
		eng, _ := setupEngine(t, newFakeStore())
		assert.False(t, eng.Delete(ctx, uuid.New().String()).OK)
	})
}

func TestSaveEdits(t *testing.T) {
	ctx := context.Background()

	t.Run("patches only changed fields", func(t *testing.T) {
		item := poolItem("Old title")
		store := newFakeStore(item)
		eng, notifier := setupEngine(t, store)

		result := eng.SaveEdits(ctx, item.ID, EditInput{
			Title:       "New title",
			Description: item.Description,
			Comment:     item.Comment,
			Label:       item.Label,
			Attachments: item.Attachments,
		})
		require.True(t, result.OK, result.Message)

		patch := store.lastPatch(t)
		assert.Len(t, patch.fields, 1)
		assert.Equal(t, "New title", patch.fields[boardstore.FieldTitle])

		events := notifier.all()
		require.Len(t, events, 1)
		assert.Equal(t, fanout.TypeEdit, events[0].Type)
	})

	t.Run("label change fans out as status", func(t *testing.T) {
		item := poolItem("Promo")
		store := newFakeStore(item)
		eng, notifier := setupEngine(t, store)

		result := eng.SaveEdits(ctx, item.ID, EditInput{
			Title:       item.Title,
			Description: item.Description,
			Comment:     item.Comment,
			Label:       boardstore.LabelNeedsRevision,
			Attachments: item.Attachments,
		})
		require.True(t, result.OK)

		events := notifier.all()
		require.Len(t, events, 1)
		assert.Equal(t, fanout.TypeStatus, events[0].Type)
	})

	t.Run("no changes is a no-op", func(t *testing.T) {
		item := poolItem("Promo")
		store := newFakeStore(item)
		eng, notifier := setupEngine(t, store)

		result := eng.SaveEdits(ctx, item.ID, EditInput{
			Title:       item.Title,
			Description: item.Description,
			Comment:     item.Comment,
			Label:       item.Label,
			Attachments: item.Attachments,
		})
		assert.True(t, result.OK)
		assert.Equal(t, "No changes to save", result.Message)
		assert.Equal(t, 0, store.patchCount())
		assert.Empty(t, notifier.all())
	})

	t.Run("requires a title", func(t *testing.T) {
		item := poolItem("Promo")
		eng, _ := setupEngine(t, newFakeStore(item))

		result := eng.SaveEdits(ctx, item.ID, EditInput{Title: "", Label: item.Label})
		assert.False(t, result.OK)
	})
}

func TestAddComment(t *testing.T) {
	ctx := context.Background()

	t.Run("appends comment and fans out", func(t *testing.T) {
		item := poolItem("Promo")
		store := newFakeStore(item)
		eng, notifier := setupEngine(t, store)

		result := eng.AddComment(ctx, item.ID, "looks great")
		require.True(t, result.OK, result.Message)

		got := eng.Registry().Get(item.ID)
		require.Len(t, got.Comments, 1)
		assert.Equal(t, "looks great", got.Comments[0].Text)
		assert.Equal(t, "ana", got.Comments[0].AuthorID)

		events := notifier.all()
		require.Len(t, events, 1)
		assert.Equal(t, fanout.TypeComment, events[0].Type)
		assert.Equal(t, "looks great", events[0].Comment)
	})

	t.Run("rejects empty text", func(t *testing.T) {
		item := poolItem("Promo")
		eng, _ := setupEngine(t, newFakeStore(item))
		assert.False(t, eng.AddComment(ctx, item.ID, "").OK)
	})
}
