package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/davack/slate/internal/fanout"
	"github.com/davack/slate/pkg/boardstore"
	"github.com/google/uuid"
)

// Result is the outcome of one user-facing mutation: success or failure plus
// a message suitable for direct display.
type Result struct {
	OK      bool
	ItemID  string
	Message string
}

func failure(format string, a ...interface{}) Result {
	return Result{OK: false, Message: fmt.Sprintf(format, a...)}
}

// CreateInput carries the fields required to create a content item. MediaURL
// must reference an already-uploaded asset: the engine never creates an item
// whose primary asset is not durable yet.
type CreateInput struct {
	Title       string
	Description string
	Comment     string
	Label       boardstore.Label
	ContentType boardstore.ContentType
	MediaURL    string
	Attachments []boardstore.Attachment
}

// EditInput carries the mutable text and label fields for SaveEdits. The
// attachment list replaces the stored one; within one edit session the UI
// only ever appends to it.
type EditInput struct {
	Title       string
	Description string
	Comment     string
	Label       boardstore.Label
	Attachments []boardstore.Attachment
}

// MoveToSlot relocates an item onto a calendar slot. The destination is
// rejected if another item already occupies it in the current local view.
// That check is best-effort: two users racing on the same slot within the
// same instant can still both succeed remotely, and last write wins.
func (e *Engine) MoveToSlot(ctx context.Context, itemID, slotKey string) Result {
	if _, _, _, err := boardstore.ParseSlotKey(slotKey); err != nil {
		return failure("invalid slot: %v", err)
	}

	item := e.reg.Get(itemID)
	if item == nil {
		return failure("unknown item %s", itemID)
	}

	if e.tracker.IsBusy(itemID) {
		return failure("item is still settling from a previous move")
	}

	if occupant := e.reg.SlotOccupant(slotKey); occupant != nil && occupant.ID != itemID {
		return failure("slot %s is already occupied by %q", slotKey, occupant.Title)
	}

	item.Location = slotKey
	item.LastMovedMs = boardstore.NowMs()

	return e.commit(ctx, item, map[string]interface{}{
		boardstore.FieldLocation:    item.Location,
		boardstore.FieldLastMovedMs: item.LastMovedMs,
	}, "item_moved", fmt.Sprintf("Moved %q to %s", item.Title, slotKey), nil)
}

// MoveToPool relocates an item back to the holding pool. An item without a
// usable media reference must never be visible in the pool, so the move is
// rejected when the asset reference is empty.
func (e *Engine) MoveToPool(ctx context.Context, itemID string) Result {
	item := e.reg.Get(itemID)
	if item == nil {
		return failure("unknown item %s", itemID)
	}

	if item.MediaURL == "" {
		return failure("item %q has no media asset and cannot enter the pool", item.Title)
	}

	if e.tracker.IsBusy(itemID) {
		return failure("item is still settling from a previous move")
	}

	item.Location = boardstore.LocationPool
	item.LastMovedMs = boardstore.NowMs()

	return e.commit(ctx, item, map[string]interface{}{
		boardstore.FieldLocation:    item.Location,
		boardstore.FieldLastMovedMs: item.LastMovedMs,
	}, "item_moved", fmt.Sprintf("Moved %q to the pool", item.Title), nil)
}

// ToggleApproval flips an item between Approved and ReadyForApproval. Items
// in any other label state are not touched. Re-entrant calls for the same id
// are ignored while one is in flight and for the guard window after it
// completes; the guard is keyed by id and independent of the transit tracker.
func (e *Engine) ToggleApproval(ctx context.Context, itemID string) Result {
	if !e.acquireApprovalGuard(itemID) {
		return Result{OK: true, ItemID: itemID, Message: "approval change already in flight"}
	}

	item := e.reg.Get(itemID)
	if item == nil {
		e.dropApprovalGuard(itemID)
		return failure("unknown item %s", itemID)
	}

	switch item.Label {
	case boardstore.LabelApproved:
		item.Label = boardstore.LabelReadyForApproval
	case boardstore.LabelReadyForApproval:
		item.Label = boardstore.LabelApproved
	default:
		e.dropApprovalGuard(itemID)
		return failure("item %q is %s and cannot be toggled", item.Title, item.Label)
	}

	event := &fanout.Event{
		Type:         fanout.TypeApproval,
		ContentID:    item.ID,
		ContentTitle: item.Title,
		ActorID:      e.actor.ID,
		ActorName:    e.actor.Name,
	}

	result := e.commit(ctx, item, map[string]interface{}{
		boardstore.FieldLabel: string(item.Label),
	}, "approval_toggled", fmt.Sprintf("Set %q to %s", item.Title, item.Label), event)

	if result.OK {
		e.refreshApprovalGuard(itemID)
	} else {
		e.dropApprovalGuard(itemID)
	}
	return result
}

// Create adds a fresh item to the holding pool. Title, label, content type
// and an uploaded asset are all required.
func (e *Engine) Create(ctx context.Context, in CreateInput) Result {
	if in.Title == "" {
		return failure("title is required")
	}
	if in.MediaURL == "" {
		return failure("a successfully uploaded asset is required")
	}
	if err := in.Label.Validate(); err != nil {
		return failure("label is required: %v", err)
	}
	if err := in.ContentType.Validate(); err != nil {
		return failure("content type is required: %v", err)
	}
	if len(in.Attachments) > boardstore.MaxAttachments {
		return failure("too many attachments (max %d)", boardstore.MaxAttachments)
	}

	item := &boardstore.ContentItem{
		ID:          uuid.New().String(),
		MediaURL:    in.MediaURL,
		Title:       in.Title,
		Description: in.Description,
		Comment:     in.Comment,
		Label:       in.Label,
		ContentType: in.ContentType,
		Location:    boardstore.LocationPool,
		LastMovedMs: boardstore.NowMs(),
		Attachments: append([]boardstore.Attachment(nil), in.Attachments...),
		Comments:    []boardstore.ItemComment{},
	}

	snapshot := e.reg.Snapshot()
	e.reg.Upsert(item)
	e.tracker.Begin(item.ID)

	if err := e.store.CreateItem(ctx, e.channel, item); err != nil {
		e.reg.Restore(snapshot)
		e.tracker.Release(item.ID)
		e.logEvent("mutation_failed", map[string]interface{}{
			"operation": "item_created",
			"item_id":   item.ID,
			"error":     err.Error(),
		})
		return failure("failed to create %q: remote write rejected", in.Title)
	}

	e.tracker.End(item.ID)
	e.logEvent("item_created", map[string]interface{}{"item_id": item.ID})
	return Result{OK: true, ItemID: item.ID, Message: fmt.Sprintf("Created %q in the pool", item.Title)}
}

// Delete removes an item from the board entirely: the remote field path is
// deleted, not nulled, and the item leaves the local registry at once. Any
// detail view showing the id is closed through the OnItemDeleted hook.
func (e *Engine) Delete(ctx context.Context, itemID string) Result {
	item := e.reg.Get(itemID)
	if item == nil {
		return failure("unknown item %s", itemID)
	}

	snapshot := e.reg.Snapshot()
	e.reg.Remove(itemID)
	e.tracker.Begin(itemID)

	if err := e.store.DeleteItem(ctx, e.channel, itemID); err != nil {
		e.reg.Restore(snapshot)
		e.tracker.Release(itemID)
		e.logEvent("mutation_failed", map[string]interface{}{
			"operation": "item_deleted",
			"item_id":   itemID,
			"error":     err.Error(),
		})
		return failure("failed to delete %q: remote write rejected", item.Title)
	}

	e.tracker.End(itemID)
	e.logEvent("item_deleted", map[string]interface{}{"item_id": itemID})

	if e.hooks.OnItemDeleted != nil {
		e.hooks.OnItemDeleted(itemID)
	}

	return Result{OK: true, ItemID: itemID, Message: fmt.Sprintf("Deleted %q", item.Title)}
}

// SaveEdits persists the mutable fields of an item, patching only what
// changed. A label change fans out as a status event; any other change fans
// out as an edit event.
func (e *Engine) SaveEdits(ctx context.Context, itemID string, in EditInput) Result {
	if in.Title == "" {
		return failure("title is required")
	}
	if err := in.Label.Validate(); err != nil {
		return failure("invalid label: %v", err)
	}
	if len(in.Attachments) > boardstore.MaxAttachments {
		return failure("too many attachments (max %d)", boardstore.MaxAttachments)
	}

	item := e.reg.Get(itemID)
	if item == nil {
		return failure("unknown item %s", itemID)
	}

	fields := make(map[string]interface{})
	labelChanged := false

	if in.Title != item.Title {
		item.Title = in.Title
		fields[boardstore.FieldTitle] = in.Title
	}
	if in.Description != item.Description {
		item.Description = in.Description
		fields[boardstore.FieldDescription] = in.Description
	}
	if in.Comment != item.Comment {
		item.Comment = in.Comment
		fields[boardstore.FieldComment] = in.Comment
	}
	if in.Label != item.Label {
		item.Label = in.Label
		fields[boardstore.FieldLabel] = string(in.Label)
		labelChanged = true
	}
	if !attachmentsEqual(in.Attachments, item.Attachments) {
		item.Attachments = append([]boardstore.Attachment(nil), in.Attachments...)
		encoded, err := json.Marshal(item.Attachments)
		if err != nil {
			return failure("failed to encode attachments: %v", err)
		}
		fields[boardstore.FieldAttachments] = string(encoded)
	}

	if len(fields) == 0 {
		return Result{OK: true, ItemID: itemID, Message: "No changes to save"}
	}

	eventType := fanout.TypeEdit
	if labelChanged {
		eventType = fanout.TypeStatus
	}
	event := &fanout.Event{
		Type:         eventType,
		ContentID:    item.ID,
		ContentTitle: item.Title,
		ActorID:      e.actor.ID,
		ActorName:    e.actor.Name,
	}

	return e.commit(ctx, item, fields, "item_edited", fmt.Sprintf("Saved changes to %q", item.Title), event)
}

// AddComment appends a free-form comment to an item and fans it out. Comment
// events merge per (actor, item) inside the notification window.
func (e *Engine) AddComment(ctx context.Context, itemID, text string) Result {
	if text == "" {
		return failure("comment text is required")
	}

	item := e.reg.Get(itemID)
	if item == nil {
		return failure("unknown item %s", itemID)
	}

	item.Comments = append(item.Comments, boardstore.ItemComment{
		ID:          uuid.New().String(),
		AuthorID:    e.actor.ID,
		AuthorName:  e.actor.Name,
		Text:        text,
		CreatedAtMs: boardstore.NowMs(),
	})

	encoded, err := json.Marshal(item.Comments)
	if err != nil {
		return failure("failed to encode comments: %v", err)
	}

	event := &fanout.Event{
		Type:         fanout.TypeComment,
		ContentID:    item.ID,
		ContentTitle: item.Title,
		ActorID:      e.actor.ID,
		ActorName:    e.actor.Name,
		Comment:      text,
	}

	return e.commit(ctx, item, map[string]interface{}{
		boardstore.FieldComments: string(encoded),
	}, "comment_added", fmt.Sprintf("Commented on %q", item.Title), event)
}

// commit runs the shared optimistic-mutation template: snapshot the registry,
// apply the new item state locally, mark the id in transit, issue the minimal
// remote patch, then either fan out and settle or roll back. Interactive
// mutations never auto-retry; the user re-triggers.
func (e *Engine) commit(ctx context.Context, item *boardstore.ContentItem, fields map[string]interface{}, operation, successMsg string, event *fanout.Event) Result {
	snapshot := e.reg.Snapshot()
	e.reg.Upsert(item)
	e.tracker.Begin(item.ID)

	if err := e.store.PatchItemFields(ctx, e.channel, item.ID, fields); err != nil {
		e.reg.Restore(snapshot)
		e.tracker.Release(item.ID)
		e.logEvent("mutation_failed", map[string]interface{}{
			"operation": operation,
			"item_id":   item.ID,
			"error":     err.Error(),
		})
		return failure("failed to update %q: remote write rejected", item.Title)
	}

	e.tracker.End(item.ID)
	e.logEvent(operation, map[string]interface{}{"item_id": item.ID})

	if event != nil && e.notify != nil {
		if err := e.notify.Notify(ctx, *event); err != nil {
			// Notification delivery is best-effort; the mutation itself stands.
			e.logEvent("fanout_failed", map[string]interface{}{
				"operation": operation,
				"item_id":   item.ID,
				"error":     err.Error(),
			})
		}
	}

	return Result{OK: true, ItemID: item.ID, Message: successMsg}
}

// acquireApprovalGuard claims the per-id idempotency guard. Returns false if
// a toggle for the id is in flight or completed inside the guard window.
func (e *Engine) acquireApprovalGuard(itemID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if expiry, ok := e.approvalGuard[itemID]; ok && time.Now().Before(expiry) {
		return false
	}
	// In-flight marker: far enough out that a hung write keeps the guard.
	e.approvalGuard[itemID] = time.Now().Add(time.Minute)
	return true
}

// refreshApprovalGuard starts the post-completion guard window.
func (e *Engine) refreshApprovalGuard(itemID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.approvalGuard[itemID] = time.Now().Add(e.opts.ApprovalGuard)
}

// dropApprovalGuard releases the guard without a window, used when the
// toggle never reached the store.
func (e *Engine) dropApprovalGuard(itemID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.approvalGuard, itemID)
}

func attachmentsEqual(a, b []boardstore.Attachment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
