// Package fanout distributes one qualifying mutation into per-recipient
// notification records. Recipients are the project members, including the
// actor: the actor's own client already reflects the change, so duplicate
// delivery there is acceptable and not specially suppressed.
package fanout

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/davack/slate/pkg/boardstore"
	"github.com/google/uuid"
)

// DefaultMergeWindow is the trailing window inside which comment events from
// the same actor on the same item merge into one record.
const DefaultMergeWindow = 10 * time.Minute

// Notification event types. Only TypeComment merges; every other type is a
// standalone record per event.
const (
	TypeComment  = "comment"
	TypeApproval = "approval"
	TypeStatus   = "status"
	TypeEdit     = "edit"
)

// store is the slice of the board client the fanout needs.
type store interface {
	GetProject(ctx context.Context) (*boardstore.Project, error)
	ListNotifications(ctx context.Context, userID string) ([]*boardstore.NotificationRecord, error)
	PutNotification(ctx context.Context, userID string, rec *boardstore.NotificationRecord) error
}

// Event is one qualifying mutation to fan out.
type Event struct {
	Type         string
	ContentID    string
	ContentTitle string
	ActorID      string
	ActorName    string
	Comment      string // populated for TypeComment
}

// Fanout writes per-recipient notification records with time-windowed
// deduplication for comment events.
type Fanout struct {
	client      store
	mergeWindow time.Duration
	now         func() time.Time
}

// New creates a fanout with the given merge window. A non-positive window
// falls back to DefaultMergeWindow.
func New(client store, mergeWindow time.Duration) *Fanout {
	if mergeWindow <= 0 {
		mergeWindow = DefaultMergeWindow
	}
	return &Fanout{
		client:      client,
		mergeWindow: mergeWindow,
		now:         time.Now,
	}
}

// Notify resolves the project's member ids and writes or merges one record
// per member. A failure for one recipient is logged and does not stop
// delivery to the rest; the first error is returned once all recipients
// have been attempted.
func (f *Fanout) Notify(ctx context.Context, event Event) error {
	project, err := f.client.GetProject(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve project members: %w", err)
	}

	var firstErr error
	for _, memberID := range project.MemberIDs {
		if err := f.notifyOne(ctx, memberID, event); err != nil {
			log.Printf("[Fanout] Delivery to %s failed for item %s: %v", memberID, event.ContentID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// notifyOne writes one recipient's record: merged in place when a mergeable
// comment record exists inside the window, inserted fresh otherwise.
func (f *Fanout) notifyOne(ctx context.Context, userID string, event Event) error {
	nowMs := f.now().UnixMilli()

	if event.Type == TypeComment {
		existing, err := f.findMergeable(ctx, userID, event, nowMs)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.Count++
			existing.Message = commentMessage(event, existing.Count)
			existing.LastComment = event.Comment
			existing.TimestampMs = nowMs
			return f.client.PutNotification(ctx, userID, existing)
		}
	}

	rec := &boardstore.NotificationRecord{
		ID:          uuid.New().String(),
		Type:        event.Type,
		Message:     eventMessage(event),
		ContentID:   event.ContentID,
		ActorID:     event.ActorID,
		ActorName:   event.ActorName,
		TimestampMs: nowMs,
		Read:        false,
		Count:       1,
	}
	if event.Type == TypeComment {
		rec.LastComment = event.Comment
	}

	return f.client.PutNotification(ctx, userID, rec)
}

// findMergeable looks up the recipient's existing comment record for the
// same (contentId, actorId) whose timestamp falls within the trailing
// window. Returns nil when no such record exists.
func (f *Fanout) findMergeable(ctx context.Context, userID string, event Event, nowMs int64) (*boardstore.NotificationRecord, error) {
	records, err := f.client.ListNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}

	cutoff := nowMs - f.mergeWindow.Milliseconds()

	var candidate *boardstore.NotificationRecord
	for _, rec := range records {
		if rec.Type != TypeComment || rec.ContentID != event.ContentID || rec.ActorID != event.ActorID {
			continue
		}
		if rec.TimestampMs < cutoff {
			continue
		}
		if candidate == nil || rec.TimestampMs > candidate.TimestampMs {
			candidate = rec
		}
	}

	return candidate, nil
}

// eventMessage builds the human-readable line for a fresh record.
func eventMessage(event Event) string {
	switch event.Type {
	case TypeComment:
		return commentMessage(event, 1)
	case TypeApproval:
		return fmt.Sprintf("%s changed approval on %q", event.ActorName, event.ContentTitle)
	case TypeStatus:
		return fmt.Sprintf("%s changed the status of %q", event.ActorName, event.ContentTitle)
	case TypeEdit:
		return fmt.Sprintf("%s edited %q", event.ActorName, event.ContentTitle)
	default:
		return fmt.Sprintf("%s updated %q", event.ActorName, event.ContentTitle)
	}
}

// commentMessage builds the comment line, mentioning the merged count once
// it passes one.
func commentMessage(event Event, count int) string {
	if count <= 1 {
		return fmt.Sprintf("%s commented on %q", event.ActorName, event.ContentTitle)
	}
	return fmt.Sprintf("%s left %d comments on %q", event.ActorName, count, event.ContentTitle)
}
