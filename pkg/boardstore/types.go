// Package boardstore provides type-safe Go definitions and Redis schema
// patterns for the Slate content board. The board is the shared remote state
// that every Slate client (engine, CLI, UI glue) reads and mutates: per-channel
// content item collections, the project membership document, and per-user
// notification records.
//
// All Redis keys and channels are namespaced by project id so that multiple
// projects can safely coexist on a single Redis server.
package boardstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocationPool is the sentinel location for items that are not scheduled on
// the calendar. Every other valid location is a slot key (see ParseSlotKey).
const LocationPool = "pool"

// MaxAttachments caps the attachment list carried by a single item.
const MaxAttachments = 10

// ContentItem represents one schedulable unit of content. Items live in
// exactly one location at a time: the holding pool or a calendar slot.
type ContentItem struct {
	ID          string       `json:"id"`           // UUID - unique identifier, immutable once created
	MediaURL    string       `json:"media_url"`    // Primary asset reference (owned by the blob store)
	Title       string       `json:"title"`        // Free text, mutable
	Description string       `json:"description"`  // Free text, mutable
	Comment     string       `json:"comment"`      // Free text, mutable
	Label       Label        `json:"label"`        // Approval state, drives notification semantics
	ContentType ContentType  `json:"content_type"` // Media kind
	Location    string       `json:"location"`     // "pool" or a slot key (year-month-day, month zero-indexed)
	LastMovedMs int64        `json:"last_moved_ms"` // Unix ms of the most recent location change; pool ordering hint only
	Attachments []Attachment `json:"attachments"`  // Ordered, capped at MaxAttachments
	Comments    []ItemComment `json:"comments"`    // Ordered free-form comment records
}

// Attachment is a secondary asset carried by an item.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// ItemComment is one free-form comment left on an item.
type ItemComment struct {
	ID          string `json:"id"`
	AuthorID    string `json:"author_id"`
	AuthorName  string `json:"author_name"`
	Text        string `json:"text"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// Label defines the approval state of a content item.
type Label string

const (
	// LabelApproved indicates the item has been signed off
	LabelApproved Label = "approved"

	// LabelNeedsRevision indicates a reviewer requested changes
	LabelNeedsRevision Label = "needs_revision"

	// LabelReadyForApproval indicates the item is awaiting review
	LabelReadyForApproval Label = "ready_for_approval"

	// LabelScheduled indicates the item has been committed to publish
	LabelScheduled Label = "scheduled"
)

// ContentType defines the media kind of a content item.
type ContentType string

const (
	ContentTypePhoto    ContentType = "photo"
	ContentTypeReel     ContentType = "reel"
	ContentTypeVideo    ContentType = "video"
	ContentTypeCarousel ContentType = "carousel"
)

// Channel identifies one independent content collection within a project.
// The set is fixed; each channel owns its own item collection under a
// distinct key prefix.
type Channel string

const (
	ChannelInstagram Channel = "instagram"
	ChannelTikTok    Channel = "tiktok"
	ChannelYouTube   Channel = "youtube"
	ChannelFacebook  Channel = "facebook"
)

// Channels lists every valid channel in display order.
var Channels = []Channel{ChannelInstagram, ChannelTikTok, ChannelYouTube, ChannelFacebook}

// Member is one collaborator on a project.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Project is the unit of collaboration: member identities plus the per-channel
// item collections. The member-id index duplicates Members for fast
// membership resolution during notification fanout.
type Project struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Members   []Member `json:"members"`
	MemberIDs []string `json:"member_ids"`
}

// NotificationRecord is one per-recipient notification document. Comment
// notifications from the same actor on the same item merge in place while
// inside a trailing time window; every other type is a standalone record.
type NotificationRecord struct {
	ID          string `json:"id"`
	Type        string `json:"type"` // "comment", "approval", "status", "edit"
	Message     string `json:"message"`
	ContentID   string `json:"content_id"`
	ActorID     string `json:"actor_id"`
	ActorName   string `json:"actor_name"`
	LastComment string `json:"last_comment,omitempty"`
	TimestampMs int64  `json:"timestamp_ms"`
	Read        bool   `json:"read"`
	Count       int    `json:"count"`
}

// Snapshot is the full current state of one channel's item collection, as
// delivered by a subscription tick.
type Snapshot struct {
	Channel Channel
	Items   map[string]*ContentItem
}

// SlotKey builds a calendar slot key. month is zero-indexed (0 = January),
// matching the persisted grammar.
func SlotKey(year, month, day int) string {
	return fmt.Sprintf("%d-%d-%d", year, month, day)
}

// ParseSlotKey parses a calendar slot key of the form year-month-day with a
// zero-indexed month. Returns an error for anything that is not a
// well-formed slot key; the pool sentinel is not a slot key.
func ParseSlotKey(key string) (year, month, day int, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("slot key %q: expected year-month-day", key)
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil || year < 1970 || year > 9999 {
		return 0, 0, 0, fmt.Errorf("slot key %q: invalid year", key)
	}

	month, err = strconv.Atoi(parts[1])
	if err != nil || month < 0 || month > 11 {
		return 0, 0, 0, fmt.Errorf("slot key %q: invalid month (zero-indexed, 0-11)", key)
	}

	day, err = strconv.Atoi(parts[2])
	if err != nil || day < 1 || day > 31 {
		return 0, 0, 0, fmt.Errorf("slot key %q: invalid day", key)
	}

	return year, month, day, nil
}

// IsValidLocation reports whether s is the pool sentinel or a well-formed
// slot key.
func IsValidLocation(s string) bool {
	if s == LocationPool {
		return true
	}
	_, _, _, err := ParseSlotKey(s)
	return err == nil
}

// Validate checks if the ContentItem has valid field values.
// Returns an error if any validation fails.
func (c *ContentItem) Validate() error {
	if !isValidUUID(c.ID) {
		return fmt.Errorf("invalid item ID: not a valid UUID")
	}

	if c.Title == "" {
		return fmt.Errorf("item title cannot be empty")
	}

	if err := c.Label.Validate(); err != nil {
		return fmt.Errorf("invalid label: %w", err)
	}

	if err := c.ContentType.Validate(); err != nil {
		return fmt.Errorf("invalid content type: %w", err)
	}

	if !IsValidLocation(c.Location) {
		return fmt.Errorf("invalid location: %q", c.Location)
	}

	if len(c.Attachments) > MaxAttachments {
		return fmt.Errorf("too many attachments: %d (max %d)", len(c.Attachments), MaxAttachments)
	}

	return nil
}

// Validate checks if the Label is a valid enum value.
func (l Label) Validate() error {
	switch l {
	case LabelApproved, LabelNeedsRevision, LabelReadyForApproval, LabelScheduled:
		return nil
	default:
		return fmt.Errorf("unknown label: %q", l)
	}
}

// Validate checks if the ContentType is a valid enum value.
func (ct ContentType) Validate() error {
	switch ct {
	case ContentTypePhoto, ContentTypeReel, ContentTypeVideo, ContentTypeCarousel:
		return nil
	default:
		return fmt.Errorf("unknown content type: %q", ct)
	}
}

// Validate checks if the Channel is a valid enum value.
func (ch Channel) Validate() error {
	switch ch {
	case ChannelInstagram, ChannelTikTok, ChannelYouTube, ChannelFacebook:
		return nil
	default:
		return fmt.Errorf("unknown channel: %q", ch)
	}
}

// Validate checks if the Project has valid field values.
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("project ID cannot be empty")
	}

	if p.Name == "" {
		return fmt.Errorf("project name cannot be empty")
	}

	if len(p.MemberIDs) != len(p.Members) {
		return fmt.Errorf("member-id index out of step with members (%d vs %d)", len(p.MemberIDs), len(p.Members))
	}

	return nil
}

// Clone returns a deep copy of the item. Slices are copied so that mutating
// the clone never aliases the original.
func (c *ContentItem) Clone() *ContentItem {
	out := *c
	out.Attachments = append([]Attachment(nil), c.Attachments...)
	out.Comments = append([]ItemComment(nil), c.Comments...)
	return &out
}

// NowMs returns the current time as unix milliseconds, the timestamp unit
// used throughout the persisted schema.
func NowMs() int64 {
	return time.Now().UnixMilli()
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
