package boardstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Complex fields like
// attachment and comment lists are JSON-encoded into single hash fields.
// Every field is always written, absent values as empty strings or zero
// values: the store must never see a "missing" field, because partial write
// paths do not treat missing and absent consistently.

// Item hash field names. PatchItemFields callers use these to build minimal
// field-level patches.
const (
	FieldMediaURL    = "media_url"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldComment     = "comment"
	FieldLabel       = "label"
	FieldContentType = "content_type"
	FieldLocation    = "location"
	FieldLastMovedMs = "last_moved_ms"
	FieldAttachments = "attachments"
	FieldComments    = "comments"
)

// ItemToHash converts a ContentItem struct to a Redis hash format.
// List fields (attachments, comments) are JSON-encoded.
func ItemToHash(c *ContentItem) (map[string]interface{}, error) {
	attachmentsJSON, err := json.Marshal(c.Attachments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attachments: %w", err)
	}

	commentsJSON, err := json.Marshal(c.Comments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal comments: %w", err)
	}

	hash := map[string]interface{}{
		"id":             c.ID,
		FieldMediaURL:    c.MediaURL,
		FieldTitle:       c.Title,
		FieldDescription: c.Description,
		FieldComment:     c.Comment,
		FieldLabel:       string(c.Label),
		FieldContentType: string(c.ContentType),
		FieldLocation:    c.Location,
		FieldLastMovedMs: c.LastMovedMs,
		FieldAttachments: string(attachmentsJSON),
		FieldComments:    string(commentsJSON),
	}

	return hash, nil
}

// HashToItem converts a Redis hash to a ContentItem struct, normalizing at
// the ingestion boundary: unparseable timestamps fall back to now, list
// fields decode to empty slices instead of nil, enum fields pass through
// as-is for the sweeper to judge.
func HashToItem(hash map[string]string) (*ContentItem, error) {
	if hash["id"] == "" {
		return nil, fmt.Errorf("item hash has no id field")
	}

	var attachments []Attachment
	if raw := hash[FieldAttachments]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &attachments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attachments: %w", err)
		}
	}
	if attachments == nil {
		attachments = []Attachment{}
	}

	var comments []ItemComment
	if raw := hash[FieldComments]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &comments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal comments: %w", err)
		}
	}
	if comments == nil {
		comments = []ItemComment{}
	}

	item := &ContentItem{
		ID:          hash["id"],
		MediaURL:    hash[FieldMediaURL],
		Title:       hash[FieldTitle],
		Description: hash[FieldDescription],
		Comment:     hash[FieldComment],
		Label:       Label(hash[FieldLabel]),
		ContentType: ContentType(hash[FieldContentType]),
		Location:    hash[FieldLocation],
		LastMovedMs: NormalizeTimestamp(hash[FieldLastMovedMs]),
		Attachments: attachments,
		Comments:    comments,
	}

	return item, nil
}

// NormalizeTimestamp coerces a persisted timestamp into unix milliseconds.
// Tolerates unix milliseconds, unix seconds and RFC3339 strings; anything
// unparseable falls back to the current time so that downstream ordering
// never has to handle a zero instant.
func NormalizeTimestamp(raw string) int64 {
	if raw == "" {
		return NowMs()
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// Heuristic: values below 1e12 are unix seconds (covers dates up
		// to year 33658 in ms, and seconds until 2286).
		if n < 1_000_000_000_000 {
			return n * 1000
		}
		return n
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UnixMilli()
	}

	return NowMs()
}

// ProjectToHash converts a Project struct to a Redis hash format.
// Member lists are JSON-encoded.
func ProjectToHash(p *Project) (map[string]interface{}, error) {
	membersJSON, err := json.Marshal(p.Members)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal members: %w", err)
	}

	memberIDsJSON, err := json.Marshal(p.MemberIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal member_ids: %w", err)
	}

	hash := map[string]interface{}{
		"id":         p.ID,
		"name":       p.Name,
		"members":    string(membersJSON),
		"member_ids": string(memberIDsJSON),
	}

	return hash, nil
}

// HashToProject converts a Redis hash to a Project struct.
func HashToProject(hash map[string]string) (*Project, error) {
	var members []Member
	if raw := hash["members"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &members); err != nil {
			return nil, fmt.Errorf("failed to unmarshal members: %w", err)
		}
	}
	if members == nil {
		members = []Member{}
	}

	var memberIDs []string
	if raw := hash["member_ids"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &memberIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal member_ids: %w", err)
		}
	}
	if memberIDs == nil {
		memberIDs = []string{}
	}

	project := &Project{
		ID:        hash["id"],
		Name:      hash["name"],
		Members:   members,
		MemberIDs: memberIDs,
	}

	return project, nil
}
