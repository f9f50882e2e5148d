package filter

import (
	"path/filepath"

	"github.com/davack/slate/pkg/boardstore"
)

// Criteria defines filtering criteria for notification records.
// All filters are ANDed together - a record must match ALL criteria to pass.
type Criteria struct {
	SinceTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	TypeGlob         string // Glob pattern for the record type, empty = no filter
	ActorID          string // Exact match on the acting user, empty = no filter
	UnreadOnly       bool   // Only unread records when true
}

// Matches returns true if the record matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(rec *boardstore.NotificationRecord) bool {
	if c.SinceTimestampMs > 0 && rec.TimestampMs < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && rec.TimestampMs > c.UntilTimestampMs {
		return false
	}

	if c.TypeGlob != "" {
		matched, err := filepath.Match(c.TypeGlob, rec.Type)
		if err != nil || !matched {
			return false
		}
	}

	if c.ActorID != "" && rec.ActorID != c.ActorID {
		return false
	}

	if c.UnreadOnly && rec.Read {
		return false
	}

	return true
}

// Apply returns the records that match, preserving input order.
func (c *Criteria) Apply(records []*boardstore.NotificationRecord) []*boardstore.NotificationRecord {
	out := make([]*boardstore.NotificationRecord, 0, len(records))
	for _, rec := range records {
		if c.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.TypeGlob != "" ||
		c.ActorID != "" ||
		c.UnreadOnly
}
