// Package timespec parses the time bounds accepted by notification listing
// flags: absolute RFC3339 instants or durations relative to now.
package timespec

import (
	"fmt"
	"time"
)

// Parse parses a time specification into unix milliseconds, the timestamp
// unit the notification records use. Two formats are accepted:
//   - Go duration format: "1h", "30m", "1h30m" — relative to now, looking
//     backwards ("1h" means one hour ago)
//   - RFC3339 timestamps: "2025-03-10T13:00:00Z"
func Parse(spec string) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		return time.Now().Add(-d).UnixMilli(), nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use a duration like '1h30m' or RFC3339 like '2025-03-10T13:00:00Z')", spec)
}

// ParseRange parses --since and --until flags into a half-open time range in
// unix milliseconds. Zero means "no bound" for that end. When both bounds are
// given, since must precede until.
func ParseRange(since, until string) (int64, int64, error) {
	var sinceMS, untilMS int64
	var err error

	if since != "" {
		sinceMS, err = Parse(since)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until != "" {
		untilMS, err = Parse(until)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if sinceMS > 0 && untilMS > 0 && sinceMS >= untilMS {
		return 0, 0, fmt.Errorf("--since must be before --until")
	}

	return sinceMS, untilMS, nil
}
