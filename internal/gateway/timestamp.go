// ABOUTME: Wire representation of times in the HTTP API
// ABOUTME: Integer nanoseconds since the Unix epoch, with RFC 3339 and date-only input accepted

package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp is a time encoded in JSON as integer nanoseconds since the Unix
// epoch. 0 is 1970-01-01. The zero time has no nanosecond form and encodes
// as null, and an absent or null value leaves the Timestamp zero.
type Timestamp struct {
	time.Time
}

// At wraps t for the wire.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, t.UnixNano(), 10), nil
}

// UnmarshalJSON accepts integer nanoseconds, or a string holding either an
// RFC 3339 time or a YYYY-MM-DD date.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := parseTimestamp(s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp must be integer nanoseconds: %w", err)
	}
	t.Time = fromNanos(n)
	return nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// parseTimestamp reads integer nanoseconds, RFC 3339, or YYYY-MM-DD (UTC midnight).
func parseTimestamp(raw string) (time.Time, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return fromNanos(n), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: expected nanoseconds, RFC 3339 or YYYY-MM-DD", raw)
	}
	return t, nil
}
