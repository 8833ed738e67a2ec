// Package timestamp formats the postDate carried by published events.
//
// The broker expects an ISO-8601 UTC timestamp with millisecond precision,
// e.g. 2019-06-12T09:41:07.123Z. A zero time formats as the empty string,
// which leaves postDate out of the event.
package timestamp

import (
	"fmt"
	"strconv"
	"time"
)

// Layout is the postDate layout.
const Layout = "2006-01-02T15:04:05.000Z07:00"

// Now returns the current time formatted with Layout.
func Now() string {
	return Format(time.Now())
}

// Format renders t in UTC with Layout. Returns "" for the zero time.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(Layout)
}

// Parse reads a postDate. It accepts RFC 3339 strings with or without
// fractional seconds and Unix milliseconds as a number or numeric string.
func Parse(input any) (time.Time, error) {
	switch v := input.(type) {
	case time.Time:
		return v.UTC(), nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case int:
		return time.UnixMilli(int64(v)).UTC(), nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t.UTC(), nil
		}
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unsupported timestamp %q", v)
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp type %T", input)
}
