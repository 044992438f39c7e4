package wiki

import (
	"fmt"
	"time"
)

// TimestampLayout is how MediaWiki stores timestamps.
const TimestampLayout = "20060102150405"

const isoLayout = "2006-01-02T15:04:05Z"

var inputLayouts = []string{
	TimestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// FormatTimestamp converts a MediaWiki timestamp to ISO 8601 in UTC without
// fractional seconds.
func FormatTimestamp(ts string) (string, error) {
	t, err := time.Parse(TimestampLayout, ts)
	if err != nil {
		return "", fmt.Errorf("invalid MediaWiki timestamp %q: %w", ts, err)
	}
	return t.UTC().Format(isoLayout), nil
}

// ParseTimestamp accepts an ISO 8601 date or date-time (or a MediaWiki
// timestamp) and returns the MediaWiki form.
func ParseTimestamp(s string) (string, error) {
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(TimestampLayout), nil
		}
	}
	return "", fmt.Errorf("invalid timestamp %q", s)
}
