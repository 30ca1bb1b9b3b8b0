package utils

import "time"

// TimestampLayout is the ISO-8601 UTC layout used for every SDX timestamp.
const TimestampLayout = "2006-01-02T15:04:05Z"

// FormatTimestamp renders t in UTC using TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses an SDX timestamp, accepting any RFC3339 offset as well
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
