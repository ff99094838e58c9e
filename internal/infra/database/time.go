package database

import "time"

// TimestampLayout is fixed-width UTC with milliseconds so stored values order lexicographically
// the same way they order in time, on both engines.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// DateLayout is used for calendar dates such as last_contacted and next_follow_up.
const DateLayout = "2006-01-02"

// Now is the clock used for stored timestamps. Tests may replace it.
var Now = func() time.Time { return time.Now().UTC() }

// FormatTime renders t in TimestampLayout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTime parses a stored timestamp, accepting RFC3339 for rows written by other tools.
// The zero time is returned for unparseable input.
func ParseTime(value string) time.Time {
	if t, err := time.Parse(TimestampLayout, value); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339Nano, value)
	return t.UTC()
}

// FormatDate renders the UTC calendar date of t.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
