package order

import "time"

// TimestampLayout is the sortable layout of every stored date string
const TimestampLayout = "20060102_1504"

// FormatTimestamp renders t in TimestampLayout; the zero time renders empty.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses a stored date string in the given location
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(TimestampLayout, s, loc)
}
