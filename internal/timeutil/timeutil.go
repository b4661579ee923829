package timeutil

import "time"

// DateLayout defines the canonical date format (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date string.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

// ParseDateIn parses a YYYY-MM-DD date string as midnight in loc.
func ParseDateIn(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, value, loc)
}

// FormatDate formats a time as YYYY-MM-DD in its current location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ResolveLocation returns a location for a tz string, falling back to UTC.
func ResolveLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
