// Package daykey normalizes instants to the start of their local calendar day.
//
// Every component that indexes records by day must go through Of so that
// diary text, photo lists and the calendar grid agree on the same key.
package daykey

import (
	"fmt"
	"time"
)

// Layout is the display and URL form of a DayKey.
const Layout = "2006-01-02"

// DayKey is milliseconds since the Unix epoch truncated to local midnight.
type DayKey int64

// Of returns the key of the calendar day containing t, in t's location.
func Of(t time.Time) DayKey {
	y, m, d := t.Date()
	return DayKey(time.Date(y, m, d, 0, 0, 0, 0, t.Location()).UnixMilli())
}

// FromMillis returns the key for an epoch-millisecond timestamp interpreted in loc.
func FromMillis(ms int64, loc *time.Location) DayKey {
	return Of(time.UnixMilli(ms).In(loc))
}

// Today returns the key for the current local day.
func Today() DayKey {
	return Of(time.Now())
}

// Parse reads a YYYY-MM-DD string as a day in loc.
func Parse(s string, loc *time.Location) (DayKey, error) {
	t, err := time.ParseInLocation(Layout, s, loc)
	if err != nil {
		return 0, fmt.Errorf("daykey: parse %q: %w", s, err)
	}
	return Of(t), nil
}

// Time returns the midnight instant of k in loc.
func (k DayKey) Time(loc *time.Location) time.Time {
	return time.UnixMilli(int64(k)).In(loc)
}

// Format renders k as YYYY-MM-DD in loc.
func (k DayKey) Format(loc *time.Location) string {
	return k.Time(loc).Format(Layout)
}

// String renders k in the local time zone.
func (k DayKey) String() string {
	return k.Format(time.Local)
}

// Millis returns the raw key value.
func (k DayKey) Millis() int64 {
	return int64(k)
}
