package canon

import (
	"time"

	"github.com/faffhub/faff-go/model"
)

// plainLayout and offsetLayout are the two wall-clock layouts a session time
// can be written in: plain "HH:mm" normally, and an explicit-offset
// "HH:mmZ07:00" form when the Log's date crosses a DST transition in its
// timezone (to avoid the ambiguity of a bare local time that occurred
// twice, or never, that day).
const (
	plainLayout  = "15:04"
	offsetLayout = "15:04Z07:00"
)

// DateHasDSTTransition reports whether the UTC offset at the start of the
// day differs from the offset at the end of the day, in loc.
func DateHasDSTTransition(date model.Date, loc *time.Location) bool {
	start := time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, loc)
	end := time.Date(date.Year, date.Month, date.Day, 23, 59, 0, 0, loc)
	_, startOffset := start.Zone()
	_, endOffset := end.Zone()
	return startOffset != endOffset
}

// FormatSessionTime renders t per the layout implied by hasDST.
func FormatSessionTime(t time.Time, hasDST bool) string {
	if hasDST {
		return t.Format(offsetLayout)
	}
	return t.Format(plainLayout)
}

// ParseSessionTime parses s (in either layout) against the given date and
// location. When s carries an explicit offset, that offset is honored
// exactly rather than re-derived from loc, so a wall-clock hour that occurs
// twice (or not at all) during a DST fall-back/spring-forward transition
// still round-trips to the instant it was written for.
func ParseSessionTime(s string, date model.Date, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(offsetLayout, s); err == nil {
		name, offset := t.Zone()
		fixed := time.FixedZone(name, offset)
		return time.Date(date.Year, date.Month, date.Day, t.Hour(), t.Minute(), 0, 0, fixed), nil
	}
	t, err := time.ParseInLocation(plainLayout, s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return alignDate(t, date, loc), nil
}

func alignDate(t time.Time, date model.Date, loc *time.Location) time.Time {
	return time.Date(date.Year, date.Month, date.Day, t.Hour(), t.Minute(), 0, 0, loc)
}
