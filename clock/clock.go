// Package clock implements the Clock/Date service: today, now, and
// natural-language date/datetime resolution, all timezone-aware.
package clock

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/faffhub/faff-go/ledgererr"
	"github.com/faffhub/faff-go/model"
)

// Clock resolves the current instant and parses natural-language dates,
// always relative to a configured IANA timezone, never the process's local
// zone, and is constructed explicitly rather than kept as a package
// singleton.
type Clock struct {
	loc    *time.Location
	parser *when.Parser
	// nowFunc is overridden in tests for determinism.
	nowFunc func() time.Time
}

// New builds a Clock for the given IANA zone name (e.g. "America/Chicago").
func New(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, ledgererr.Wrap(ledgererr.DateParse, err, "unknown timezone %q", timezone)
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Clock{loc: loc, parser: w, nowFunc: time.Now}, nil
}

// Location returns the configured timezone.
func (c *Clock) Location() *time.Location { return c.loc }

// Now returns the current instant in the configured timezone.
func (c *Clock) Now() time.Time {
	return c.nowFunc().In(c.loc)
}

// Today returns today's date in the configured timezone.
func (c *Clock) Today() model.Date {
	return model.DateOf(c.Now())
}

// ParseNaturalDate resolves tokens like "today", "yesterday", "tomorrow",
// weekday names (most recent past occurrence), ISO dates, and phrases such
// as "3 days ago" or "last monday", biased towards the past.
func (c *Clock) ParseNaturalDate(s string) (model.Date, error) {
	return c.parseNaturalDate(s, c.Today())
}

func (c *Clock) parseNaturalDate(s string, reference model.Date) (model.Date, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return c.Today(), nil
	}
	lower := strings.ToLower(trimmed)
	switch lower {
	case "today":
		return reference, nil
	case "yesterday":
		return reference.AddDays(-1), nil
	case "tomorrow":
		return reference.AddDays(1), nil
	}
	if d, err := model.ParseISODate(trimmed); err == nil {
		return d, nil
	}
	if wd, ok := parseWeekday(lower); ok {
		return mostRecentPast(reference, wd), nil
	}

	refTime := reference.In(c.loc)
	r, err := c.parser.Parse(trimmed, refTime)
	if err != nil {
		return model.Date{}, ledgererr.Wrap(ledgererr.DateParse, err, "could not parse date %q", s)
	}
	if r == nil {
		return model.Date{}, ledgererr.New(ledgererr.DateParse, "unrecognized date %q", s)
	}
	return model.DateOf(r.Time.In(c.loc)), nil
}

// ParseNaturalDateTime constrains resolution to today's date, used by
// session-start with --since; the parsed instant must be <= now().
func (c *Clock) ParseNaturalDateTime(s string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	now := c.Now()
	if trimmed == "" {
		return now, nil
	}
	if t, err := time.ParseInLocation("15:04", trimmed, c.loc); err == nil {
		today := c.Today()
		candidate := time.Date(today.Year, today.Month, today.Day, t.Hour(), t.Minute(), 0, 0, c.loc)
		return c.validateNotFuture(candidate)
	}
	r, err := c.parser.Parse(trimmed, now)
	if err != nil {
		return time.Time{}, ledgererr.Wrap(ledgererr.DateParse, err, "could not parse datetime %q", s)
	}
	if r == nil {
		return time.Time{}, ledgererr.New(ledgererr.DateParse, "unrecognized datetime %q", s)
	}
	return c.validateNotFuture(r.Time.In(c.loc))
}

func (c *Clock) validateNotFuture(t time.Time) (time.Time, error) {
	if t.After(c.Now()) {
		return time.Time{}, ledgererr.New(ledgererr.FutureStart, "%s is in the future", t.Format(time.RFC3339))
	}
	return t, nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

func parseWeekday(s string) (time.Weekday, bool) {
	wd, ok := weekdays[s]
	return wd, ok
}

// mostRecentPast returns the most recent date strictly before reference that
// falls on wd. If reference itself falls on wd, it is not returned (only the
// "today" token resolves to reference); weekday-name lookups always resolve
// to a strictly earlier occurrence, matching typical CLI ledger semantics
// ("monday" from a Monday means last Monday, a week ago).
func mostRecentPast(reference model.Date, wd time.Weekday) model.Date {
	d := reference.AddDays(-1)
	for d.In(time.UTC).Weekday() != wd {
		d = d.AddDays(-1)
	}
	return d
}
