package canon

import (
	"time"

	"github.com/faffhub/faff-go/ledgererr"
	"github.com/faffhub/faff-go/model"
)

// LogVersion is the canonical format version written to every log file.
const LogVersion = "1.1"

// MarshalLog renders a Log to its canonical text form. trackers is used only
// to emit friendly "--tracker_name" comments alongside tracker ids.
func MarshalLog(log model.Log, trackers map[string]string) (string, error) {
	loc, err := time.LoadLocation(log.Timezone)
	if err != nil {
		return "", ledgererr.Wrap(ledgererr.LogInvalid, err, "unknown timezone %q", log.Timezone)
	}
	hasDST := DateHasDSTTransition(log.Date, loc)

	ordered := append([]model.Session(nil), log.Timeline...)
	sortSessionsByStart(ordered)

	b := NewBuilder()
	b.Str("version", LogVersion)
	b.Str("date", log.Date.String())
	b.Str("timezone", log.Timezone)
	b.Derived("date_format", dateFormatLabel(hasDST))

	if len(ordered) == 0 {
		b.Blank()
		b.Comment("Timeline is empty.")
		return b.Build(), nil
	}

	for _, s := range ordered {
		b.Blank()
		b.ArrayTableHeader("timeline")
		if s.Intent.IntentID != "" {
			b.Str("intent_id", s.Intent.IntentID)
		}
		if s.Intent.Snapshot != nil {
			snap := *s.Intent.Snapshot
			if s.Intent.IntentID == "" {
				b.Str("intent_id", snap.IntentID)
			}
			b.StrOmitEmpty("alias", snap.Alias)
			if snap.Alias != "" {
				b.Derived("name", snap.Alias)
			}
			b.StrOmitEmpty("role", snap.Role)
			b.StrOmitEmpty("objective", snap.Objective)
			b.StrOmitEmpty("action", snap.Action)
			b.StrOmitEmpty("subject", snap.Subject)
			b.StrArrayOmitEmpty("trackers", snap.Trackers)
			if tname, ok := firstTrackerName(snap.Trackers, trackers); ok {
				b.Derived("tracker_name", tname)
			}
		}
		b.Str("start", FormatSessionTime(s.Start.In(loc), hasDST))
		if s.End != nil {
			b.Str("end", FormatSessionTime(s.End.In(loc), hasDST))
			b.Derived("duration", s.End.Sub(s.Start).String())
		}
		b.StrOmitEmpty("note", s.Note)
	}
	return b.Build(), nil
}

func dateFormatLabel(hasDST bool) string {
	if hasDST {
		return "HH:mmZ"
	}
	return "HH:mm"
}

func firstTrackerName(ids []string, trackers map[string]string) (string, bool) {
	if len(ids) == 0 || trackers == nil {
		return "", false
	}
	name, ok := trackers[ids[0]]
	return name, ok
}

func sortSessionsByStart(sessions []model.Session) {
	for i := 1; i < len(sessions); i++ {
		for j := i; j > 0 && sessions[j].Start.Before(sessions[j-1].Start); j-- {
			sessions[j], sessions[j-1] = sessions[j-1], sessions[j]
		}
	}
}

var logTopKeys = []string{"version", "date", "timezone"}
var timelineEntryKeys = []string{
	"intent_id", "alias", "role", "objective", "action", "subject", "trackers",
	"start", "end", "note",
}

// UnmarshalLog parses a canonical Log text document, revalidating every
// session invariant and failing LogInvalid with a location hint if any are
// violated. The parser never silently repairs data.
func UnmarshalLog(path, text string) (model.Log, error) {
	doc, err := Parse(path, text)
	if err != nil {
		return model.Log{}, err
	}
	if err := doc.RequireOnlyTopKeys(path, logTopKeys...); err != nil {
		return model.Log{}, err
	}
	dateStr, _ := doc.Top.String("date")
	date, err := model.ParseISODate(dateStr)
	if err != nil {
		return model.Log{}, ledgererr.Wrap(ledgererr.LogInvalid, err, "invalid date %q", dateStr).At(path, 0)
	}
	timezone, _ := doc.Top.String("timezone")
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return model.Log{}, ledgererr.Wrap(ledgererr.LogInvalid, err, "unknown timezone %q", timezone).At(path, 0)
	}

	log := model.Log{Date: date, Timezone: timezone}

	entries := doc.ArrayTables["timeline"]
	for _, t := range entries {
		if err := RequireOnlyKeys(t, path, "[[timeline]]", timelineEntryKeys...); err != nil {
			return model.Log{}, err
		}
		startStr, ok := t.String("start")
		if !ok {
			return model.Log{}, ledgererr.New(ledgererr.LogInvalid, "timeline entry missing start").At(path, 0)
		}
		start, err := ParseSessionTime(startStr, date, loc)
		if err != nil {
			return model.Log{}, ledgererr.Wrap(ledgererr.LogInvalid, err, "invalid start %q", startStr).At(path, 0)
		}
		var end *time.Time
		if endStr, ok := t.String("end"); ok {
			e, err := ParseSessionTime(endStr, date, loc)
			if err != nil {
				return model.Log{}, ledgererr.Wrap(ledgererr.LogInvalid, err, "invalid end %q", endStr).At(path, 0)
			}
			end = &e
		}
		intentID, _ := t.String("intent_id")
		alias, hasAlias := t.String("alias")

		si := model.SessionIntent{IntentID: intentID}
		if hasAlias {
			role, _ := t.String("role")
			objective, _ := t.String("objective")
			action, _ := t.String("action")
			subject, _ := t.String("subject")
			trackersList, _ := t.StringSlice("trackers")
			snap := model.Intent{
				IntentID:  intentID,
				Alias:     alias,
				Role:      role,
				Objective: objective,
				Action:    action,
				Subject:   subject,
				Trackers:  trackersList,
			}
			si.Snapshot = &snap
		}
		note, _ := t.String("note")
		log.Timeline = append(log.Timeline, model.Session{
			Start:  start,
			End:    end,
			Intent: si,
			Note:   note,
		})
	}

	if err := validateSessionInvariants(log); err != nil {
		return model.Log{}, err
	}
	return log, nil
}

// validateSessionInvariants enforces the timeline shape every reader can
// rely on: sorted by start (equal starts are accepted), start<=end for every
// closed session, at most one open session and it is the last.
func validateSessionInvariants(log model.Log) error {
	for i, s := range log.Timeline {
		if s.End != nil && s.End.Before(s.Start) {
			return ledgererr.New(ledgererr.SessionOrderViolation, "session %d ends before it starts", i)
		}
		if i > 0 && s.Start.Before(log.Timeline[i-1].Start) {
			return ledgererr.New(ledgererr.SessionOrderViolation, "timeline is not sorted by start at index %d", i)
		}
		if s.IsOpen() && i != len(log.Timeline)-1 {
			return ledgererr.New(ledgererr.SessionOrderViolation, "open session at index %d is not the last session", i)
		}
	}
	openCount := 0
	for _, s := range log.Timeline {
		if s.IsOpen() {
			openCount++
		}
	}
	if openCount > 1 {
		return ledgererr.New(ledgererr.SessionOrderViolation, "more than one open session (%d)", openCount)
	}
	return nil
}
