package canon

import (
	"encoding/base64"
	"time"

	"github.com/faffhub/faff-go/ledgererr"
	"github.com/faffhub/faff-go/model"
)

// TimesheetVersion is the canonical format version written to every
// timesheet file.
const TimesheetVersion = "1.1"

var timesheetTopKeys = []string{"version", "audience_id", "date", "timezone"}
var metaKeys = []string{"compiled_at", "submitted_at", "submitted_by"}
var timesheetEntryKeys = []string{
	"intent_id", "alias", "role", "objective", "action", "subject", "trackers",
	"start", "end", "note",
}
var signatureEntryKeys = []string{"signer_id", "algorithm", "signature"}

const timestampLayout = "2006-01-02T15:04:05Z07:00"

// MarshalTimesheet renders a Timesheet to its canonical text form. Every
// timeline entry carries its full descriptor snapshot, so a compiled
// timesheet stays independently readable without the Plan Store it was
// compiled against.
func MarshalTimesheet(ts model.Timesheet) string {
	b := NewBuilder()
	b.Str("version", TimesheetVersion)
	b.Str("audience_id", ts.AudienceID)
	b.Str("date", ts.Date.String())
	b.Str("timezone", ts.Timezone)

	b.Blank()
	b.TableHeader("meta")
	b.Str("compiled_at", ts.Meta.CompiledAt.UTC().Format(timestampLayout))
	if ts.Meta.SubmittedAt != nil {
		b.Str("submitted_at", ts.Meta.SubmittedAt.UTC().Format(timestampLayout))
		b.Str("submitted_by", ts.Meta.SubmittedBy)
	}

	for _, s := range ts.Timeline {
		b.Blank()
		b.ArrayTableHeader("timeline")
		if s.Intent.IntentID != "" {
			b.Str("intent_id", s.Intent.IntentID)
		}
		if s.Intent.Snapshot != nil {
			snap := s.Intent.Snapshot
			b.StrOmitEmpty("alias", snap.Alias)
			b.StrOmitEmpty("role", snap.Role)
			b.StrOmitEmpty("objective", snap.Objective)
			b.StrOmitEmpty("action", snap.Action)
			b.StrOmitEmpty("subject", snap.Subject)
			b.StrArrayOmitEmpty("trackers", snap.Trackers)
		}
		b.Str("start", s.Start.UTC().Format(timestampLayout))
		if s.End != nil {
			b.Str("end", s.End.UTC().Format(timestampLayout))
			b.Derived("duration", s.End.Sub(s.Start).String())
		}
		b.StrOmitEmpty("note", s.Note)
	}

	for _, sig := range ts.Signatures {
		b.Blank()
		b.ArrayTableHeader("signatures")
		b.Str("signer_id", sig.SignerID)
		b.Str("algorithm", sig.Algorithm)
		b.Str("signature", base64.StdEncoding.EncodeToString(sig.Bytes))
	}

	return b.Build()
}

// UnmarshalTimesheet parses a canonical Timesheet text document.
func UnmarshalTimesheet(path, text string) (model.Timesheet, error) {
	doc, err := Parse(path, text)
	if err != nil {
		return model.Timesheet{}, err
	}
	if err := doc.RequireOnlyTopKeys(path, timesheetTopKeys...); err != nil {
		return model.Timesheet{}, err
	}

	audienceID, _ := doc.Top.String("audience_id")
	dateStr, _ := doc.Top.String("date")
	date, err := model.ParseISODate(dateStr)
	if err != nil {
		return model.Timesheet{}, ledgererr.Wrap(ledgererr.FileCorrupt, err, "invalid date %q", dateStr).At(path, 0)
	}
	timezone, _ := doc.Top.String("timezone")

	meta, ok := doc.Tables["meta"]
	if !ok {
		return model.Timesheet{}, ledgererr.New(ledgererr.FileCorrupt, "missing [meta] table").At(path, 0)
	}
	if err := RequireOnlyKeys(meta, path, "[meta]", metaKeys...); err != nil {
		return model.Timesheet{}, err
	}
	compiledAtStr, _ := meta.String("compiled_at")
	compiledAt, err := time.Parse(timestampLayout, compiledAtStr)
	if err != nil {
		return model.Timesheet{}, ledgererr.Wrap(ledgererr.FileCorrupt, err, "invalid compiled_at %q", compiledAtStr).At(path, 0)
	}

	ts := model.Timesheet{
		AudienceID: audienceID,
		Date:       date,
		Timezone:   timezone,
		Meta:       model.TimesheetMeta{CompiledAt: compiledAt},
	}
	if submittedAtStr, ok := meta.String("submitted_at"); ok {
		submittedAt, err := time.Parse(timestampLayout, submittedAtStr)
		if err != nil {
			return model.Timesheet{}, ledgererr.Wrap(ledgererr.FileCorrupt, err, "invalid submitted_at %q", submittedAtStr).At(path, 0)
		}
		ts.Meta.SubmittedAt = &submittedAt
		ts.Meta.SubmittedBy, _ = meta.String("submitted_by")
	}

	for _, t := range doc.ArrayTables["timeline"] {
		if err := RequireOnlyKeys(t, path, "[[timeline]]", timesheetEntryKeys...); err != nil {
			return model.Timesheet{}, err
		}
		startStr, _ := t.String("start")
		start, err := time.Parse(timestampLayout, startStr)
		if err != nil {
			return model.Timesheet{}, ledgererr.Wrap(ledgererr.FileCorrupt, err, "invalid start %q", startStr).At(path, 0)
		}
		var end *time.Time
		if endStr, ok := t.String("end"); ok {
			e, err := time.Parse(timestampLayout, endStr)
			if err != nil {
				return model.Timesheet{}, ledgererr.Wrap(ledgererr.FileCorrupt, err, "invalid end %q", endStr).At(path, 0)
			}
			end = &e
		}
		intentID, _ := t.String("intent_id")
		alias, _ := t.String("alias")
		role, _ := t.String("role")
		objective, _ := t.String("objective")
		action, _ := t.String("action")
		subject, _ := t.String("subject")
		trackers, _ := t.StringSlice("trackers")
		note, _ := t.String("note")
		ts.Timeline = append(ts.Timeline, model.Session{
			Start: start,
			End:   end,
			Intent: model.SessionIntent{
				IntentID: intentID,
				Snapshot: &model.Intent{
					IntentID:  intentID,
					Alias:     alias,
					Role:      role,
					Objective: objective,
					Action:    action,
					Subject:   subject,
					Trackers:  trackers,
				},
			},
			Note: note,
		})
	}

	for _, t := range doc.ArrayTables["signatures"] {
		if err := RequireOnlyKeys(t, path, "[[signatures]]", signatureEntryKeys...); err != nil {
			return model.Timesheet{}, err
		}
		signerID, _ := t.String("signer_id")
		algorithm, _ := t.String("algorithm")
		sigStr, _ := t.String("signature")
		sigBytes, err := base64.StdEncoding.DecodeString(sigStr)
		if err != nil {
			return model.Timesheet{}, ledgererr.Wrap(ledgererr.SignatureInvalid, err, "decoding signature for %q", signerID).At(path, 0)
		}
		ts.Signatures = append(ts.Signatures, model.Signature{
			SignerID:  signerID,
			Algorithm: algorithm,
			Bytes:     sigBytes,
		})
	}

	return ts, nil
}
