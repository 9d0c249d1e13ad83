package canon

import (
	"encoding/json"

	"golang.org/x/text/unicode/norm"

	"github.com/faffhub/faff-go/model"
)

// SigningBytes produces the canonical JSON encoding of a Timesheet that
// every Identity signs over: object keys sorted at every level, no
// insignificant whitespace, UTF-8 NFC normalized, and the signatures array
// itself excluded (a signature cannot cover its own collection).
// encoding/json already sorts map[string]any keys when
// marshaling, so building the document as plain maps gets us sorted-key
// output for free; json.Marshal also never emits whitespace.
func SigningBytes(ts model.Timesheet) ([]byte, error) {
	doc := map[string]any{
		"audience_id": ts.AudienceID,
		"date":        ts.Date.String(),
		"timezone":    ts.Timezone,
		"timeline":    timelineDocs(ts.Timeline),
		"compiled_at": ts.Meta.CompiledAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if ts.Meta.SubmittedAt != nil {
		doc["submitted_at"] = ts.Meta.SubmittedAt.UTC().Format("2006-01-02T15:04:05Z")
		doc["submitted_by"] = ts.Meta.SubmittedBy
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return norm.NFC.Bytes(raw), nil
}

func timelineDocs(sessions []model.Session) []map[string]any {
	out := make([]map[string]any, 0, len(sessions))
	for _, s := range sessions {
		entry := map[string]any{
			"start": s.Start.UTC().Format("2006-01-02T15:04:05Z"),
			"note":  s.Note,
		}
		if s.End != nil {
			entry["end"] = s.End.UTC().Format("2006-01-02T15:04:05Z")
		}
		if s.Intent.IntentID != "" {
			entry["intent_id"] = s.Intent.IntentID
		}
		if s.Intent.Snapshot != nil {
			snap := s.Intent.Snapshot
			entry["alias"] = snap.Alias
			entry["role"] = snap.Role
			entry["objective"] = snap.Objective
			entry["action"] = snap.Action
			entry["subject"] = snap.Subject
			entry["trackers"] = snap.Trackers
		}
		out = append(out, entry)
	}
	return out
}
