package canon

import (
	"github.com/faffhub/faff-go/ledgererr"
	"github.com/faffhub/faff-go/model"
)

// PlanVersion is the canonical format version written to every plan file.
const PlanVersion = "1.1"

var planTopKeys = []string{"version", "source", "valid_from", "valid_until", "roles", "objectives", "actions", "subjects"}
var trackerEntryKeys = []string{"id", "name"}
var intentEntryKeys = []string{"intent_id", "alias", "role", "objective", "action", "subject", "trackers"}

// MarshalPlan renders a Plan to its canonical text form. Intents are emitted
// sorted by intent_id and trackers sorted by id.
func MarshalPlan(plan model.Plan) string {
	b := NewBuilder()
	b.Str("version", PlanVersion)
	b.Str("source", plan.Source)
	b.Str("valid_from", plan.ValidFrom.String())
	if plan.ValidUntil != nil {
		b.Str("valid_until", plan.ValidUntil.String())
	}
	b.StrArrayOmitEmpty("roles", plan.Roles)
	b.StrArrayOmitEmpty("objectives", plan.Objectives)
	b.StrArrayOmitEmpty("actions", plan.Actions)
	b.StrArrayOmitEmpty("subjects", plan.Subjects)

	for _, id := range plan.SortedTrackerIDs() {
		b.Blank()
		b.ArrayTableHeader("trackers")
		b.Str("id", id)
		b.Str("name", plan.Trackers[id])
	}

	for _, in := range plan.SortedIntents() {
		b.Blank()
		b.ArrayTableHeader("intents")
		b.Str("intent_id", in.IntentID)
		b.Str("alias", in.Alias)
		b.StrOmitEmpty("role", in.Role)
		b.StrOmitEmpty("objective", in.Objective)
		b.StrOmitEmpty("action", in.Action)
		b.StrOmitEmpty("subject", in.Subject)
		b.StrArrayOmitEmpty("trackers", in.Trackers)
	}

	return b.Build()
}

// UnmarshalPlan parses a canonical Plan text document.
func UnmarshalPlan(path, text string) (model.Plan, error) {
	doc, err := Parse(path, text)
	if err != nil {
		return model.Plan{}, err
	}
	if err := doc.RequireOnlyTopKeys(path, planTopKeys...); err != nil {
		return model.Plan{}, err
	}

	source, _ := doc.Top.String("source")
	validFromStr, _ := doc.Top.String("valid_from")
	validFrom, err := model.ParseISODate(validFromStr)
	if err != nil {
		return model.Plan{}, ledgererr.Wrap(ledgererr.FileCorrupt, err, "invalid valid_from %q", validFromStr).At(path, 0)
	}
	plan := model.Plan{Source: source, ValidFrom: validFrom, Trackers: map[string]string{}}
	if validUntilStr, ok := doc.Top.String("valid_until"); ok {
		vu, err := model.ParseISODate(validUntilStr)
		if err != nil {
			return model.Plan{}, ledgererr.Wrap(ledgererr.FileCorrupt, err, "invalid valid_until %q", validUntilStr).At(path, 0)
		}
		plan.ValidUntil = &vu
	}
	plan.Roles, _ = doc.Top.StringSlice("roles")
	plan.Objectives, _ = doc.Top.StringSlice("objectives")
	plan.Actions, _ = doc.Top.StringSlice("actions")
	plan.Subjects, _ = doc.Top.StringSlice("subjects")

	seenIntentIDs := make(map[string]bool)
	for _, t := range doc.ArrayTables["trackers"] {
		if err := RequireOnlyKeys(t, path, "[[trackers]]", trackerEntryKeys...); err != nil {
			return model.Plan{}, err
		}
		id, _ := t.String("id")
		name, _ := t.String("name")
		if _, dup := plan.Trackers[id]; dup {
			return model.Plan{}, ledgererr.New(ledgererr.DuplicateKey, "duplicate tracker id %q", id).At(path, 0)
		}
		plan.Trackers[id] = name
	}

	for _, t := range doc.ArrayTables["intents"] {
		if err := RequireOnlyKeys(t, path, "[[intents]]", intentEntryKeys...); err != nil {
			return model.Plan{}, err
		}
		id, _ := t.String("intent_id")
		if seenIntentIDs[id] {
			return model.Plan{}, ledgererr.New(ledgererr.DuplicateKey, "duplicate intent_id %q", id).At(path, 0)
		}
		seenIntentIDs[id] = true
		alias, _ := t.String("alias")
		role, _ := t.String("role")
		objective, _ := t.String("objective")
		action, _ := t.String("action")
		subject, _ := t.String("subject")
		trackers, _ := t.StringSlice("trackers")
		plan.Intents = append(plan.Intents, model.Intent{
			IntentID:  id,
			Alias:     alias,
			Role:      role,
			Objective: objective,
			Action:    action,
			Subject:   subject,
			Trackers:  trackers,
		})
	}

	return plan, nil
}
