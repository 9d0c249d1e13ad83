// Package intenteditor implements the Intent Editor: in-place editing of
// local intents, with an explicit, opt-in retroactive rewrite of historical
// sessions, plus deriving a fresh local intent from an existing one.
package intenteditor

import (
	"github.com/faffhub/faff-go/logstore"
	"github.com/faffhub/faff-go/model"
	"github.com/faffhub/faff-go/planstore"
)

// RetroactiveSummary reports how many sessions in one log were rewritten.
type RetroactiveSummary struct {
	Date  model.Date
	Count int
}

// Editor is the Intent Editor.
type Editor struct {
	plans *planstore.Store
	logs  *logstore.Store
}

// New constructs an Editor over the given Plan Store and Log Store.
func New(plans *planstore.Store, logs *logstore.Store) *Editor {
	return &Editor{plans: plans, logs: logs}
}

// CountAffectedSessions scans every stored log for sessions referencing id,
// so a caller can decide whether to ask the user for a retroactive-rewrite
// decision before calling Edit.
func (e *Editor) CountAffectedSessions(id string) (int, error) {
	logs, err := e.logs.List()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, log := range logs {
		for _, s := range log.Timeline {
			if s.Intent.IntentID == id {
				count++
			}
		}
	}
	return count, nil
}

// Edit replaces id's descriptors with newIntent's in its owning plan file.
// With retroactive=true, every session across every log that references id
// has its embedded snapshot refreshed (intent_id unchanged) and its log
// rewritten atomically; the per-log rewrite counts are returned. With
// retroactive=false, only the plan is updated and no logs are touched,
// so historical sessions keep whatever snapshot they already carried,
// since an edit to the past should be a conscious choice.
func (e *Editor) Edit(id string, newIntent model.Intent, retroactive bool) (model.Plan, []RetroactiveSummary, error) {
	plan, err := e.plans.UpdateIntent(id, newIntent)
	if err != nil {
		return model.Plan{}, nil, err
	}
	if !retroactive {
		return plan, nil, nil
	}

	updated, _ := plan.IntentByID(id)

	logs, err := e.logs.List()
	if err != nil {
		return plan, nil, err
	}
	var summaries []RetroactiveSummary
	for _, log := range logs {
		count := 0
		for i, s := range log.Timeline {
			if s.Intent.IntentID != id {
				continue
			}
			var base model.Intent
			if s.Intent.Snapshot != nil {
				base = *s.Intent.Snapshot
			} else {
				base = updated
			}
			refreshed := base.WithUpdatedDescriptors(updated)
			log.Timeline[i].Intent.Snapshot = &refreshed
			count++
		}
		if count == 0 {
			continue
		}
		trackers, err := e.plans.TrackersOn(log.Date)
		if err != nil {
			return plan, summaries, err
		}
		if err := e.logs.Write(log, trackers); err != nil {
			return plan, summaries, err
		}
		summaries = append(summaries, RetroactiveSummary{Date: log.Date, Count: count})
	}
	return plan, summaries, nil
}

// Derive creates a new local intent seeded from source, with a fresh
// intent_id, appended to the local plan valid on d. No log is touched.
func (e *Editor) Derive(source model.Intent, d model.Date) (model.Intent, model.Plan, error) {
	plan, err := e.plans.LocalPlanOrCreate(d)
	if err != nil {
		return model.Intent{}, model.Plan{}, err
	}
	seed := source.Derive("")
	next, err := e.plans.AddIntent(plan, seed)
	if err != nil {
		return model.Intent{}, model.Plan{}, err
	}
	if err := e.plans.WritePlan(next); err != nil {
		return model.Intent{}, model.Plan{}, err
	}
	derived, _ := next.IntentByID(next.Intents[len(next.Intents)-1].IntentID)
	return derived, next, nil
}
