package plugin

import (
	"time"

	"github.com/faffhub/faff-go/model"
)

// AllCompiler is the identity passthrough TimesheetCompiler: every session
// in the Log whose intent resolves is projected into the Timesheet with its
// intent snapshot embedded; sessions whose intent does not resolve are
// dropped.
type AllCompiler struct{}

// ID implements TimesheetCompiler.
func (AllCompiler) ID() string { return "all" }

// Compile implements TimesheetCompiler.
func (AllCompiler) Compile(log model.Log, byID map[string]model.Intent) (model.Timesheet, error) {
	return compileFiltered(log, byID, func(model.Session, model.Intent) bool { return true })
}

// Submit is not meaningful for the built-in "all" compiler: it has no
// external audience of its own.
func (AllCompiler) Submit(model.Timesheet) (SubmitOutcome, error) {
	return SubmitOutcome{}, nil
}

// BillableCompiler filters a Log down to sessions whose resolved intent
// carries at least one tracker.
type BillableCompiler struct{}

// ID implements TimesheetCompiler.
func (BillableCompiler) ID() string { return "billable" }

// Compile implements TimesheetCompiler.
func (BillableCompiler) Compile(log model.Log, byID map[string]model.Intent) (model.Timesheet, error) {
	return compileFiltered(log, byID, func(_ model.Session, in model.Intent) bool {
		return len(in.Trackers) > 0
	})
}

// Submit is not meaningful for the built-in "billable" compiler.
func (BillableCompiler) Submit(model.Timesheet) (SubmitOutcome, error) {
	return SubmitOutcome{}, nil
}

func compileFiltered(log model.Log, byID map[string]model.Intent, keep func(model.Session, model.Intent) bool) (model.Timesheet, error) {
	ts := model.Timesheet{
		Date:     log.Date,
		Timezone: log.Timezone,
		Meta:     model.TimesheetMeta{CompiledAt: time.Now().UTC()},
	}
	for _, s := range log.Timeline {
		in, ok := s.Intent.Resolve(byID)
		if !ok {
			continue
		}
		if !keep(s, in) {
			continue
		}
		snap := in.Clone()
		entry := s.Clone()
		entry.Intent = model.SessionIntent{IntentID: in.IntentID, Snapshot: &snap}
		ts.Timeline = append(ts.Timeline, entry)
	}
	return ts, nil
}
