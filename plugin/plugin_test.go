package plugin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faffhub/faff-go/model"
)

func TestRegistryLooksUpBuiltinCompilers(t *testing.T) {
	r := NewRegistry()
	c, ok := r.Compiler("all")
	require.True(t, ok)
	assert.Equal(t, "all", c.ID())

	c, ok = r.Compiler("billable")
	require.True(t, ok)
	assert.Equal(t, "billable", c.ID())

	_, ok = r.Compiler("missing")
	assert.False(t, ok)
}

func TestRegistrySourceLookup(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Source("jira")
	assert.False(t, ok)

	r.RegisterSource(stubSource{id: "jira"})
	s, ok := r.Source("jira")
	require.True(t, ok)
	assert.Equal(t, "jira", s.ID())
}

type stubSource struct{ id string }

func (s stubSource) ID() string                              { return s.id }
func (s stubSource) PullPlan(model.Date) (model.Plan, error) { return model.Plan{}, nil }

func intent(id string, trackers ...string) model.Intent {
	return model.Intent{IntentID: id, Alias: id, Trackers: trackers}
}

func session(intentID string, start time.Time) model.Session {
	return model.Session{Start: start, Intent: model.SessionIntent{IntentID: intentID}}
}

func TestAllCompilerKeepsEverySession(t *testing.T) {
	byID := map[string]model.Intent{
		"a": intent("a"),
		"b": intent("b", "proj-1"),
	}
	log := model.Log{Timeline: []model.Session{session("a", time.Now()), session("b", time.Now())}}

	ts, err := AllCompiler{}.Compile(log, byID)
	require.NoError(t, err)
	assert.Len(t, ts.Timeline, 2)
}

func TestBillableCompilerFiltersToTrackedIntents(t *testing.T) {
	byID := map[string]model.Intent{
		"a": intent("a"),
		"b": intent("b", "proj-1"),
	}
	log := model.Log{Timeline: []model.Session{session("a", time.Now()), session("b", time.Now())}}

	ts, err := BillableCompiler{}.Compile(log, byID)
	require.NoError(t, err)
	require.Len(t, ts.Timeline, 1)
	assert.Equal(t, "b", ts.Timeline[0].Intent.IntentID)
}

func TestCompileFilteredSkipsUnresolvableSessions(t *testing.T) {
	byID := map[string]model.Intent{"a": intent("a")}
	log := model.Log{Timeline: []model.Session{session("missing", time.Now())}}

	ts, err := AllCompiler{}.Compile(log, byID)
	require.NoError(t, err)
	assert.Empty(t, ts.Timeline)
}
