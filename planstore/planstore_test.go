package planstore

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faffhub/faff-go/ledgererr"
	"github.com/faffhub/faff-go/model"
	"github.com/faffhub/faff-go/storage"
)

func newTestStore(t *testing.T) *Store {
	dir := t.TempDir()
	root, err := storage.Init(dir, false)
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(storage.New(root, logger), logger)
}

func date(y int, m time.Month, d int) model.Date { return model.Date{Year: y, Month: m, Day: d} }

func TestPlansValidOnSelectsGreatestValidFrom(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WritePlan(model.Plan{Source: "local", ValidFrom: date(2026, 1, 1)}))
	require.NoError(t, s.WritePlan(model.Plan{Source: "local", ValidFrom: date(2026, 2, 1)}))

	plans, err := s.PlansValidOn(date(2026, 2, 15))
	require.NoError(t, err)
	require.Contains(t, plans, "local")
	assert.Equal(t, date(2026, 2, 1), plans["local"].ValidFrom)

	plans, err = s.PlansValidOn(date(2026, 1, 15))
	require.NoError(t, err)
	assert.Equal(t, date(2026, 1, 1), plans["local"].ValidFrom)
}

func TestPlansValidOnRespectsValidUntil(t *testing.T) {
	s := newTestStore(t)
	until := date(2026, 1, 31)
	require.NoError(t, s.WritePlan(model.Plan{Source: "local", ValidFrom: date(2026, 1, 1), ValidUntil: &until}))

	plans, err := s.PlansValidOn(date(2026, 2, 1))
	require.NoError(t, err)
	assert.NotContains(t, plans, "local")
}

func TestIntentsOnCollision(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WritePlan(model.Plan{
		Source: "local", ValidFrom: date(2026, 1, 1),
		Intents: []model.Intent{{IntentID: "dup", Alias: "a"}},
	}))
	require.NoError(t, s.WritePlan(model.Plan{
		Source: "remote", ValidFrom: date(2026, 1, 1),
		Intents: []model.Intent{{IntentID: "dup", Alias: "b"}},
	}))

	_, err := s.IntentsOn(date(2026, 1, 15))
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.IntentIDCollision))
}

func TestAddIntentAssignsFreshLocalID(t *testing.T) {
	s := newTestStore(t)
	plan, err := s.LocalPlanOrCreate(date(2026, 3, 2))
	require.NoError(t, err)

	next, err := s.AddIntent(plan, model.Intent{Alias: "standup"})
	require.NoError(t, err)
	require.Len(t, next.Intents, 1)
	assert.Contains(t, next.Intents[0].IntentID, model.LocalPrefix)
	assert.Contains(t, next.Intents[0].IntentID, "20260302")
}

func TestAddIntentRejectsCollidingExplicitID(t *testing.T) {
	s := newTestStore(t)
	plan, err := s.LocalPlanOrCreate(date(2026, 3, 2))
	require.NoError(t, err)
	plan, err = s.AddIntent(plan, model.Intent{IntentID: "local:i-fixed", Alias: "a"})
	require.NoError(t, err)
	require.NoError(t, s.WritePlan(plan))

	_, err = s.AddIntent(plan, model.Intent{IntentID: "local:i-fixed", Alias: "b"})
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.IntentIDCollision))
}

func TestUpdateIntentRejectsNonLocal(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WritePlan(model.Plan{
		Source: "remote", ValidFrom: date(2026, 1, 1),
		Intents: []model.Intent{{IntentID: "remote:i-1", Alias: "a"}},
	}))
	_, err := s.UpdateIntent("remote:i-1", model.Intent{Alias: "b"})
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.RemoteIntentImmutable))
}

func TestUpdateIntentRewritesDescriptorsPreservingID(t *testing.T) {
	s := newTestStore(t)
	plan, err := s.LocalPlanOrCreate(date(2026, 3, 2))
	require.NoError(t, err)
	plan, err = s.AddIntent(plan, model.Intent{IntentID: "local:i-fixed", Alias: "standup", Role: "eng"})
	require.NoError(t, err)
	require.NoError(t, s.WritePlan(plan))

	updated, err := s.UpdateIntent("local:i-fixed", model.Intent{Role: "manager", Objective: "ship"})
	require.NoError(t, err)
	in, ok := updated.IntentByID("local:i-fixed")
	require.True(t, ok)
	assert.Equal(t, "standup", in.Alias, "alias is retained from the original")
	assert.Equal(t, "manager", in.Role)
	assert.Equal(t, "ship", in.Objective)
}

func TestFindIntentByIDNotFound(t *testing.T) {
	s := newTestStore(t)
	_, _, _, err := s.FindIntentByID("missing")
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.IntentNotFound))
}

func TestVocabularyAggregatesAndDedups(t *testing.T) {
	got := vocabulary([]string{"dev.backend", "dev.frontend"}, []string{"dev.backend", "ops.oncall"})
	assert.ElementsMatch(t, []string{"dev.backend", "dev.frontend", "ops.oncall"}, got)
}

func TestRolesOnAggregatesAcrossSources(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WritePlan(model.Plan{Source: "local", ValidFrom: date(2026, 1, 1), Roles: []string{"eng"}}))
	require.NoError(t, s.WritePlan(model.Plan{Source: "remote", ValidFrom: date(2026, 1, 1), Roles: []string{"manager"}}))

	roles, err := s.RolesOn(date(2026, 1, 15))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"eng", "manager"}, roles)
}
