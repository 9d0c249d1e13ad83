package timesheet

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faffhub/faff-go/canon"
	"github.com/faffhub/faff-go/identity"
	"github.com/faffhub/faff-go/ledgererr"
	"github.com/faffhub/faff-go/model"
	"github.com/faffhub/faff-go/plugin"
	"github.com/faffhub/faff-go/storage"
)

func newFixture(t *testing.T) (*Store, *identity.Store) {
	dir := t.TempDir()
	root, err := storage.Init(dir, false)
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	st := storage.New(root, logger)
	ids := identity.New(st, logger)
	return New(st, ids, logger), ids
}

func sampleLog() model.Log {
	start := time.Now().Add(-time.Hour)
	end := start.Add(time.Hour)
	return model.Log{
		Date:     model.Date{Year: 2026, Month: time.March, Day: 2},
		Timezone: "UTC",
		Timeline: []model.Session{{
			Start:  start,
			End:    &end,
			Intent: model.SessionIntent{IntentID: "local:i-1"},
		}},
	}
}

func TestCompileSetsAudienceAndClearsSignatures(t *testing.T) {
	s, _ := newFixture(t)
	byID := map[string]model.Intent{"local:i-1": {IntentID: "local:i-1", Alias: "standup", Trackers: []string{"proj-1"}}}

	ts, err := s.Compile(sampleLog(), byID, plugin.AllCompiler{})
	require.NoError(t, err)
	assert.Equal(t, "all", ts.AudienceID)
	assert.Empty(t, ts.Signatures)
	assert.False(t, ts.Meta.CompiledAt.IsZero())
}

func TestSignSkipsUnresolvedIdentity(t *testing.T) {
	s, _ := newFixture(t)
	ts := model.Timesheet{AudienceID: "all", Date: model.Date{Year: 2026, Month: time.March, Day: 2}}

	signed, err := s.Sign(ts, []string{"nobody"})
	require.NoError(t, err)
	assert.Empty(t, signed.Signatures)
}

func TestSignAppendsValidSignature(t *testing.T) {
	s, ids := newFixture(t)
	_, err := ids.Create("alice", false)
	require.NoError(t, err)
	ts := model.Timesheet{AudienceID: "all", Date: model.Date{Year: 2026, Month: time.March, Day: 2}}

	signed, err := s.Sign(ts, []string{"alice"})
	require.NoError(t, err)
	require.Len(t, signed.Signatures, 1)
	assert.Equal(t, "alice", signed.Signatures[0].SignerID)

	ok, err := s.Verify(signed)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyFailsWithNoSignatures(t *testing.T) {
	s, _ := newFixture(t)
	ts := model.Timesheet{AudienceID: "all", Date: model.Date{Year: 2026, Month: time.March, Day: 2}}
	ok, err := s.Verify(ts)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyFailsOnUnknownSigner(t *testing.T) {
	s, _ := newFixture(t)
	ts := model.Timesheet{
		AudienceID: "all",
		Date:       model.Date{Year: 2026, Month: time.March, Day: 2},
		Signatures: []model.Signature{{SignerID: "ghost", Algorithm: "ed25519", Bytes: []byte("x")}},
	}
	ok, err := s.Verify(ts)
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, ledgererr.Is(err, ledgererr.IdentityNotFound))
}

func TestStoreWritesBesideAlreadySubmittedFile(t *testing.T) {
	s, ids := newFixture(t)
	_, err := ids.Create("alice", false)
	require.NoError(t, err)

	ts := model.Timesheet{AudienceID: "all", Date: model.Date{Year: 2026, Month: time.March, Day: 2}}
	path, err := s.Store(ts)
	require.NoError(t, err)

	submitted, outcome, err := s.Submit(path, ts, plugin.AllCompiler{}, "alice")
	require.NoError(t, err)
	assert.False(t, outcome.Accepted, "the built-in all compiler has no external audience")
	assert.Nil(t, submitted.Meta.SubmittedAt)

	// Force a submitted marker directly to exercise the versioning branch.
	now := time.Now().UTC()
	ts.Meta.SubmittedAt = &now
	require.NoError(t, forceWrite(s, path, ts))

	path2, err := s.Store(model.Timesheet{AudienceID: "all", Date: model.Date{Year: 2026, Month: time.March, Day: 2}})
	require.NoError(t, err)
	assert.NotEqual(t, path, path2)
	assert.Contains(t, path2, "-v2")
}

func forceWrite(s *Store, path string, ts model.Timesheet) error {
	return storage.WithExclusiveLock(path, LockTimeout, func() error {
		return storage.WriteAtomic(path, []byte(canon.MarshalTimesheet(ts)), 0o644)
	})
}
