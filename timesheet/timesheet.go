// Package timesheet implements the Timesheet Pipeline: compile, canonicalize,
// sign, version-safe store, submit, and verify.
package timesheet

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/faffhub/faff-go/canon"
	"github.com/faffhub/faff-go/identity"
	"github.com/faffhub/faff-go/ledgererr"
	"github.com/faffhub/faff-go/model"
	"github.com/faffhub/faff-go/plugin"
	"github.com/faffhub/faff-go/storage"
)

// LockTimeout bounds how long a mutation waits on another process's lock
// before failing LockContention.
const LockTimeout = 5 * time.Second

// Store is the Timesheet Store/Pipeline.
type Store struct {
	storage    *storage.Storage
	identities *identity.Store
	logger     *logrus.Logger
	nowFunc    func() time.Time
}

// New constructs a Store over an already-located ledger root.
func New(st *storage.Storage, identities *identity.Store, logger *logrus.Logger) *Store {
	return &Store{storage: st, identities: identities, logger: logger, nowFunc: time.Now}
}

// Compile invokes compiler.Compile(log) and returns the draft Timesheet:
// audience_id set to the compiler's id, empty signatures, meta.compiled_at
// set to now. Empty timelines are permitted.
func (s *Store) Compile(log model.Log, byID map[string]model.Intent, compiler plugin.TimesheetCompiler) (model.Timesheet, error) {
	ts, err := compiler.Compile(log, byID)
	if err != nil {
		return model.Timesheet{}, err
	}
	ts.AudienceID = compiler.ID()
	ts.Meta.CompiledAt = s.nowFunc().UTC()
	ts.Signatures = nil
	return ts, nil
}

// Sign appends a signature for each signingID whose identity has a secret
// key, skipping (with a logged warning, not an abort) any signingID that
// does not resolve to a known identity or whose secret key is unavailable.
func (s *Store) Sign(ts model.Timesheet, signingIDs []string) (model.Timesheet, error) {
	bytes, err := canon.SigningBytes(ts)
	if err != nil {
		return model.Timesheet{}, err
	}
	signed := ts.Clone()
	for _, signingID := range signingIDs {
		id, found, err := s.identities.Get(signingID)
		if err != nil {
			return model.Timesheet{}, err
		}
		if !found || !id.HasSecret() {
			s.logger.WithField("signing_id", signingID).Warn("signing identity unresolved or has no secret key, skipping")
			continue
		}
		sig := ed25519.Sign(id.SecretKey, bytes)
		signed.Signatures = append(signed.Signatures, model.Signature{
			SignerID:  signingID,
			Algorithm: "ed25519",
			Bytes:     sig,
		})
	}
	return signed, nil
}

// Store atomically writes ts to timesheets/<audience>.<date>.toml. If a
// previously submitted file already occupies that path, the new file is
// written beside it under a -v2, -v3... suffix instead of overwriting it.
func (s *Store) Store(ts model.Timesheet) (string, error) {
	version := 1
	for {
		path := s.storage.TimesheetPath(ts.AudienceID, ts.Date.String(), version)
		existing, err := s.readIfPresent(path)
		if err != nil {
			return "", err
		}
		if existing == nil {
			text := canon.MarshalTimesheet(ts)
			if err := storage.WithExclusiveLock(path, LockTimeout, func() error {
				return storage.WriteAtomic(path, []byte(text), 0o644)
			}); err != nil {
				return "", err
			}
			return path, nil
		}
		if !existing.IsSubmitted() {
			text := canon.MarshalTimesheet(ts)
			if err := storage.WithExclusiveLock(path, LockTimeout, func() error {
				return storage.WriteAtomic(path, []byte(text), 0o644)
			}); err != nil {
				return "", err
			}
			return path, nil
		}
		version++
	}
}

func (s *Store) readIfPresent(path string) (*model.Timesheet, error) {
	var ts *model.Timesheet
	err := storage.WithSharedLock(path, LockTimeout, func() error {
		data, err := storage.ReadText(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		parsed, err := canon.UnmarshalTimesheet(path, string(data))
		if err != nil {
			return err
		}
		ts = &parsed
		return nil
	})
	return ts, err
}

// Submit invokes compiler.Submit(ts); on success, rewrites the stored file
// (at the same path it was Store()'d to) with meta.submitted_at/by set.
func (s *Store) Submit(path string, ts model.Timesheet, compiler plugin.TimesheetCompiler, submittedBy string) (model.Timesheet, plugin.SubmitOutcome, error) {
	outcome, err := compiler.Submit(ts)
	if err != nil {
		return model.Timesheet{}, plugin.SubmitOutcome{}, err
	}
	if !outcome.Accepted {
		return ts, outcome, nil
	}
	now := s.nowFunc().UTC()
	submitted := ts.Clone()
	submitted.Meta.SubmittedAt = &now
	submitted.Meta.SubmittedBy = submittedBy

	text := canon.MarshalTimesheet(submitted)
	err = storage.WithExclusiveLock(path, LockTimeout, func() error {
		return storage.WriteAtomic(path, []byte(text), 0o644)
	})
	if err != nil {
		return model.Timesheet{}, plugin.SubmitOutcome{}, err
	}
	return submitted, outcome, nil
}

// ListTimesheets enumerates every stored timesheet file, sorted by filename
// (audience_id, then date and version) ascending.
func (s *Store) ListTimesheets() ([]model.Timesheet, error) {
	entries, err := os.ReadDir(s.storage.TimesheetsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ledgererr.Wrap(ledgererr.RootNotFound, err, "listing %s", s.storage.TimesheetsDir())
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	out := make([]model.Timesheet, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.storage.TimesheetsDir(), name)
		ts, err := s.readIfPresent(path)
		if err != nil {
			return nil, err
		}
		if ts != nil {
			out = append(out, *ts)
		}
	}
	return out, nil
}

// Verify recomputes the canonical signing bytes and checks every signature
// against its identity's public key. A timesheet is valid iff at least one
// signature verifies and all present signatures verify.
func (s *Store) Verify(ts model.Timesheet) (bool, error) {
	if len(ts.Signatures) == 0 {
		return false, nil
	}
	bytes, err := canon.SigningBytes(ts)
	if err != nil {
		return false, err
	}
	verifiedCount := 0
	for _, sig := range ts.Signatures {
		id, found, err := s.identities.Get(sig.SignerID)
		if err != nil {
			return false, err
		}
		if !found {
			return false, ledgererr.New(ledgererr.IdentityNotFound, "signature references unknown identity %q", sig.SignerID)
		}
		if !ed25519.Verify(id.PublicKey, bytes, sig.Bytes) {
			return false, nil
		}
		verifiedCount++
	}
	return verifiedCount > 0, nil
}
