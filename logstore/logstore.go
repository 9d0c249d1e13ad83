// Package logstore implements the Log Store and Session State Machine:
// per-date session timelines, with start/stop/continue transitions
// validated and persisted under an advisory file lock.
package logstore

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/faffhub/faff-go/canon"
	"github.com/faffhub/faff-go/clock"
	"github.com/faffhub/faff-go/ledgererr"
	"github.com/faffhub/faff-go/model"
	"github.com/faffhub/faff-go/storage"
)

// LockTimeout bounds how long a mutation waits on another process's lock
// before failing LockContention.
const LockTimeout = 5 * time.Second

// Store is the Log Store.
type Store struct {
	storage *storage.Storage
	clock   *clock.Clock
	logger  *logrus.Logger
}

// New constructs a Store over an already-located ledger root.
func New(st *storage.Storage, c *clock.Clock, logger *logrus.Logger) *Store {
	return &Store{storage: st, clock: c, logger: logger}
}

// GetOrCreate reads the Log for d if present, otherwise returns an empty Log
// pinned to the Clock's configured timezone.
func (s *Store) GetOrCreate(d model.Date) (model.Log, error) {
	path := s.storage.LogPath(d.String())
	var log model.Log
	err := storage.WithSharedLock(path, LockTimeout, func() error {
		data, err := storage.ReadText(path)
		if err != nil {
			if os.IsNotExist(err) {
				log = model.Log{Date: d, Timezone: s.clock.Location().String()}
				return nil
			}
			return err
		}
		parsed, err := canon.UnmarshalLog(path, string(data))
		if err != nil {
			return err
		}
		log = parsed
		return nil
	})
	return log, err
}

// Write canonicalizes and atomically writes log. trackers is used only to
// emit friendly "--tracker_name" comments alongside tracker ids.
func (s *Store) Write(log model.Log, trackers map[string]string) error {
	path := s.storage.LogPath(log.Date.String())
	text, err := canon.MarshalLog(log, trackers)
	if err != nil {
		return err
	}
	return storage.WithExclusiveLock(path, LockTimeout, func() error {
		return storage.WriteAtomic(path, []byte(text), 0o644)
	})
}

// List enumerates every stored log, newest date first.
func (s *Store) List() ([]model.Log, error) {
	entries, err := os.ReadDir(s.storage.LogsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ledgererr.Wrap(ledgererr.RootNotFound, err, "listing %s", s.storage.LogsDir())
	}
	var dates []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		dates = append(dates, strings.TrimSuffix(e.Name(), ".toml"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	out := make([]model.Log, 0, len(dates))
	for _, ds := range dates {
		d, err := model.ParseISODate(ds)
		if err != nil {
			continue
		}
		log, err := s.GetOrCreate(d)
		if err != nil {
			return nil, err
		}
		out = append(out, log)
	}
	return out, nil
}

// mutate runs fn against the exclusively-locked, freshly-read Log for d,
// then atomically rewrites it if fn succeeds. This is the single choke
// point every session transition goes through: read, validate, write, all
// under one lock.
func (s *Store) mutate(d model.Date, trackers map[string]string, fn func(*model.Log) error) (model.Log, error) {
	path := s.storage.LogPath(d.String())
	var result model.Log
	err := storage.WithExclusiveLock(path, LockTimeout, func() error {
		data, err := storage.ReadText(path)
		var log model.Log
		switch {
		case err == nil:
			log, err = canon.UnmarshalLog(path, string(data))
			if err != nil {
				return err
			}
		case os.IsNotExist(err):
			log = model.Log{Date: d, Timezone: s.clock.Location().String()}
		default:
			return err
		}
		if err := fn(&log); err != nil {
			return err
		}
		log.SortTimeline()
		text, err := canon.MarshalLog(log, trackers)
		if err != nil {
			return err
		}
		if err := storage.WriteAtomic(path, []byte(text), 0o644); err != nil {
			return err
		}
		result = log
		return nil
	})
	return result, err
}

// StartIntentAt validates and appends a session starting at startInstant on
// today's Log, closing any currently-open session at startInstant first
// ("continue" semantics). startInstant must be <= now and must fall on
// today's date in the Log's timezone; anything else is SessionOrderViolation
// rather than silently rolling over to a new day. If the last session is
// already closed, startInstant must not precede its end, so the new session
// cannot overlap or be inserted out of order.
func (s *Store) StartIntentAt(intent model.SessionIntent, startInstant time.Time, note string, trackers map[string]string) (model.Log, error) {
	today := s.clock.Today()
	return s.mutate(today, trackers, func(log *model.Log) error {
		if startInstant.After(s.clock.Now()) {
			return ledgererr.New(ledgererr.FutureStart, "%s is in the future", startInstant.Format(time.RFC3339))
		}
		if err := validateSessionDate(today, startInstant, s.clock.Location()); err != nil {
			return err
		}
		if active, ok := activeSession(*log); ok {
			if startInstant.Before(active.Start) {
				return ledgererr.New(ledgererr.SessionOrderViolation, "new start %s precedes open session start %s", startInstant, active.Start)
			}
			closeLastOpen(log, startInstant)
		} else if n := len(log.Timeline); n > 0 {
			last := log.Timeline[n-1]
			if startInstant.Before(*last.End) {
				return ledgererr.New(ledgererr.SessionOrderViolation, "new start %s precedes last session's end %s", startInstant, *last.End)
			}
		}
		log.Timeline = append(log.Timeline, model.Session{
			Start:  startInstant,
			Intent: intent,
			Note:   note,
		})
		return nil
	})
}

// StartIntentNow is syntactic sugar for StartIntentAt(intent, now(), note).
func (s *Store) StartIntentNow(intent model.SessionIntent, note string, trackers map[string]string) (model.Log, error) {
	return s.StartIntentAt(intent, s.clock.Now(), note, trackers)
}

// StopCurrentSession closes the open session at `at` (defaulting to now if
// the zero value is passed), failing NoActiveSession if none is open.
func (s *Store) StopCurrentSession(at time.Time, trackers map[string]string) (model.Log, error) {
	today := s.clock.Today()
	if at.IsZero() {
		at = s.clock.Now()
	}
	return s.mutate(today, trackers, func(log *model.Log) error {
		active, ok := activeSession(*log)
		if !ok {
			return ledgererr.New(ledgererr.NoActiveSession, "no open session for %s", today.String())
		}
		if at.Before(active.Start) {
			return ledgererr.New(ledgererr.SessionOrderViolation, "stop time %s precedes session start %s", at, active.Start)
		}
		if at.After(s.clock.Now()) {
			return ledgererr.New(ledgererr.FutureStart, "%s is in the future", at.Format(time.RFC3339))
		}
		closeLastOpen(log, at)
		return nil
	})
}

// ActiveSession returns today's open session, if any.
func (s *Store) ActiveSession() (model.Session, bool, error) {
	log, err := s.GetOrCreate(s.clock.Today())
	if err != nil {
		return model.Session{}, false, err
	}
	sess, ok := activeSession(log)
	return sess, ok, nil
}

// TotalRecordedTime sums closed-session durations plus the open session's
// elapsed time (against now), for today's Log.
func (s *Store) TotalRecordedTime() (time.Duration, error) {
	log, err := s.GetOrCreate(s.clock.Today())
	if err != nil {
		return 0, err
	}
	var total time.Duration
	for _, sess := range log.Timeline {
		total += sess.Duration(s.clock.Now())
	}
	return total, nil
}

// IsClosed reports whether today's Log has no open session.
func (s *Store) IsClosed() (bool, error) {
	_, ok, err := s.ActiveSession()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func activeSession(log model.Log) (model.Session, bool) {
	if len(log.Timeline) == 0 {
		return model.Session{}, false
	}
	last := log.Timeline[len(log.Timeline)-1]
	if last.IsOpen() {
		return last, true
	}
	return model.Session{}, false
}

func closeLastOpen(log *model.Log, at time.Time) {
	if len(log.Timeline) == 0 {
		return
	}
	i := len(log.Timeline) - 1
	if log.Timeline[i].IsOpen() {
		t := at
		log.Timeline[i].End = &t
	}
}

// validateSessionDate enforces that a session's start always falls on its
// Log's own date in the Log's timezone: a ledger is strictly one calendar
// day per file, so a session cannot silently roll over into the next day's
// log.
func validateSessionDate(d model.Date, startInstant time.Time, loc *time.Location) error {
	startDate := model.DateOf(startInstant.In(loc))
	if startDate.Equal(d) {
		return nil
	}
	return ledgererr.New(ledgererr.SessionOrderViolation,
		"start %s does not fall on log date %s", startInstant.Format(time.RFC3339), d.String())
}
