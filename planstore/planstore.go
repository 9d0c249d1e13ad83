// Package planstore implements the Plan Store: loading plans/, selecting
// the newest-valid file per source for a date, and exposing aggregated
// intent/tracker/vocabulary views.
package planstore

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/faffhub/faff-go/canon"
	"github.com/faffhub/faff-go/ledgererr"
	"github.com/faffhub/faff-go/model"
	"github.com/faffhub/faff-go/storage"
)

// LocalSource is the plan source id the Plan Store edits directly rather
// than pulling from an external PlanSource.
const LocalSource = "local"

// LockTimeout bounds how long a mutation waits on another process's lock
// before failing LockContention.
const LockTimeout = 5 * time.Second

// Store is the Plan Store.
type Store struct {
	storage *storage.Storage
	logger  *logrus.Logger
}

// New constructs a Store over an already-located ledger root.
func New(st *storage.Storage, logger *logrus.Logger) *Store {
	return &Store{storage: st, logger: logger}
}

type loadedPlan struct {
	plan  model.Plan
	path  string
	mtime time.Time
}

// loadAll reads and parses every file under plans/.
func (s *Store) loadAll() ([]loadedPlan, error) {
	entries, err := os.ReadDir(s.storage.PlansDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ledgererr.Wrap(ledgererr.RootNotFound, err, "listing %s", s.storage.PlansDir())
	}
	var out []loadedPlan
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		path := filepath.Join(s.storage.PlansDir(), e.Name())
		var plan model.Plan
		err := storage.WithSharedLock(path, LockTimeout, func() error {
			data, err := storage.ReadText(path)
			if err != nil {
				return err
			}
			p, err := canon.UnmarshalPlan(path, string(data))
			if err != nil {
				return err
			}
			plan = p
			return nil
		})
		if err != nil {
			return nil, err
		}
		info, err := e.Info()
		if err != nil {
			return nil, ledgererr.Wrap(ledgererr.RootNotFound, err, "stat %s", path)
		}
		out = append(out, loadedPlan{plan: plan, path: path, mtime: info.ModTime()})
	}
	return out, nil
}

// PlansValidOn selects, per source, the plan with the greatest valid_from
// <= d whose valid_until (if set) is unbounded or >= d. Ties on valid_from
// are impossible by path construction; if they somehow occur the later
// mtime wins and a warning is logged.
func (s *Store) PlansValidOn(d model.Date) (map[string]model.Plan, error) {
	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	best := make(map[string]loadedPlan)
	for _, lp := range all {
		if !lp.plan.ValidOn(d) {
			continue
		}
		cur, ok := best[lp.plan.Source]
		if !ok {
			best[lp.plan.Source] = lp
			continue
		}
		switch {
		case lp.plan.ValidFrom.After(cur.plan.ValidFrom):
			best[lp.plan.Source] = lp
		case lp.plan.ValidFrom.Equal(cur.plan.ValidFrom):
			if lp.mtime.After(cur.mtime) {
				s.logger.WithFields(logrus.Fields{
					"source":     lp.plan.Source,
					"valid_from": lp.plan.ValidFrom.String(),
				}).Warn("tied valid_from across plan files, newest mtime wins")
				best[lp.plan.Source] = lp
			}
		}
	}
	out := make(map[string]model.Plan, len(best))
	for source, lp := range best {
		out[source] = lp.plan
	}
	return out, nil
}

// IntentsOn returns the flat union of plans_valid_on(d)'s intents, failing
// IntentIDCollision if two sources disagree on the same intent_id.
func (s *Store) IntentsOn(d model.Date) (map[string]model.Intent, error) {
	plans, err := s.PlansValidOn(d)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Intent)
	owner := make(map[string]string)
	for source, p := range plans {
		for _, in := range p.Intents {
			if existingSource, ok := owner[in.IntentID]; ok && existingSource != source {
				return nil, ledgererr.New(ledgererr.IntentIDCollision,
					"intent_id %q present in both %q and %q", in.IntentID, existingSource, source)
			}
			out[in.IntentID] = in
			owner[in.IntentID] = source
		}
	}
	return out, nil
}

// TrackersOn returns the union of tracker id -> name across plans valid on d.
func (s *Store) TrackersOn(d model.Date) (map[string]string, error) {
	plans, err := s.PlansValidOn(d)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, p := range plans {
		for id, name := range p.Trackers {
			out[id] = name
		}
	}
	return out, nil
}

// RolesOn returns the aggregated role vocabulary valid on d.
func (s *Store) RolesOn(d model.Date) ([]string, error) { return s.vocabOn(d, func(p model.Plan) []string { return p.Roles }) }

// ObjectivesOn returns the aggregated objective vocabulary valid on d.
func (s *Store) ObjectivesOn(d model.Date) ([]string, error) {
	return s.vocabOn(d, func(p model.Plan) []string { return p.Objectives })
}

// ActionsOn returns the aggregated action vocabulary valid on d.
func (s *Store) ActionsOn(d model.Date) ([]string, error) {
	return s.vocabOn(d, func(p model.Plan) []string { return p.Actions })
}

// SubjectsOn returns the aggregated subject vocabulary valid on d.
func (s *Store) SubjectsOn(d model.Date) ([]string, error) {
	return s.vocabOn(d, func(p model.Plan) []string { return p.Subjects })
}

func (s *Store) vocabOn(d model.Date, pick func(model.Plan) []string) ([]string, error) {
	plans, err := s.PlansValidOn(d)
	if err != nil {
		return nil, err
	}
	var lists [][]string
	for _, p := range plans {
		lists = append(lists, pick(p))
	}
	return vocabulary(lists...), nil
}

// LocalPlanOrCreate returns the local source's plan for d, creating an
// empty one (valid_from=d, unbounded valid_until) if none is valid yet.
func (s *Store) LocalPlanOrCreate(d model.Date) (model.Plan, error) {
	plans, err := s.PlansValidOn(d)
	if err != nil {
		return model.Plan{}, err
	}
	if p, ok := plans[LocalSource]; ok {
		return p, nil
	}
	p := model.Plan{Source: LocalSource, ValidFrom: d, Trackers: map[string]string{}}
	if err := s.WritePlan(p); err != nil {
		return model.Plan{}, err
	}
	return p, nil
}

// AddIntent returns a new plan with the intent appended, assigning a fresh
// local intent_id if unset, and failing IntentIDCollision if the chosen id
// already exists in any plan valid on plan.ValidFrom.
func (s *Store) AddIntent(plan model.Plan, intent model.Intent) (model.Plan, error) {
	if intent.IntentID == "" {
		id, err := s.freshLocalID(plan.ValidFrom)
		if err != nil {
			return model.Plan{}, err
		}
		intent.IntentID = id
	} else {
		existing, err := s.IntentsOn(plan.ValidFrom)
		if err != nil {
			return model.Plan{}, err
		}
		if _, collide := existing[intent.IntentID]; collide {
			return model.Plan{}, ledgererr.New(ledgererr.IntentIDCollision, "intent_id %q already exists", intent.IntentID)
		}
	}
	next := plan.Clone()
	next.Intents = append(next.Intents, intent)
	return next, nil
}

func (s *Store) freshLocalID(d model.Date) (string, error) {
	existing, err := s.IntentsOn(d)
	if err != nil {
		return "", err
	}
	for attempt := 0; attempt < 20; attempt++ {
		suffix, err := randomHex(3)
		if err != nil {
			return "", ledgererr.Wrap(ledgererr.IntentIDCollision, err, "generating intent id")
		}
		id := fmt.Sprintf("%si-%s-%s", model.LocalPrefix, d.Compact(), suffix)
		if _, collide := existing[id]; !collide {
			return id, nil
		}
	}
	return "", ledgererr.New(ledgererr.IntentIDCollision, "could not allocate a unique local intent id for %s", d.String())
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", buf), nil
}

// FindIntentByID scans every plan (not filtered by date) for the first
// match, returning its owning source, the intent, and the plan file path.
func (s *Store) FindIntentByID(id string) (string, model.Intent, string, error) {
	all, err := s.loadAll()
	if err != nil {
		return "", model.Intent{}, "", err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].path < all[j].path })
	for _, lp := range all {
		if in, ok := lp.plan.IntentByID(id); ok {
			return lp.plan.Source, in, lp.path, nil
		}
	}
	return "", model.Intent{}, "", ledgererr.New(ledgererr.IntentNotFound, "no plan defines intent_id %q", id)
}

// UpdateIntent rewrites the owning plan file atomically with the intent's
// descriptors replaced by newIntent, preserving the original intent_id.
// Only permitted for local: ids.
func (s *Store) UpdateIntent(id string, newIntent model.Intent) (model.Plan, error) {
	if !strings.HasPrefix(id, model.LocalPrefix) {
		return model.Plan{}, ledgererr.New(ledgererr.RemoteIntentImmutable, "intent_id %q is not locally owned", id)
	}
	source, _, path, err := s.FindIntentByID(id)
	if err != nil {
		return model.Plan{}, err
	}
	if source != LocalSource {
		return model.Plan{}, ledgererr.New(ledgererr.RemoteIntentImmutable, "intent_id %q belongs to source %q, not local", id, source)
	}

	var updated model.Plan
	err = storage.WithExclusiveLock(path, LockTimeout, func() error {
		data, err := storage.ReadText(path)
		if err != nil {
			return err
		}
		plan, err := canon.UnmarshalPlan(path, string(data))
		if err != nil {
			return err
		}
		found := false
		for i, in := range plan.Intents {
			if in.IntentID == id {
				plan.Intents[i] = in.WithUpdatedDescriptors(newIntent)
				found = true
				break
			}
		}
		if !found {
			return ledgererr.New(ledgererr.IntentNotFound, "intent_id %q vanished from %s", id, path)
		}
		text := canon.MarshalPlan(plan)
		if err := storage.WriteAtomic(path, []byte(text), 0o644); err != nil {
			return err
		}
		updated = plan
		return nil
	})
	if err != nil {
		return model.Plan{}, err
	}
	return updated, nil
}

// WritePlan atomically writes plan to the path derived from
// (source, valid_from).
func (s *Store) WritePlan(plan model.Plan) error {
	path := s.storage.PlanPath(plan.Source, plan.ValidFrom.Compact())
	text := canon.MarshalPlan(plan)
	return storage.WithExclusiveLock(path, LockTimeout, func() error {
		return storage.WriteAtomic(path, []byte(text), 0o644)
	})
}

// ListPlans returns every stored plan across all sources, sorted by
// source then valid_from, oldest first.
func (s *Store) ListPlans() ([]model.Plan, error) {
	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].plan.Source != all[j].plan.Source {
			return all[i].plan.Source < all[j].plan.Source
		}
		return all[i].plan.ValidFrom.Before(all[j].plan.ValidFrom)
	})
	out := make([]model.Plan, 0, len(all))
	for _, lp := range all {
		out = append(out, lp.plan)
	}
	return out, nil
}
