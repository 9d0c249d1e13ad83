// Package workspace aggregates the process-lifetime components: Storage,
// Plan Store, Log Store, Timesheet Store, Identity Store, Clock, and the
// capability Registry, constructed once per ledger root and passed
// explicitly, with no global singleton.
package workspace

import (
	"crypto/ed25519"

	"github.com/sirupsen/logrus"

	"github.com/faffhub/faff-go/clock"
	"github.com/faffhub/faff-go/faffconfig"
	"github.com/faffhub/faff-go/identity"
	"github.com/faffhub/faff-go/intenteditor"
	"github.com/faffhub/faff-go/logstore"
	"github.com/faffhub/faff-go/model"
	"github.com/faffhub/faff-go/planstore"
	"github.com/faffhub/faff-go/plugin"
	"github.com/faffhub/faff-go/storage"
	"github.com/faffhub/faff-go/timesheet"
)

// Workspace holds shared references to every component a CLI command needs,
// all rooted at one ledger.
type Workspace struct {
	Config     model.Config
	Storage    *storage.Storage
	Clock      *clock.Clock
	Plans      *planstore.Store
	Logs       *logstore.Store
	Identities *identity.Store
	Timesheets *timesheet.Store
	Editor     *intenteditor.Editor
	Registry   *plugin.Registry
	Logger     *logrus.Logger
}

// ListTimesheets returns every stored timesheet, across all audiences and
// dates.
func (w *Workspace) ListTimesheets() ([]model.Timesheet, error) {
	return w.Timesheets.ListTimesheets()
}

// ListIdentities returns every known signing identity's name mapped to its
// public key.
func (w *Workspace) ListIdentities() (map[string]ed25519.PublicKey, error) {
	return w.Identities.List()
}

// ListPlans returns every stored plan, across all sources.
func (w *Workspace) ListPlans() ([]model.Plan, error) {
	return w.Plans.ListPlans()
}

// Open locates the ledger root above startingDir, loads config.toml, and
// constructs every component over it.
func Open(startingDir string, logger *logrus.Logger) (*Workspace, error) {
	root, err := storage.LocateRoot(startingDir)
	if err != nil {
		return nil, err
	}
	return openAt(root, logger)
}

// Init creates a new ledger rooted at targetDir and opens it, as "faff
// init" does.
func Init(targetDir string, allowNested bool, logger *logrus.Logger) (*Workspace, error) {
	root, err := storage.Init(targetDir, allowNested)
	if err != nil {
		return nil, err
	}
	return openAt(root, logger)
}

func openAt(root string, logger *logrus.Logger) (*Workspace, error) {
	st := storage.New(root, logger)
	cfg, err := faffconfig.Load(st.ConfigPath())
	if err != nil {
		return nil, err
	}
	c, err := clock.New(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	plans := planstore.New(st, logger)
	logs := logstore.New(st, c, logger)
	identities := identity.New(st, logger)
	timesheets := timesheet.New(st, identities, logger)
	editor := intenteditor.New(plans, logs)
	registry := plugin.NewRegistry()

	return &Workspace{
		Config:     cfg,
		Storage:    st,
		Clock:      c,
		Plans:      plans,
		Logs:       logs,
		Identities: identities,
		Timesheets: timesheets,
		Editor:     editor,
		Registry:   registry,
		Logger:     logger,
	}, nil
}
