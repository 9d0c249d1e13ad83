// Command faffctl is the thin operational CLI for a faff ledger: it parses
// flags and calls workspace operations directly. It is deliberately not an
// interactive command-line shell: no prompts, no fuzzy picker, no $EDITOR
// spawn, only the minimal wiring needed to drive the engine from a terminal
// (kingpin flag declarations, a logrus logger built from a --debug flag, an
// options struct per subcommand).
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/faffhub/faff-go/canon"
	"github.com/faffhub/faff-go/internal/version"
	"github.com/faffhub/faff-go/model"
	"github.com/faffhub/faff-go/storage"
	"github.com/faffhub/faff-go/workspace"
)

func main() {
	app := kingpin.New("faffctl", "Local-first, file-backed time ledger.")
	app.Version(fmt.Sprintf("faffctl %s", version.Version)).Author("faffhub")
	app.HelpFlag.Short('h')

	debug := app.Flag("debug", "Enable debug-level logging.").Bool()
	profileMode := app.Flag("profile", "Enable CPU/memory profiling: cpu, mem, or trace.").String()

	initCmd := app.Command("init", "Create a new ledger rooted at the current (or given) directory.")
	initDir := initCmd.Arg("dir", "Directory to root the ledger at.").Default(".").String()
	initNested := initCmd.Flag("allow-nested", "Allow creating a ledger nested under an existing one.").Bool()

	startCmd := app.Command("start", "Start (or continue into) a session.")
	startIntentID := startCmd.Arg("intent", "intent_id to start.").Required().String()
	startSince := startCmd.Flag("since", "Natural-language or HH:MM start time (defaults to now).").String()
	startNote := startCmd.Flag("note", "Free-form note for this session.").String()

	stopCmd := app.Command("stop", "Stop the current open session.")
	stopAt := stopCmd.Flag("at", "Natural-language or HH:MM stop time (defaults to now).").String()

	statusCmd := app.Command("status", "Show today's active session and recorded time.")

	identityCmd := app.Command("identity", "Manage signing identities.")
	identityCreateCmd := identityCmd.Command("create", "Generate a new signing identity.")
	identityCreateName := identityCreateCmd.Arg("name", "Identity name.").Required().String()
	identityCreateOverwrite := identityCreateCmd.Flag("overwrite", "Overwrite an existing identity of the same name.").Bool()
	identityListCmd := identityCmd.Command("list", "List known identities.")

	intentCmd := app.Command("intent", "Manage intents.")
	intentDeriveCmd := intentCmd.Command("derive", "Create a new local intent seeded from an existing one.")
	intentDeriveSource := intentDeriveCmd.Arg("intent", "Source intent_id.").Required().String()
	intentEditCmd := intentCmd.Command("edit", "Edit a local intent's descriptors in place.")
	intentEditID := intentEditCmd.Arg("intent", "Local intent_id to edit.").Required().String()
	intentEditRole := intentEditCmd.Flag("role", "New role.").String()
	intentEditObjective := intentEditCmd.Flag("objective", "New objective.").String()
	intentEditAction := intentEditCmd.Flag("action", "New action.").String()
	intentEditSubject := intentEditCmd.Flag("subject", "New subject.").String()
	intentEditRetroactive := intentEditCmd.Flag("retroactive", "Rewrite historical sessions referencing this intent.").Bool()

	timesheetCmd := app.Command("timesheet", "Compile, sign, and submit timesheets.")
	timesheetCompileCmd := timesheetCmd.Command("compile", "Compile today's log into a timesheet.")
	timesheetCompileCompiler := timesheetCompileCmd.Arg("compiler", "Registered TimesheetCompiler id (e.g. all, billable).").Required().String()
	timesheetVerifyCmd := timesheetCmd.Command("verify", "Verify a stored timesheet's signatures.")
	timesheetVerifyPath := timesheetVerifyCmd.Arg("path", "Path to a timesheet file.").Required().String()
	timesheetListCmd := timesheetCmd.Command("list", "List every stored timesheet.")

	planCmd := app.Command("plan", "Inspect stored plans.")
	planListCmd := planCmd.Command("list", "List every stored plan.")

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *profileMode != "" {
		defer startProfile(*profileMode).Stop()
	}

	logger := logrus.New()
	logger.Level = logrus.InfoLevel
	if *debug {
		logger.Level = logrus.DebugLevel
	}

	var err error
	switch cmd {
	case initCmd.FullCommand():
		_, err = workspace.Init(*initDir, *initNested, logger)
	case startCmd.FullCommand():
		err = runStart(logger, *startIntentID, *startSince, *startNote)
	case stopCmd.FullCommand():
		err = runStop(logger, *stopAt)
	case statusCmd.FullCommand():
		err = runStatus(logger)
	case identityCreateCmd.FullCommand():
		err = runIdentityCreate(logger, *identityCreateName, *identityCreateOverwrite)
	case identityListCmd.FullCommand():
		err = runIdentityList(logger)
	case intentDeriveCmd.FullCommand():
		err = runIntentDerive(logger, *intentDeriveSource)
	case intentEditCmd.FullCommand():
		err = runIntentEdit(logger, *intentEditID, *intentEditRole, *intentEditObjective, *intentEditAction, *intentEditSubject, *intentEditRetroactive)
	case timesheetCompileCmd.FullCommand():
		err = runTimesheetCompile(logger, *timesheetCompileCompiler)
	case timesheetVerifyCmd.FullCommand():
		err = runTimesheetVerify(logger, *timesheetVerifyPath)
	case timesheetListCmd.FullCommand():
		err = runTimesheetList(logger)
	case planListCmd.FullCommand():
		err = runPlanList(logger)
	}
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func startProfile(mode string) interface{ Stop() } {
	switch strings.ToLower(mode) {
	case "mem":
		return profile.Start(profile.MemProfile)
	case "trace":
		return profile.Start(profile.TraceProfile)
	default:
		return profile.Start(profile.CPUProfile)
	}
}

func open(logger *logrus.Logger) (*workspace.Workspace, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return workspace.Open(cwd, logger)
}

func runStart(logger *logrus.Logger, intentID, since, note string) error {
	ws, err := open(logger)
	if err != nil {
		return err
	}
	start := ws.Clock.Now()
	if since != "" {
		start, err = ws.Clock.ParseNaturalDateTime(since)
		if err != nil {
			return err
		}
	}
	intents, err := ws.Plans.IntentsOn(ws.Clock.Today())
	if err != nil {
		return err
	}
	in, ok := intents[intentID]
	snapshot := model.SessionIntent{IntentID: intentID}
	if ok {
		c := in.Clone()
		snapshot.Snapshot = &c
	}
	trackers, err := ws.Plans.TrackersOn(ws.Clock.Today())
	if err != nil {
		return err
	}
	log, err := ws.Logs.StartIntentAt(snapshot, start, note, trackers)
	if err != nil {
		return err
	}
	logger.WithField("sessions", len(log.Timeline)).Info("started session")
	return nil
}

func runStop(logger *logrus.Logger, at string) error {
	ws, err := open(logger)
	if err != nil {
		return err
	}
	var stopAt = ws.Clock.Now()
	if at != "" {
		stopAt, err = ws.Clock.ParseNaturalDateTime(at)
		if err != nil {
			return err
		}
	}
	trackers, err := ws.Plans.TrackersOn(ws.Clock.Today())
	if err != nil {
		return err
	}
	_, err = ws.Logs.StopCurrentSession(stopAt, trackers)
	if err != nil {
		return err
	}
	logger.Info("stopped session")
	return nil
}

func runStatus(logger *logrus.Logger) error {
	ws, err := open(logger)
	if err != nil {
		return err
	}
	sess, ok, err := ws.Logs.ActiveSession()
	if err != nil {
		return err
	}
	total, err := ws.Logs.TotalRecordedTime()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("no active session, %s recorded today\n", total)
		return nil
	}
	fmt.Printf("active since %s (%s), %s recorded today\n", sess.Start.Format("15:04"), sess.Intent.IntentID, total)
	return nil
}

func runIdentityCreate(logger *logrus.Logger, name string, overwrite bool) error {
	ws, err := open(logger)
	if err != nil {
		return err
	}
	id, err := ws.Identities.Create(name, overwrite)
	if err != nil {
		return err
	}
	fmt.Printf("created identity %q\n", id.Name)
	return nil
}

func runIdentityList(logger *logrus.Logger) error {
	ws, err := open(logger)
	if err != nil {
		return err
	}
	list, err := ws.ListIdentities()
	if err != nil {
		return err
	}
	for name := range list {
		fmt.Println(name)
	}
	return nil
}

func runTimesheetList(logger *logrus.Logger) error {
	ws, err := open(logger)
	if err != nil {
		return err
	}
	sheets, err := ws.ListTimesheets()
	if err != nil {
		return err
	}
	for _, ts := range sheets {
		fmt.Printf("%s %s (%d signature(s))\n", ts.AudienceID, ts.Date.String(), len(ts.Signatures))
	}
	return nil
}

func runPlanList(logger *logrus.Logger) error {
	ws, err := open(logger)
	if err != nil {
		return err
	}
	plans, err := ws.ListPlans()
	if err != nil {
		return err
	}
	for _, p := range plans {
		fmt.Printf("%s valid_from=%s intents=%d\n", p.Source, p.ValidFrom.String(), len(p.Intents))
	}
	return nil
}

func runIntentDerive(logger *logrus.Logger, sourceID string) error {
	ws, err := open(logger)
	if err != nil {
		return err
	}
	_, source, _, err := ws.Plans.FindIntentByID(sourceID)
	if err != nil {
		return err
	}
	derived, _, err := ws.Editor.Derive(source, ws.Clock.Today())
	if err != nil {
		return err
	}
	fmt.Printf("derived %q\n", derived.IntentID)
	return nil
}

func runIntentEdit(logger *logrus.Logger, id, role, objective, action, subject string, retroactive bool) error {
	ws, err := open(logger)
	if err != nil {
		return err
	}
	_, existing, _, err := ws.Plans.FindIntentByID(id)
	if err != nil {
		return err
	}
	next := existing.Clone()
	if role != "" {
		next.Role = role
	}
	if objective != "" {
		next.Objective = objective
	}
	if action != "" {
		next.Action = action
	}
	if subject != "" {
		next.Subject = subject
	}
	_, summaries, err := ws.Editor.Edit(id, next, retroactive)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		logger.WithField("date", s.Date.String()).Infof("rewrote %d session(s)", s.Count)
	}
	return nil
}

func runTimesheetCompile(logger *logrus.Logger, compilerID string) error {
	ws, err := open(logger)
	if err != nil {
		return err
	}
	compiler, ok := ws.Registry.Compiler(compilerID)
	if !ok {
		return fmt.Errorf("unknown compiler %q", compilerID)
	}
	log, err := ws.Logs.GetOrCreate(ws.Clock.Today())
	if err != nil {
		return err
	}
	byID, err := ws.Plans.IntentsOn(ws.Clock.Today())
	if err != nil {
		return err
	}
	ts, err := ws.Timesheets.Compile(log, byID, compiler)
	if err != nil {
		return err
	}
	signingIDs := ws.Config.SigningIDs[compilerID]
	ts, err = ws.Timesheets.Sign(ts, signingIDs)
	if err != nil {
		return err
	}
	path, err := ws.Timesheets.Store(ts)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runTimesheetVerify(logger *logrus.Logger, path string) error {
	ws, err := open(logger)
	if err != nil {
		return err
	}
	data, err := storage.ReadText(path)
	if err != nil {
		return err
	}
	ts, err := canon.UnmarshalTimesheet(path, string(data))
	if err != nil {
		return err
	}
	ok, err := ws.Timesheets.Verify(ts)
	if err != nil {
		return err
	}
	fmt.Println(ok)
	return nil
}
