// Command faffgraph is a diagnostics tool that renders a day's session
// timeline and the plan(s) it resolves against as a Graphviz dot graph.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/emicklei/dot"
	"github.com/goccy/go-graphviz"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/faffhub/faff-go/internal/version"
	"github.com/faffhub/faff-go/model"
	"github.com/faffhub/faff-go/workspace"
)

// FaffGraphOptions holds one invocation's resolved flags.
type FaffGraphOptions struct {
	dateArg    string
	outputPath string
}

// FaffGraph walks one day's Log and the plans it resolves against, building
// a dot.Graph of session -> intent -> plan-source edges.
type FaffGraph struct {
	logger *logrus.Logger
	ws     *workspace.Workspace
	graph  *dot.Graph
}

// NewFaffGraph constructs a FaffGraph over an already-open Workspace.
func NewFaffGraph(logger *logrus.Logger, ws *workspace.Workspace) *FaffGraph {
	return &FaffGraph{logger: logger, ws: ws, graph: dot.NewGraph(dot.Directed)}
}

// Render builds the graph for d: one node per session (labeled with its
// index and start/end; the note is not shown), one node per intent it
// resolves to, one node per
// plan source that contributed that intent, with edges session->intent and
// intent->source.
func (g *FaffGraph) Render(d model.Date) error {
	log, err := g.ws.Logs.GetOrCreate(d)
	if err != nil {
		return err
	}
	plans, err := g.ws.Plans.PlansValidOn(d)
	if err != nil {
		return err
	}
	byID := make(map[string]model.Intent)
	owner := make(map[string]string)
	for source, p := range plans {
		for _, in := range p.Intents {
			byID[in.IntentID] = in
			owner[in.IntentID] = source
		}
	}

	sourceNodes := make(map[string]dot.Node)
	intentNodes := make(map[string]dot.Node)

	for i, s := range log.Timeline {
		label := fmt.Sprintf("Session %d: %s", i, s.Start.Format("15:04"))
		if s.End != nil {
			label += "-" + s.End.Format("15:04")
		} else {
			label += " (open)"
		}
		sessionNode := g.graph.Node(label)

		in, ok := s.Intent.Resolve(byID)
		intentLabel := s.Intent.IntentID
		if ok {
			intentLabel = fmt.Sprintf("%s\n%s", in.IntentID, in.Alias)
		}
		intentNode, seen := intentNodes[s.Intent.IntentID]
		if !seen {
			intentNode = g.graph.Node(intentLabel)
			intentNodes[s.Intent.IntentID] = intentNode
		}
		g.graph.Edge(sessionNode, intentNode, "")

		if source, ok := owner[s.Intent.IntentID]; ok {
			sourceNode, seen := sourceNodes[source]
			if !seen {
				sourceNode = g.graph.Node(fmt.Sprintf("source: %s", source))
				sourceNodes[source] = sourceNode
			}
			g.graph.Edge(intentNode, sourceNode, "")
		}
	}
	return nil
}

func main() {
	app := kingpin.New("faffgraph", "Render a day's session timeline as a Graphviz dot graph.")
	app.Version(fmt.Sprintf("faffgraph %s", version.Version)).Author("faffhub")
	app.HelpFlag.Short('h')

	dateArg := app.Arg("date", "Date to render (ISO or natural language; defaults to today).").String()
	output := app.Flag("output", "Dot file to write (defaults to stdout).").Short('o').String()
	pngOutput := app.Flag("png", "Also render a PNG alongside --output.").String()
	debug := app.Flag("debug", "Enable debugging level.").Bool()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := logrus.New()
	logger.Level = logrus.InfoLevel
	if *debug {
		logger.Level = logrus.DebugLevel
	}
	logger.Infof("%s", version.Version)
	logger.Infof("OS: %s/%s", runtime.GOOS, runtime.GOARCH)

	cwd, err := os.Getwd()
	if err != nil {
		logger.Error(err)
		os.Exit(1)
	}
	ws, err := workspace.Open(cwd, logger)
	if err != nil {
		logger.Error(err)
		os.Exit(1)
	}

	d := ws.Clock.Today()
	if *dateArg != "" {
		d, err = ws.Clock.ParseNaturalDate(*dateArg)
		if err != nil {
			logger.Error(err)
			os.Exit(1)
		}
	}

	g := NewFaffGraph(logger, ws)
	if err := g.Render(d); err != nil {
		logger.Error(err)
		os.Exit(1)
	}

	opts := &FaffGraphOptions{dateArg: *dateArg, outputPath: *output}
	if opts.outputPath == "" {
		fmt.Println(g.graph.String())
		return
	}
	f, err := os.OpenFile(opts.outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		logger.Error(err)
		os.Exit(1)
	}
	defer f.Close()
	f.Write([]byte(g.graph.String()))

	if *pngOutput != "" {
		if err := renderPNG(g.graph.String(), *pngOutput); err != nil {
			logger.Error(err)
			os.Exit(1)
		}
	}
}

// renderPNG shells the dot source through go-graphviz's in-process layout
// engine, avoiding a dependency on an external `dot` binary being installed.
func renderPNG(dotSource, outputPath string) error {
	gv := graphviz.New()
	graph, err := graphviz.ParseBytes([]byte(dotSource))
	if err != nil {
		return err
	}
	defer graph.Close()
	return gv.RenderFilename(graph, graphviz.PNG, outputPath)
}
