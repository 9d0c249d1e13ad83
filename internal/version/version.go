// Package version carries build metadata for cmd/faffctl and
// cmd/faffgraph, printed at --version, grounded on
// gravitational-teleconsole's version/print.go.
package version

import "fmt"

// Version, BuildDate, and GitCommit are overridden at build time via
// -ldflags "-X github.com/faffhub/faff-go/internal/version.Version=...".
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Print writes "<prefix> <version>" to stdout via prefix, and additionally
// the build date/commit when verbose is set.
func Print(prefix string, verbose bool) {
	fmt.Printf("%s %s\n", prefix, Version)
	if verbose {
		fmt.Printf("Built on %s. Git: %s\n", BuildDate, GitCommit)
	}
}
