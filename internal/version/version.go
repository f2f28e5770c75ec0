// Package version holds the libforge release identity, set at link time:
//
//	go build -ldflags "-X git.home.luguber.info/inful/libforge/internal/version.Version=v0.3.0"
package version

import "fmt"

// Version is the release tag.
var Version = "unknown"

// Build metadata set alongside Version.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by `libforge version` and
// recorded in the run ledger.
func String() string {
	if GitCommit == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s (%s, built %s)", Version, GitCommit, BuildTime)
}
