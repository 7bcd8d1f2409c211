// Package version exposes build metadata injected at link time:
//
//	go build -ldflags "-X git.home.luguber.info/inful/sitebuild/internal/version.Version=v1.2.0"
package version

import "fmt"

// Version is the release tag.
var Version = "dev"

// Link-time build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats all metadata on one line.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
