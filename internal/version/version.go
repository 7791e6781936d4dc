// Package version carries the build metadata stamped in via ldflags.
package version

import "fmt"

var (
	// Version is the release tag, "dev" for untagged builds.
	Version = "dev"
	// GitCommit is the short hash of the commit the binary was built from.
	GitCommit = "unknown"
	// BuildDate is the build timestamp in RFC 3339.
	BuildDate = "unknown"
)

// String renders the full version line shown by --version.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
