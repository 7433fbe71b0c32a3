// Package build exposes build-time metadata injected via ldflags.
package build

import "fmt"

// Version, Commit, and Branch are set at build time by:
//
//	-ldflags "-X github.com/joestump/bmrk/internal/build.Version=... ..."
var (
	Version = "dev"
	Commit  = "unknown"
	Branch  = "unknown"
)

// String renders the build info on one line for `bmrk version` and the
// agent's /healthz response.
func String() string {
	return fmt.Sprintf("bmrk %s (%s, %s)", Version, Commit, Branch)
}

// UserAgent is sent by the data service client.
func UserAgent() string {
	return "bmrk/" + Version
}
