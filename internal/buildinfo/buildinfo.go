package buildinfo

import "fmt"

// Set at build time via -ldflags "-X tick/internal/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the version, or the commit for untagged builds.
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	return "dev"
}

// String is the one-line banner printed by `tick version` and at boot.
func String() string {
	return fmt.Sprintf("tick %s (commit %s, built %s)", Short(), Commit, Date)
}
