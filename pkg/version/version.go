// Package version holds the build metadata of the heatmap binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// Build metadata, set with -ldflags "-X github.com/Sumatoshi-tech/heatmap/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const revisionKey = "vcs.revision"

// InitBinaryVersion fills unset metadata from the module build info.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	if Commit != "none" {
		return
	}

	for _, setting := range info.Settings {
		if setting.Key == revisionKey {
			Commit = setting.Value
		}
	}
}

// String returns the one-line version banner.
func String() string {
	return fmt.Sprintf("heatmap %s (commit: %s, built: %s)", Version, Commit, Date)
}
