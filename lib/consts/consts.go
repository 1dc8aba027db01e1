// Package consts houses some constants needed across smresolve
package consts

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version contains the current semantic version of smresolve.
const Version = "0.3.0"

// FullVersion returns the maximally full version and build information for
// the currently running executable.
func FullVersion() string {
	goVersionArch := fmt.Sprintf("%s, %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Sprintf("%s (%s)", Version, goVersionArch)
	}

	if commit, dirty := vcsRevision(buildInfo); commit != "" {
		if dirty {
			commit += "-dirty"
		}
		return fmt.Sprintf("%s (commit/%s, %s)", Version, commit, goVersionArch)
	}

	return fmt.Sprintf("%s (%s)", Version, goVersionArch)
}

// VersionDetails returns the version details as a map, for the json output
// of the version command.
func VersionDetails() map[string]interface{} {
	details := map[string]interface{}{
		"version":    "v" + Version,
		"go_version": runtime.Version(),
		"go_os":      runtime.GOOS,
		"go_arch":    runtime.GOARCH,
	}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		if commit, dirty := vcsRevision(buildInfo); commit != "" {
			if dirty {
				commit += "-dirty"
			}
			details["commit"] = commit
		}
	}

	return details
}

func vcsRevision(buildInfo *debug.BuildInfo) (commit string, dirty bool) {
	for _, s := range buildInfo.Settings {
		switch s.Key {
		case "vcs.revision":
			commitLen := 10
			if len(s.Value) < commitLen {
				commitLen = len(s.Value)
			}
			commit = s.Value[:commitLen]
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	return commit, dirty
}
