// Package version holds the cm version string. Default is "dev"; release
// builds set it via: go build -ldflags "-X cm/cli/internal/version.Version=v1.0.0".
// Commit may be set the same way; when it is empty, the VCS revision embedded
// by the Go toolchain is used.
package version

import "runtime/debug"

// Version is the cm version. Set at build time for releases.
var Version = "dev"

// Commit is the short git commit hash. Set at build time for dev builds via ldflags.
var Commit = ""

var readBuildInfo = debug.ReadBuildInfo

// String returns the version string for display.
// For dev builds with a known commit, returns "dev (abc1234)"; otherwise returns Version.
func String() string {
	if Version != "dev" {
		return Version
	}
	c := Commit
	if c == "" {
		c = buildRevision()
	}
	if c == "" {
		return Version
	}
	return Version + " (" + c + ")"
}

func buildRevision() string {
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 7 {
				return s.Value[:7]
			}
			return s.Value
		}
	}
	return ""
}
