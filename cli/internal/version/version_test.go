package version

import (
	"runtime/debug"
	"testing"
)

func TestString(t *testing.T) {
	savedVersion, savedCommit, savedRead := Version, Commit, readBuildInfo
	defer func() { Version, Commit, readBuildInfo = savedVersion, savedCommit, savedRead }()

	withRevision := func(rev string) func() (*debug.BuildInfo, bool) {
		return func() (*debug.BuildInfo, bool) {
			return &debug.BuildInfo{Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: rev}}}, true
		}
	}
	noInfo := func() (*debug.BuildInfo, bool) { return nil, false }

	tests := []struct {
		name    string
		version string
		commit  string
		read    func() (*debug.BuildInfo, bool)
		want    string
	}{
		{"dev with commit", "dev", "abc1234", noInfo, "dev (abc1234)"},
		{"dev no commit", "dev", "", noInfo, "dev"},
		{"dev from build info", "dev", "", withRevision("0123456789abcdef"), "dev (0123456)"},
		{"dev short revision", "dev", "", withRevision("abc"), "dev (abc)"},
		{"release ignores commit", "v1.0.0", "abc1234", withRevision("0123456789"), "v1.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit, readBuildInfo = tt.version, tt.commit, tt.read
			if got := String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
