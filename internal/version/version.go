// Package version provides build-time version information for ClipHub.
// Variables are injected at build time via ldflags:
//
//	-X github.com/HerbHall/cliphub/internal/version.Version=1.2.0
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Build describes the running binary. It is embedded in health responses
// and backup manifests.
type Build struct {
	Version   string `json:"version" yaml:"version"`
	GitCommit string `json:"git_commit" yaml:"git_commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	OS        string `json:"os" yaml:"os"`
	Arch      string `json:"arch" yaml:"arch"`
}

// Current returns the Build of the running binary.
func Current() Build {
	return Build{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Info returns a formatted version string suitable for --version output.
func Info() string {
	b := Current()
	return fmt.Sprintf("ClipHub %s (commit: %s, built: %s, go: %s, %s/%s)",
		b.Version, b.GitCommit, b.BuildDate, b.GoVersion, b.OS, b.Arch)
}

// Short returns just the version string (e.g., "0.1.0" or "dev").
func Short() string {
	return Version
}
