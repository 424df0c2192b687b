// Package appversion carries the goike build identity injected via ldflags:
//
//	-ldflags="-X github.com/dantte-lp/goike/internal/version.Version=v0.3.0
//	          -X github.com/dantte-lp/goike/internal/version.GitCommit=4f1c2ab
//	          -X github.com/dantte-lp/goike/internal/version.BuildDate=2026-10-01T08:00:00Z"
package appversion

import (
	"fmt"
	"log/slog"
	"runtime"
)

// Version is the semantic version (e.g., "v0.3.0" or "dev").
var Version = "dev"

// GitCommit is the short git commit hash at build time.
var GitCommit = "unknown"

// BuildDate is the RFC 3339 build timestamp.
var BuildDate = "unknown"

// Info is a snapshot of the build identity.
type Info struct {
	Version   string `json:"version"    yaml:"version"`
	GitCommit string `json:"git_commit" yaml:"git_commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// Get returns the build identity of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// Full returns a human-readable multi-line version string.
func Full(binary string) string {
	i := Get()
	return fmt.Sprintf("%s %s\n  commit:  %s\n  built:   %s\n  go:      %s",
		binary, i.Version, i.GitCommit, i.BuildDate, i.GoVersion)
}

// LogAttrs returns the build identity as a slog group for startup logs.
func LogAttrs() slog.Attr {
	i := Get()
	return slog.Group("build",
		slog.String("version", i.Version),
		slog.String("commit", i.GitCommit),
		slog.String("date", i.BuildDate),
		slog.String("go", i.GoVersion),
	)
}
