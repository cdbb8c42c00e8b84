// Package version exposes build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time, e.g.
// -ldflags "-X github.com/longkey1/chatassist/internal/version.Version=v1.2.3"
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

// Short returns only the version number
func Short() string {
	return Version
}

// Info returns the full version description
func Info() string {
	return fmt.Sprintf("chatassist %s\n  commit: %s\n  built:  %s\n  go:     %s %s/%s",
		Version, CommitSHA, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
