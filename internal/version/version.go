// Package version holds build metadata, overridden at link time:
//
//	go build -ldflags "-X github.com/keshon/domme-music/internal/version.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import "runtime"

var (
	AppName        = "Domme Music"
	AppDescription = "Per-server music queues for Discord, played by an external audio renderer."
	BuildDate      = ""
	GoVersion      = runtime.Version()
)
