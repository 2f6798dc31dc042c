// Package buildinfo carries build-time metadata injected via ldflags.
package buildinfo

// Set at build time:
//
//	go build -ldflags "-X github.com/mkallio/skycast-go/internal/buildinfo.Version=v1.2.3"
var (
	Version   = "dev"
	BuildDate = "unknown"
)
