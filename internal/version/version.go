// Package version exposes build information injected via ldflags.
package version

import "runtime"

// Set at build time via -ldflags "-X ...".
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Info holds build information for logging and the stats endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the build information of the running binary.
func Get() Info {
	return Info{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
}
