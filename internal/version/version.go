package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build information for `diodescout version`.
func String() string {
	return fmt.Sprintf("diodescout %s\n  commit: %s\n  built:  %s\n", Version, GitSHA, BuildTime)
}
