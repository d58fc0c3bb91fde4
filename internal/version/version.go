// Package version holds build information stamped in via ldflags.
package version

import "fmt"

var (
	// Version is the semantic version of the build.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)

// Info returns a human-readable version string.
func Info() string {
	return fmt.Sprintf("crateview %s (commit %s, built %s)", Version, Commit, Date)
}
