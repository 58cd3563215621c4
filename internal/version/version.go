// Package version holds build metadata injected via ldflags.
package version

import "fmt"

// CatalogSchema is the version of the CUE attribute catalog schema this
// build understands.
const CatalogSchema = "1"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build metadata for --version output.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s, catalog schema v%s)", Version, Commit, Date, CatalogSchema)
}
