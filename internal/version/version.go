// Package version holds build metadata for the RAG engine binary,
// injected via ldflags.
package version

//nolint:revive // Set via ldflags at build time.
var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the git revision the binary was built from.
	Commit = "unknown"
)
