// Package version carries the build identity, injected at link time.
package version

var (
	// Version is the release version, set via -ldflags.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "unknown"
)
