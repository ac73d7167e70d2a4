// Package version exposes build-time version metadata.
package version

// Version is stamped via ldflags in release builds:
// go build -ldflags "-X github.com/ddingpy/shelfbuilder/internal/version.Version=v1.2.0".
var Version = "dev"

// Additional build metadata, also stamped via ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version, with the commit appended when stamped.
func String() string {
	if GitCommit == "unknown" || GitCommit == "" {
		return Version
	}
	return Version + " (" + GitCommit + ")"
}
