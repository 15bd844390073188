// Package version holds build-time firmware identification, injected via
// linker flags so the same source tree can stamp every image it produces
// without a checked-in version file.
package version

// Build information (injected via ldflags - must NOT have default values)
var (
	Version   string
	GitSHA    string
	BuildDate string
)
