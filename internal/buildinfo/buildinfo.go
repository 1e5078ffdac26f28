// Package buildinfo exposes compile-time metadata printed by the version command.
package buildinfo

// Overridden via -ldflags "-X main.Version=..." in release builds and copied here at startup.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)
