// Package version holds the build version, set at link time with
// -ldflags "-X weave/internal/shared/version.Version=...".
package version

var Version = "0.3.0-dev"
