// Package version carries the build version, set at link time with
// -ldflags "-X csguard/internal/shared/version.Version=...".
package version

var Version = "dev"
