// Package version exposes build metadata for the packager binary.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds. The Short
// value is also recorded in every release manifest the packager writes.
package version
