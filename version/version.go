// Package version holds the build-time version stamp.
package version

// Version is overwritten by -ldflags at release build time.
var Version = "dev"
