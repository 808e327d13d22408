// Package version exposes build information for the pilgi binary.
//
// Version, commit and build time are set at compile time
// via -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/pilgi/version.Version=1.0.0" ./cmd/pilgi
package version
