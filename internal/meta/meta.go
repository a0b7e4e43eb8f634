// Package meta holds build metadata.
package meta

// Version is set at build time with -ldflags "-X .../internal/meta.Version=...".
var Version = "dev"
