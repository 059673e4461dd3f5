// Package version holds build-time identity for the ushadow binaries.
package version

// Version is overridden at build time via -ldflags.
var Version = "dev"

// BinaryName identifies the running process in logs and MCP-style banners.
const BinaryName = "ushadow"
