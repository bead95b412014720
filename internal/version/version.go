// Package version carries the process version stamped into exported
// telemetry batches.
package version

// Version is the semantic version of this build.
const Version = "0.3.1"
