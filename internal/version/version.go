// Package version holds the release version of the enricher.
package version

// Current is bumped on every release.
const Current = "0.1.0"
