// Package twitlog carries release metadata for the twitlog module.
package twitlog

// Version is the twitlog release, reported by `twitlog version`.
const Version = "v0.1.0"
