// Package types defines the configuration and the standard errors shared by
// the twitlog storage toolkit and its commands.
package types
