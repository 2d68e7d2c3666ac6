//go:build !linux

package serial

// DefaultOpener is the Opener used when WithOpener isn't given.
var DefaultOpener Opener = OpenPortable
