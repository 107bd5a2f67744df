//go:build !unix

package fsx

// Cross-device detection is only wired for unix errnos.
func isEXDEV(error) bool { return false }
