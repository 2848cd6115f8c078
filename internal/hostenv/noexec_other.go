//go:build !linux

package hostenv

// NoExecMount is only implemented on linux.
func NoExecMount(string) (string, bool) { return "", false }
