//go:build linux

package hostenv

import "os"

// NoExecMount reports whether path sits on a noexec mount, and which mount
// point decided it. Any read problem yields false.
func NoExecMount(path string) (string, bool) {
	mounts := readMounts()
	m, ok := owningMount(path, mounts)
	if !ok {
		return "", false
	}
	return m.point, m.noexec
}

// readMounts prefers mountinfo since it carries superblock options.
func readMounts() []mount {
	// #nosec G304 -- fixed procfs path
	if data, err := os.ReadFile("/proc/self/mountinfo"); err == nil {
		if mounts := parseMountinfo(string(data)); len(mounts) > 0 {
			return mounts
		}
	}
	// #nosec G304 -- fixed procfs path
	data, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return nil
	}
	return parseProcMounts(string(data))
}
