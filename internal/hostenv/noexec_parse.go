package hostenv

import (
	"path"
	"slices"
	"strconv"
	"strings"
)

// mount is a mounted filesystem, reduced to what matters for running the probe.
type mount struct {
	point  string
	noexec bool
}

// parseMountinfo reads /proc/self/mountinfo. Per-mount options are field 6;
// superblock options are the third field after the " - " separator.
func parseMountinfo(content string) []mount {
	var out []mount
	for line := range strings.Lines(content) {
		head, tail, ok := strings.Cut(line, " - ")
		fields := strings.Fields(head)
		if !ok || len(fields) < 6 {
			continue
		}
		m := mount{point: unescapeOctal(fields[4]), noexec: hasNoExec(fields[5])}
		if super := strings.Fields(tail); len(super) >= 3 && hasNoExec(super[2]) {
			m.noexec = true
		}
		out = append(out, m)
	}
	return out
}

// parseProcMounts reads the fstab-shaped /proc/mounts.
func parseProcMounts(content string) []mount {
	var out []mount
	for line := range strings.Lines(content) {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		out = append(out, mount{point: unescapeOctal(fields[1]), noexec: hasNoExec(fields[3])})
	}
	return out
}

func hasNoExec(opts string) bool {
	return slices.Contains(strings.Split(opts, ","), "noexec")
}

// unescapeOctal decodes the \ooo escapes procfs uses for blanks and backslashes.
func unescapeOctal(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// owningMount returns the deepest mount containing p.
func owningMount(p string, mounts []mount) (mount, bool) {
	if p == "" {
		return mount{}, false
	}
	p = path.Clean(strings.ReplaceAll(p, `\`, "/"))

	var best mount
	found := false
	for _, m := range mounts {
		point := path.Clean(m.point)
		if !within(p, point) {
			continue
		}
		if !found || len(point) > len(best.point) {
			best, found = mount{point: point, noexec: m.noexec}, true
		}
	}
	return best, found
}

func within(p, dir string) bool {
	switch {
	case dir == "/":
		return strings.HasPrefix(p, "/")
	case p == dir:
		return true
	}
	return strings.HasPrefix(p, dir+"/")
}
