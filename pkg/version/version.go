package version

import (
	"fmt"
	"strconv"
	"strings"
)

type Decision string

const (
	DecisionPinned   Decision = "pinned"   // requested tag is the pinned tag
	DecisionOverride Decision = "override" // different tag, explicitly allowed
	DecisionRefuse   Decision = "refuse"   // different tag without permission
)

// FormatVersionDisplay formats a version string for display, adding "v" prefix if needed.
func FormatVersionDisplay(v string) string {
	if v == "" || v == "dev" {
		return v
	}
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// NormalizeVersion strips the leading "v" prefix and validates that the version
// is semver-like (at least MAJOR.MINOR, optionally with PATCH, prerelease, and/or build metadata).
// "dev", empty strings, and non-semver formats return ("", false).
func NormalizeVersion(v string) (string, bool) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" || trimmed == "dev" {
		return "", false
	}

	normalized := strings.TrimPrefix(trimmed, "v")
	parts := strings.Split(normalized, ".")
	if len(parts) < 2 {
		return "", false
	}

	for i := 0; i < 2; i++ {
		part := parts[i]
		if i == 1 {
			if idx := strings.IndexAny(part, "-+"); idx >= 0 {
				part = part[:idx]
			}
		}
		if _, err := strconv.Atoi(part); err != nil {
			return "", false
		}
	}

	if len(parts) >= 3 {
		patchPart := parts[2]
		if idx := strings.IndexAny(patchPart, "-+"); idx >= 0 {
			patchPart = patchPart[:idx]
		}
		if patchPart != "" {
			if _, err := strconv.Atoi(patchPart); err != nil {
				return "", false
			}
		}
	}

	return normalized, true
}

type semverParts struct {
	major      int
	minor      int
	patch      int
	prerelease []string
}

func parseSemver(normalized string) (semverParts, error) {
	var out semverParts

	base := normalized
	if idx := strings.IndexByte(base, '+'); idx >= 0 {
		base = base[:idx]
	}

	var prerelease string
	if idx := strings.IndexByte(base, '-'); idx >= 0 {
		prerelease = base[idx+1:]
		base = base[:idx]
	}

	parts := strings.Split(base, ".")
	if len(parts) < 2 {
		return semverParts{}, fmt.Errorf("invalid version format %q", normalized)
	}

	var err error
	out.major, err = strconv.Atoi(parts[0])
	if err != nil {
		return semverParts{}, fmt.Errorf("parse major %q: %w", parts[0], err)
	}
	out.minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return semverParts{}, fmt.Errorf("parse minor %q: %w", parts[1], err)
	}
	if len(parts) >= 3 && parts[2] != "" {
		out.patch, err = strconv.Atoi(parts[2])
		if err != nil {
			return semverParts{}, fmt.Errorf("parse patch %q: %w", parts[2], err)
		}
	}

	if prerelease != "" {
		out.prerelease = strings.Split(prerelease, ".")
	}

	return out, nil
}

func comparePrerelease(a, b []string) int {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) == 0 {
		return 1
	}
	if len(b) == 0 {
		return -1
	}

	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ai, bi := a[i], b[i]
		aNum, aErr := strconv.Atoi(ai)
		bNum, bErr := strconv.Atoi(bi)
		aIsNum := aErr == nil
		bIsNum := bErr == nil

		switch {
		case aIsNum && bIsNum:
			if aNum != bNum {
				if aNum < bNum {
					return -1
				}
				return 1
			}
		case aIsNum:
			return -1
		case bIsNum:
			return 1
		default:
			if c := strings.Compare(ai, bi); c != 0 {
				return c
			}
		}
	}

	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// CompareSemver compares two semver-like strings (a leading "v" is allowed).
// Returns -1 if a < b, 0 if a == b, 1 if a > b; build metadata is ignored.
func CompareSemver(a, b string) (int, error) {
	av, err := parseSemver(strings.TrimPrefix(strings.TrimSpace(a), "v"))
	if err != nil {
		return 0, err
	}
	bv, err := parseSemver(strings.TrimPrefix(strings.TrimSpace(b), "v"))
	if err != nil {
		return 0, err
	}

	switch {
	case av.major != bv.major:
		return sign(av.major - bv.major), nil
	case av.minor != bv.minor:
		return sign(av.minor - bv.minor), nil
	case av.patch != bv.patch:
		return sign(av.patch - bv.patch), nil
	}

	return comparePrerelease(av.prerelease, bv.prerelease), nil
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// AtLeast reports whether v >= threshold. Unparseable versions are never at least anything.
func AtLeast(v, threshold string) bool {
	c, err := CompareSemver(v, threshold)
	return err == nil && c >= 0
}

// CheckPin decides whether the requested probe tag may be used instead of the pinned one.
//
// An empty request means "use the pinned tag". A different tag is only accepted with
// allowUnpinned, because asset names and output markers are only known for the pinned release.
func CheckPin(pinned, requested string, allowUnpinned bool) (Decision, string) {
	if strings.TrimSpace(requested) == "" {
		return DecisionPinned, fmt.Sprintf("Using pinned probe release %s", FormatVersionDisplay(pinned))
	}

	pinnedNorm, pinnedOK := NormalizeVersion(pinned)
	reqNorm, reqOK := NormalizeVersion(requested)
	if pinnedOK && reqOK {
		if c, err := CompareSemver(pinnedNorm, reqNorm); err == nil && c == 0 {
			return DecisionPinned, fmt.Sprintf("Using pinned probe release %s", FormatVersionDisplay(pinnedNorm))
		}
	} else if strings.TrimSpace(pinned) == strings.TrimSpace(requested) {
		return DecisionPinned, fmt.Sprintf("Using pinned probe release %s", pinned)
	}

	if !allowUnpinned {
		return DecisionRefuse, fmt.Sprintf("Refusing probe release %s (pinned %s); rerun with --allow-unpinned to proceed.",
			FormatVersionDisplay(requested), FormatVersionDisplay(pinned))
	}
	return DecisionOverride, fmt.Sprintf("Using unpinned probe release %s instead of %s",
		FormatVersionDisplay(requested), FormatVersionDisplay(pinned))
}
