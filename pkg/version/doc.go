// Package version provides small, dependency-free helpers for comparing probe
// release tags and deciding whether a requested tag may be used.
//
// The probe is pinned to one release tag. Asset names changed between probe
// releases (the optimized Windows build first shipped in 1.10), so callers
// compare tags numerically here instead of as strings: "1.8" < "1.10".
//
// Version model
//   - Supports semver-like strings in the form "vMAJOR.MINOR[.PATCH]" with optional
//     prerelease/build metadata (e.g., "v1.10-rc1", "1.8+build3").
//   - Prerelease precedence follows SemVer: "1.10-rc1" < "1.10".
//   - "dev" and empty versions are not comparable.
package version
