// Package platform maps the running OS/CPU to the probe release asset.
package platform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lucky845/gtipsync/internal/model"
	"github.com/lucky845/gtipsync/pkg/version"
)

const (
	// DefaultBaseURL is the release download root of the probe project.
	DefaultBaseURL = "https://github.com/Ponderfly/GoogleTranslateIpCheck/releases/download"
	// PinnedVersion is the only probe release whose output contract is known.
	PinnedVersion = "1.8"

	// turboSynSince is the first release that ships the optimized win-x64 build.
	turboSynSince = "1.10"

	executableBase = "GoogleTranslateIpCheck"
)

// UnsupportedPlatformError is returned when no release asset exists for the OS/arch pair.
type UnsupportedPlatformError struct {
	OS   string
	Arch string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %s/%s (supported: %s)", e.OS, e.Arch, strings.Join(Supported(), ", "))
}

var goosAliasTable = map[string][]string{
	"osx":   {"darwin", "macos", "macosx", "mac"},
	"win":   {"windows", "win32", "win64"},
	"linux": {},
}

var archAliasTable = map[string][]string{
	"x64":   {"amd64", "x86_64", "x86-64"},
	"arm64": {"aarch64", "armv8"},
	"x86":   {"386", "i386", "i686"},
}

type key struct{ os, arch string }

var suffixTable = map[key]string{
	{"linux", "x64"}:   "linux-x64.zip",
	{"linux", "arm64"}: "linux-arm64.zip",
	{"osx", "x64"}:     "osx-x64.zip",
	{"osx", "arm64"}:   "osx-arm64.zip",
	{"win", "x64"}:     "win-x64.zip",
	{"win", "x86"}:     "win-x86.zip",
}

// normalize maps a raw runtime name onto its canonical release token.
func normalize(value string, table map[string][]string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if _, ok := table[v]; ok {
		return v
	}
	for canonical, aliases := range table {
		for _, alias := range aliases {
			if v == alias {
				return canonical
			}
		}
	}
	return v
}

// NormalizeOS returns the release OS token for a runtime OS name.
func NormalizeOS(goos string) string { return normalize(goos, goosAliasTable) }

// NormalizeArch returns the release arch token for a runtime CPU name.
func NormalizeArch(goarch string) string { return normalize(goarch, archAliasTable) }

// Resolve returns the asset for goos/goarch at the given release tag.
// baseURL may be empty to use DefaultBaseURL. It performs no I/O.
func Resolve(goos, goarch, tag, baseURL string) (model.AssetTarget, error) {
	osToken := NormalizeOS(goos)
	archToken := NormalizeArch(goarch)

	suffix, ok := suffixTable[key{osToken, archToken}]
	if !ok {
		return model.AssetTarget{}, &UnsupportedPlatformError{OS: goos, Arch: goarch}
	}
	if osToken == "win" && archToken == "x64" && version.AtLeast(tag, turboSynSince) {
		suffix = "win-x64.TurboSyn.zip"
	}

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return model.AssetTarget{
		OS:        osToken,
		Arch:      archToken,
		Version:   tag,
		AssetName: suffix,
		URL:       strings.TrimRight(baseURL, "/") + "/" + tag + "/" + suffix,
	}, nil
}

// ExecutableName is the probe binary name inside the archive for goos.
func ExecutableName(goos string) string {
	if NormalizeOS(goos) == "win" {
		return executableBase + ".exe"
	}
	return executableBase
}

// Supported lists the os/arch pairs that have a release asset.
func Supported() []string {
	out := make([]string, 0, len(suffixTable))
	for k := range suffixTable {
		out = append(out, k.os+"/"+k.arch)
	}
	sort.Strings(out)
	return out
}
