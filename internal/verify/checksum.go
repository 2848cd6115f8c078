package verify

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"path/filepath"
	"strings"
)

// ExtractChecksum finds the digest for assetName in a checksum file. It accepts
// a bare digest or the "<digest>  <name>" lines written by sha256sum.
func ExtractChecksum(data []byte, algo, assetName string) (string, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("checksum file is empty")
	}
	digestLen := expectedDigestLength(algo)
	if isHexDigest(text, digestLen) {
		return strings.ToLower(text), nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		digest := fields[0]
		if !isHexDigest(digest, digestLen) {
			continue
		}
		candidate := filepath.Base(strings.TrimPrefix(fields[len(fields)-1], "*"))
		if candidate == assetName {
			return strings.ToLower(digest), nil
		}
	}

	return "", fmt.Errorf("checksum for %s not found", assetName)
}

// NewHash returns a hash for algo ("sha256" or "sha512").
func NewHash(algo string) (hash.Hash, error) {
	switch strings.ToLower(algo) {
	case "", "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algo)
	}
}

// NormalizeDigest validates a hex digest for algo and lower-cases it.
func NormalizeDigest(digest, algo string) (string, error) {
	trimmed := strings.TrimSpace(digest)
	if !isHexDigest(trimmed, expectedDigestLength(algo)) {
		return "", fmt.Errorf("invalid %s digest %q", algo, digest)
	}
	return strings.ToLower(trimmed), nil
}

// MatchDigest reports an error when actual differs from expected.
func MatchDigest(expected, actual string) error {
	if !strings.EqualFold(strings.TrimSpace(expected), strings.TrimSpace(actual)) {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", strings.ToLower(expected), strings.ToLower(actual))
	}
	return nil
}

func isHexDigest(value string, expectedLen int) bool {
	if value == "" {
		return false
	}
	if expectedLen > 0 && len(value) != expectedLen {
		return false
	}
	if len(value)%2 != 0 {
		return false
	}
	for _, ch := range value {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') && (ch < 'A' || ch > 'F') {
			return false
		}
	}
	return true
}

func expectedDigestLength(algo string) int {
	switch strings.ToLower(algo) {
	case "", "sha256":
		return 64
	case "sha512":
		return 128
	default:
		return 0
	}
}
