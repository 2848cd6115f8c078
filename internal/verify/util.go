package verify

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	zipLocalHeader = []byte("PK\x03\x04")
	zipEmptyEnd    = []byte("PK\x05\x06")
)

// DetectChecksumAlgorithm infers the digest algorithm from a checksum file name.
func DetectChecksumAlgorithm(filename, defaultAlgo string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.Contains(lower, "sha2-512sums"),
		strings.Contains(lower, "sha512sums"),
		strings.HasSuffix(lower, ".sha512"),
		strings.HasSuffix(lower, ".sha512.txt"):
		return "sha512"
	case strings.Contains(lower, "sha2-256sums"),
		strings.Contains(lower, "sha256sums"),
		strings.HasSuffix(lower, ".sha256"),
		strings.HasSuffix(lower, ".sha256.txt"):
		return "sha256"
	default:
		return defaultAlgo
	}
}

// IsZipFile reports whether path starts with a zip signature.
func IsZipFile(path string) (bool, error) {
	// #nosec G304 -- path is the fetcher's own download target
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, 4)
	if _, err := io.ReadFull(f, head); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(head, zipLocalHeader) || bytes.Equal(head, zipEmptyEnd), nil
}

// FormatSize formats bytes as human-readable size.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
