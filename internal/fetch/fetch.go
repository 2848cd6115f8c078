// Package fetch downloads the probe archive and verifies it before handing it on.
//
// The archive is streamed to "<dest>.part" and only renamed over dest after
// every check has passed, so a failed run leaves the previous archive intact.
package fetch

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lucky845/gtipsync/internal/model"
	"github.com/lucky845/gtipsync/internal/verify"
)

const maxErrorBody = 2048

// Getter is the HTTP surface the fetcher needs.
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// ProgressFunc observes cumulative bytes written; total is -1 when unknown.
type ProgressFunc func(done, total int64)

// Pins are optional integrity expectations for the downloaded archive.
type Pins struct {
	SHA256         string // expected hex digest
	ChecksumURL    string // SHA256SUMS-style file listing the asset
	MinisignPubKey string // key file path or base64 key
	MinisignSigURL string // detached .minisig for the archive
}

func (p Pins) empty() bool {
	return p.SHA256 == "" && p.ChecksumURL == "" && p.MinisignSigURL == ""
}

// Fetcher downloads archives.
type Fetcher struct {
	client   Getter
	pins     Pins
	progress ProgressFunc
	log      zerolog.Logger
}

type Option func(*Fetcher)

func WithPins(p Pins) Option { return func(f *Fetcher) { f.pins = p } }

func WithProgress(fn ProgressFunc) Option { return func(f *Fetcher) { f.progress = fn } }

func WithLogger(l zerolog.Logger) Option { return func(f *Fetcher) { f.log = l } }

func New(client Getter, opts ...Option) *Fetcher {
	f := &Fetcher{client: client, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads target.URL to dest, overwriting any previous archive.
func (f *Fetcher) Fetch(ctx context.Context, target model.AssetTarget, dest string) (*model.DownloadedArchive, error) {
	url := target.URL
	// #nosec G301 -- download dir is user-owned
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, &DownloadError{URL: url, Message: "create download dir", Cause: err}
	}

	f.log.Info().Str("url", url).Str("dest", dest).Msg("downloading probe archive")

	part := dest + ".part"
	size, digest, err := f.stream(ctx, url, part)
	if err != nil {
		_ = os.Remove(part)
		return nil, err
	}
	if err := f.check(ctx, target, part, size, digest); err != nil {
		_ = os.Remove(part)
		return nil, err
	}
	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return nil, &DownloadError{URL: url, Message: "replace archive", Cause: err}
	}

	f.log.Info().Str("size", verify.FormatSize(size)).Str("sha256", digest).Msg("download complete")
	return &model.DownloadedArchive{Path: dest, Size: size, SHA256: digest}, nil
}

func (f *Fetcher) stream(ctx context.Context, url, path string) (int64, string, error) {
	resp, err := f.client.Get(ctx, url)
	if err != nil {
		return 0, "", &DownloadError{URL: url, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return 0, "", &DownloadError{URL: url, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	// #nosec G304 -- path is derived from the workspace layout
	out, err := os.Create(path)
	if err != nil {
		return 0, "", &DownloadError{URL: url, Message: "create " + path, Cause: err}
	}

	h, _ := verify.NewHash("sha256")
	cw := &countingWriter{total: resp.ContentLength, progress: f.progress}
	n, copyErr := io.Copy(io.MultiWriter(out, h, cw), resp.Body)
	closeErr := out.Close()

	switch {
	case copyErr != nil:
		return 0, "", &DownloadError{URL: url, Message: "write " + path, Cause: copyErr}
	case closeErr != nil:
		return 0, "", &DownloadError{URL: url, Message: "close " + path, Cause: closeErr}
	case resp.ContentLength > 0 && n != resp.ContentLength:
		return 0, "", &DownloadError{URL: url, Message: fmt.Sprintf("short body: got %d of %d bytes", n, resp.ContentLength)}
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

func (f *Fetcher) check(ctx context.Context, target model.AssetTarget, path string, size int64, digest string) error {
	url := target.URL
	if size <= 0 {
		return &DownloadError{URL: url, Message: "empty archive"}
	}
	ok, err := verify.IsZipFile(path)
	if err != nil {
		return &DownloadError{URL: url, Message: "inspect archive", Cause: err}
	}
	if !ok {
		return &DownloadError{URL: url, Message: "response is not a zip archive"}
	}
	if f.pins.empty() {
		return nil
	}

	if f.pins.SHA256 != "" {
		want, err := verify.NormalizeDigest(f.pins.SHA256, "sha256")
		if err != nil {
			return &DownloadError{URL: url, Message: "archive sha256 pin", Cause: err}
		}
		if err := verify.MatchDigest(want, digest); err != nil {
			return &DownloadError{URL: url, Message: "archive sha256 pin", Cause: err}
		}
		f.log.Debug().Msg("archive matches pinned sha256")
	}

	if f.pins.ChecksumURL != "" {
		data, err := f.getSmall(ctx, f.pins.ChecksumURL)
		if err != nil {
			return err
		}
		algo := verify.DetectChecksumAlgorithm(f.pins.ChecksumURL, "sha256")
		if algo != "sha256" {
			return &DownloadError{URL: f.pins.ChecksumURL, Message: "only sha256 checksum files are supported"}
		}
		want, err := verify.ExtractChecksum(data, algo, target.AssetName)
		if err != nil {
			return &DownloadError{URL: f.pins.ChecksumURL, Message: "checksum file", Cause: err}
		}
		if err := verify.MatchDigest(want, digest); err != nil {
			return &DownloadError{URL: url, Message: "checksum file", Cause: err}
		}
		f.log.Debug().Str("checksums", f.pins.ChecksumURL).Msg("archive matches checksum file")
	}

	if f.pins.MinisignSigURL != "" {
		if f.pins.MinisignPubKey == "" {
			return &DownloadError{URL: f.pins.MinisignSigURL, Message: "minisign signature configured without a public key"}
		}
		pub, err := verify.LoadMinisignKey(f.pins.MinisignPubKey)
		if err != nil {
			return &DownloadError{URL: f.pins.MinisignSigURL, Message: "minisign key", Cause: err}
		}
		sig, err := f.getSmall(ctx, f.pins.MinisignSigURL)
		if err != nil {
			return err
		}
		// #nosec G304 -- path is the fetcher's own .part file
		content, err := os.ReadFile(path)
		if err != nil {
			return &DownloadError{URL: url, Message: "read archive", Cause: err}
		}
		if err := verify.VerifyMinisign(content, sig, pub); err != nil {
			return &DownloadError{URL: url, Message: "minisign", Cause: err}
		}
		f.log.Info().Msg("minisign signature verified")
	}
	return nil
}

const maxSidecarSize = 1 << 20

func (f *Fetcher) getSmall(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.Get(ctx, url)
	if err != nil {
		return nil, &DownloadError{URL: url, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DownloadError{URL: url, StatusCode: resp.StatusCode, Message: "sidecar unavailable"}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSidecarSize))
	if err != nil {
		return nil, &DownloadError{URL: url, Message: "read body", Cause: err}
	}
	if len(data) == 0 {
		return nil, &DownloadError{URL: url, Message: "empty body", Cause: errors.New("no content")}
	}
	return data, nil
}

type countingWriter struct {
	done     int64
	total    int64
	progress ProgressFunc
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.done += int64(len(p))
	if w.progress != nil {
		total := w.total
		if total <= 0 {
			total = -1
		}
		w.progress(w.done, total)
	}
	return len(p), nil
}
