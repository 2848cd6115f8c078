// Command pin-probe downloads every probe archive for a release tag and writes
// a SHA256SUMS manifest that can be served as gtipsync's verify.checksum_url.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lucky845/gtipsync/internal/fetch"
	"github.com/lucky845/gtipsync/internal/host/github"
	"github.com/lucky845/gtipsync/internal/platform"
)

type pinned struct {
	asset  string
	digest string
}

func main() {
	tag := flag.String("tag", platform.PinnedVersion, "probe release tag")
	base := flag.String("base", platform.DefaultBaseURL, "release download base URL")
	out := flag.String("out", "SHA256SUMS", "manifest path")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall download timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := github.NewClient(github.TokenFromEnv(), github.UserAgent("pin-probe"))
	if err := run(ctx, client, *tag, *base, *out); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, getter fetch.Getter, tag, base, out string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return errors.New("tag is required")
	}

	tmp, err := os.MkdirTemp("", "pin-probe-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	f := fetch.New(getter)
	seen := make(map[string]bool)
	var pins []pinned
	for _, pair := range platform.Supported() {
		goos, goarch, _ := strings.Cut(pair, "/")
		target, err := platform.Resolve(goos, goarch, tag, base)
		if err != nil {
			return err
		}
		if seen[target.AssetName] {
			continue
		}
		seen[target.AssetName] = true

		archive, err := f.Fetch(ctx, target, filepath.Join(tmp, target.AssetName))
		if err != nil {
			return err
		}
		pins = append(pins, pinned{asset: target.AssetName, digest: archive.SHA256})
	}

	return writeManifest(out, pins)
}

func writeManifest(path string, pins []pinned) error {
	if len(pins) == 0 {
		return errors.New("no archives to pin")
	}
	sort.Slice(pins, func(i, j int) bool { return pins[i].asset < pins[j].asset })

	var sb strings.Builder
	for _, p := range pins {
		fmt.Fprintf(&sb, "%s  %s\n", p.digest, p.asset)
	}
	// #nosec G306 -- manifest is public data
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("✅ Wrote %s (%d entries)\n", path, len(pins))
	return nil
}
