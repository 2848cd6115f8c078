package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const appDir = "gtipsync"

// Paths is the on-disk layout of one probe run.
type Paths struct {
	Base     string // root of the layout
	Download string // archives are written here
	Extract  string // cleared and re-expanded on every run
}

// ArchivePath is where the archive for an os/arch pair is stored between runs.
func (p Paths) ArchivePath(osToken, archToken string) string {
	return filepath.Join(p.Download, fmt.Sprintf("GoogleTranslateIpCheck_%s_%s.zip", osToken, archToken))
}

func (p Paths) lockPath() string {
	return filepath.Join(p.Base, ".lock")
}

// Resolve computes the layout rooted at dir. An empty dir falls back to the
// user cache directory, then to the directory holding the running executable.
func Resolve(dir string) (Paths, error) {
	base := strings.TrimSpace(dir)
	if base == "" {
		if cache, err := os.UserCacheDir(); err == nil {
			base = filepath.Join(cache, appDir)
		} else {
			exePath, err := os.Executable()
			if err != nil {
				return Paths{}, fmt.Errorf("determine current executable: %w", err)
			}
			if resolved, err := filepath.EvalSymlinks(exePath); err == nil {
				exePath = resolved
			}
			base = filepath.Dir(exePath)
		}
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve base dir %s: %w", base, err)
	}
	return Paths{
		Base:     abs,
		Download: filepath.Join(abs, "downloads"),
		Extract:  filepath.Join(abs, "extracted"),
	}, nil
}

// Ensure creates the base and download directories.
func (p Paths) Ensure() error {
	for _, dir := range []string{p.Base, p.Download} {
		// #nosec G301 -- workspace dirs are user-owned
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return nil
}

// ErrLocked is returned by Lock when another run holds the workspace.
var ErrLocked = errors.New("workspace is locked by another run")

// Lock takes an OS file lock on the layout so overlapping runs do not share
// the download and extract paths. The kernel drops the lock when the holder
// exits, so a crashed run never blocks the next one. The returned func
// releases it; the file itself stays in place.
func (p Paths) Lock() (func(), error) {
	path := p.lockPath()
	// #nosec G304 -- lock path derived from workspace base
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock %s: %w", path, err)
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		if errors.Is(err, errBusy) {
			return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	// The pid is informational only.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	}
	return func() {
		_ = unlockFile(f)
		_ = f.Close()
	}, nil
}
