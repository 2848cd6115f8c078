// Package unpack expands the probe archive into a clean workspace and locates
// the executable inside it.
package unpack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lucky845/gtipsync/internal/hostenv"
)

// errFound stops the walk once the executable is located.
var errFound = errors.New("found")

// Unpacker replaces the workspace contents with a fresh copy of an archive.
type Unpacker struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Unpacker {
	return &Unpacker{log: log}
}

// Unpack clears workspace, expands archive into it and returns the path of the
// first file whose base name equals exeName, ignoring case.
func (u *Unpacker) Unpack(archive, workspace, exeName string) (string, error) {
	u.clear(workspace)

	// #nosec G301 -- workspace dir is user-owned
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return "", fmt.Errorf("create workspace %s: %w", workspace, err)
	}
	if mount, noexec := hostenv.NoExecMount(workspace); noexec {
		u.log.Warn().Str("workspace", workspace).Str("mount", mount).
			Msg("workspace is on a noexec mount; the probe will fail to start. Set work_dir to another location")
	}

	n, err := u.expand(archive, workspace)
	if err != nil {
		return "", err
	}
	u.log.Debug().Int("files", n).Str("workspace", workspace).Msg("archive expanded")

	exe, err := Find(workspace, exeName)
	if err != nil {
		return "", err
	}
	u.log.Info().Str("path", exe).Msg("located probe executable")
	return exe, nil
}

// clear removes every entry of dir. Failures are logged and skipped.
func (u *Unpacker) clear(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			u.log.Warn().Err(err).Str("dir", dir).Msg("cannot list workspace for cleanup")
		}
		return
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			u.log.Warn().Err(err).Str("path", p).Msg("cannot remove stale workspace entry")
		}
	}
}

func (u *Unpacker) expand(archive, dest string) (int, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return 0, &CorruptArchiveError{Path: archive, Cause: err}
	}
	defer func() { _ = zr.Close() }()

	root, err := filepath.Abs(dest)
	if err != nil {
		return 0, fmt.Errorf("resolve workspace: %w", err)
	}

	count := 0
	for _, f := range zr.File {
		target, err := safeJoin(root, f.Name)
		if err != nil {
			return count, &CorruptArchiveError{Path: archive, Cause: err}
		}
		if f.FileInfo().IsDir() {
			// #nosec G301 -- directories inside the workspace
			if err := os.MkdirAll(target, 0o755); err != nil {
				return count, fmt.Errorf("create %s: %w", target, err)
			}
			continue
		}
		if err := writeEntry(f, target); err != nil {
			var corrupt *CorruptArchiveError
			if errors.As(err, &corrupt) {
				corrupt.Path = archive
			}
			return count, err
		}
		count++
	}
	return count, nil
}

func safeJoin(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes the workspace", name)
	}
	target := filepath.Join(root, clean)
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes the workspace", name)
	}
	return target, nil
}

func writeEntry(f *zip.File, target string) error {
	// #nosec G301 -- parent dirs inside the workspace
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
	}

	rc, err := f.Open()
	if err != nil {
		return &CorruptArchiveError{Cause: fmt.Errorf("open entry %s: %w", f.Name, err)}
	}
	defer func() { _ = rc.Close() }()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	// #nosec G304 -- target was checked by safeJoin
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	// #nosec G110 -- archive comes from a pinned release asset
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return &CorruptArchiveError{Cause: fmt.Errorf("read entry %s: %w", f.Name, err)}
	}
	return out.Close()
}

// Find walks dir in lexical order and returns the first regular file whose
// base name matches name case-insensitively.
func Find(dir, name string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(d.Name(), name) {
			found = path
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", fmt.Errorf("search %s: %w", dir, err)
	}
	if found == "" {
		return "", &ExecutableNotFoundError{Name: name, Dir: dir}
	}
	return found, nil
}
