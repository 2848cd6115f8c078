package unpack

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	body string
	mode os.FileMode
}

func writeZip(t *testing.T, entries ...entry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "probe.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.mode != 0 {
			hdr.SetMode(e.mode)
		}
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestUnpackReplacesWorkspace(t *testing.T) {
	ws := filepath.Join(t.TempDir(), "extract")
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "old"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "stale.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "old", "nested"), []byte("x"), 0o600))

	archive := writeZip(t,
		entry{name: "README.md", body: "docs"},
		entry{name: "GoogleTranslateIpCheck", body: "#!/bin/sh\n", mode: 0o755},
	)

	exe, err := New(zerolog.Nop()).Unpack(archive, ws, "GoogleTranslateIpCheck")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws, "GoogleTranslateIpCheck"), exe)

	names := []string{}
	items, err := os.ReadDir(ws)
	require.NoError(t, err)
	for _, it := range items {
		names = append(names, it.Name())
	}
	assert.ElementsMatch(t, []string{"README.md", "GoogleTranslateIpCheck"}, names)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(exe)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
}

func TestUnpackFindsNestedExecutableIgnoringCase(t *testing.T) {
	archive := writeZip(t,
		entry{name: "a/readme.txt", body: "x"},
		entry{name: "linux-x64/googletranslateipcheck", body: "bin"},
		entry{name: "z/GoogleTranslateIpCheck", body: "later"},
	)
	ws := filepath.Join(t.TempDir(), "extract")

	exe, err := New(zerolog.Nop()).Unpack(archive, ws, "GoogleTranslateIpCheck")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws, "linux-x64", "googletranslateipcheck"), exe)
}

func TestUnpackCorruptArchive(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(bad, []byte("PK\x03\x04 truncated"), 0o600))

	_, err := New(zerolog.Nop()).Unpack(bad, filepath.Join(t.TempDir(), "extract"), "GoogleTranslateIpCheck")
	var corrupt *CorruptArchiveError
	require.True(t, errors.As(err, &corrupt))
	assert.Equal(t, bad, corrupt.Path)
}

func TestUnpackRejectsEscapingEntries(t *testing.T) {
	archive := writeZip(t, entry{name: "../evil", body: "x"})
	parent := t.TempDir()

	_, err := New(zerolog.Nop()).Unpack(archive, filepath.Join(parent, "extract"), "evil")
	var corrupt *CorruptArchiveError
	require.True(t, errors.As(err, &corrupt))

	_, statErr := os.Stat(filepath.Join(parent, "evil"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnpackExecutableMissing(t *testing.T) {
	archive := writeZip(t, entry{name: "other.bin", body: "x"})
	ws := filepath.Join(t.TempDir(), "extract")

	_, err := New(zerolog.Nop()).Unpack(archive, ws, "GoogleTranslateIpCheck.exe")
	var nf *ExecutableNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "GoogleTranslateIpCheck.exe", nf.Name)
	assert.Equal(t, ws, nf.Dir)
}
