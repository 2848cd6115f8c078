//go:build !windows

package probe

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// The probe redraws progress on one row; a wide window keeps entry lines
// from wrapping.
var ptySize = &pty.Winsize{Rows: 50, Cols: 240}

// PTYLauncher runs the probe on a pseudo-terminal so it flushes prompts the way
// it would for a person at a console. Stderr is captured separately.
type PTYLauncher struct{}

func (PTYLauncher) Launch(ctx context.Context, name string, args []string, dir string) (Channel, error) {
	// #nosec G204 -- name is the extracted probe or sudo
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	killTree(cmd, false)
	stderr := &tailBuffer{}
	cmd.Stderr = stderr

	f, err := pty.StartWithSize(cmd, ptySize)
	if err != nil {
		return nil, err
	}
	return &ptyChannel{cmd: cmd, f: f, stderr: stderr}, nil
}

type ptyChannel struct {
	cmd    *exec.Cmd
	f      *os.File
	stderr *tailBuffer
	once   sync.Once
}

func (c *ptyChannel) Read(p []byte) (int, error) {
	n, err := c.f.Read(p)
	// Linux reports a hung-up pty as EIO once the child has exited.
	if err != nil && errors.Is(err, syscall.EIO) {
		return n, io.EOF
	}
	return n, err
}

func (c *ptyChannel) Write(p []byte) (int, error) { return c.f.Write(p) }

func (c *ptyChannel) Wait() (int, error) { return exitStatus(c.cmd.Wait()) }

func (c *ptyChannel) Close() error {
	var err error
	c.once.Do(func() { err = c.f.Close() })
	return err
}

func (c *ptyChannel) Stderr() string { return strings.TrimSpace(c.stderr.String()) }
