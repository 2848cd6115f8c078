package probe

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// PipeLauncher runs the probe with plain pipes. Console programs may buffer
// their output this way, so it is the fallback where no pty is available.
type PipeLauncher struct{}

func (PipeLauncher) Launch(ctx context.Context, name string, args []string, dir string) (Channel, error) {
	// #nosec G204 -- name is the extracted probe or sudo
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	killTree(cmd, true)
	stderr := &tailBuffer{}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &pipeChannel{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

type pipeChannel struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr *tailBuffer
	once   sync.Once
}

func (c *pipeChannel) Read(p []byte) (int, error)  { return c.stdout.Read(p) }
func (c *pipeChannel) Write(p []byte) (int, error) { return c.stdin.Write(p) }
func (c *pipeChannel) Wait() (int, error)          { return exitStatus(c.cmd.Wait()) }
func (c *pipeChannel) Stderr() string              { return strings.TrimSpace(c.stderr.String()) }

func (c *pipeChannel) Close() error {
	var err error
	c.once.Do(func() {
		_ = c.stdin.Close()
		err = c.stdout.Close()
	})
	return err
}
