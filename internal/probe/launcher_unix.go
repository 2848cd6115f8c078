//go:build !windows

package probe

import (
	"fmt"
	"os/exec"
	"syscall"
)

// DefaultLauncher returns the pty launcher.
func DefaultLauncher() Launcher { return PTYLauncher{} }

// LauncherByName maps "pty", "pipe" or "" to a Launcher.
func LauncherByName(name string) (Launcher, error) {
	switch name {
	case "", "pty":
		return PTYLauncher{}, nil
	case "pipe":
		return PipeLauncher{}, nil
	}
	return nil, fmt.Errorf("unknown launcher %q", name)
}

// killTree makes context cancellation kill every process the probe started,
// and bounds Wait when a leftover descendant still holds an output pipe.
// ownGroup puts the child in a new process group. The pty launcher passes
// false since setsid already makes the child a group leader.
func killTree(cmd *exec.Cmd, ownGroup bool) {
	if ownGroup {
		if cmd.SysProcAttr == nil {
			cmd.SysProcAttr = &syscall.SysProcAttr{}
		}
		cmd.SysProcAttr.Setpgid = true
	}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative pid addresses the whole process group.
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = waitDelay
}
