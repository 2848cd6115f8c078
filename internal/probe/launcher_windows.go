//go:build windows

package probe

import (
	"fmt"
	"os/exec"
)

// DefaultLauncher returns the pipe launcher; windows has no pty support here.
func DefaultLauncher() Launcher { return PipeLauncher{} }

// LauncherByName maps a launcher name to a Launcher. "pty" falls back to pipes.
func LauncherByName(name string) (Launcher, error) {
	switch name {
	case "", "pty", "pipe":
		return PipeLauncher{}, nil
	}
	return nil, fmt.Errorf("unknown launcher %q", name)
}

// killTree keeps the default kill on cancel and bounds Wait when a
// descendant still holds an output pipe.
func killTree(cmd *exec.Cmd, _ bool) {
	cmd.WaitDelay = waitDelay
}
