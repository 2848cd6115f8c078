package probe

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// PrimeSudo runs "sudo -v" attached to the operator's terminal so the later
// "sudo -n" launch does not need to ask for a password.
func PrimeSudo(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, "sudo", "-v")
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sudo -v: %w", err)
	}
	return nil
}
