package probe

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// waitDelay bounds Wait once the probe is gone but a descendant still holds
// one of its output pipes.
const waitDelay = 2 * time.Second

// Channel is a running probe process seen as a byte stream.
type Channel interface {
	// Read returns probe output. io.EOF marks the end of the stream.
	Read(p []byte) (int, error)
	// Write sends keystrokes to the probe.
	Write(p []byte) (int, error)
	// Wait blocks until the process exits. The error is non-nil only when no
	// exit status could be obtained.
	Wait() (int, error)
	// Close releases the stream and unblocks pending reads. Safe to repeat.
	Close() error
	// Stderr returns the tail of the diagnostic stream.
	Stderr() string
}

// Launcher starts a probe process. The process is killed when ctx ends.
type Launcher interface {
	Launch(ctx context.Context, name string, args []string, dir string) (Channel, error)
}

func isEndOfStream(err error) bool {
	return err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.EIO) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}

func exitStatus(err error) (int, error) {
	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		return 0, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode(), nil
	}
	return -1, err
}

const stderrTail = 8 << 10

// tailBuffer keeps the last stderrTail bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - stderrTail; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
