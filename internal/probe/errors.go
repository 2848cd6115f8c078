package probe

import (
	"fmt"
	"time"

	"github.com/lucky845/gtipsync/internal/model"
)

// ExecutionError reports a probe that could not start or exited non-zero.
type ExecutionError struct {
	ExitCode int // -1 when the process never produced a status
	Stderr   string
	Cause    error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("probe exited with status %d", e.ExitCode)
	if e.Cause != nil {
		msg = "probe failed: " + e.Cause.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// TimeoutError reports a session that outlived its deadline. Partial holds
// whatever had been collected when the child was killed.
type TimeoutError struct {
	After   time.Duration
	Partial model.ScanResult
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("probe session timed out after %s", e.After)
}

// IncompleteResultError reports a clean exit that produced no usable entries.
type IncompleteResultError struct {
	Lines   int // transcript length
	Entries int
}

func (e *IncompleteResultError) Error() string {
	return fmt.Sprintf("probe output had no translate host block (%d lines read, %d entries)", e.Lines, e.Entries)
}
