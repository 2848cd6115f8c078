package publish

import (
	"fmt"
	"strings"
)

// AuthError means the credential is incomplete. Nothing was sent.
type AuthError struct {
	Missing []string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("publish credential incomplete: missing %s", strings.Join(e.Missing, ", "))
}

// TransportError covers network failures and non-2xx responses.
type TransportError struct {
	StatusCode int // zero when no response was received
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("publish failed with status %d: %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("publish failed: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }
