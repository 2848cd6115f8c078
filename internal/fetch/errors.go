package fetch

import "fmt"

// DownloadError covers transport failures, non-2xx responses, short writes and
// content that fails verification.
type DownloadError struct {
	URL        string
	StatusCode int // zero when no response was received
	Message    string
	Cause      error
}

func (e *DownloadError) Error() string {
	msg := fmt.Sprintf("download %s: %s", e.URL, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("download %s: status %d: %s", e.URL, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *DownloadError) Unwrap() error {
	return e.Cause
}
