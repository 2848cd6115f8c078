package unpack

import "fmt"

// CorruptArchiveError means the archive could not be read as a zip.
type CorruptArchiveError struct {
	Path  string
	Cause error
}

func (e *CorruptArchiveError) Error() string {
	return fmt.Sprintf("corrupt archive %s: %v", e.Path, e.Cause)
}

func (e *CorruptArchiveError) Unwrap() error { return e.Cause }

// ExecutableNotFoundError means no file in the expanded tree matched the
// expected executable name.
type ExecutableNotFoundError struct {
	Name string
	Dir  string
}

func (e *ExecutableNotFoundError) Error() string {
	return fmt.Sprintf("executable %s not found under %s", e.Name, e.Dir)
}
