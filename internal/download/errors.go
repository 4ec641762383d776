package download

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

var (
	// ErrShortTransfer is returned when the body ended before the advertised
	// size. The partial file is kept so the next attempt can resume.
	ErrShortTransfer = errors.New("transfer ended before the expected size")
	// ErrTempInUse is returned when another download in this process already
	// owns the task's temp path.
	ErrTempInUse = errors.New("temp file is owned by another in-flight download")
)

// ChecksumMismatchError reports a completed transfer whose SHA-256 digest
// differs from the expected one. It is never retried.
type ChecksumMismatchError struct {
	URL      string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s:\nactual:   %s\nexpected: %s", e.URL, e.Actual, e.Expected)
}

// Hint returns the next step shown to users.
func (e *ChecksumMismatchError) Hint() string {
	return "the downloaded file is corrupt or was tampered with; retry later or install it manually from " + e.URL
}

// FailedError is returned after the retry envelope is exhausted.
type FailedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("download %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

// Hint returns the next step shown to users.
func (e *FailedError) Hint() string {
	return "check your network connection and retry, or download " + e.URL + " manually"
}

// StatusError is an HTTP response outside the expected set of statuses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %s", e.Method, e.URL, e.Status)
}

// InsufficientSpaceError is returned by the free-space preflight.
type InsufficientSpaceError struct {
	Dir  string
	Need uint64
	Free uint64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("not enough disk space in %s: need %s, have %s",
		e.Dir, humanize.Bytes(e.Need), humanize.Bytes(e.Free))
}

// Hint returns the next step shown to users.
func (e *InsufficientSpaceError) Hint() string {
	return fmt.Sprintf("free at least %s in %s and retry", humanize.Bytes(e.Need-e.Free), e.Dir)
}

// isPermanent reports errors the retry envelope must not retry.
func isPermanent(err error) bool {
	var mismatch *ChecksumMismatchError
	var space *InsufficientSpaceError
	return errors.As(err, &mismatch) || errors.As(err, &space) || errors.Is(err, ErrTempInUse)
}
