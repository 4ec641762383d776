package download

import (
	"errors"
	"time"
)

const (
	// ChunkSize is the buffer size used for both body copies and hashing.
	ChunkSize = 8 * 1024
	// DefaultMaxAttempts bounds the retry loop.
	DefaultMaxAttempts = 3
	// DefaultInitialBackoff is the delay before the second attempt; each
	// subsequent delay doubles.
	DefaultInitialBackoff = time.Second
	// DefaultUserAgent is the User-Agent header sent with requests.
	DefaultUserAgent = "subforge/1.0"
)

// Task describes one transfer. A task is owned by a single in-flight
// download; two downloads must never share a TempPath.
type Task struct {
	URL        string
	TempPath   string
	TargetPath string
	// ExpectedSHA256 is optional. When empty the integrity step is skipped.
	ExpectedSHA256 string
	// Attempt is set by the engine to the current 1-based attempt number.
	Attempt int
}

func (t Task) validate() error {
	switch {
	case t.URL == "":
		return errors.New("download task: URL is required")
	case t.TempPath == "":
		return errors.New("download task: temp path is required")
	case t.TargetPath == "":
		return errors.New("download task: target path is required")
	case t.TempPath == t.TargetPath:
		return errors.New("download task: temp path must differ from target path")
	}
	return nil
}

// Progress is reported after every chunk written to the temp file.
type Progress struct {
	URL     string
	Attempt int
	// Written counts bytes present in the temp file, including resumed bytes.
	Written int64
	// Total is the full size, or 0 when the server did not report one.
	Total int64
	// Resumed reports whether this attempt continued a partial file.
	Resumed bool
}

// Fraction returns Written/Total in [0,1], or 0 when Total is unknown.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Written) / float64(p.Total)
	if f > 1 {
		return 1
	}
	return f
}

// ProgressFunc receives transfer progress. It is called synchronously from
// the transfer loop and must not block.
type ProgressFunc func(Progress)
