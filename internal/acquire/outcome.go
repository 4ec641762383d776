package acquire

import (
	"context"

	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/ledger"
)

// Outcome is the result of one strategy attempt. It is one of Installed,
// Unavailable or Fatal.
type Outcome interface {
	isOutcome()
}

// Installed reports success.
type Installed struct {
	Version string
	Path    string
	// Companions holds executables installed alongside the dependency,
	// such as ffprobe with ffmpeg.
	Companions map[catalog.ID]ledger.Entry
}

// Unavailable means the strategy declined or failed in a way that lets the
// next strategy run.
type Unavailable struct {
	Reason         string
	ManagerInvoked bool
	// ExitCode of the last external command, or -1 when none ran.
	ExitCode int
}

// Fatal aborts the strategy chain.
type Fatal struct {
	Reason string
	Err    error
}

func (Installed) isOutcome()   {}
func (Unavailable) isOutcome() {}
func (Fatal) isOutcome()       {}

// Strategy is one ordered way of obtaining a dependency. Implementations are
// stateless across calls.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req Request) Outcome
}

// Progress is a coarse progress report from a running strategy.
type Progress struct {
	Strategy string
	// Percent is 0-100, or -1 when unknown.
	Percent int
	Message string
	// Written, Total and TempPath are set during downloads.
	Written  int64
	Total    int64
	TempPath string
}

// ProgressFunc receives progress reports. It must not block.
type ProgressFunc func(Progress)

// Request asks for one dependency on one platform.
type Request struct {
	Dependency catalog.ID
	GOOS       string
	GOARCH     string
	// Model selects the Whisper model preset; empty means the default.
	Model    string
	Progress ProgressFunc
}

func (r Request) report(p Progress) {
	if r.Progress != nil {
		r.Progress(p)
	}
}

// unavailable builds an Unavailable outcome for a strategy that never ran an
// external command.
func unavailable(reason string) Unavailable {
	return Unavailable{Reason: reason, ExitCode: -1}
}

// canceledOutcome converts a context error into a Fatal outcome.
func canceledOutcome(err error) Fatal {
	return Fatal{Reason: "canceled", Err: err}
}
