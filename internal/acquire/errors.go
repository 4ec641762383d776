package acquire

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/download"
	"github.com/subforge/subforge/internal/release"
)

// Attempt records what one strategy did, for the aggregate error.
type Attempt struct {
	Strategy       string
	ManagerInvoked bool
	ExitCode       int
	Reason         string
}

// Err returns the attempt as an *UnavailableError.
func (a Attempt) Err() error {
	return &UnavailableError{Strategy: a.Strategy, Reason: a.Reason, ManagerInvoked: a.ManagerInvoked, ExitCode: a.ExitCode}
}

func (a Attempt) String() string {
	var b strings.Builder
	b.WriteString(a.Strategy)
	b.WriteString(": ")
	b.WriteString(a.Reason)
	if a.ManagerInvoked && a.ExitCode >= 0 {
		fmt.Fprintf(&b, " (exit code %d)", a.ExitCode)
	}
	return b.String()
}

// AcquisitionFailedError is returned once every strategy declined.
type AcquisitionFailedError struct {
	Dependency   catalog.ID
	Attempts     []Attempt
	Instructions string
}

func (e *AcquisitionFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "could not install %s", e.Dependency)
	if len(e.Attempts) == 0 {
		b.WriteString(": no install strategy for this platform")
	} else {
		b.WriteString(": every install strategy failed")
		for _, a := range e.Attempts {
			b.WriteString("\n  - ")
			b.WriteString(a.String())
		}
	}
	return b.String()
}

// Unwrap exposes every declined attempt as an *UnavailableError.
func (e *AcquisitionFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err())
	}
	return errs
}

// Hint returns the manual installation steps.
func (e *AcquisitionFailedError) Hint() string {
	if e.Instructions == "" {
		return "install " + string(e.Dependency) + " manually and make sure it is on PATH"
	}
	return "install it manually:\n" + e.Instructions
}

// FatalError aborts the strategy chain.
type FatalError struct {
	Dependency catalog.ID
	Strategy   string
	Reason     string
	Err        error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("install %s via %s: %s", e.Dependency, e.Strategy, e.Reason)
	}
	return fmt.Sprintf("install %s via %s: %s: %v", e.Dependency, e.Strategy, e.Reason, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// UnavailableError is the error form of an Unavailable outcome.
type UnavailableError struct {
	Strategy       string
	Reason         string
	ManagerInvoked bool
	ExitCode       int
}

func (e *UnavailableError) Error() string {
	return Attempt{Strategy: e.Strategy, Reason: e.Reason, ManagerInvoked: e.ManagerInvoked, ExitCode: e.ExitCode}.String()
}

// ProcessTimeoutError reports an external command that ran past its bound.
// The process has been killed.
type ProcessTimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *ProcessTimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Command, e.Timeout)
}

// Hint returns the next step shown to users.
func (e *ProcessTimeoutError) Hint() string {
	return "run `" + e.Command + "` yourself to see where it stalls, or raise process.timeout in config.lua"
}

// CommandError reports an external command that exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *CommandError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s failed with exit code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s failed with exit code %d (%s)", e.Command, e.ExitCode, e.Output)
}

// Kind classifies errors for callers that react to categories.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransientNetwork
	KindIntegrity
	KindAssetNotFound
	KindStrategyUnavailable
	KindAllStrategiesExhausted
	KindProcessTimeout
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTransientNetwork:
		return "transient_network"
	case KindIntegrity:
		return "integrity"
	case KindAssetNotFound:
		return "asset_not_found"
	case KindStrategyUnavailable:
		return "strategy_unavailable"
	case KindAllStrategiesExhausted:
		return "all_strategies_exhausted"
	case KindProcessTimeout:
		return "process_timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Retryable reports whether retrying the same operation may help.
func (k Kind) Retryable() bool {
	return k == KindTransientNetwork || k == KindProcessTimeout
}

// Classify maps err onto the error taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var (
		timeout     *ProcessTimeoutError
		mismatch    *download.ChecksumMismatchError
		notFound    *release.AssetNotFoundError
		exhausted   *AcquisitionFailedError
		unavailable *UnavailableError
		failed      *download.FailedError
		status      *download.StatusError
		fetch       *release.FetchError
		netErr      net.Error
	)

	switch {
	case errors.As(err, &exhausted):
		return KindAllStrategiesExhausted
	case errors.As(err, &timeout):
		return KindProcessTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &mismatch), errors.Is(err, release.ErrSignature):
		return KindIntegrity
	case errors.As(err, &notFound):
		return KindAssetNotFound
	case errors.As(err, &unavailable):
		return KindStrategyUnavailable
	case errors.As(err, &failed), errors.As(err, &status), errors.As(err, &fetch),
		errors.Is(err, download.ErrShortTransfer), errors.As(err, &netErr):
		return KindTransientNetwork
	default:
		return KindUnknown
	}
}

// Hint returns a concrete next step for err.
func Hint(err error) string {
	var hinter interface{ Hint() string }
	if errors.As(err, &hinter) {
		return hinter.Hint()
	}
	switch Classify(err) {
	case KindTransientNetwork:
		return "check your network connection and retry"
	case KindIntegrity:
		return "the download did not match its published checksum; retry later or install manually"
	case KindCanceled:
		return "the operation was canceled; run the install again to resume"
	default:
		return "re-run with --log-level debug for details"
	}
}
