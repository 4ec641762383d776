package acquire

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/subforge/subforge/internal/download"
	"github.com/subforge/subforge/internal/release"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("x"), KindUnknown},
		{"download exhausted", &download.FailedError{URL: "u", Attempts: 3, Err: errBoom}, KindTransientNetwork},
		{"http status", &download.StatusError{URL: "u", StatusCode: 503, Status: "503 Service Unavailable"}, KindTransientNetwork},
		{"short transfer", fmt.Errorf("copy: %w", download.ErrShortTransfer), KindTransientNetwork},
		{"github fetch", &release.FetchError{Repo: "a/b", StatusCode: 502}, KindTransientNetwork},
		{"net", &net.OpError{Op: "dial", Err: errBoom}, KindTransientNetwork},
		{"checksum", &download.ChecksumMismatchError{Expected: "a", Actual: "b"}, KindIntegrity},
		{"signature", fmt.Errorf("verify: %w", release.ErrSignature), KindIntegrity},
		{"fatal wrapping checksum", &FatalError{Strategy: "release", Err: &download.ChecksumMismatchError{}}, KindIntegrity},
		{"asset", &release.AssetNotFoundError{Tag: "v1"}, KindAssetNotFound},
		{"strategy unavailable", &UnavailableError{Strategy: "brew", Reason: "missing"}, KindStrategyUnavailable},
		{"exhausted", &AcquisitionFailedError{Dependency: "ffmpeg"}, KindAllStrategiesExhausted},
		{"process timeout", &ProcessTimeoutError{Command: "brew install", Timeout: time.Minute}, KindProcessTimeout},
		{"canceled", context.Canceled, KindCanceled},
		{"wrapped canceled", &FatalError{Reason: "canceled", Err: context.Canceled}, KindCanceled},
		{"deadline", context.DeadlineExceeded, KindCanceled},
	}

	seen := map[Kind]bool{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
		seen[tt.want] = true
	}

	for k := KindUnknown; k <= KindCanceled; k++ {
		if !seen[k] {
			t.Errorf("no case covers %v", k)
		}
		if k != KindUnknown && k.String() == "unknown" {
			t.Errorf("kind %d has no name", k)
		}
	}
}

func TestKindRetryable(t *testing.T) {
	if !KindTransientNetwork.Retryable() || !KindProcessTimeout.Retryable() {
		t.Error("transient kinds not retryable")
	}
	if KindIntegrity.Retryable() || KindCanceled.Retryable() {
		t.Error("permanent kinds retryable")
	}
}

func TestHint(t *testing.T) {
	timeout := &ProcessTimeoutError{Command: "apt-get install -y ffmpeg", Timeout: time.Minute}
	if got := Hint(timeout); got == "" || got == Hint(errors.New("x")) {
		t.Errorf("Hint(timeout) = %q", got)
	}
	if got := Hint(&download.FailedError{URL: "u", Attempts: 3, Err: errBoom}); got == "" {
		t.Error("empty hint for network failure")
	}
}

func TestAttemptString(t *testing.T) {
	a := Attempt{Strategy: "native:apt-get", ManagerInvoked: true, ExitCode: 100, Reason: "failed"}
	if got, want := a.String(), "native:apt-get: failed (exit code 100)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	b := Attempt{Strategy: "brew", ExitCode: -1, Reason: "missing"}
	if got, want := b.String(), "brew: missing"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
