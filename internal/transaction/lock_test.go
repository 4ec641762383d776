package transaction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAcquireLock(t *testing.T) {
	t.Run("creates lock file", func(t *testing.T) {
		dir := t.TempDir()

		lock, err := AcquireLock(context.Background(), dir, "whisper.cpp")
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}
		defer lock.Release()

		lockPath := filepath.Join(dir, "install-whisper.cpp.lock")
		data, err := os.ReadFile(lockPath)
		if err != nil {
			t.Fatalf("lock file not created: %v", err)
		}
		if !strings.Contains(string(data), "dependency=whisper.cpp") {
			t.Errorf("lock metadata = %q", data)
		}
	})

	t.Run("prevents concurrent locks on the same dependency", func(t *testing.T) {
		dir := t.TempDir()
		ctx := context.Background()

		lock1, err := AcquireLock(ctx, dir, "ffmpeg")
		if err != nil {
			t.Fatalf("first AcquireLock failed: %v", err)
		}
		defer lock1.Release()

		_, err = AcquireLock(ctx, dir, "ffmpeg")
		if !errors.Is(err, ErrLockExists) {
			t.Errorf("expected ErrLockExists, got %v", err)
		}
	})

	t.Run("allows different dependencies", func(t *testing.T) {
		dir := t.TempDir()
		ctx := context.Background()

		a, err := AcquireLock(ctx, dir, "ffmpeg")
		if err != nil {
			t.Fatal(err)
		}
		defer a.Release()
		b, err := AcquireLock(ctx, dir, "yt-dlp")
		if err != nil {
			t.Fatalf("lock for a different dependency failed: %v", err)
		}
		defer b.Release()
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := AcquireLock(ctx, t.TempDir(), "ffmpeg"); err == nil {
			t.Error("expected error for cancelled context")
		}
	})

	t.Run("creates directory if needed", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "locks")
		lock, err := AcquireLock(context.Background(), dir, "yt-dlp")
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}
		defer lock.Release()
	})

	t.Run("sanitizes names", func(t *testing.T) {
		dir := t.TempDir()
		lock, err := AcquireLock(context.Background(), dir, "../escape")
		if err != nil {
			t.Fatal(err)
		}
		defer lock.Release()
		if filepath.Dir(lock.Path()) != dir {
			t.Errorf("lock escaped its directory: %s", lock.Path())
		}
	})
}

func TestRelease(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	lock, err := AcquireLock(ctx, dir, "ffmpeg")
	if err != nil {
		t.Fatal(err)
	}
	path := lock.Path()
	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file not removed")
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release failed: %v", err)
	}

	again, err := AcquireLock(ctx, dir, "ffmpeg")
	if err != nil {
		t.Fatalf("re-acquire after release failed: %v", err)
	}
	again.Release()
}

func TestStaleLockRecovery(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "install-ffmpeg.lock")
	if err := os.WriteFile(lockPath, []byte("pid=1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-StaleLockThreshold - time.Minute)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	lock, err := AcquireLock(context.Background(), dir, "ffmpeg")
	if err != nil {
		t.Fatalf("stale lock not recovered: %v", err)
	}
	lock.Release()
}

func TestAcquireLock_DeadOwnerIsStale(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "install-yt-dlp.lock")
	// Well above any pid_max, so no such process exists.
	if err := os.WriteFile(lockPath, []byte("pid=1073741823\ndependency=yt-dlp\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	lock, err := AcquireLock(context.Background(), dir, "yt-dlp")
	if err != nil {
		t.Fatalf("lock of a dead process not recovered: %v", err)
	}
	defer lock.Release()

	data, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), fmt.Sprintf("pid=%d\n", os.Getpid())) {
		t.Errorf("lock metadata = %q, want current pid", data)
	}
}

func TestAcquireLock_LiveOwnerError(t *testing.T) {
	dir := t.TempDir()
	held, err := AcquireLock(context.Background(), dir, "ffmpeg")
	if err != nil {
		t.Fatal(err)
	}
	defer held.Release()

	_, err = AcquireLock(context.Background(), dir, "ffmpeg")
	var heldErr *LockHeldError
	if !errors.As(err, &heldErr) {
		t.Fatalf("error = %T %v, want *LockHeldError", err, err)
	}
	if !errors.Is(err, ErrLockExists) {
		t.Error("LockHeldError does not match ErrLockExists")
	}
	if heldErr.PID != os.Getpid() || heldErr.Path != held.Path() {
		t.Errorf("LockHeldError = %+v", heldErr)
	}
	if !strings.Contains(heldErr.Hint(), held.Path()) {
		t.Errorf("Hint() = %q, want lock path", heldErr.Hint())
	}
}

func TestLockOwner(t *testing.T) {
	tests := []struct {
		data string
		want int
	}{
		{"pid=4242\ndependency=ffmpeg\n", 4242},
		{"dependency=ffmpeg\npid=7\n", 7},
		{"pid=abc\n", 0},
		{"pid=-3\n", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := lockOwner(tt.data); got != tt.want {
			t.Errorf("lockOwner(%q) = %d, want %d", tt.data, got, tt.want)
		}
	}
}
