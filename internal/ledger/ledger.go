// Package ledger is the durable record of which version of each external
// dependency is installed and where its executable lives.
//
// All reads go through Get and all writes through Set. Set applies a
// transformation to the latest stored record and saves the whole record
// back; writes are serialized by an in-process mutex and a file lock so
// concurrent installs of different dependencies never lose each other's
// updates.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/logging"
)

const lockRetryDelay = 25 * time.Millisecond

// Entry is what the ledger knows about one dependency.
type Entry struct {
	Version      string `toml:"version,omitempty" json:"version,omitempty"`
	ResolvedPath string `toml:"resolved_path,omitempty" json:"resolvedPath,omitempty"`
}

// Installed reports whether the entry records an install.
func (e Entry) Installed() bool {
	return e.Version != ""
}

// Versions is the whole ledger record.
type Versions struct {
	YtDlp          Entry `toml:"yt-dlp" json:"yt-dlp"`
	FFmpeg         Entry `toml:"ffmpeg" json:"ffmpeg"`
	FFprobe        Entry `toml:"ffprobe" json:"ffprobe"`
	WhisperCpp     Entry `toml:"whisper_cpp" json:"whisper.cpp"`
	WhisperModel   Entry `toml:"whisper_model" json:"whisperModel"`
	LibreTranslate Entry `toml:"libretranslate" json:"libreTranslate"`
}

// Entry returns the entry stored for id.
func (v Versions) Entry(id catalog.ID) (Entry, bool) {
	switch id {
	case catalog.YtDlp:
		return v.YtDlp, true
	case catalog.FFmpeg:
		return v.FFmpeg, true
	case catalog.FFprobe:
		return v.FFprobe, true
	case catalog.WhisperCpp:
		return v.WhisperCpp, true
	case catalog.WhisperModel:
		return v.WhisperModel, true
	case catalog.LibreTranslate:
		return v.LibreTranslate, true
	default:
		return Entry{}, false
	}
}

// With returns a copy of v with id's entry replaced.
func (v Versions) With(id catalog.ID, e Entry) Versions {
	switch id {
	case catalog.YtDlp:
		v.YtDlp = e
	case catalog.FFmpeg:
		v.FFmpeg = e
	case catalog.FFprobe:
		v.FFprobe = e
	case catalog.WhisperCpp:
		v.WhisperCpp = e
	case catalog.WhisperModel:
		v.WhisperModel = e
	case catalog.LibreTranslate:
		v.LibreTranslate = e
	}
	return v
}

// Store persists the whole record.
type Store interface {
	// Load returns the stored record, or the zero record when nothing has
	// been saved yet.
	Load(ctx context.Context) (Versions, error)
	Save(ctx context.Context, v Versions) error
	// Delete removes the stored record entirely.
	Delete(ctx context.Context) error
}

// Ledger serializes access to a Store.
type Ledger struct {
	mu     sync.Mutex
	store  Store
	lock   *flock.Flock
	logger *slog.Logger
}

// New creates a ledger over store. lockPath names the file used to
// serialize writers across processes.
func New(store Store, lockPath string, logger *slog.Logger) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger lock dir: %w", err)
	}
	return &Ledger{
		store:  store,
		lock:   flock.New(lockPath),
		logger: logging.OrNop(logger),
	}, nil
}

// Get returns a consistent snapshot of the record.
func (l *Ledger) Get(ctx context.Context) (Versions, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ok, err := l.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return Versions{}, fmt.Errorf("acquire ledger read lock: %w", err)
	}
	if !ok {
		return Versions{}, fmt.Errorf("acquire ledger read lock: %w", ctx.Err())
	}
	defer l.unlock()

	return l.store.Load(ctx)
}

// Set applies update to the latest record and saves the result.
func (l *Ledger) Set(ctx context.Context, update func(Versions) Versions) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.unlock()

	current, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	next := update(current)
	if err := l.store.Save(ctx, next); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// Record stores e for id.
func (l *Ledger) Record(ctx context.Context, id catalog.ID, e Entry) error {
	err := l.Set(ctx, func(v Versions) Versions {
		return v.With(id, e)
	})
	if err == nil {
		l.logger.Info("ledger updated",
			slog.String(logging.FieldDependency, string(id)),
			slog.String("version", e.Version),
			slog.String(logging.FieldPath, e.ResolvedPath),
		)
	}
	return err
}

// Reset clears every entry.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.unlock()

	if err := l.store.Delete(ctx); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	l.logger.Info("ledger reset")
	return nil
}

func (l *Ledger) acquire(ctx context.Context) error {
	ok, err := l.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire ledger lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("acquire ledger lock: %w", ctx.Err())
	}
	return nil
}

func (l *Ledger) unlock() {
	if err := l.lock.Unlock(); err != nil {
		l.logger.Warn("release ledger lock", logging.Error(err))
	}
}
