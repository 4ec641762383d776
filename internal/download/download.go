package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/subforge/subforge/internal/logging"
)

// Options configures a Downloader. Zero values select the defaults.
type Options struct {
	Client         *http.Client
	UserAgent      string
	MaxAttempts    int
	InitialBackoff time.Duration
	Logger         *slog.Logger
}

// Downloader performs resumable, retried, integrity-checked transfers.
type Downloader struct {
	client         *http.Client
	userAgent      string
	maxAttempts    int
	initialBackoff time.Duration
	logger         *slog.Logger

	// wait blocks between attempts; replaced in tests to observe delays.
	wait func(ctx context.Context, d time.Duration) error
	// freeSpace reports available bytes in dir; nil disables the preflight.
	freeSpace func(ctx context.Context, dir string) (uint64, error)

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewDownloader creates a downloader.
func NewDownloader(opts Options) *Downloader {
	d := &Downloader{
		client:         opts.Client,
		userAgent:      opts.UserAgent,
		maxAttempts:    opts.MaxAttempts,
		initialBackoff: opts.InitialBackoff,
		logger:         logging.OrNop(opts.Logger),
		wait:           sleepContext,
		freeSpace:      diskFree,
		inflight:       make(map[string]struct{}),
	}
	if d.client == nil {
		// No overall timeout: model downloads can run for a long time. The
		// caller's context bounds the transfer.
		d.client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}
	if d.userAgent == "" {
		d.userAgent = DefaultUserAgent
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = DefaultMaxAttempts
	}
	if d.initialBackoff <= 0 {
		d.initialBackoff = DefaultInitialBackoff
	}
	return d
}

// Download fetches task.URL into task.TargetPath through task.TempPath.
// onProgress may be nil.
func (d *Downloader) Download(ctx context.Context, task Task, onProgress ProgressFunc) error {
	if err := task.validate(); err != nil {
		return err
	}
	if err := d.claim(task.TempPath); err != nil {
		return err
	}
	defer d.release(task.TempPath)

	schedule := d.backoffSchedule()
	log := d.logger.With(slog.String(logging.FieldURL, task.URL))

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := schedule.NextBackOff()
			log.Debug("retrying download", slog.Int(logging.FieldAttempt, attempt), slog.Duration("delay", delay))
			if err := d.wait(ctx, delay); err != nil {
				return fmt.Errorf("download %s: %w", task.URL, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("download %s: %w", task.URL, err)
		}

		task.Attempt = attempt
		err := d.attempt(ctx, task, onProgress)
		if err == nil {
			return nil
		}

		// Cancellation keeps the partial file for a later resume.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("download %s: %w", task.URL, ctxErr)
		}
		if isPermanent(err) {
			var mismatch *ChecksumMismatchError
			if errors.As(err, &mismatch) {
				removeQuietly(task.TempPath)
			}
			log.Warn("download aborted", slog.Int(logging.FieldAttempt, attempt), logging.Error(err))
			return err
		}

		lastErr = err
		log.Warn("download attempt failed", slog.Int(logging.FieldAttempt, attempt), logging.Error(err))
	}

	removeQuietly(task.TempPath)
	return &FailedError{URL: task.URL, Attempts: d.maxAttempts, Err: lastErr}
}

// attempt runs probe, transfer, checksum and publish once.
func (d *Downloader) attempt(ctx context.Context, task Task, onProgress ProgressFunc) error {
	probe, err := d.probe(ctx, task.URL)
	if err != nil {
		return err
	}

	offset, err := prepareTemp(task.TempPath, probe)
	if err != nil {
		return err
	}

	if probe.Total > 0 {
		if err := d.ensureSpace(ctx, filepath.Dir(task.TempPath), uint64(probe.Total-offset)); err != nil {
			return err
		}
	}

	written, err := d.transfer(ctx, task, offset, probe.Total, onProgress)
	if err != nil {
		return err
	}

	if task.ExpectedSHA256 != "" {
		if err := VerifyFile(task.TempPath, task.ExpectedSHA256, task.URL); err != nil {
			return err
		}
	}

	if err := publish(task.TempPath, task.TargetPath); err != nil {
		return err
	}

	d.logger.Info("download complete",
		slog.String(logging.FieldURL, task.URL),
		slog.String(logging.FieldPath, task.TargetPath),
		slog.String(logging.FieldBytes, humanize.Bytes(uint64(written))),
		slog.Int(logging.FieldAttempt, task.Attempt),
	)
	return nil
}

// prepareTemp decides the resume offset and discards partial content that
// cannot be resumed.
func prepareTemp(tempPath string, probe probeResult) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(tempPath), 0o755); err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}

	info, err := os.Stat(tempPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat temp file: %w", err)
	}

	size := info.Size()
	if size > 0 && probe.AcceptRanges && probe.Total > 0 && size < probe.Total {
		return size, nil
	}
	if err := os.Truncate(tempPath, 0); err != nil {
		return 0, fmt.Errorf("discard partial file: %w", err)
	}
	return 0, nil
}

// transfer performs the GET and streams the body into the temp file.
// It returns the number of bytes present in the temp file.
func (d *Downloader) transfer(ctx context.Context, task Task, offset, probedTotal int64, onProgress ProgressFunc) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		if start, ok := contentRangeStart(resp.Header.Get("Content-Range")); ok && start != offset {
			removeQuietly(task.TempPath)
			return 0, fmt.Errorf("server resumed at byte %d, expected %d", start, offset)
		}
	case resp.StatusCode == http.StatusOK:
		if offset > 0 {
			// Range was ignored; appending would corrupt the file.
			d.logger.Info("server ignored range request, restarting from zero",
				slog.String(logging.FieldURL, task.URL),
				slog.Int64("offset", offset),
			)
			offset = 0
		}
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0:
		removeQuietly(task.TempPath)
		return 0, &StatusError{Method: http.MethodGet, URL: task.URL, StatusCode: resp.StatusCode, Status: resp.Status}
	default:
		return 0, &StatusError{Method: http.MethodGet, URL: task.URL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	total := probedTotal
	if resp.ContentLength >= 0 {
		total = offset + resp.ContentLength
	}

	file, err := os.OpenFile(task.TempPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open temp file: %w", err)
	}
	defer file.Close()

	if err := file.Truncate(offset); err != nil {
		return 0, fmt.Errorf("truncate temp file: %w", err)
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek temp file: %w", err)
	}

	written := offset
	buf := make([]byte, ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("write temp file: %w", err)
			}
			written += int64(n)
			if onProgress != nil {
				onProgress(Progress{
					URL:     task.URL,
					Attempt: task.Attempt,
					Written: written,
					Total:   total,
					Resumed: offset > 0,
				})
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, fmt.Errorf("read response body: %w", readErr)
		}
	}

	if err := file.Sync(); err != nil {
		return written, fmt.Errorf("sync temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return written, fmt.Errorf("close temp file: %w", err)
	}

	if total > 0 && written != total {
		if written > total {
			removeQuietly(task.TempPath)
		}
		return written, fmt.Errorf("%w: got %d of %d bytes", ErrShortTransfer, written, total)
	}
	return written, nil
}

// publish renames the finished temp file onto the target path.
func publish(tempPath, targetPath string) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return fmt.Errorf("publish %s: %w", targetPath, err)
	}
	return nil
}

func (d *Downloader) ensureSpace(ctx context.Context, dir string, need uint64) error {
	if d.freeSpace == nil || need == 0 {
		return nil
	}
	free, err := d.freeSpace(ctx, dir)
	if err != nil {
		d.logger.Debug("free space check skipped", slog.String(logging.FieldPath, dir), logging.Error(err))
		return nil
	}
	if free < need {
		return &InsufficientSpaceError{Dir: dir, Need: need, Free: free}
	}
	return nil
}

func (d *Downloader) backoffSchedule() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     d.initialBackoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Minute,
	}
	b.Reset()
	return b
}

func (d *Downloader) claim(tempPath string) error {
	key := filepath.Clean(tempPath)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inflight[key]; busy {
		return fmt.Errorf("%w: %s", ErrTempInUse, tempPath)
	}
	d.inflight[key] = struct{}{}
	return nil
}

func (d *Downloader) release(tempPath string) {
	d.mu.Lock()
	delete(d.inflight, filepath.Clean(tempPath))
	d.mu.Unlock()
}

// contentRangeStart parses the first byte position of "bytes 100-199/200".
func contentRangeStart(header string) (int64, bool) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "bytes ") {
		return 0, false
	}
	spec := strings.TrimPrefix(header, "bytes ")
	dash := strings.IndexByte(spec, '-')
	if dash <= 0 {
		return 0, false
	}
	start, err := strconv.ParseInt(spec[:dash], 10, 64)
	if err != nil {
		return 0, false
	}
	return start, true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func diskFree(ctx context.Context, dir string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = os.Truncate(path, 0)
	}
}
