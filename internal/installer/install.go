package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/subforge/subforge/internal/acquire"
	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/ledger"
	"github.com/subforge/subforge/internal/logging"
	"github.com/subforge/subforge/internal/transaction"
)

const eventBuffer = 64

// InstallOptions adjusts a single install.
type InstallOptions struct {
	// Model selects the Whisper model preset for catalog.WhisperModel.
	Model string
}

// Install acquires id in the background and streams its events. The
// channel always ends with one terminal event and is then closed. Progress
// events are dropped rather than block the install when the reader falls
// behind, and other events stop waiting once ctx is done. The terminal
// event never blocks: when the buffer is full the oldest queued event makes
// way for it, so a caller that cancels and walks away still lets the
// install release its lock.
func (s *Service) Install(ctx context.Context, id catalog.ID, opts InstallOptions) <-chan Event {
	events := make(chan Event, eventBuffer)
	go func() {
		defer close(events)
		s.install(ctx, id, opts, events)
	}()
	return events
}

// InstallWait runs Install and blocks until it finishes, passing every
// event to onEvent (which may be nil).
func (s *Service) InstallWait(ctx context.Context, id catalog.ID, opts InstallOptions, onEvent func(Event)) (Event, error) {
	var last Event
	for ev := range s.Install(ctx, id, opts) {
		if onEvent != nil {
			onEvent(ev)
		}
		last = ev
	}
	if last.Type == EventFailed {
		return last, last.Err
	}
	return last, nil
}

// InstallAll installs ids with bounded concurrency. onEvent is never called
// concurrently. The returned error joins every failure.
func (s *Service) InstallAll(ctx context.Context, ids []catalog.ID, opts InstallOptions, onEvent func(Event)) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	emit := func(ev Event) {
		if onEvent == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		onEvent(ev)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := s.InstallWait(gctx, id, opts, emit); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
				mu.Unlock()
			}
			// One failure must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (s *Service) install(ctx context.Context, id catalog.ID, opts InstallOptions, events chan Event) {
	opID := uuid.New().String()
	log := s.logger.With(logging.FieldDependency, id, "operation_id", opID)

	base := Event{ID: opID, Dependency: id}
	out := eventStream{ch: events, clock: s.clock}
	fail := func(err error) {
		ev := base
		ev.Type = EventFailed
		ev.Err = err
		ev.Kind = acquire.Classify(err)
		ev.Hint = acquire.Hint(err)
		ev.Message = err.Error()
		log.Warn("install failed", logging.Error(err), "kind", ev.Kind.String())
		out.finish(ev)
	}

	lock, err := transaction.AcquireLock(ctx, s.paths.Locks(), string(id))
	if err != nil {
		fail(err)
		return
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("release install lock", logging.Error(err))
		}
	}()

	started := base
	started.Type = EventStarted
	started.Percent = 0
	out.send(ctx, started)

	journal := transaction.NewJournal(string(id))
	journalDir := s.paths.Journal()
	s.adoptInterrupted(journal, journalDir, log)
	if err := journal.Save(journalDir); err != nil {
		log.Warn("save install journal", logging.Error(err))
	}

	model := opts.Model
	if id == catalog.WhisperModel && model == "" {
		model = s.defaultModel
	}

	var current string
	req := acquire.Request{
		Dependency: id,
		GOOS:       s.goos,
		GOARCH:     s.goarch,
		Model:      model,
		Progress: func(p acquire.Progress) {
			dirty := false
			if p.Strategy != "" && p.Strategy != current {
				if current != "" {
					journal.Finish(transaction.StateFailed, nil)
				}
				current = p.Strategy
				journal.Begin(p.Strategy)
				dirty = true

				ev := base
				ev.Type = EventStrategy
				ev.Strategy = p.Strategy
				ev.Percent = -1
				ev.Message = p.Message
				out.send(ctx, ev)
			}
			if p.TempPath != "" && !tracked(journal, p.TempPath) {
				journal.TrackTemp(p.TempPath)
				dirty = true
			}
			if dirty {
				if err := journal.Save(journalDir); err != nil {
					log.Warn("save install journal", logging.Error(err))
				}
			}
			if p.Percent < 0 && p.Written == 0 {
				return
			}
			ev := base
			ev.Type = EventProgress
			ev.Strategy = p.Strategy
			ev.Percent = p.Percent
			ev.Written = p.Written
			ev.Total = p.Total
			ev.Message = p.Message
			out.trySend(ev)
		},
	}

	result, err := s.acquirer.Acquire(ctx, req)
	if err != nil {
		journal.Finish(transaction.StateFailed, err)
		if saveErr := journal.Save(journalDir); saveErr != nil {
			log.Warn("save install journal", logging.Error(saveErr))
		}
		// A canceled install keeps its journal and partial downloads so the
		// next run can resume; any other failure cleans up.
		if acquire.Classify(err) != acquire.KindCanceled {
			if discardErr := journal.Discard(); discardErr != nil {
				log.Warn("discard install journal", logging.Error(discardErr))
			}
		}
		fail(err)
		return
	}

	journal.Finish(transaction.StateCompleted, nil)
	if err := s.record(ctx, id, result); err != nil {
		_ = journal.Save(journalDir)
		fail(err)
		return
	}
	if err := journal.Complete(); err != nil {
		log.Warn("complete install journal", logging.Error(err))
	}

	log.Info("install complete", logging.FieldStrategy, result.Strategy, "version", result.Entry.Version)
	done := base
	done.Type = EventCompleted
	done.Strategy = result.Strategy
	done.Percent = 100
	done.Version = result.Entry.Version
	done.Path = result.Entry.ResolvedPath
	done.Message = fmt.Sprintf("%s %s installed via %s", id, result.Entry.Version, result.Strategy)
	out.finish(done)
}

// adoptInterrupted folds journals left by earlier interrupted installs of
// the same dependency into journal. The install lock is held, so none of
// them belongs to a running install.
func (s *Service) adoptInterrupted(journal *transaction.Journal, dir string, log *slog.Logger) {
	prev, err := transaction.Interrupted(dir)
	if err != nil {
		log.Warn("list interrupted installs", logging.Error(err))
		return
	}
	for _, j := range prev {
		if j.Dependency != journal.Dependency {
			continue
		}
		if err := journal.Adopt(j); err != nil {
			log.Warn("adopt interrupted install", logging.Error(err), "journal", j.ID)
			continue
		}
		log.Debug("resuming interrupted install", "journal", j.ID, "temp_files", len(j.TempFiles))
	}
}

// eventStream is the sending side of one install's events. install is its
// only sender.
type eventStream struct {
	ch    chan Event
	clock Clock
}

// send waits for buffer space unless ctx is done, in which case ev is
// dropped.
func (e eventStream) send(ctx context.Context, ev Event) {
	ev.Time = e.clock.Now()
	select {
	case e.ch <- ev:
	case <-ctx.Done():
	}
}

// trySend drops ev when the buffer is full.
func (e eventStream) trySend(ev Event) {
	ev.Time = e.clock.Now()
	select {
	case e.ch <- ev:
	default:
	}
}

// finish delivers the terminal event without blocking, evicting the oldest
// queued event while the buffer is full.
func (e eventStream) finish(ev Event) {
	ev.Time = e.clock.Now()
	for {
		select {
		case e.ch <- ev:
			return
		default:
		}
		select {
		case <-e.ch:
		default:
		}
	}
}

// record writes the winning entry and any companions in one ledger update.
func (s *Service) record(ctx context.Context, id catalog.ID, result acquire.Result) error {
	err := s.ledger.Set(ctx, func(v ledger.Versions) ledger.Versions {
		v = v.With(id, result.Entry)
		for cid, entry := range result.Companions {
			v = v.With(cid, entry)
		}
		return v
	})
	if err != nil {
		return fmt.Errorf("record %s in ledger: %w", id, err)
	}
	return nil
}

func tracked(j *transaction.Journal, path string) bool {
	for _, p := range j.TempFiles {
		if p == path {
			return true
		}
	}
	return false
}
