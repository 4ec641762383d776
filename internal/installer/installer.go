// Package installer runs dependency installs end to end: it serializes
// installs per dependency, journals them, drives the strategy chain and
// records results in the version ledger.
package installer

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"runtime"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork

	"github.com/subforge/subforge/internal/acquire"
	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/config"
	"github.com/subforge/subforge/internal/download"
	"github.com/subforge/subforge/internal/ledger"
	"github.com/subforge/subforge/internal/logging"
	"github.com/subforge/subforge/internal/release"
)

// Acquirer runs the strategy chain. *acquire.Selector satisfies it.
type Acquirer interface {
	Acquire(ctx context.Context, req acquire.Request) (acquire.Result, error)
}

// UpdateSource reports the latest upstream versions. *release.Client
// satisfies it.
type UpdateSource interface {
	LatestOf(ctx context.Context, repos ...string) (release.Release, string, error)
	LatestPyPI(ctx context.Context, project string) (string, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Acquirer Acquirer
	Ledger   *ledger.Ledger
	Updates  UpdateSource
	Paths    config.Paths
	GOOS     string
	GOARCH   string
	// DefaultModel is installed when a request names no model.
	DefaultModel string
	Concurrency  int
	Clock        Clock
	Logger       *slog.Logger
}

// Service installs dependencies and reports on them.
type Service struct {
	acquirer     Acquirer
	ledger       *ledger.Ledger
	updates      UpdateSource
	paths        config.Paths
	goos         string
	goarch       string
	defaultModel string
	concurrency  int
	clock        Clock
	logger       *slog.Logger

	closers []func() error
}

// NewService creates a service from explicit collaborators.
func NewService(d Deps) *Service {
	s := &Service{
		acquirer:     d.Acquirer,
		ledger:       d.Ledger,
		updates:      d.Updates,
		paths:        d.Paths,
		goos:         d.GOOS,
		goarch:       d.GOARCH,
		defaultModel: d.DefaultModel,
		concurrency:  d.Concurrency,
		clock:        d.Clock,
		logger:       logging.OrNop(d.Logger),
	}
	if s.goos == "" {
		s.goos = runtime.GOOS
	}
	if s.goarch == "" {
		s.goarch = runtime.GOARCH
	}
	if s.defaultModel == "" {
		s.defaultModel = catalog.DefaultModel
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	return s
}

// Options adjusts Open for tests and embedding.
type Options struct {
	GOOS   string
	GOARCH string
	// HTTPClient is shared by downloads and release lookups.
	HTTPClient *http.Client
	// Runner replaces the os/exec runner.
	Runner acquire.Runner
	// Registry replaces the compiled model checksums.
	Registry catalog.Registry
	// SearchDirs replaces the conventional executable directories.
	SearchDirs []string
	Logger     *slog.Logger
}

// Open wires a Service from configuration: the ledger backend, download
// engine, release client, optional signing keyring and strategy selector.
// Call Close when done.
func Open(cfg *config.Config, opts Options) (*Service, error) {
	logger := logging.OrNop(opts.Logger)

	var keyring openpgp.EntityList
	if cfg.Signing.Keyring != "" {
		kr, err := release.LoadKeyring(cfg.Signing.Keyring)
		if err != nil {
			return nil, fmt.Errorf("load signing keyring: %w", err)
		}
		keyring = kr
	}

	led, closeLedger, err := openLedger(cfg, logger)
	if err != nil {
		return nil, err
	}

	client := release.NewClient(release.Options{
		HTTPClient: opts.HTTPClient,
		APIBase:    cfg.GitHub.APIBase,
		Token:      cfg.GitHub.Token,
		UserAgent:  cfg.Download.UserAgent,
		Logger:     logger,
	})
	downloader := download.NewDownloader(download.Options{
		Client:         opts.HTTPClient,
		UserAgent:      cfg.Download.UserAgent,
		MaxAttempts:    cfg.Download.MaxAttempts,
		InitialBackoff: cfg.Download.InitialBackoff,
		Logger:         logger,
	})

	runner := opts.Runner
	if runner == nil {
		runner = acquire.ExecRunner{Timeout: cfg.Process.Timeout}
	}
	env := &acquire.Env{
		Runner:     runner,
		Downloader: downloader,
		Releases:   client,
		Paths: acquire.Paths{
			Bin:    cfg.Paths.Bin,
			Cache:  cfg.Paths.Cache,
			Tools:  cfg.Paths.Tools,
			Models: cfg.Paths.Models,
			Venvs:  cfg.Paths.Venvs,
		},
		Registry:     registryFor(cfg, opts.Registry),
		ModelBaseURL: cfg.Models.BaseURL,
		Keyring:      keyring,
		SearchDirs:   opts.SearchDirs,
		Logger:       logger,
	}

	s := NewService(Deps{
		Acquirer:     acquire.NewSelector(env, cfg.Strategies),
		Ledger:       led,
		Updates:      client,
		Paths:        cfg.Paths,
		GOOS:         opts.GOOS,
		GOARCH:       opts.GOARCH,
		DefaultModel: cfg.Models.Default,
		Concurrency:  cfg.Concurrency,
		Logger:       logger,
	})
	if closeLedger != nil {
		s.closers = append(s.closers, closeLedger)
	}
	return s, nil
}

// registryFor layers configured model digests over the compiled-in ones.
func registryFor(cfg *config.Config, override catalog.Registry) catalog.Registry {
	if override != nil {
		return override
	}
	if len(cfg.Models.Checksums) == 0 {
		return catalog.DefaultRegistry
	}
	merged := maps.Clone(catalog.DefaultRegistry)
	maps.Copy(merged, cfg.Models.Checksums)
	return merged
}

func openLedger(cfg *config.Config, logger *slog.Logger) (*ledger.Ledger, func() error, error) {
	var (
		store   ledger.Store
		closeFn func() error
	)
	switch cfg.Ledger.Backend {
	case config.BackendSQLite:
		sqlite, err := ledger.OpenSQLiteStore(cfg.Paths.LedgerDB())
		if err != nil {
			return nil, nil, fmt.Errorf("open ledger: %w", err)
		}
		store, closeFn = sqlite, sqlite.Close
	default:
		store = ledger.NewTOMLStore(cfg.Paths.LedgerFile())
	}

	led, err := ledger.New(store, cfg.Paths.LedgerLock(), logger)
	if err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return nil, nil, err
	}
	return led, closeFn, nil
}

// Ledger exposes the version ledger.
func (s *Service) Ledger() *ledger.Ledger {
	return s.ledger
}

// Paths returns the managed directories.
func (s *Service) Paths() config.Paths {
	return s.paths
}

// Close releases resources held by Open.
func (s *Service) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
