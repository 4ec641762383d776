package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/subforge/subforge/internal/catalog"
)

// Config is the complete subforge configuration.
type Config struct {
	Paths    Paths
	Download Download
	Process  Process
	Ledger   Ledger
	Log      Log
	GitHub   GitHub
	Models   Models
	Signing  Signing
	// Strategies overrides the strategy order per dependency. Kinds left
	// out are not tried.
	Strategies map[catalog.ID][]catalog.Kind
	// Concurrency bounds how many dependencies install at once.
	Concurrency int
}

// Paths are the directories subforge writes to.
type Paths struct {
	Data   string
	Cache  string
	Bin    string
	Models string
	Tools  string
	Venvs  string
}

// LedgerFile is the TOML ledger location.
func (p Paths) LedgerFile() string { return filepath.Join(p.Data, "versions.toml") }

// LedgerDB is the SQLite ledger location.
func (p Paths) LedgerDB() string { return filepath.Join(p.Data, "subforge.db") }

// LedgerLock guards the ledger across processes.
func (p Paths) LedgerLock() string { return filepath.Join(p.Data, "versions.lock") }

// Locks holds per-dependency install locks.
func (p Paths) Locks() string { return filepath.Join(p.Data, "locks") }

// Journal holds install journals.
func (p Paths) Journal() string { return filepath.Join(p.Data, "journal") }

// Download tunes the verified download engine.
type Download struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	UserAgent      string
}

// Process bounds external commands.
type Process struct {
	Timeout time.Duration
}

// Ledger backends.
const (
	BackendTOML   = "toml"
	BackendSQLite = "sqlite"
)

// Ledger selects the version ledger backend.
type Ledger struct {
	Backend string
}

// Log configures logging.
type Log struct {
	Level  string
	Format string
	File   string
}

// GitHub configures release lookups.
type GitHub struct {
	Token   string
	APIBase string
}

// Models configures Whisper model downloads.
type Models struct {
	BaseURL string
	Default string
	// Checksums overrides or extends the compiled-in SHA-256 digests by
	// model ID.
	Checksums map[string]string
}

// Signing configures checksum-manifest signature checks.
type Signing struct {
	// Keyring is an armored or binary OpenPGP public keyring. When set,
	// release assets are only installed from signed manifests.
	Keyring string
}

// Default returns the configuration used when no file exists.
func Default(dirs Dirs) *Config {
	return &Config{
		Paths: Paths{
			Data:   dirs.Data,
			Cache:  dirs.Cache,
			Bin:    filepath.Join(dirs.Data, "bin"),
			Models: filepath.Join(dirs.Data, "models"),
			Tools:  filepath.Join(dirs.Data, "tools"),
			Venvs:  filepath.Join(dirs.Data, "venvs"),
		},
		Download: Download{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
		},
		Process: Process{Timeout: 10 * time.Minute},
		Ledger:  Ledger{Backend: BackendTOML},
		Log:     Log{Level: "info", Format: "text"},
		GitHub:  GitHub{APIBase: "https://api.github.com"},
		Models: Models{
			BaseURL: catalog.DefaultModelBaseURL,
			Default: catalog.DefaultModel,
		},
		Concurrency: 2,
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	for field, dir := range map[string]string{
		"paths.data":   c.Paths.Data,
		"paths.cache":  c.Paths.Cache,
		"paths.bin":    c.Paths.Bin,
		"paths.models": c.Paths.Models,
		"paths.tools":  c.Paths.Tools,
		"paths.venvs":  c.Paths.Venvs,
	} {
		if err := validateDir(dir); err != nil {
			return &ValidationError{Field: field, Message: err.Error()}
		}
	}

	if c.Download.MaxAttempts < 1 || c.Download.MaxAttempts > 10 {
		return &ValidationError{Field: "download.max_attempts", Message: fmt.Sprintf("must be between 1 and 10 (got %d)", c.Download.MaxAttempts)}
	}
	if c.Download.InitialBackoff < 0 || c.Download.InitialBackoff > time.Minute {
		return &ValidationError{Field: "download.initial_backoff", Message: "must be between 0s and 1m"}
	}
	if c.Process.Timeout < time.Second {
		return &ValidationError{Field: "process.timeout", Message: "must be at least 1s"}
	}
	if c.Ledger.Backend != BackendTOML && c.Ledger.Backend != BackendSQLite {
		return &ValidationError{Field: "ledger.backend", Message: fmt.Sprintf("must be %q or %q (got %q)", BackendTOML, BackendSQLite, c.Ledger.Backend)}
	}
	if !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, c.Log.Level) {
		return &ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return &ValidationError{Field: "log.format", Message: fmt.Sprintf("must be \"text\" or \"json\" (got %q)", c.Log.Format)}
	}
	if err := validateHTTPURL(c.GitHub.APIBase); err != nil {
		return &ValidationError{Field: "github.api", Message: err.Error()}
	}
	if err := validateHTTPURL(c.Models.BaseURL); err != nil {
		return &ValidationError{Field: "models.base_url", Message: err.Error()}
	}
	if _, err := catalog.LookupModel(c.Models.Default); err != nil {
		return &ValidationError{Field: "models.default", Message: err.Error()}
	}
	for id, sum := range c.Models.Checksums {
		if _, err := catalog.LookupModel(id); err != nil {
			return &ValidationError{Field: "models.checksums", Message: err.Error()}
		}
		if !isSHA256Hex(sum) {
			return &ValidationError{Field: "models.checksums." + id, Message: "must be a 64-character hex SHA-256 digest"}
		}
	}
	if c.Concurrency < 1 || c.Concurrency > 8 {
		return &ValidationError{Field: "concurrency", Message: fmt.Sprintf("must be between 1 and 8 (got %d)", c.Concurrency)}
	}
	return nil
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

func validateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("path must be absolute or start with ~/: %s", dir)
	}
	return nil
}

// validateHTTPURL accepts http and https URLs with a host.
func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL must use https:// or http:// scheme (got: %q)", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host: %q", raw)
	}
	return nil
}

func isSHA256Hex(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
