package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/logging"
	"github.com/subforge/subforge/internal/platform"
)

// Parser evaluates configuration files with platform detection.
type Parser struct {
	detector platform.Detector
	logger   *slog.Logger
}

// NewParser creates a parser. detector may be nil, in which case no
// platform table is injected.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector, logger: logging.NewNop()}
}

// WithLogger sets the logger used for warnings.
func (p *Parser) WithLogger(logger *slog.Logger) *Parser {
	p.logger = logging.OrNop(logger)
	return p
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// Load reads dirs.ConfigFile(). A missing file yields Default(dirs).
// GITHUB_TOKEN, when set, replaces the configured token.
func (p *Parser) Load(ctx context.Context, dirs Dirs) (*Config, error) {
	cfg := Default(dirs)

	path := dirs.ConfigFile()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		p.logger.Debug("no config file, using defaults", logging.FieldPath, path)
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if len(data) > MaxConfigSize {
			return nil, &ParseError{Message: "config file too large", Detail: fmt.Sprintf("%d bytes, maximum is %d", len(data), MaxConfigSize)}
		}
		if findings := DetectSensitiveData(string(data)); len(findings) > 0 {
			for _, f := range findings {
				p.logger.Warn("possible secret in config file", logging.FieldPath, path, "line", f.Line, "kind", f.PatternName)
			}
		}
		cfg, err = p.ParseString(ctx, string(data), cfg)
		if err != nil {
			return nil, err
		}
	}

	if token := os.Getenv(EnvGitHubToken); token != "" {
		cfg.GitHub.Token = token
	}
	return cfg, nil
}

// ParseString evaluates luaCode and overlays the subforge table onto a copy
// of base.
func (p *Parser) ParseString(ctx context.Context, luaCode string, base *Config) (*Config, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultParseTimeout)
		defer cancel()
	}

	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		if ctx.Err() != nil {
			return nil, &ParseError{Message: "config evaluation timed out", Detail: ctx.Err().Error()}
		}
		return nil, &ParseError{Message: "Lua syntax error", Detail: err.Error()}
	}

	cfg := clone(base)
	if err := extractConfig(L, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ParseError{Message: "config validation failed", Detail: err.Error()}
	}
	return cfg, nil
}

func clone(base *Config) *Config {
	cfg := *base
	cfg.Models.Checksums = maps.Clone(base.Models.Checksums)
	cfg.Strategies = make(map[catalog.ID][]catalog.Kind, len(base.Strategies))
	for id, kinds := range base.Strategies {
		cfg.Strategies[id] = append([]catalog.Kind(nil), kinds...)
	}
	return &cfg
}

// extractConfig reads the global subforge table into cfg. A missing table
// leaves cfg untouched.
func extractConfig(L *lua.LState, cfg *Config) error {
	root := L.GetGlobal(luaGlobal)
	if root == lua.LNil {
		return nil
	}
	table, ok := root.(*lua.LTable)
	if !ok {
		return &ParseError{
			Message: "invalid 'subforge' value",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}

	r := tableReader{}
	if t := r.section(table, luaFieldPaths); t != nil {
		r.path(t, "paths", "data", &cfg.Paths.Data)
		r.path(t, "paths", "cache", &cfg.Paths.Cache)
		r.path(t, "paths", "bin", &cfg.Paths.Bin)
		r.path(t, "paths", "models", &cfg.Paths.Models)
		r.path(t, "paths", "tools", &cfg.Paths.Tools)
		r.path(t, "paths", "venvs", &cfg.Paths.Venvs)
	}
	if t := r.section(table, luaFieldDownload); t != nil {
		r.integer(t, "download", "max_attempts", &cfg.Download.MaxAttempts)
		r.duration(t, "download", "initial_backoff", &cfg.Download.InitialBackoff)
		r.str(t, "download", "user_agent", &cfg.Download.UserAgent)
	}
	if t := r.section(table, luaFieldProcess); t != nil {
		r.duration(t, "process", "timeout", &cfg.Process.Timeout)
	}
	if t := r.section(table, luaFieldLedger); t != nil {
		r.str(t, "ledger", "backend", &cfg.Ledger.Backend)
	}
	if t := r.section(table, luaFieldLog); t != nil {
		r.str(t, "log", "level", &cfg.Log.Level)
		r.str(t, "log", "format", &cfg.Log.Format)
		r.path(t, "log", "file", &cfg.Log.File)
	}
	if t := r.section(table, luaFieldGitHub); t != nil {
		r.str(t, "github", "token", &cfg.GitHub.Token)
		r.str(t, "github", "api", &cfg.GitHub.APIBase)
	}
	if t := r.section(table, luaFieldModels); t != nil {
		r.str(t, "models", "base_url", &cfg.Models.BaseURL)
		r.str(t, "models", "default", &cfg.Models.Default)
		r.checksums(t, &cfg.Models.Checksums)
	}
	if t := r.section(table, luaFieldSigning); t != nil {
		r.path(t, "signing", "keyring", &cfg.Signing.Keyring)
	}
	if t := r.section(table, luaFieldStrategies); t != nil {
		r.strategies(t, cfg.Strategies)
	}
	if v := table.RawGetString(luaFieldConcurrency); v != lua.LNil {
		r.number(v, luaFieldConcurrency, &cfg.Concurrency)
	}
	return r.err
}

// tableReader copies typed fields out of Lua tables and keeps the first
// error it meets.
type tableReader struct {
	err error
}

func (r *tableReader) fail(field, format string, args ...any) {
	if r.err == nil {
		r.err = &ParseError{Message: "invalid value for " + field, Detail: fmt.Sprintf(format, args...)}
	}
}

func (r *tableReader) section(root *lua.LTable, name string) *lua.LTable {
	v := root.RawGetString(name)
	if v == lua.LNil {
		return nil
	}
	t, ok := v.(*lua.LTable)
	if !ok {
		r.fail(name, "expected table, got %s", v.Type())
		return nil
	}
	return t
}

func (r *tableReader) str(t *lua.LTable, section, name string, dst *string) {
	v := t.RawGetString(name)
	if v == lua.LNil {
		return
	}
	s, ok := v.(lua.LString)
	if !ok {
		r.fail(section+"."+name, "expected string, got %s", v.Type())
		return
	}
	*dst = string(s)
}

func (r *tableReader) path(t *lua.LTable, section, name string, dst *string) {
	var raw string
	r.str(t, section, name, &raw)
	if raw == "" {
		return
	}
	expanded, err := expandHome(raw)
	if err != nil {
		r.fail(section+"."+name, "%v", err)
		return
	}
	*dst = expanded
}

func (r *tableReader) integer(t *lua.LTable, section, name string, dst *int) {
	if v := t.RawGetString(name); v != lua.LNil {
		r.number(v, section+"."+name, dst)
	}
}

func (r *tableReader) number(v lua.LValue, field string, dst *int) {
	n, ok := v.(lua.LNumber)
	if !ok || float64(n) != float64(int(n)) {
		r.fail(field, "expected integer, got %s", v.String())
		return
	}
	*dst = int(n)
}

// duration accepts a Go duration string ("90s", "10m") or a number of
// seconds.
func (r *tableReader) duration(t *lua.LTable, section, name string, dst *time.Duration) {
	field := section + "." + name
	switch v := t.RawGetString(name).(type) {
	case *lua.LNilType:
	case lua.LNumber:
		*dst = time.Duration(float64(v) * float64(time.Second))
	case lua.LString:
		d, err := time.ParseDuration(string(v))
		if err != nil {
			r.fail(field, "%v", err)
			return
		}
		*dst = d
	default:
		r.fail(field, "expected duration, got %s", v.Type())
	}
}

// checksums reads { ["base.en"] = "<sha256>" } under models.
func (r *tableReader) checksums(t *lua.LTable, dst *map[string]string) {
	v := t.RawGetString("checksums")
	if v == lua.LNil {
		return
	}
	list, ok := v.(*lua.LTable)
	if !ok {
		r.fail("models.checksums", "expected table, got %s", v.Type())
		return
	}
	if *dst == nil {
		*dst = make(map[string]string)
	}
	list.ForEach(func(key, value lua.LValue) {
		id, okKey := key.(lua.LString)
		sum, okValue := value.(lua.LString)
		if !okKey || !okValue {
			r.fail("models.checksums", "entries must map model IDs to digest strings")
			return
		}
		(*dst)[string(id)] = strings.ToLower(strings.TrimSpace(string(sum)))
	})
}

// strategies reads { ["yt-dlp"] = { "release", "brew" } }.
func (r *tableReader) strategies(t *lua.LTable, dst map[catalog.ID][]catalog.Kind) {
	t.ForEach(func(key, value lua.LValue) {
		name, ok := key.(lua.LString)
		if !ok {
			r.fail("strategies", "keys must be dependency names, got %s", key.Type())
			return
		}
		id, err := catalog.ParseID(string(name))
		if err != nil {
			r.fail("strategies", "%v", err)
			return
		}
		list, ok := value.(*lua.LTable)
		if !ok {
			r.fail("strategies."+string(name), "expected list of strategy kinds, got %s", value.Type())
			return
		}
		var kinds []catalog.Kind
		for i := 1; i <= list.Len(); i++ {
			kind := catalog.Kind(strings.ToLower(list.RawGetInt(i).String()))
			if !validKind(kind) {
				r.fail("strategies."+string(name), "unknown strategy kind %q", kind)
				return
			}
			kinds = append(kinds, kind)
		}
		dst[id] = kinds
	})
}

func validKind(k catalog.Kind) bool {
	switch k {
	case catalog.KindBrew, catalog.KindNative, catalog.KindRelease, catalog.KindModel, catalog.KindPipVenv:
		return true
	}
	return false
}
