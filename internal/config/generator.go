package config

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/subforge/subforge/internal/catalog"
)

// Generator renders a Config as a Lua file that ParseString reads back.
type Generator struct {
	indent string
}

// NewGenerator creates a new Lua config generator.
func NewGenerator() *Generator {
	return &Generator{indent: "  "}
}

// Generate renders cfg. The GitHub token is never written; it comes from
// GITHUB_TOKEN.
func (g *Generator) Generate(cfg *Config) string {
	var buf bytes.Buffer

	buf.WriteString("-- subforge configuration\n")
	buf.WriteString("-- Generated: ")
	buf.WriteString(time.Now().UTC().Format(time.RFC3339))
	buf.WriteString("\n-- The platform table (platform.os, platform.is_linux, ...) is available.\n\n")
	buf.WriteString(luaGlobal + " = {\n")

	g.section(&buf, luaFieldPaths, [][2]string{
		{"data", g.quote(cfg.Paths.Data)},
		{"cache", g.quote(cfg.Paths.Cache)},
		{"bin", g.quote(cfg.Paths.Bin)},
		{"models", g.quote(cfg.Paths.Models)},
		{"tools", g.quote(cfg.Paths.Tools)},
		{"venvs", g.quote(cfg.Paths.Venvs)},
	})
	download := [][2]string{
		{"max_attempts", fmt.Sprint(cfg.Download.MaxAttempts)},
		{"initial_backoff", g.quote(cfg.Download.InitialBackoff.String())},
	}
	if cfg.Download.UserAgent != "" {
		download = append(download, [2]string{"user_agent", g.quote(cfg.Download.UserAgent)})
	}
	g.section(&buf, luaFieldDownload, download)
	g.section(&buf, luaFieldProcess, [][2]string{{"timeout", g.quote(cfg.Process.Timeout.String())}})
	g.section(&buf, luaFieldLedger, [][2]string{{"backend", g.quote(cfg.Ledger.Backend)}})

	logFields := [][2]string{{"level", g.quote(cfg.Log.Level)}, {"format", g.quote(cfg.Log.Format)}}
	if cfg.Log.File != "" {
		logFields = append(logFields, [2]string{"file", g.quote(cfg.Log.File)})
	}
	g.section(&buf, luaFieldLog, logFields)
	g.section(&buf, luaFieldGitHub, [][2]string{{"api", g.quote(cfg.GitHub.APIBase)}})
	models := [][2]string{
		{"base_url", g.quote(cfg.Models.BaseURL)},
		{"default", g.quote(cfg.Models.Default)},
	}
	if len(cfg.Models.Checksums) > 0 {
		models = append(models, [2]string{"checksums", g.checksums(cfg.Models.Checksums)})
	}
	g.section(&buf, luaFieldModels, models)
	if cfg.Signing.Keyring != "" {
		g.section(&buf, luaFieldSigning, [][2]string{{"keyring", g.quote(cfg.Signing.Keyring)}})
	}
	if len(cfg.Strategies) > 0 {
		g.writeStrategies(&buf, cfg.Strategies)
	}

	fmt.Fprintf(&buf, "%s%s = %d,\n", g.indent, luaFieldConcurrency, cfg.Concurrency)
	buf.WriteString("}\n")
	return buf.String()
}

func (g *Generator) section(buf *bytes.Buffer, name string, fields [][2]string) {
	fmt.Fprintf(buf, "%s%s = {\n", g.indent, name)
	for _, f := range fields {
		fmt.Fprintf(buf, "%s%s%s = %s,\n", g.indent, g.indent, f[0], f[1])
	}
	fmt.Fprintf(buf, "%s},\n", g.indent)
}

func (g *Generator) writeStrategies(buf *bytes.Buffer, strategies map[catalog.ID][]catalog.Kind) {
	ids := make([]string, 0, len(strategies))
	for id := range strategies {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	fmt.Fprintf(buf, "%s%s = {\n", g.indent, luaFieldStrategies)
	for _, id := range ids {
		kinds := make([]string, 0, len(strategies[catalog.ID(id)]))
		for _, k := range strategies[catalog.ID(id)] {
			kinds = append(kinds, g.quote(string(k)))
		}
		fmt.Fprintf(buf, "%s%s[%s] = { %s },\n", g.indent, g.indent, g.quote(id), strings.Join(kinds, ", "))
	}
	fmt.Fprintf(buf, "%s},\n", g.indent)
}

// quote quotes a string for Lua, handling special characters.
func (g *Generator) checksums(sums map[string]string) string {
	ids := slices.Sorted(maps.Keys(sums))
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("[%s] = %s", g.quote(id), g.quote(sums[id])))
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func (g *Generator) quote(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}
