package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/subforge/subforge/internal/config"
	"github.com/subforge/subforge/internal/installer"
	"github.com/subforge/subforge/internal/logging"
	"github.com/subforge/subforge/internal/platform"
)

type commandContext struct {
	logLevel  *string
	logFormat *string

	configOnce sync.Once
	config     *config.Config
	dirs       config.Dirs
	logger     *slog.Logger
	closeLog   func() error
	configErr  error
}

func newCommandContext(logLevel, logFormat *string) *commandContext {
	return &commandContext{logLevel: logLevel, logFormat: logFormat}
}

func (c *commandContext) ensureConfig(ctx context.Context) (*config.Config, error) {
	c.configOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		dirs, err := config.ResolveDirs()
		if err != nil {
			c.configErr = err
			return
		}
		cfg, err := config.NewParser(platform.NewDetector()).Load(ctx, dirs)
		if err != nil {
			c.configErr = err
			return
		}
		if level := flagValue(c.logLevel); level != "" {
			cfg.Log.Level = level
		}
		if format := flagValue(c.logFormat); format != "" {
			cfg.Log.Format = format
		}
		logger, closeLog, err := logging.New(logging.Options{
			Level:    cfg.Log.Level,
			Format:   logFormat(cfg.Log.Format),
			FilePath: cfg.Log.File,
		})
		if err != nil {
			c.configErr = err
			return
		}
		c.dirs = dirs
		c.config = cfg
		c.logger = logger
		c.closeLog = closeLog
	})
	return c.config, c.configErr
}

// close releases the log file opened by ensureConfig.
func (c *commandContext) close() error {
	if c.closeLog == nil {
		return nil
	}
	return c.closeLog()
}

// withService opens the installer for the duration of fn.
func (c *commandContext) withService(cmd *cobra.Command, fn func(*installer.Service) error) error {
	cfg, err := c.ensureConfig(cmd.Context())
	if err != nil {
		return err
	}
	svc, err := installer.Open(cfg, installer.Options{Logger: c.logger})
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}

func flagValue(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

// logFormat maps the config's "text" to the console handler.
func logFormat(format string) string {
	if strings.EqualFold(format, "text") {
		return "console"
	}
	return format
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
