// Package commands implements the corpora command line.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/corpora/internal/config"
)

// LogLevelEnv overrides the configured log level unless --verbose is given.
const LogLevelEnv = "CORPORA_LOG_LEVEL"

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command and its global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (default: ./corpora.yaml when present)" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Build the site from a corpus directory"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild the site whenever the corpus changes"`
	Verify  VerifyCmd  `cmd:"" help:"Check the links of a built site"`
	History HistoryCmd `cmd:"" help:"List recorded build runs"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file and document"`

	stderr io.Writer
}

// AfterApply runs after flag parsing and installs a provisional logger; the
// configured one replaces it once the config file is read.
func (c *CLI) AfterApply() error {
	if c.stderr == nil {
		c.stderr = os.Stderr
	}
	setupLogging(c.stderr, c.logLevel(config.LogLevelInfo), config.LogFormatText)
	return nil
}

// logLevel resolves the effective level: --verbose, then the environment,
// then the configured value.
func (c *CLI) logLevel(configured config.LogLevel) slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	if raw := os.Getenv(LogLevelEnv); raw != "" {
		return config.NormalizeLogLevel(raw).Slog()
	}
	return configured.Slog()
}

// loadConfig reads the configuration and reinstalls logging from it.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	g.Logger = setupLogging(c.stderr, c.logLevel(cfg.Logging.Level), cfg.Logging.Format)
	return cfg, nil
}

func setupLogging(w io.Writer, level slog.Level, format config.LogFormat) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == config.LogFormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// printf writes user-facing output to stdout.
func printf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stdout, format, args...)
}
