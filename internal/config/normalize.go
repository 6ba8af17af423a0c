package config

import (
	"errors"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/corpora/internal/foundation/normalization"
	"git.home.luguber.info/inful/corpora/internal/incremental"
	"git.home.luguber.info/inful/corpora/internal/retry"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Slog maps the level onto slog.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var (
	logLevels = normalization.NewEnum("log level", LogLevelInfo,
		[]LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError},
		map[string]LogLevel{"warning": LogLevelWarn})
	logFormats = normalization.NewEnum("log format", LogFormatText,
		[]LogFormat{LogFormatJSON, LogFormatText}, nil)
	versionings = normalization.NewEnum("index versioning", incremental.VersioningIndependent,
		[]incremental.Versioning{incremental.VersioningIndependent, incremental.VersioningCoupled}, nil)
	mismatchPolicies = normalization.NewEnum("state mismatch policy", incremental.MismatchRebuild,
		[]incremental.MismatchPolicy{incremental.MismatchRebuild, incremental.MismatchFail}, nil)
	backoffModes = normalization.NewEnum("retry mode", retry.BackoffLinear,
		[]retry.BackoffMode{retry.BackoffFixed, retry.BackoffLinear, retry.BackoffExponential}, nil)
)

// NormalizeLogLevel maps raw onto a LogLevel, falling back to info.
func NormalizeLogLevel(raw string) LogLevel {
	l, _ := logLevels.Normalize(raw)
	return l
}

// normalize canonicalizes enum spellings and trims strings. Every bad enum is
// reported, not just the first.
func (c *Config) normalize() error {
	var errs []error
	norm := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	var err error

	c.Logging.Level, err = logLevels.Normalize(string(c.Logging.Level))
	norm(err)
	c.Logging.Format, err = logFormats.Normalize(string(c.Logging.Format))
	norm(err)
	c.Build.IndexVersioning, err = versionings.Normalize(string(c.Build.IndexVersioning))
	norm(err)
	c.Build.StateMismatch, err = mismatchPolicies.Normalize(string(c.Build.StateMismatch))
	norm(err)
	var mode retry.BackoffMode
	mode, err = backoffModes.Normalize(c.Retry.Mode)
	norm(err)
	c.Retry.Mode = string(mode)

	c.Site.Title = strings.TrimSpace(c.Site.Title)
	c.Site.BaseURL = strings.TrimRight(strings.TrimSpace(c.Site.BaseURL), "/")
	c.Site.Language = strings.TrimSpace(c.Site.Language)
	c.Notify.Subject = strings.TrimSpace(c.Notify.Subject)
	return errors.Join(errs...)
}
