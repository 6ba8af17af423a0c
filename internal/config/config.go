// Package config loads the optional corpora.yaml file. Values pass through
// environment expansion, defaults, normalization and validation before use;
// command-line flags override the result.
package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
	"git.home.luguber.info/inful/corpora/internal/incremental"
)

// DefaultFile is the config file looked up when none is named.
const DefaultFile = "corpora.yaml"

// Config is the complete corpora configuration.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Build   BuildConfig   `yaml:"build"`
	Retry   RetryConfig   `yaml:"retry"`
	History HistoryConfig `yaml:"history"`
	Metrics MetricsConfig `yaml:"metrics"`
	Notify  NotifyConfig  `yaml:"notify"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// SiteConfig describes the rendered site.
type SiteConfig struct {
	Title       string `yaml:"title"`
	BaseURL     string `yaml:"base_url,omitempty"`
	Description string `yaml:"description,omitempty"`
	Language    string `yaml:"language"`
}

// BuildConfig tunes a build run.
type BuildConfig struct {
	Workers         int                        `yaml:"workers,omitempty"`
	DocumentTimeout time.Duration              `yaml:"document_timeout"`
	Strict          bool                       `yaml:"strict"`
	IndexVersioning incremental.Versioning     `yaml:"index_versioning"`
	StateMismatch   incremental.MismatchPolicy `yaml:"state_mismatch"`
	GitDates        bool                       `yaml:"git_dates"`
}

// RetryConfig governs retries of transient source reads.
type RetryConfig struct {
	Mode       string        `yaml:"mode"`
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	MaxRetries int           `yaml:"max_retries"`
}

// HistoryConfig enables the sqlite run history when Path is set.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// MetricsConfig enables the Prometheus textfile when Textfile is set.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// NotifyConfig enables NATS run notifications when URL is set.
type NotifyConfig struct {
	URL     string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	// Interval forces a rebuild on a timer; zero disables it.
	Interval time.Duration `yaml:"interval,omitempty"`
}

// LoggingConfig selects the log level and handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads path, or returns defaults when path is empty. A named file that
// does not exist is a configuration error; DefaultFile is optional.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err != nil {
			return finalize(Default())
		}
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ferrors.ConfigError("configuration file not found").
				WithCause(err).WithContext("path", path).Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read configuration file").
			WithContext("path", path).Build()
	}
	cfg, err := Parse(data)
	if err != nil {
		if ce, ok := ferrors.AsClassified(err); ok {
			return nil, ce.WithContext("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML into a finalized Config. ${VAR} references are expanded
// from the environment first; unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse configuration").Build()
	}
	return finalize(cfg)
}

func finalize(cfg *Config) (*Config, error) {
	if err := cfg.normalize(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid configuration").Build()
	}
	if err := cfg.Validate(); err != nil {
		return nil, ferrors.ValidationError("invalid configuration").WithCause(err).Build()
	}
	return cfg, nil
}
