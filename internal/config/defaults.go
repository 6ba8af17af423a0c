package config

import (
	"time"

	"git.home.luguber.info/inful/corpora/internal/incremental"
	"git.home.luguber.info/inful/corpora/internal/retry"
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			Title:    "Corpus",
			Language: "en",
		},
		Build: BuildConfig{
			DocumentTimeout: 10 * time.Second,
			IndexVersioning: incremental.VersioningIndependent,
			StateMismatch:   incremental.MismatchRebuild,
		},
		Retry: RetryConfig{
			Mode:       string(retry.BackoffLinear),
			Initial:    50 * time.Millisecond,
			Max:        500 * time.Millisecond,
			MaxRetries: 1,
		},
		Notify: NotifyConfig{
			Subject: "corpora",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}
}

// ReadPolicy converts the retry section into a retry.Policy.
func (c *Config) ReadPolicy() retry.Policy {
	return retry.NewPolicy(retry.BackoffMode(c.Retry.Mode), c.Retry.Initial, c.Retry.Max, c.Retry.MaxRetries)
}
