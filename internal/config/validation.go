package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

func init() {
	validation.ErrorTag = "yaml"
}

// Validate checks field ranges. It expects a normalized Config.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Site),
		validation.Field(&c.Build),
		validation.Field(&c.Retry),
		validation.Field(&c.Notify),
		validation.Field(&c.Watch),
	)
}

// Validate validates the site section.
func (s SiteConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Title, validation.Required),
		validation.Field(&s.BaseURL, is.URL),
		validation.Field(&s.Language, validation.Required, validation.Length(2, 35)),
	)
}

// Validate validates the build section.
func (b BuildConfig) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Workers, validation.Min(0), validation.Max(1024)),
		validation.Field(&b.DocumentTimeout, validation.Required, validation.Min(10*time.Millisecond)),
	)
}

// Validate validates the retry section. A failed read is retried at most once.
func (r RetryConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MaxRetries, validation.Min(0), validation.Max(1)),
		validation.Field(&r.Initial, validation.Min(time.Duration(0))),
		validation.Field(&r.Max, validation.Min(r.Initial)),
	)
}

// Validate validates the notify section.
func (n NotifyConfig) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Subject, validation.When(n.URL != "", validation.Required)),
	)
}

// Validate validates the watch section.
func (w WatchConfig) Validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.Debounce, validation.Required, validation.Min(10*time.Millisecond)),
		validation.Field(&w.Interval, validation.Min(time.Duration(0))),
	)
}
