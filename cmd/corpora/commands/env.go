package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/corpora/internal/build"
	"git.home.luguber.info/inful/corpora/internal/config"
	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
	"git.home.luguber.info/inful/corpora/internal/history"
	"git.home.luguber.info/inful/corpora/internal/logfields"
	"git.home.luguber.info/inful/corpora/internal/metrics"
	"git.home.luguber.info/inful/corpora/internal/notify"
	"git.home.luguber.info/inful/corpora/internal/render"
)

// environment is a Builder plus the run sinks the configuration enables.
type environment struct {
	builder *build.Builder
	closers []func()
}

func newEnvironment(cfg *config.Config, logger *slog.Logger) (*environment, error) {
	env := &environment{}
	opts := build.Options{
		Site: render.Site{
			Title:       cfg.Site.Title,
			BaseURL:     cfg.Site.BaseURL,
			Description: cfg.Site.Description,
			Language:    cfg.Site.Language,
		},
		Workers:         cfg.Build.Workers,
		DocumentTimeout: cfg.Build.DocumentTimeout,
		Versioning:      cfg.Build.IndexVersioning,
		Mismatch:        cfg.Build.StateMismatch,
		GitDates:        cfg.Build.GitDates,
		ReadPolicy:      cfg.ReadPolicy(),
		Logger:          logger,
	}

	if cfg.Metrics.Textfile != "" {
		rec := metrics.NewPrometheusRecorder(nil)
		opts.Recorder = rec
		opts.Sinks = append(opts.Sinks, textfileSink{rec: rec, path: cfg.Metrics.Textfile})
	}
	if cfg.History.Path != "" {
		store, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "cannot open run history").
				WithContext("path", cfg.History.Path).Build()
		}
		opts.Sinks = append(opts.Sinks, store)
		env.closers = append(env.closers, func() { _ = store.Close() })
	}
	if cfg.Notify.URL != "" {
		pub, err := notify.Connect(cfg.Notify.URL, cfg.Notify.Subject, logger)
		if err != nil {
			// Notifications are best effort; the build still runs.
			logger.Warn("Run notifications disabled", logfields.URL(cfg.Notify.URL), logfields.Error(err))
		} else {
			opts.Sinks = append(opts.Sinks, pub)
			env.closers = append(env.closers, pub.Close)
		}
	}

	b, err := build.New(opts)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.builder = b
	return env, nil
}

// Close releases the sinks in reverse order of creation.
func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// textfileSink rewrites the node-exporter textfile after every run.
type textfileSink struct {
	rec  *metrics.PrometheusRecorder
	path string
}

func (s textfileSink) Record(_ context.Context, _ *build.Report) error {
	return s.rec.WriteTextfile(s.path)
}
