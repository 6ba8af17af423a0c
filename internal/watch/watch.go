// Package watch reruns a build whenever the corpus changes, and optionally on
// a fixed interval.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/corpora/internal/docmodel"
	"git.home.luguber.info/inful/corpora/internal/logfields"
)

// DefaultDebounce is the quiet period after the last change before a rebuild.
const DefaultDebounce = 500 * time.Millisecond

// Options configure a Watcher.
type Options struct {
	Root     string
	Debounce time.Duration
	// Interval schedules a periodic rebuild; zero disables it.
	Interval time.Duration
	// Ignore lists directories never watched, typically the output tree when
	// it lives inside the corpus.
	Ignore []string
	Logger *slog.Logger
}

// Watcher triggers builds on corpus changes. Builds never overlap; changes
// arriving during a build coalesce into one follow-up build.
type Watcher struct {
	root     string
	debounce time.Duration
	interval time.Duration
	ignore   []string
	logger   *slog.Logger
	trigger  chan string
}

// New returns a Watcher for opts.Root.
func New(opts Options) (*Watcher, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve corpus root: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	w := &Watcher{
		root:     root,
		debounce: opts.Debounce,
		interval: opts.Interval,
		logger:   opts.Logger,
		trigger:  make(chan string, 1),
	}
	for _, p := range opts.Ignore {
		if abs, err := filepath.Abs(p); err == nil {
			w.ignore = append(w.ignore, abs)
		}
	}
	return w, nil
}

// Run builds once, then again after every debounced change or scheduled tick
// until ctx is done. Build errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context, build func(ctx context.Context) error) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()
	if err := w.addTree(fw, w.root); err != nil {
		return err
	}

	if w.interval > 0 {
		sched, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("failed to create gocron scheduler: %w", err)
		}
		if _, err := sched.NewJob(
			gocron.DurationJob(w.interval),
			gocron.NewTask(w.fire, "interval"),
			gocron.WithName("periodic-rebuild"),
		); err != nil {
			return fmt.Errorf("failed to create periodic rebuild job: %w", err)
		}
		sched.Start()
		defer func() { _ = sched.Shutdown() }()
	}

	go w.watchLoop(ctx, fw)

	w.logger.Info("Watching corpus", logfields.Path(w.root), slog.Duration("debounce", w.debounce),
		slog.Duration("interval", w.interval))
	w.runBuild(ctx, build, "initial")
	for {
		select {
		case <-ctx.Done():
			return nil
		case reason := <-w.trigger:
			w.runBuild(ctx, build, reason)
		}
	}
}

func (w *Watcher) runBuild(ctx context.Context, build func(ctx context.Context) error, reason string) {
	w.logger.Info("Rebuilding", slog.String("reason", reason))
	if err := build(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("Build failed", logfields.Error(err))
	}
}

// fire requests a build; a pending request absorbs it.
func (w *Watcher) fire(reason string) {
	select {
	case w.trigger <- reason:
	default:
	}
}

func (w *Watcher) watchLoop(ctx context.Context, fw *fsnotify.Watcher) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !w.relevant(fw, ev) {
				continue
			}
			w.logger.Debug("Corpus change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() { w.fire("change") })
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Corpus watcher error", logfields.Error(err))
		}
	}
}

// relevant reports whether ev can change the corpus, registering new
// directories as they appear.
func (w *Watcher) relevant(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return false
	}
	if w.skip(ev.Name) {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(fw, ev.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", logfields.Path(ev.Name), logfields.Error(err))
			}
			return true
		}
	}
	// A removed or renamed directory has no extension left to check.
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		return filepath.Ext(ev.Name) == "" || docmodel.IsSource(ev.Name)
	}
	return docmodel.IsSource(ev.Name)
}

// skip reports whether p is hidden or inside an ignored tree. Ignored paths
// are absolute, so p is resolved before comparing.
func (w *Watcher) skip(p string) bool {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if strings.HasPrefix(filepath.Base(p), ".") && p != w.root {
		return true
	}
	for _, ig := range w.ignore {
		if p == ig || strings.HasPrefix(p, ig+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// addTree watches dir and every non-hidden directory below it; fsnotify is
// not recursive.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.skip(p) {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return nil
}
