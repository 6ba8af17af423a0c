package commands

import (
	"context"
	"path/filepath"

	"git.home.luguber.info/inful/corpora/internal/build"
	"git.home.luguber.info/inful/corpora/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Root   string `arg:"" help:"Corpus root directory" type:"existingdir"`
	Out    string `arg:"" help:"Output directory" type:"path"`
	Strict bool   `help:"Fail a run when any document fails"`
}

func (w *WatchCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	env, err := newEnvironment(cfg, g.Logger)
	if err != nil {
		return err
	}
	defer env.Close()

	out := filepath.Clean(w.Out)
	watcher, err := watch.New(watch.Options{
		Root:     w.Root,
		Debounce: cfg.Watch.Debounce,
		Interval: cfg.Watch.Interval,
		// The stage and previous trees sit next to the output.
		Ignore: []string{out, out + "_stage", out + ".prev"},
		Logger: g.Logger,
	})
	if err != nil {
		return err
	}
	return watcher.Run(ctx, func(ctx context.Context) error {
		report, err := env.builder.Run(ctx, build.Request{
			Root:      w.Root,
			OutputDir: out,
			Strict:    w.Strict || cfg.Build.Strict,
		})
		printReport(report)
		return err
	})
}
