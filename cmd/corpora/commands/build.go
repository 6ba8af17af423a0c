package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/corpora/internal/build"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Root    string `arg:"" help:"Corpus root directory" type:"existingdir"`
	Out     string `arg:"" help:"Output directory" type:"path"`
	Full    bool   `help:"Ignore the previous build state and render everything"`
	Strict  bool   `help:"Fail the run when any document fails"`
	Workers int    `short:"w" help:"Parse and render workers (default: number of CPUs)"`
}

func (b *BuildCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if b.Workers > 0 {
		cfg.Build.Workers = b.Workers
	}
	env, err := newEnvironment(cfg, g.Logger)
	if err != nil {
		return err
	}
	defer env.Close()

	report, err := env.builder.Run(ctx, build.Request{
		Root:      b.Root,
		OutputDir: b.Out,
		Full:      b.Full,
		Strict:    b.Strict || cfg.Build.Strict,
	})
	printReport(report)
	return err
}

func printReport(r *build.Report) {
	if r == nil {
		return
	}
	printf("Build %s: %s\n", r.Outcome, r.Summary())
	for _, is := range r.Issues {
		loc := is.Path
		switch {
		case is.Line > 0 && is.Column > 0:
			loc = fmt.Sprintf("%s:%d:%d", is.Path, is.Line, is.Column)
		case is.Line > 0:
			loc = fmt.Sprintf("%s:%d", is.Path, is.Line)
		}
		if is.Target != "" {
			printf("  %s %s: %s (target %s)\n", is.Kind, loc, is.Message, is.Target)
			continue
		}
		printf("  %s %s: %s\n", is.Kind, loc, is.Message)
	}
}
