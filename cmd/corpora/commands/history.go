package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
	"git.home.luguber.info/inful/corpora/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	DB    string `help:"Run history database (default: history.path)" type:"path"`
	Limit int    `short:"n" help:"Number of runs to list" default:"20"`
	RunID string `name:"run" help:"Show the issues of one run instead of the run list"`
}

func (h *HistoryCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	db := h.DB
	if db == "" {
		cfg, err := root.loadConfig(g)
		if err != nil {
			return err
		}
		db = cfg.History.Path
	}
	if db == "" {
		return ferrors.ConfigError("no history database (use --db or set history.path)").Build()
	}
	if _, err := os.Stat(db); err != nil {
		return ferrors.ConfigError("history database not found").WithCause(err).WithContext("path", db).Build()
	}

	store, err := history.NewSQLiteStore(db)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer func() { _ = tw.Flush() }()

	if h.RunID != "" {
		issues, err := store.Issues(ctx, h.RunID)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(tw, "STAGE\tKIND\tPATH\tSLUG\tMESSAGE")
		for _, is := range issues {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", is.Stage, is.Kind, is.Path, is.Slug, is.Message)
		}
		return nil
	}

	runs, err := store.Recent(ctx, h.Limit)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tOUTCOME\tDOCS\tRENDERED\tPAGES\tREMOVED\tISSUES")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.RunID, r.Start.Local().Format(time.DateTime), r.Duration.Truncate(time.Millisecond),
			r.Outcome, r.Documents, r.Rendered, r.Pages, r.Removed, r.IssueCount)
	}
	return nil
}
