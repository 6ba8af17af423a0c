package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/corpora/cmd/corpora/commands"
	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
	"git.home.luguber.info/inful/corpora/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("corpora"),
		kong.Description("Index a corpus of Markdown documents and render it incrementally to a static site."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	parser.BindTo(ctx, (*context.Context)(nil))
	err := parser.Run(&commands.Global{Logger: slog.Default()}, &cli)
	stop()

	ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
