package commands

import (
	"context"
	"fmt"

	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
	"git.home.luguber.info/inful/corpora/internal/linkverify"
	"git.home.luguber.info/inful/corpora/internal/logfields"
	"git.home.luguber.info/inful/corpora/internal/notify"
)

// VerifyCmd implements the 'verify' command.
type VerifyCmd struct {
	Out      string `arg:"" help:"Built site directory" type:"existingdir"`
	External bool   `help:"Also probe external links over HTTP"`
	BaseURL  string `name:"base-url" help:"Base URL the site was built with (default: site.base_url)"`
	Workers  int    `short:"w" help:"Concurrent external link checks" default:"8"`
}

func (v *VerifyCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	base := v.BaseURL
	if base == "" {
		base = cfg.Site.BaseURL
	}
	verifier, err := linkverify.New(v.Out, linkverify.Options{
		BaseURL:  base,
		External: v.External,
		Workers:  v.Workers,
		Logger:   g.Logger,
	})
	if err != nil {
		return ferrors.ConfigError("invalid base URL").WithCause(err).Build()
	}
	res, err := verifier.Verify(ctx)
	if err != nil {
		return err
	}

	printf("Checked %d links on %d pages\n", res.Checked, res.Pages)
	for _, b := range res.Broken {
		reason := b.Error
		if b.Status != 0 {
			reason = fmt.Sprintf("HTTP %d", b.Status)
		}
		printf("  %s -> %s: %s\n", b.Page, b.URL, reason)
	}

	if cfg.Notify.URL != "" && len(res.Broken) > 0 {
		pub, err := notify.Connect(cfg.Notify.URL, cfg.Notify.Subject, g.Logger)
		if err != nil {
			g.Logger.Warn("Broken link notifications disabled", logfields.Error(err))
		} else {
			if err := pub.PublishBrokenLinks(ctx, res.Broken); err != nil {
				g.Logger.Warn("Failed to publish broken links", logfields.Error(err))
			}
			pub.Close()
		}
	}

	if n := len(res.Broken); n > 0 {
		return ferrors.RuntimeError(fmt.Sprintf("%d broken links", n)).WithContext("output", v.Out).Build()
	}
	return nil
}
