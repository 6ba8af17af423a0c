package commands

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/corpora/internal/config"
	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
	"git.home.luguber.info/inful/corpora/internal/frontmatter"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing files"`
	Corpus string `help:"Directory for the sample document" default:"content" type:"path"`
}

const sampleBody = `
Welcome to your corpus. Every Markdown file with a front matter header
becomes a page; link other documents with [a cross reference](xref:hello).

NOTE: Edit or delete this file, then run ` + "`corpora build content site`" + `.
`

func (i *InitCmd) Run(_ context.Context, _ *Global, root *CLI) error {
	cfgPath := root.Config
	if cfgPath == "" {
		cfgPath = config.DefaultFile
	}
	printf("Writing configuration to %s\n", cfgPath)
	if err := config.Init(cfgPath, i.Force); err != nil {
		return err
	}

	docPath := filepath.Join(i.Corpus, "hello.md")
	if err := writeSample(docPath, i.Force, time.Now()); err != nil {
		return err
	}
	printf("Writing sample document to %s\n", docPath)
	return nil
}

func writeSample(path string, force bool, now time.Time) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError("sample document already exists (use --force to overwrite)").
			WithContext("path", path).Build()
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ferrors.WrapError(err, ferrors.CategoryIO, "failed to stat sample document").Build()
	}

	header, err := frontmatter.SerializeYAML(map[string]any{
		"title":       "Hello",
		"date":        now.UTC().Format(time.DateOnly),
		"tags":        []string{"welcome"},
		"authors":     []string{"corpora"},
		"slug":        "hello",
		"description": "A first document.",
	}, frontmatter.Style{Newline: "\n", HasTrailingNewline: true})
	if err != nil {
		return ferrors.InternalError("cannot encode sample front matter").WithCause(err).Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "failed to create corpus directory").Build()
	}
	doc := frontmatter.Join(header, []byte(sampleBody), frontmatter.Style{Newline: "\n"})
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "failed to write sample document").
			WithContext("path", path).Build()
	}
	return nil
}
