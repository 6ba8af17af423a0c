// Package loader enumerates corpus sources and decodes their front matter.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/corpora/internal/docmodel"
	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
	"git.home.luguber.info/inful/corpora/internal/frontmatter"
	"git.home.luguber.info/inful/corpora/internal/logfields"
	"git.home.luguber.info/inful/corpora/internal/retry"
	"git.home.luguber.info/inful/corpora/internal/slug"
)

// Source is one candidate document file.
type Source struct {
	Path string // absolute or root-joined path
	Rel  string // relative to the root, slash separated
}

// Failure records a document that could not be loaded.
type Failure struct {
	Path string
	Err  error
}

// Result is the outcome of a Load pass.
type Result struct {
	Documents []*docmodel.Document // path order
	Failures  []Failure
}

// Options configures a Loader.
type Options struct {
	Root     string
	GitDates bool
	// ReadPolicy governs retries of transient read failures.
	ReadPolicy retry.Policy
	// ReadFile replaces os.ReadFile; used by tests.
	ReadFile func(string) ([]byte, error)
	Logger   *slog.Logger
}

// Loader reads a corpus rooted at a directory.
type Loader struct {
	root     string
	gitDates bool
	policy   retry.Policy
	readFile func(string) ([]byte, error)
	logger   *slog.Logger
}

// New returns a Loader.
func New(opts Options) *Loader {
	l := &Loader{
		root:     filepath.Clean(opts.Root),
		gitDates: opts.GitDates,
		policy:   opts.ReadPolicy,
		readFile: opts.ReadFile,
		logger:   opts.Logger,
	}
	if l.policy == (retry.Policy{}) {
		l.policy = retry.DefaultPolicy()
	}
	if l.readFile == nil {
		l.readFile = os.ReadFile
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Root returns the corpus root directory.
func (l *Loader) Root() string { return l.root }

var errStopWalk = errors.New("stop walk")

// Sources walks the root in lexical order, skipping hidden entries. The
// sequence is restartable: each range performs a fresh walk.
func (l *Loader) Sources(ctx context.Context) iter.Seq2[Source, error] {
	return func(yield func(Source, error) bool) {
		err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			if err != nil {
				if p == l.root {
					return err
				}
				rel, _ := filepath.Rel(l.root, p)
				if !yield(Source{Path: p, Rel: filepath.ToSlash(rel)}, err) {
					return errStopWalk
				}
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if p != l.root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !docmodel.IsSource(d.Name()) {
				return nil
			}
			rel, rerr := filepath.Rel(l.root, p)
			if rerr != nil {
				return rerr
			}
			if !yield(Source{Path: p, Rel: filepath.ToSlash(rel)}, nil) {
				return errStopWalk
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopWalk) {
			yield(Source{}, err)
		}
	}
}

// Load reads every source. Per-document failures are collected in the Result;
// only an unusable root (or cancellation) returns an error.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	if err := l.checkRoot(); err != nil {
		return nil, err
	}

	var dates *gitDates
	if l.gitDates {
		var err error
		if dates, err = openGitDates(l.root); err != nil {
			l.logger.Warn("Git dates disabled", logfields.Path(l.root), logfields.Error(err))
		}
	}

	res := &Result{}
	owners := make(map[string]string)
	for src, err := range l.Sources(ctx) {
		if err != nil {
			if src.Rel == "" {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, ferrors.IOFailure("corpus walk failed").Fatal().WithCause(err).
					WithContext("path", l.root).Build()
			}
			res.Failures = append(res.Failures, Failure{Path: src.Rel, Err: ferrors.IOFailure("cannot read directory").
				WithCause(err).WithContext("path", src.Rel).Build()})
			continue
		}

		doc, lerr := l.LoadSource(ctx, src)
		if lerr == nil && dates != nil && !doc.HasDate() {
			if when, gerr := dates.lastCommit(src.Path); gerr == nil {
				doc.Date = when
			} else {
				l.logger.Debug("No git date", logfields.Path(src.Rel), logfields.Error(gerr))
			}
		}
		if lerr == nil {
			if owner, dup := owners[doc.Slug]; dup {
				lerr = ferrors.MalformedMetadata(fmt.Sprintf("slug %q already used by %s", doc.Slug, owner)).
					WithCause(ErrDuplicateSlug).WithContext("path", src.Rel).WithContext("slug", doc.Slug).Build()
			}
		}
		if lerr != nil {
			res.Failures = append(res.Failures, Failure{Path: src.Rel, Err: lerr})
			continue
		}
		owners[doc.Slug] = src.Rel
		res.Documents = append(res.Documents, doc)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return res, nil
}

func (l *Loader) checkRoot() error {
	fi, err := os.Stat(l.root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ferrors.IOFailure("corpus root does not exist").Fatal().WithRetry(ferrors.RetryUserAction).
			WithCause(ErrRootNotFound).WithContext("path", l.root).Build()
	case err != nil:
		return ferrors.IOFailure("corpus root is unreadable").Fatal().WithCause(err).WithContext("path", l.root).Build()
	case !fi.IsDir():
		return ferrors.IOFailure("corpus root is not a directory").Fatal().WithRetry(ferrors.RetryUserAction).
			WithCause(ErrRootNotDir).WithContext("path", l.root).Build()
	}
	return nil
}

func transientRead(err error) bool {
	return !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission)
}

// LoadSource reads and decodes a single source. The returned document has no
// parsed tree yet.
func (l *Loader) LoadSource(ctx context.Context, src Source) (*docmodel.Document, error) {
	var raw []byte
	err := retry.Do(ctx, l.policy, transientRead, func() error {
		var rerr error
		raw, rerr = l.readFile(src.Path)
		return rerr
	})
	if err != nil {
		return nil, ferrors.IOFailure("cannot read document").WithRetry(ferrors.RetryNever).
			WithCause(err).WithContext("path", src.Rel).Build()
	}
	return Decode(src.Rel, raw)
}

// Decode builds a Document from a source's bytes.
func Decode(rel string, raw []byte) (*docmodel.Document, error) {
	block, err := frontmatter.Split(raw)
	if err != nil {
		return nil, ferrors.MalformedMetadata("front matter is not closed").WithCause(err).WithContext("path", rel).Build()
	}
	if !block.Had {
		return nil, ferrors.MalformedMetadata("missing front matter header").WithContext("path", rel).Build()
	}
	fields, err := frontmatter.ParseYAML(block.Header)
	if err != nil {
		return nil, ferrors.MalformedMetadata("front matter is not valid YAML").WithCause(err).WithContext("path", rel).Build()
	}
	h, err := decodeHeader(fields)
	if err != nil {
		return nil, ferrors.MalformedMetadata("invalid front matter").WithCause(err).WithContext("path", rel).Build()
	}
	if err := h.Validate(); err != nil {
		return nil, ferrors.MalformedMetadata("invalid front matter").WithCause(err).WithContext("path", rel).Build()
	}

	s := h.Slug
	if s == "" {
		s = slug.FromPath(rel)
	}
	if s == "" {
		return nil, ferrors.MalformedMetadata("cannot derive a slug from the path").WithContext("path", rel).Build()
	}
	if first, _, _ := strings.Cut(s, "/"); reservedSlugs[first] {
		return nil, ferrors.MalformedMetadata(fmt.Sprintf("slug %q collides with an index page", s)).
			WithCause(ErrReservedSlug).WithContext("path", rel).WithContext("slug", s).Build()
	}

	return &docmodel.Document{
		Slug:        s,
		SourcePath:  rel,
		Title:       h.Title,
		Authors:     h.Authors,
		Date:        h.Date,
		Keywords:    h.Keywords,
		Description: strings.TrimSpace(h.Description),
		Series:      h.Series,
		SeriesPart:  h.SeriesPart,
		Raw:         raw,
		Body:        block.Body,
		BodyLine:    block.BodyLine,
		ContentHash: contentHash(block.Header, block.Body),
	}, nil
}

// reservedSlugs are top-level output directories owned by index pages.
var reservedSlugs = map[string]bool{"tags": true, "series": true}

func contentHash(header, body []byte) string {
	return mdfp.CalculateFingerprintFromParts(strings.TrimSuffix(string(header), "\n"), string(body))
}
