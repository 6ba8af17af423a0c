// Package linkverify checks the links of a rendered site. Internal links must
// name an existing output file (and an existing element id when they carry a
// fragment); external links are optionally probed over HTTP.
package linkverify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/corpora/internal/incremental"
	"git.home.luguber.info/inful/corpora/internal/logfields"
)

// Options configure a Verifier.
type Options struct {
	// BaseURL is the site base URL the pages were rendered with.
	BaseURL string
	// External enables HTTP checks of links leaving the site.
	External       bool
	Workers        int
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// Result summarizes a verification pass.
type Result struct {
	Pages   int
	Links   int
	Checked int
	Broken  []BrokenLinkEvent
}

// Verifier checks every HTML page of an output directory.
type Verifier struct {
	root       string
	base       *url.URL
	basePath   string
	external   bool
	workers    int
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.Mutex
	pages map[string]*Page // output-relative path -> parsed page
}

// New returns a Verifier for the site in outDir.
func New(outDir string, opts Options) (*Verifier, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
	}
	basePath := base.Path
	if !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		// Respects HTTP_PROXY, HTTPS_PROXY and NO_PROXY.
		transport := http.DefaultTransport.(*http.Transport).Clone()
		opts.HTTPClient = &http.Client{Timeout: opts.RequestTimeout, Transport: transport}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Verifier{
		root:       filepath.Clean(outDir),
		base:       base,
		basePath:   basePath,
		external:   opts.External,
		workers:    opts.Workers,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		pages:      make(map[string]*Page),
	}, nil
}

type pending struct {
	page string
	link Link
	ref  *url.URL
}

// Verify walks the output tree and checks every link. Broken links are
// returned sorted by page, then URL.
func (v *Verifier) Verify(ctx context.Context) (*Result, error) {
	rels, err := v.htmlFiles()
	if err != nil {
		return nil, err
	}
	res := &Result{Pages: len(rels)}

	var internal, external []pending
	for _, rel := range rels {
		p, err := v.page(rel)
		if err != nil {
			return nil, err
		}
		for _, l := range p.Links {
			res.Links++
			if !ShouldVerifyLink(l) {
				continue
			}
			ref, err := url.Parse(l.URL)
			if err != nil {
				res.Broken = append(res.Broken, v.broken(rel, l, 0, "unparsable URL", false))
				continue
			}
			pageURL := v.base.ResolveReference(&url.URL{Path: v.basePath + path.Dir(rel) + "/"})
			abs := pageURL.ResolveReference(ref)
			if isInternal(ref, v.base) {
				internal = append(internal, pending{page: rel, link: l, ref: abs})
			} else if v.external {
				external = append(external, pending{page: rel, link: l, ref: abs})
			}
		}
	}

	for _, p := range internal {
		res.Checked++
		if msg := v.checkInternal(p.ref); msg != "" {
			res.Broken = append(res.Broken, v.broken(p.page, p.link, 0, msg, true))
		}
	}

	broken, err := v.checkExternal(ctx, external)
	if err != nil {
		return nil, err
	}
	res.Checked += len(external)
	res.Broken = append(res.Broken, broken...)

	slices.SortFunc(res.Broken, func(a, b BrokenLinkEvent) int {
		if c := strings.Compare(a.Page, b.Page); c != 0 {
			return c
		}
		return strings.Compare(a.URL, b.URL)
	})
	for _, b := range res.Broken {
		v.logger.Warn("Broken link detected", logfields.URL(b.URL), logfields.Page(b.Page),
			slog.Int("status", b.Status), slog.String("reason", b.Error))
	}
	return res, nil
}

func (v *Verifier) broken(page string, l Link, status int, msg string, internal bool) BrokenLinkEvent {
	return BrokenLinkEvent{
		URL: l.URL, Page: page, Text: l.Text, Status: status, Error: msg,
		IsInternal: internal, Timestamp: time.Now(),
	}
}

// htmlFiles lists output-relative HTML paths, skipping bookkeeping files.
func (v *Verifier) htmlFiles() ([]string, error) {
	var rels []string
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == incremental.StateDir {
			return filepath.SkipDir
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".html") {
			return nil
		}
		rel, err := filepath.Rel(v.root, p)
		if err != nil {
			return err
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk output: %w", err)
	}
	slices.Sort(rels)
	return rels, nil
}

func (v *Verifier) page(rel string) (*Page, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p, ok := v.pages[rel]; ok {
		return p, nil
	}
	f, err := os.Open(filepath.Join(v.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	p, err := ExtractPage(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	v.pages[rel] = p
	return p, nil
}

// localPath maps an absolute site URL to an output-relative file path.
func (v *Verifier) localPath(u *url.URL) (string, bool) {
	p := u.Path
	if p+"/" == v.basePath {
		p += "/"
	}
	rel, ok := strings.CutPrefix(p, v.basePath)
	if !ok {
		return "", false
	}
	if rel == "" || strings.HasSuffix(rel, "/") {
		rel += "index.html"
	}
	return path.Clean(rel), true
}

// checkInternal returns "" when u names an existing output file (and
// fragment), or the reason it does not.
func (v *Verifier) checkInternal(u *url.URL) string {
	rel, ok := v.localPath(u)
	if !ok || strings.HasPrefix(rel, "../") {
		return "outside the site"
	}
	full := filepath.Join(v.root, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err == nil && info.IsDir() {
		rel = path.Join(rel, "index.html")
		full = filepath.Join(full, "index.html")
		info, err = os.Stat(full)
	}
	if err != nil || info.IsDir() {
		return "target does not exist"
	}
	if u.Fragment == "" || !strings.EqualFold(path.Ext(rel), ".html") {
		return ""
	}
	p, err := v.page(rel)
	if err != nil {
		return "target is not readable HTML"
	}
	if !p.IDs[u.Fragment] {
		return fmt.Sprintf("no element with id %q", u.Fragment)
	}
	return ""
}

func (v *Verifier) checkExternal(ctx context.Context, links []pending) ([]BrokenLinkEvent, error) {
	if len(links) == 0 {
		return nil, nil
	}
	type result struct {
		status int
		err    error
	}
	// Each distinct URL is probed once.
	urls := make(map[string]*result)
	var order []string
	for _, p := range links {
		u := *p.ref
		u.Fragment = ""
		key := u.String()
		if _, ok := urls[key]; !ok {
			urls[key] = &result{}
			order = append(order, key)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for _, key := range order {
		r := urls[key]
		g.Go(func() error {
			r.status, r.err = v.checkExternalLink(gctx, key)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []BrokenLinkEvent
	for _, p := range links {
		u := *p.ref
		u.Fragment = ""
		if r := urls[u.String()]; r.err != nil {
			out = append(out, v.broken(p.page, p.link, r.status, r.err.Error(), false))
		}
	}
	return out, nil
}

// checkExternalLink probes linkURL with HEAD, falling back to GET for servers
// that reject or mishandle HEAD.
func (v *Verifier) checkExternalLink(ctx context.Context, linkURL string) (int, error) {
	status, err := v.probe(ctx, http.MethodHead, linkURL)
	if err == nil {
		return status, nil
	}
	if status == http.StatusNotFound || status == http.StatusMethodNotAllowed || status == 0 {
		return v.probe(ctx, http.MethodGet, linkURL)
	}
	return status, err
}

func (v *Verifier) probe(ctx context.Context, method, linkURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, linkURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "corpora-linkverify/1.0")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	// The URL exists but wants credentials.
	if isAuthError(resp.StatusCode) {
		return resp.StatusCode, nil
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, errors.New(resp.Status)
	}
	return resp.StatusCode, nil
}

func isAuthError(statusCode int) bool {
	return statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden
}
