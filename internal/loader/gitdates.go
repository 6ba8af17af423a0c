package loader

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
)

// gitDates looks up the last commit touching a file. It is safe for concurrent use.
type gitDates struct {
	mu   sync.Mutex
	repo *git.Repository
	top  string
}

func openGitDates(dir string) (*gitDates, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotGitRepository, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotGitRepository, err)
	}
	return &gitDates{repo: repo, top: wt.Filesystem.Root()}, nil
}

// lastCommit returns the committer time of the newest commit touching absPath,
// or the zero time when the file has no history.
func (g *gitDates) lastCommit(absPath string) (time.Time, error) {
	rel, err := filepath.Rel(g.top, absPath)
	if err != nil {
		return time.Time{}, err
	}
	rel = filepath.ToSlash(rel)

	g.mu.Lock()
	defer g.mu.Unlock()

	commits, err := g.repo.Log(&git.LogOptions{FileName: &rel})
	if err != nil {
		return time.Time{}, err
	}
	defer commits.Close()

	c, err := commits.Next()
	if err != nil {
		// io.EOF: untracked file.
		return time.Time{}, nil //nolint:nilerr // no history is not an error
	}
	return c.Committer.When.UTC(), nil
}
