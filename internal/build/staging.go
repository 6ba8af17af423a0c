package build

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/corpora/internal/logfields"
)

// staging is the sibling directory a run writes into before promotion.
type staging struct {
	out    string
	dir    string
	logger *slog.Logger
}

func stageDirFor(out string) string { return out + "_stage" }

// beginStaging creates <out>_stage. Unless fresh, the previous output is
// mirrored into it with hard links, so unchanged pages cost nothing to keep.
// Files in the stage must therefore only be replaced, never written in place.
func beginStaging(out string, fresh bool, logger *slog.Logger) (*staging, error) {
	s := &staging{out: out, dir: stageDirFor(out), logger: logger}
	// A crashed run may have left a stage behind.
	if err := os.RemoveAll(s.dir); err != nil {
		return nil, fmt.Errorf("remove leftover staging dir: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	if !fresh {
		if err := s.mirror("."); err != nil {
			s.abort()
			return nil, err
		}
	}
	logger.Debug("Initialized staging directory", logfields.Path(s.dir), slog.Bool("fresh", fresh))
	return s, nil
}

// mirror hard-links rel (a file or directory of the previous output) into the
// stage. Entries that already exist in the stage are left alone; a missing
// source is not an error.
func (s *staging) mirror(rel string) error {
	root := filepath.Join(s.out, filepath.FromSlash(rel))
	if _, err := os.Lstat(root); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		r, err := filepath.Rel(s.out, p)
		if err != nil {
			return err
		}
		dst := filepath.Join(s.dir, r)
		if d.IsDir() {
			return os.MkdirAll(dst, 0o750)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, err := os.Lstat(dst); err == nil {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return err
		}
		if err := os.Link(p, dst); err != nil {
			return copyFile(p, dst)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mirror previous output: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	// #nosec G304 -- src is inside the configured output directory.
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	// #nosec G304 -- dst is inside the staging directory.
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// write replaces rel inside the stage.
func (s *staging) write(rel string, data []byte) error {
	p := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	return writeFileAtomic(p, data)
}

// remove deletes rel from the stage, then any directories it leaves empty.
func (s *staging) remove(rel string) error {
	p := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.RemoveAll(p); err != nil {
		return err
	}
	for dir := filepath.Dir(p); dir != s.dir && len(dir) > len(s.dir); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break // not empty
		}
	}
	return nil
}

// promote swaps the stage into place: out -> out.prev, stage -> out, then
// removes out.prev.
func (s *staging) promote() error {
	if s.dir == "" {
		return errors.New("no staging directory initialized")
	}
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("staging directory missing: %w", err)
	}
	prev := s.out + ".prev"
	if err := removeWithRetry(prev); err != nil {
		s.logger.Warn("Failed to remove previous backup", logfields.Path(prev), logfields.Error(err))
	}
	hadOut := true
	if err := os.Rename(s.out, prev); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("move previous output aside: %w", err)
		}
		hadOut = false
	}
	if err := os.Rename(s.dir, s.out); err != nil {
		if hadOut {
			if rerr := os.Rename(prev, s.out); rerr != nil {
				s.logger.Error("Failed to restore previous output", logfields.Path(s.out), logfields.Error(rerr))
			}
		}
		return fmt.Errorf("promote staging dir: %w", err)
	}
	s.dir = ""
	if hadOut {
		if err := os.RemoveAll(prev); err != nil {
			s.logger.Warn("Failed to remove previous backup", logfields.Path(prev), logfields.Error(err))
		}
	}
	return nil
}

// abort removes the stage. Safe to call more than once.
func (s *staging) abort() {
	if s == nil || s.dir == "" {
		return
	}
	dir := s.dir
	s.dir = ""
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("Failed to remove staging directory after abort", logfields.Path(dir), logfields.Error(err))
		return
	}
	s.logger.Debug("Removed staging directory after abort", logfields.Path(dir))
}

func removeWithRetry(p string) error {
	var err error
	for i := 0; i < 3; i++ {
		if err = os.RemoveAll(p); err == nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return err
}

// writeFileAtomic writes data to a temp file next to path and renames it over
// path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	// CreateTemp uses 0600; published pages must be world readable.
	if err := os.Chmod(name, 0o644); err != nil { // #nosec G302 -- static site output
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}
