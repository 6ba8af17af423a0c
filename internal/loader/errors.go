package loader

import "errors"

var (
	// ErrRootNotFound indicates the corpus root does not exist.
	ErrRootNotFound = errors.New("corpus root not found")

	// ErrRootNotDir indicates the corpus root is not a directory.
	ErrRootNotDir = errors.New("corpus root is not a directory")

	// ErrDuplicateSlug indicates two sources resolved to the same slug.
	ErrDuplicateSlug = errors.New("duplicate slug")

	// ErrReservedSlug indicates a slug whose output would overwrite an index page.
	ErrReservedSlug = errors.New("reserved slug")

	// ErrBadDate indicates a date field that is not RFC 3339 or YYYY-MM-DD.
	ErrBadDate = errors.New("unparsable date")

	// ErrBadField indicates a front matter field with the wrong shape.
	ErrBadField = errors.New("invalid front matter field")

	// ErrNotGitRepository indicates git dates were requested outside a work tree.
	ErrNotGitRepository = errors.New("corpus root is not inside a git work tree")
)
