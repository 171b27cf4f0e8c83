package ingestion

import (
	"errors"
	"fmt"
)

var (
	ErrNoInputMode      = errors.New("no input mode: provide one of --files, --retry-errors, --from-commit, --reindex-all, or a changed files listing")
	ErrConflictingModes = errors.New("--reindex-all cannot be combined with --files, --retry-errors, or a changed files listing")
	ErrEmptyReindex     = errors.New("no tracked files found to index; make sure the superproject is a git repo and submodules are checked out")
	ErrMissingVector    = errors.New("attempted to upsert empty embedding")
)

// FatalKind classifies errors that end a run before or instead of per-file work.
type FatalKind string

const (
	FatalResolver FatalKind = "resolver"
	FatalSetup    FatalKind = "setup"
)

// FatalError aborts the run. Per-file failures never produce one.
type FatalError struct {
	Kind FatalKind
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func resolverFatal(err error) error { return &FatalError{Kind: FatalResolver, Err: err} }

func setupFatal(err error) error { return &FatalError{Kind: FatalSetup, Err: err} }
