// Package apperr defines the error kinds surfaced by release operations.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidVersion    = errors.New("invalid version")
	ErrMissingDescriptor = errors.New("missing descriptor element")
	ErrChangelogAbort    = errors.New("changelog update aborted")
	ErrStubChangelog     = errors.New("changelog entry created without content")
	ErrMalformed         = errors.New("malformed file")
)

// FileError ties a failure to the file it happened in.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// FileErrors collects per-file failures from a pass over many files.
type FileErrors []*FileError

func (fe FileErrors) Error() string {
	msgs := make([]string, len(fe))
	for i, e := range fe {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d file(s) failed: %s", len(fe), strings.Join(msgs, "; "))
}

// Unwrap exposes members to errors.Is and errors.As.
func (fe FileErrors) Unwrap() []error {
	out := make([]error, len(fe))
	for i, e := range fe {
		out[i] = e
	}
	return out
}
