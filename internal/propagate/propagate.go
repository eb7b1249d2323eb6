// Package propagate writes a version into every release-bumpable file of a
// project: package descriptors, library headers and documentation.
//
// Each file is read once, transformed in memory and written back atomically.
// A file that cannot be transformed is left as it was and reported; the
// pass carries on with the remaining files.
package propagate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/starford/elrelease/internal/apperr"
	"github.com/starford/elrelease/internal/checksum"
	"github.com/starford/elrelease/internal/deps"
	"github.com/starford/elrelease/internal/models"
	"github.com/starford/elrelease/internal/storage"
	"github.com/starford/elrelease/internal/version"
)

// FileKind tells which rewrite a file received.
type FileKind string

const (
	KindDescriptor FileKind = "descriptor"
	KindLibrary    FileKind = "library"
	KindDoc        FileKind = "doc"
)

// FileResult describes one rewritten (or unchanged) file.
type FileResult struct {
	Path    string
	Kind    FileKind
	Changed bool
	Before  string // short checksum before the rewrite
	After   string // short checksum after the rewrite
}

// Report summarizes a propagation pass.
type Report struct {
	Version  string
	Files    []FileResult
	Failures apperr.FileErrors
}

// Changed returns the paths whose content changed.
func (r *Report) Changed() []string {
	var out []string
	for _, f := range r.Files {
		if f.Changed {
			out = append(out, f.Path)
		}
	}
	return out
}

// DocBuilder regenerates derived documentation. full requests a complete
// rebuild instead of regenerating sources only.
type DocBuilder interface {
	Build(ctx context.Context, full bool) error
}

// Option configures a Propagator.
type Option func(*Propagator)

// WithOrder sets the canonical dependency order.
func WithOrder(o deps.Order) Option {
	return func(p *Propagator) { p.order = o }
}

// WithSkipMissing makes a library without a Package-Requires header a
// silent no-op instead of a failure.
func WithSkipMissing(skip bool) Option {
	return func(p *Propagator) { p.skipMissing = skip }
}

// WithDocBuilder sets the documentation build collaborator.
func WithDocBuilder(b DocBuilder) Option {
	return func(p *Propagator) { p.docs = b }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Propagator) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Propagator) { p.logger = l }
}

// Propagator rewrites versions across a file set.
type Propagator struct {
	store       storage.Provider
	order       deps.Order
	skipMissing bool
	docs        DocBuilder
	now         func() time.Time
	logger      *slog.Logger
}

// New creates a Propagator over store.
func New(store storage.Provider, opts ...Option) *Propagator {
	p := &Propagator{
		store:  store,
		order:  deps.DefaultOrder,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Updates returns the dependency updates for the packages this project
// provides. Libraries get ver; descriptors get ver too, except that a
// development snapshot pins sibling packages to today's date (YYYYMMDD).
func (p *Propagator) Updates(fs *models.FileSet, ver string) (library, descriptor map[string]string) {
	library = make(map[string]string)
	descriptor = make(map[string]string)
	pin := ver
	if version.IsSnapshot(ver) {
		pin = p.now().Format("20060102")
	}
	names := make([]string, 0, len(fs.Libraries)+len(fs.Descriptors))
	for _, l := range fs.PropagationLibraries() {
		names = append(names, models.ModuleName(l))
	}
	for _, d := range fs.Descriptors {
		names = append(names, models.ModuleName(d))
	}
	for _, n := range names {
		library[n] = ver
		descriptor[n] = pin
	}
	return library, descriptor
}

// Propagate writes ver into every file of fs. previous is the last release
// and bounds which :package-version annotations are moved forward. Per-file
// failures are collected in the report; the returned error is only set when
// ctx is done.
func (p *Propagator) Propagate(ctx context.Context, fs *models.FileSet, ver, previous string) (*Report, error) {
	report := &Report{Version: ver}
	libUpdates, descUpdates := p.Updates(fs, ver)
	snapshot := version.IsSnapshot(ver)

	for _, path := range fs.Descriptors {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p.rewrite(ctx, report, path, KindDescriptor, func(src []byte) ([]byte, error) {
			return rewriteDescriptor(src, ver, descUpdates, p.order)
		})
	}

	for _, path := range fs.PropagationLibraries() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		lib := libraryRewrite{
			module:      models.ModuleName(path),
			version:     ver,
			previous:    previous,
			syncDeps:    !snapshot,
			updates:     libUpdates,
			order:       p.order,
			skipMissing: p.skipMissing,
		}
		p.rewrite(ctx, report, path, KindLibrary, lib.apply)
	}

	for _, path := range fs.Docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p.rewrite(ctx, report, path, KindDoc, func(src []byte) ([]byte, error) {
			return rewriteDoc(src, ver), nil
		})
	}

	if len(fs.DocSources) > 0 && p.docs != nil {
		if err := p.docs.Build(ctx, false); err != nil {
			report.Failures = append(report.Failures, &apperr.FileError{Path: fs.DocSources[0], Err: fmt.Errorf("build docs: %w", err)})
		}
	}

	p.logger.Info("version propagated",
		slog.String("version", ver),
		slog.Int("files", len(report.Files)),
		slog.Int("changed", len(report.Changed())),
		slog.Int("failed", len(report.Failures)))
	return report, nil
}

// rewrite applies fn to one file and records the outcome. The file is only
// written when fn succeeds and the content actually changes.
func (p *Propagator) rewrite(ctx context.Context, report *Report, path string, kind FileKind, fn func([]byte) ([]byte, error)) {
	src, err := p.store.Read(path)
	if err == nil {
		var out []byte
		if out, err = fn(src); err == nil {
			res := FileResult{Path: path, Kind: kind, Before: checksum.Short(src), After: checksum.Short(out)}
			res.Changed = res.Before != res.After
			if res.Changed {
				err = p.store.Write(path, out)
			}
			if err == nil {
				report.Files = append(report.Files, res)
				p.logger.Debug("file rewritten", slog.String("path", path), slog.String("kind", string(kind)), slog.Bool("changed", res.Changed))
				return
			}
		}
	}
	report.Failures = append(report.Failures, &apperr.FileError{Path: path, Err: err})
	level := slog.LevelWarn
	if errors.Is(err, apperr.ErrMissingDescriptor) {
		level = slog.LevelError
	}
	p.logger.Log(ctx, level, "file rewrite failed", slog.String("path", path), slog.String("error", err.Error()))
}

// edit replaces src[start:end] with text.
type edit struct {
	start, end int
	text       string
}

// applyEdits applies non-overlapping edits in one pass.
func applyEdits(src []byte, edits []edit) []byte {
	if len(edits) == 0 {
		return src
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	out := make([]byte, 0, len(src))
	pos := 0
	for _, e := range edits {
		out = append(out, src[pos:e.start]...)
		out = append(out, e.text...)
		pos = e.end
	}
	return append(out, src[pos:]...)
}
