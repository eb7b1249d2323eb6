// Package release sequences the release operations: resolve and validate a
// version, reconcile the changelog, rewrite the project files and hand the
// result to version control.
package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/elrelease/internal/apperr"
	"github.com/starford/elrelease/internal/changelog"
	"github.com/starford/elrelease/internal/copyright"
	"github.com/starford/elrelease/internal/fileset"
	"github.com/starford/elrelease/internal/journal"
	"github.com/starford/elrelease/internal/models"
	"github.com/starford/elrelease/internal/propagate"
	"github.com/starford/elrelease/internal/storage"
	"github.com/starford/elrelease/internal/vcs"
	"github.com/starford/elrelease/internal/version"
)

// Operation names, as recorded in the journal.
const (
	OpRelease   = "release"
	OpResume    = "resume"
	OpCopyright = "copyright"
)

// Commit messages.
const (
	MsgRelease   = "Release version %s"
	MsgResume    = "Resume development"
	MsgCopyright = "Bump copyright years"
)

// VCS is the version control collaborator.
type VCS interface {
	// Releases lists release versions, newest first.
	Releases(ctx context.Context) ([]string, error)
	StageAll(ctx context.Context) error
	Commit(ctx context.Context, req vcs.CommitRequest) error
}

// Prompter asks the user questions.
type Prompter interface {
	Confirm(message string) (bool, error)
	Ask(message, def string) (string, error)
}

// Options tune a single operation.
type Options struct {
	NoCommit bool
}

// Outcome reports what an operation did.
type Outcome struct {
	Operation string
	Version   string // version written into the files
	Previous  string
	Changelog *changelog.Result
	Files     []string // changed files
	Failures  apperr.FileErrors
	Warnings  []string
	Committed bool
}

// Service runs release operations against one project.
type Service struct {
	store      storage.Provider
	vcs        VCS
	prompter   Prompter
	layout     fileset.Layout
	changelog  *changelog.Reconciler
	propagator *propagate.Propagator
	bumper     *copyright.Bumper
	recorder   journal.Recorder
	project    string
	signingKey string
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLayout sets the file discovery layout.
func WithLayout(l fileset.Layout) Option {
	return func(s *Service) { s.layout = l }
}

// WithChangelog sets the changelog reconciler.
func WithChangelog(r *changelog.Reconciler) Option {
	return func(s *Service) { s.changelog = r }
}

// WithPropagator sets the version propagator.
func WithPropagator(p *propagate.Propagator) Option {
	return func(s *Service) { s.propagator = p }
}

// WithBumper sets the copyright bumper.
func WithBumper(b *copyright.Bumper) Option {
	return func(s *Service) { s.bumper = b }
}

// WithJournal records every outcome under project.
func WithJournal(r journal.Recorder, project string) Option {
	return func(s *Service) {
		s.recorder = r
		s.project = project
	}
}

// WithSigningKey signs commits with key.
func WithSigningKey(key string) Option {
	return func(s *Service) { s.signingKey = key }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service. Collaborators not set through opts are
// built over store with their defaults.
func NewService(store storage.Provider, v VCS, p Prompter, opts ...Option) *Service {
	s := &Service{
		store:    store,
		vcs:      v,
		prompter: p,
		layout:   fileset.DefaultLayout(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.changelog == nil {
		s.changelog = changelog.New(store, changelog.WithClock(s.now), changelog.WithLogger(s.logger))
	}
	if s.propagator == nil {
		s.propagator = propagate.New(store, propagate.WithClock(s.now), propagate.WithLogger(s.logger))
	}
	if s.bumper == nil {
		s.bumper = copyright.NewBumper(store, nil, s.now, s.logger)
	}
	return s
}

// Previous returns the latest release, or "" when nothing was released.
func (s *Service) Previous(ctx context.Context) (string, error) {
	tags, err := s.vcs.Releases(ctx)
	if err != nil {
		return "", fmt.Errorf("list releases: %w", err)
	}
	if len(tags) == 0 {
		return "", nil
	}
	return tags[0], nil
}

// CreateRelease prepares release ver. An empty ver is asked for, offering
// the successor of the previous release.
func (s *Service) CreateRelease(ctx context.Context, ver string, opts Options) (*Outcome, error) {
	prev, err := s.Previous(ctx)
	if err != nil {
		return nil, err
	}
	if ver, err = s.resolve(ver, prev, "Release version: "); err != nil {
		return nil, err
	}
	out := &Outcome{Operation: OpRelease, Version: ver, Previous: prev}

	fs, err := fileset.Discover(s.store, s.layout)
	if err != nil {
		return nil, err
	}
	if err := s.reconcile(out, changelog.Request{Target: ver, Previous: prev}); err != nil {
		return nil, err
	}
	if err := s.propagate(ctx, out, fs, ver, prev); err != nil {
		return nil, err
	}
	return s.finish(ctx, out, vcs.CommitRequest{Message: fmt.Sprintf(MsgRelease, ver), AllowEmpty: true}, opts)
}

// BumpPostRelease starts development after a release: the newest changelog
// entry becomes an UNRELEASED stub for next (asked for when empty) and the
// files carry the previous release with the snapshot suffix.
func (s *Service) BumpPostRelease(ctx context.Context, next string, opts Options) (*Outcome, error) {
	prev, err := s.Previous(ctx)
	if err != nil {
		return nil, err
	}
	if prev == "" {
		return nil, fmt.Errorf("%w: no release to resume development from", apperr.ErrInvalidVersion)
	}
	if next, err = s.resolve(next, prev, "Next version: "); err != nil {
		return nil, err
	}
	snapshot := version.Snapshot(prev)
	out := &Outcome{Operation: OpResume, Version: snapshot, Previous: prev}

	fs, err := fileset.Discover(s.store, s.layout)
	if err != nil {
		return nil, err
	}
	if err := s.reconcile(out, changelog.Request{Target: next, Previous: prev, Stub: true}); err != nil {
		return nil, err
	}
	if err := s.propagate(ctx, out, fs, snapshot, prev); err != nil {
		return nil, err
	}
	return s.finish(ctx, out, vcs.CommitRequest{Message: MsgResume}, opts)
}

// BumpCopyright extends the copyright notice of every library to the
// current year.
func (s *Service) BumpCopyright(ctx context.Context, opts Options) (*Outcome, error) {
	fs, err := fileset.Discover(s.store, s.layout)
	if err != nil {
		return nil, err
	}
	report, err := s.bumper.Bump(ctx, fs)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Operation: OpCopyright, Files: report.Changed, Failures: report.Failures}
	return s.finish(ctx, out, vcs.CommitRequest{Message: MsgCopyright}, opts)
}

// resolve asks for ver when it is empty and validates it against prev.
func (s *Service) resolve(ver, prev, question string) (string, error) {
	if ver == "" {
		def, _ := version.NextCandidate(prev)
		answer, err := s.prompter.Ask(question, def)
		if err != nil {
			return "", fmt.Errorf("ask version: %w", err)
		}
		ver = answer
	}
	if ver == "" {
		return "", fmt.Errorf("%w: no version given", apperr.ErrInvalidVersion)
	}
	if err := version.ValidateRelease(ver, prev); err != nil {
		return "", err
	}
	return ver, nil
}

func (s *Service) reconcile(out *Outcome, req changelog.Request) error {
	res, err := s.changelog.Reconcile(req, s.prompter)
	if err != nil {
		return err
	}
	out.Changelog = res
	if res.Action != changelog.ActionNone && res.Action != changelog.ActionUnchanged {
		out.Files = append(out.Files, res.Path)
	}
	if res.Warning != nil {
		out.Warnings = append(out.Warnings, res.Warning.Error())
	}
	return nil
}

func (s *Service) propagate(ctx context.Context, out *Outcome, fs *models.FileSet, ver, prev string) error {
	report, err := s.propagator.Propagate(ctx, fs, ver, prev)
	if err != nil {
		return err
	}
	out.Files = append(out.Files, report.Changed()...)
	out.Failures = append(out.Failures, report.Failures...)
	return nil
}

// finish commits unless suppressed, journals the outcome and reports the
// collected per-file failures.
func (s *Service) finish(ctx context.Context, out *Outcome, req vcs.CommitRequest, opts Options) (*Outcome, error) {
	at := s.now()
	var commitErr error
	if !opts.NoCommit {
		req.SigningKey = s.signingKey
		if commitErr = s.vcs.StageAll(ctx); commitErr == nil {
			commitErr = s.vcs.Commit(ctx, req)
		}
		if commitErr != nil {
			commitErr = fmt.Errorf("commit: %w", commitErr)
		} else {
			out.Committed = true
		}
	}
	s.record(out, at)

	s.logger.Info("operation finished",
		slog.String("operation", out.Operation),
		slog.String("version", out.Version),
		slog.Int("changed", len(out.Files)),
		slog.Int("failed", len(out.Failures)),
		slog.Bool("committed", out.Committed))

	var errs []error
	if commitErr != nil {
		errs = append(errs, commitErr)
	}
	if len(out.Failures) > 0 {
		errs = append(errs, out.Failures)
	}
	return out, errors.Join(errs...)
}

func (s *Service) record(out *Outcome, at time.Time) {
	if s.recorder == nil {
		return
	}
	run := &models.Run{
		Operation: out.Operation,
		Version:   out.Version,
		Previous:  out.Previous,
		Changed:   out.Files,
		Warnings:  out.Warnings,
		Committed: out.Committed,
		StartedAt: at,
	}
	for _, f := range out.Failures {
		run.Failures = append(run.Failures, f.Error())
	}
	if err := s.recorder.Record(s.project, run); err != nil {
		s.logger.Warn("journal record failed", slog.String("error", err.Error()))
	}
}
