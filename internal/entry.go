// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/starford/elrelease/internal/changelog"
	"github.com/starford/elrelease/internal/copyright"
	"github.com/starford/elrelease/internal/docbuild"
	"github.com/starford/elrelease/internal/fileset"
	"github.com/starford/elrelease/internal/inspect"
	"github.com/starford/elrelease/internal/journal"
	"github.com/starford/elrelease/internal/prompt"
	"github.com/starford/elrelease/internal/propagate"
	"github.com/starford/elrelease/internal/release"
	"github.com/starford/elrelease/internal/storage"
	"github.com/starford/elrelease/internal/vcs"
)

// scanLimit bounds concurrent reads during status.
const scanLimit = 8

// historyLimit is the number of runs history prints.
const historyLimit = 20

// Run executes the configured command against the project.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{stdout: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := newLogger(cfg.App, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := app.root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve project root: %w", err)
		}
		root = wd
	}

	store, err := storage.NewFS(root)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	logger.Debug("Configuration loaded",
		slog.String("command", string(app.command)),
		slog.String("root", store.Root()),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Bool("journal", cfg.Journal.Enabled))

	if app.vcs == nil {
		app.vcs = vcs.NewGit(store.Root(), cfg.Commit.TagPrefix, logger)
	}

	switch app.command {
	case CommandStatus:
		return app.status(ctx, store, logger)
	case CommandHistory:
		return app.history(store, logger)
	case CommandRelease, CommandResume, CommandCopyright:
	default:
		return fmt.Errorf("unknown command %q", app.command)
	}

	var recorder *journal.DB
	if cfg.Journal.Enabled {
		if recorder, err = openJournal(cfg.Journal.Path); err != nil {
			logger.Warn("journal unavailable", slog.String("error", err.Error()))
		} else {
			defer recorder.Close()
		}
	}

	svc := app.service(store, recorder, logger)
	runOpts := release.Options{NoCommit: app.noCommit || cfg.Commit.Skip}

	var out *release.Outcome
	switch app.command {
	case CommandRelease:
		out, err = svc.CreateRelease(ctx, app.version, runOpts)
	case CommandResume:
		out, err = svc.BumpPostRelease(ctx, app.version, runOpts)
	case CommandCopyright:
		out, err = svc.BumpCopyright(ctx, runOpts)
	}
	if out != nil {
		app.report(out)
	}
	return err
}

func newLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func openJournal(path string) (*journal.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return journal.Open(path)
}

// service wires the release collaborators from the configuration.
func (a *application) service(store *storage.FS, recorder *journal.DB, logger *slog.Logger) *release.Service {
	cfg := a.config

	p := a.prompter
	if p == nil {
		if a.yes {
			p = prompt.Static{Yes: true}
		} else {
			p = prompt.NewTerminal()
		}
	}

	docs := docbuild.NewCommand(store.Root(), cfg.Docs.Build, cfg.Docs.RebuildCommand(), logger)

	opts := []release.Option{
		release.WithLayout(cfg.Layout.FileLayout()),
		release.WithLogger(logger),
		release.WithSigningKey(cfg.Commit.SigningKey),
		release.WithChangelog(changelog.New(store,
			changelog.WithCandidates(cfg.Layout.Changelog...),
			changelog.WithLogger(logger))),
		release.WithPropagator(propagate.New(store,
			propagate.WithOrder(cfg.Dependencies.Order()),
			propagate.WithSkipMissing(cfg.Propagation.SkipMissing),
			propagate.WithDocBuilder(docs),
			propagate.WithLogger(logger))),
		release.WithBumper(copyright.NewBumper(store, docs, nil, logger)),
	}
	if recorder != nil {
		opts = append(opts, release.WithJournal(recorder, store.Root()))
	}
	return release.NewService(store, a.vcs, p, opts...)
}

func (a *application) report(out *release.Outcome) {
	for _, w := range out.Warnings {
		prompt.Warn(a.stdout, w)
	}
	for _, f := range out.Failures {
		prompt.Fail(a.stdout, f.Error())
	}
	for _, f := range out.Files {
		fmt.Fprintf(a.stdout, "  %s\n", f)
	}
	summary := fmt.Sprintf("%s: %d file(s) changed", out.Operation, len(out.Files))
	if out.Version != "" {
		summary = fmt.Sprintf("%s %s: %d file(s) changed", out.Operation, out.Version, len(out.Files))
	}
	if out.Committed {
		summary += ", committed"
	}
	prompt.Done(a.stdout, summary)
}

func (a *application) status(ctx context.Context, store *storage.FS, logger *slog.Logger) error {
	cfg := a.config
	fs, err := fileset.Discover(store, cfg.Layout.FileLayout())
	if err != nil {
		return err
	}
	st, err := inspect.Scan(ctx, store, fs, scanLimit)
	if err != nil {
		return err
	}
	if err := st.WithChangelog(store, changelog.New(store, changelog.WithCandidates(cfg.Layout.Changelog...))); err != nil {
		return err
	}
	if releases, err := a.vcs.Releases(ctx); err != nil {
		logger.Warn("list releases failed", slog.String("error", err.Error()))
	} else if len(releases) > 0 {
		st.LatestRelease = releases[0]
	}

	w := a.stdout
	fmt.Fprintf(w, "latest release: %s\n", orNone(st.LatestRelease))
	if st.Changelog != nil {
		fmt.Fprintf(w, "changelog:      %s v%s %s\n", st.ChangelogPath, st.Changelog.Version, st.Changelog.Date)
	} else {
		fmt.Fprintf(w, "changelog:      %s\n", orNone(st.ChangelogPath))
	}
	for _, f := range st.Fields {
		fmt.Fprintf(w, "  %-40s %-24s %s\n", f.Path, f.Field, f.Value)
	}
	for _, e := range st.Errors {
		prompt.Fail(w, e)
	}
	if st.Consistent() {
		prompt.Done(w, "all files agree")
	} else {
		prompt.Warn(w, "files disagree: "+strings.Join(st.Versions(), ", "))
	}
	return nil
}

func (a *application) history(store *storage.FS, logger *slog.Logger) error {
	cfg := a.config
	if !cfg.Journal.Enabled {
		return fmt.Errorf("history: journal is disabled")
	}
	db, err := openJournal(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer db.Close()

	runs, err := db.Runs(store.Root(), historyLimit)
	if err != nil {
		return err
	}
	logger.Debug("history loaded", slog.Int("runs", len(runs)))
	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "no runs recorded")
		return nil
	}
	for _, r := range runs {
		line := fmt.Sprintf("%s  %-9s %-14s %d changed", r.StartedAt.Local().Format("2006-01-02 15:04"), r.Operation, orNone(r.Version), len(r.Changed))
		if len(r.Failures) > 0 {
			line += fmt.Sprintf(", %d failed", len(r.Failures))
		}
		if r.Committed {
			line += ", committed"
		}
		fmt.Fprintln(a.stdout, line)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
