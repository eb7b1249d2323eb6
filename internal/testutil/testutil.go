// Package testutil provides shared test helpers for building project trees
// and stubbing the collaborators release operations talk to.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/elrelease/internal/journal"
	"github.com/starford/elrelease/internal/storage"
	"github.com/starford/elrelease/internal/vcs"
)

// Today is the fixed date returned by Clock.
var Today = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

// Clock returns Today.
func Clock() time.Time { return Today }

// Logger discards everything below error level.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Project writes files (path → content) into a temporary project root and
// returns a storage.Provider over it.
func Project(t *testing.T, files map[string]string) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for p, content := range files {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

// ReadFile returns the content of a project file or fails the test.
func ReadFile(t *testing.T, store storage.Provider, path string) string {
	t.Helper()
	data, err := store.Read(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// TestJournal creates a temporary SQLite journal that is automatically cleaned up.
func TestJournal(t *testing.T) *journal.DB {
	t.Helper()
	db, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Prompter answers confirmations with Answer and free-text prompts with
// Text, or the default when Text is empty. It records every question.
type Prompter struct {
	Answer bool
	Text   string
	Asked  []string
}

// Confirm implements the confirmation prompt.
func (p *Prompter) Confirm(message string) (bool, error) {
	p.Asked = append(p.Asked, message)
	return p.Answer, nil
}

// Ask implements the free-text prompt.
func (p *Prompter) Ask(message, def string) (string, error) {
	p.Asked = append(p.Asked, message)
	if p.Text != "" {
		return p.Text, nil
	}
	return def, nil
}

// VCS is an in-memory version control collaborator.
type VCS struct {
	Tags    []string // newest first
	Staged  int
	Commits []vcs.CommitRequest
	Err     error
}

// Releases returns Tags.
func (v *VCS) Releases(context.Context) ([]string, error) {
	return v.Tags, v.Err
}

// StageAll counts calls.
func (v *VCS) StageAll(context.Context) error {
	v.Staged++
	return v.Err
}

// Commit records the commit.
func (v *VCS) Commit(_ context.Context, req vcs.CommitRequest) error {
	if v.Err != nil {
		return v.Err
	}
	v.Commits = append(v.Commits, req)
	return nil
}

// DocBuilder records documentation build requests.
type DocBuilder struct {
	Builds []bool // one entry per call, true for full rebuilds
}

// Build records the call.
func (d *DocBuilder) Build(_ context.Context, full bool) error {
	d.Builds = append(d.Builds, full)
	return nil
}

// WriteRaw writes a file outside storage, e.g. to make it unreadable.
func WriteRaw(t *testing.T, root, rel string, content []byte, mode os.FileMode) {
	t.Helper()
	abs := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, content, mode); err != nil {
		t.Fatal(err)
	}
}
