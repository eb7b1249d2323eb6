package release

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/elrelease/internal/apperr"
	"github.com/starford/elrelease/internal/changelog"
	"github.com/starford/elrelease/internal/storage"
	"github.com/starford/elrelease/internal/testutil"
)

const fooSrc = `;;; foo.el --- Foo  -*- lexical-binding:t -*-

;; Copyright (C) 2020-2025 Foo Authors

;; Package-Version: 1.9.0
;; Package-Requires: ((emacs "27.1") (foo-extra "1.9.0"))

(defconst foo-version "1.9.0")
`

const extraSrc = `;;; foo-extra.el --- Extras  -*- lexical-binding:t -*-

;; Copyright (C) 2024 Foo Authors

;; Version: 1.9.0
;; Package-Requires: ((emacs "27.1"))
`

const descriptorSrc = `(define-package "foo" "1.9.0" "Foo." '((emacs "27.1") (foo-extra "1.9.0")))
`

const manualSrc = `#+subtitle: for version 1.9.0

This manual is for Foo version 1.9.0.
`

func project(t *testing.T, changelogSrc string) map[string]string {
	t.Helper()
	files := map[string]string{
		"lisp/foo.el":       fooSrc,
		"lisp/foo-extra.el": extraSrc,
		"lisp/foo-pkg.el":   descriptorSrc,
		"docs/foo.org":      manualSrc,
	}
	if changelogSrc != "" {
		files["CHANGELOG"] = changelogSrc
	}
	return files
}

func newService(t *testing.T, files map[string]string, v *testutil.VCS, p *testutil.Prompter, opts ...Option) (*Service, storage.Provider) {
	t.Helper()
	store := testutil.Project(t, files)
	opts = append([]Option{WithClock(testutil.Clock), WithLogger(testutil.Logger())}, opts...)
	return NewService(store, v, p, opts...), store
}

func TestCreateRelease(t *testing.T) {
	v := &testutil.VCS{Tags: []string{"1.9.0", "1.8.0"}}
	svc, store := newService(t, project(t, "* v2.0.0   UNRELEASED\n\n- New things.\n"), v, &testutil.Prompter{})

	out, err := svc.CreateRelease(context.Background(), "2.0.0", Options{})
	if err != nil {
		t.Fatalf("CreateRelease: %v", err)
	}

	if got := testutil.ReadFile(t, store, "CHANGELOG"); !strings.HasPrefix(got, "* v2.0.0   2026-10-18\n") {
		t.Errorf("changelog = %q", got)
	}
	foo := testutil.ReadFile(t, store, "lisp/foo.el")
	for _, want := range []string{";; Package-Version: 2.0.0\n", `(foo-extra "2.0.0")`, `(defconst foo-version "2.0.0")`} {
		if !strings.Contains(foo, want) {
			t.Errorf("foo.el missing %q:\n%s", want, foo)
		}
	}
	if extra := testutil.ReadFile(t, store, "lisp/foo-extra.el"); !strings.Contains(extra, ";; Version: 2.0.0\n") {
		t.Errorf("foo-extra.el:\n%s", extra)
	}
	desc := testutil.ReadFile(t, store, "lisp/foo-pkg.el")
	if !strings.HasPrefix(desc, `(define-package "foo" "2.0.0"`) || !strings.Contains(desc, `(foo-extra "2.0.0")`) {
		t.Errorf("descriptor:\n%s", desc)
	}
	manual := testutil.ReadFile(t, store, "docs/foo.org")
	if strings.Contains(manual, "1.9.0") || strings.Count(manual, "2.0.0") != 2 {
		t.Errorf("manual:\n%s", manual)
	}

	if len(v.Commits) != 1 || v.Commits[0].Message != "Release version 2.0.0" || !v.Commits[0].AllowEmpty {
		t.Errorf("commits = %+v", v.Commits)
	}
	if v.Staged != 1 {
		t.Errorf("staged %d times", v.Staged)
	}
	if !out.Committed || out.Previous != "1.9.0" || out.Changelog.Action != changelog.ActionDated {
		t.Errorf("outcome = %+v", out)
	}
	if len(out.Files) != 5 {
		t.Errorf("changed files = %v", out.Files)
	}
}

func TestCreateRelease_InvalidVersionTouchesNothing(t *testing.T) {
	for _, ver := range []string{"1.9.0", "1.8.5", "2.0.0.50-git", "two"} {
		t.Run(ver, func(t *testing.T) {
			v := &testutil.VCS{Tags: []string{"1.9.0"}}
			files := project(t, "* v1.9.0   2025-01-01\n")
			svc, store := newService(t, files, v, &testutil.Prompter{Answer: true})

			_, err := svc.CreateRelease(context.Background(), ver, Options{})
			if !errors.Is(err, apperr.ErrInvalidVersion) {
				t.Fatalf("err = %v, want ErrInvalidVersion", err)
			}
			for path, want := range files {
				if got := testutil.ReadFile(t, store, path); got != want {
					t.Errorf("%s changed", path)
				}
			}
			if len(v.Commits) != 0 {
				t.Errorf("commits = %+v", v.Commits)
			}
		})
	}
}

func TestCreateRelease_AsksForVersion(t *testing.T) {
	v := &testutil.VCS{Tags: []string{"1.9.0"}}
	p := &testutil.Prompter{}
	svc, store := newService(t, project(t, "* v1.9.0   2025-01-01\n"), v, p)

	out, err := svc.CreateRelease(context.Background(), "", Options{})
	if err != nil {
		t.Fatalf("CreateRelease: %v", err)
	}
	if out.Version != "1.9.1" {
		t.Errorf("version = %q, want the derived candidate", out.Version)
	}
	if len(p.Asked) != 1 || p.Asked[0] != "Release version: " {
		t.Errorf("asked = %q", p.Asked)
	}
	if got := testutil.ReadFile(t, store, "CHANGELOG"); got != "* v1.9.1   2026-10-18\n\n* v1.9.0   2025-01-01\n" {
		t.Errorf("changelog = %q", got)
	}
	if len(out.Warnings) != 1 {
		t.Errorf("warnings = %q", out.Warnings)
	}
}

func TestCreateRelease_ChangelogAbortStopsBeforeCommit(t *testing.T) {
	v := &testutil.VCS{Tags: []string{"1.9.0"}}
	files := project(t, "* v1.5.0   2020-01-01\n")
	svc, store := newService(t, files, v, &testutil.Prompter{Answer: false})

	_, err := svc.CreateRelease(context.Background(), "2.0.0", Options{})
	if !errors.Is(err, apperr.ErrChangelogAbort) {
		t.Fatalf("err = %v, want ErrChangelogAbort", err)
	}
	if got := testutil.ReadFile(t, store, "lisp/foo.el"); got != fooSrc {
		t.Error("library rewritten after abort")
	}
	if len(v.Commits) != 0 || v.Staged != 0 {
		t.Errorf("vcs touched: %+v", v)
	}
}

func TestCreateRelease_FailuresReportedAfterCommit(t *testing.T) {
	v := &testutil.VCS{Tags: []string{"1.9.0"}}
	files := project(t, "* v2.0.0   UNRELEASED\n")
	files["lisp/foo-pkg.el"] = `(define-package "foo")`
	svc, store := newService(t, files, v, &testutil.Prompter{})

	out, err := svc.CreateRelease(context.Background(), "2.0.0", Options{})
	if err == nil {
		t.Fatal("expected the descriptor failure")
	}
	var fe apperr.FileErrors
	if !errors.As(err, &fe) || len(fe) != 1 || fe[0].Path != "lisp/foo-pkg.el" {
		t.Errorf("err = %v", err)
	}
	if len(v.Commits) != 1 || !out.Committed {
		t.Errorf("commit should still happen: %+v", v.Commits)
	}
	if got := testutil.ReadFile(t, store, "lisp/foo.el"); !strings.Contains(got, "Package-Version: 2.0.0") {
		t.Error("other files should still be rewritten")
	}
}

func TestCreateRelease_NoCommit(t *testing.T) {
	v := &testutil.VCS{Tags: []string{"1.9.0"}}
	svc, _ := newService(t, project(t, "* v2.0.0   UNRELEASED\n"), v, &testutil.Prompter{})

	out, err := svc.CreateRelease(context.Background(), "2.0.0", Options{NoCommit: true})
	if err != nil {
		t.Fatalf("CreateRelease: %v", err)
	}
	if out.Committed || v.Staged != 0 || len(v.Commits) != 0 {
		t.Errorf("committed despite NoCommit: %+v", v)
	}
}

func TestBumpPostRelease(t *testing.T) {
	v := &testutil.VCS{Tags: []string{"1.9.0"}}
	svc, store := newService(t, project(t, "* v1.9.0   2026-10-01\n\n- Shipped.\n"), v, &testutil.Prompter{})

	out, err := svc.BumpPostRelease(context.Background(), "2.0.0", Options{})
	if err != nil {
		t.Fatalf("BumpPostRelease: %v", err)
	}
	if out.Version != "1.9.0.50-git" {
		t.Errorf("version = %q", out.Version)
	}
	if got := testutil.ReadFile(t, store, "CHANGELOG"); got != "* v2.0.0   UNRELEASED\n\n- Shipped.\n" {
		t.Errorf("changelog = %q", got)
	}
	foo := testutil.ReadFile(t, store, "lisp/foo.el")
	if !strings.Contains(foo, ";; Package-Version: 1.9.0.50-git\n") || !strings.Contains(foo, `(foo-extra "1.9.0")`) {
		t.Errorf("foo.el:\n%s", foo)
	}
	desc := testutil.ReadFile(t, store, "lisp/foo-pkg.el")
	if !strings.Contains(desc, `"1.9.0.50-git"`) || !strings.Contains(desc, `(foo-extra "20261018")`) {
		t.Errorf("descriptor:\n%s", desc)
	}
	if len(v.Commits) != 1 || v.Commits[0].Message != "Resume development" || v.Commits[0].AllowEmpty {
		t.Errorf("commits = %+v", v.Commits)
	}
}

func TestBumpPostRelease_RequiresRelease(t *testing.T) {
	v := &testutil.VCS{}
	svc, _ := newService(t, project(t, ""), v, &testutil.Prompter{})

	if _, err := svc.BumpPostRelease(context.Background(), "1.0.0", Options{}); !errors.Is(err, apperr.ErrInvalidVersion) {
		t.Fatalf("err = %v, want ErrInvalidVersion", err)
	}
}

func TestBumpCopyright(t *testing.T) {
	db := testutil.TestJournal(t)
	v := &testutil.VCS{}
	svc, store := newService(t, project(t, ""), v, &testutil.Prompter{}, WithJournal(db, "foo"), WithSigningKey("ABC123"))

	out, err := svc.BumpCopyright(context.Background(), Options{})
	if err != nil {
		t.Fatalf("BumpCopyright: %v", err)
	}
	if got := testutil.ReadFile(t, store, "lisp/foo.el"); !strings.Contains(got, "Copyright (C) 2020-2026 Foo Authors") {
		t.Errorf("foo.el:\n%s", got)
	}
	if got := testutil.ReadFile(t, store, "lisp/foo-extra.el"); !strings.Contains(got, "Copyright (C) 2024-2026 Foo Authors") {
		t.Errorf("foo-extra.el:\n%s", got)
	}
	if len(out.Files) != 2 {
		t.Errorf("changed = %v", out.Files)
	}
	if len(v.Commits) != 1 || v.Commits[0].Message != "Bump copyright years" || v.Commits[0].SigningKey != "ABC123" {
		t.Errorf("commits = %+v", v.Commits)
	}

	runs, err := db.Runs("foo", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Operation != OpCopyright || !runs[0].Committed || len(runs[0].Changed) != 2 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestBumpCopyright_CommitFailureJournaled(t *testing.T) {
	db := testutil.TestJournal(t)
	v := &testutil.VCS{Err: errors.New("not a git repository")}
	svc, _ := newService(t, project(t, ""), v, &testutil.Prompter{}, WithJournal(db, "foo"))

	out, err := svc.BumpCopyright(context.Background(), Options{})
	if err == nil || !strings.Contains(err.Error(), "not a git repository") {
		t.Fatalf("err = %v", err)
	}
	if out.Committed {
		t.Error("outcome marked committed")
	}
	runs, err := db.Runs("foo", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Committed {
		t.Errorf("runs = %+v", runs)
	}
}

func TestBumpPostRelease_CurrentStubNotReportedChanged(t *testing.T) {
	v := &testutil.VCS{Tags: []string{"1.9.0"}}
	svc, _ := newService(t, project(t, "* v2.0.0   UNRELEASED\n"), v, &testutil.Prompter{})

	out, err := svc.BumpPostRelease(context.Background(), "2.0.0", Options{})
	if err != nil {
		t.Fatalf("BumpPostRelease: %v", err)
	}
	if out.Changelog.Action != changelog.ActionUnchanged {
		t.Errorf("changelog action = %s", out.Changelog.Action)
	}
	for _, f := range out.Files {
		if f == "CHANGELOG" {
			t.Errorf("unchanged changelog listed as changed: %v", out.Files)
		}
	}
}
