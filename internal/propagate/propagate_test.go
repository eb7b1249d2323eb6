package propagate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/elrelease/internal/apperr"
	"github.com/starford/elrelease/internal/models"
	"github.com/starford/elrelease/internal/testutil"
)

const descriptorSrc = `;; -*- no-byte-compile: t -*-
(define-package "magit" "1.0.0"
  "A Git porcelain inside Emacs."
  '((foo "1.0") (compat "29.1") (emacs "27.1")
    (magit-section "1.0.0"))
  :homepage "https://magit.vc"
  :keywords '("git" "tools"))
`

const librarySrc = `;;; magit.el --- A Git porcelain  -*- lexical-binding:t -*-

;; Copyright (C) 2008-2024 The Magit Project Contributors

;; Package-Version: 1.0.0
;; Package-Requires: (
;;     (emacs "27.1")
;;     (compat "29.1")
;;     (magit-section "1.0.0"))

;;; Code:

(defconst magit-version "1.0.0"
  "The version of Magit.")

(defcustom magit-foo t
  "Foo."
  :package-version '(magit . "1.0.1")
  :type 'boolean)

(defcustom magit-bar t
  "Bar."
  :package-version '(magit . "0.9.0")
  :type 'boolean)

(defcustom magit-baz t
  "Baz."
  :package-version '(magit . "3.0.0")
  :type 'boolean)

(defcustom magit-other t
  "Other."
  :package-version '(transient . "1.0.5")
  :type 'boolean)
`

const sectionSrc = `;;; magit-section.el --- Sections  -*- lexical-binding:t -*-

;; Version: 1.0.0
;; Package-Requires: ((emacs "27.1") (compat "29.1"))

(defconst magit-section-version "1.0.0")
`

const manualSrc = `#+title: Magit User Manual
#+subtitle: for version 1.0.0

This manual is for Magit version 1.0.0.
`

func fileSet() *models.FileSet {
	return &models.FileSet{
		Libraries:   []string{"lisp/magit-section.el", "lisp/magit.el"},
		Descriptors: []string{"lisp/magit-pkg.el"},
		Docs:        []string{"docs/magit.org"},
	}
}

func project(t *testing.T) map[string]string {
	return map[string]string{
		"lisp/magit-pkg.el":     descriptorSrc,
		"lisp/magit.el":         librarySrc,
		"lisp/magit-section.el": sectionSrc,
		"docs/magit.org":        manualSrc,
	}
}

func newPropagator(t *testing.T, files map[string]string, opts ...Option) (*Propagator, func(string) string) {
	t.Helper()
	store := testutil.Project(t, files)
	opts = append([]Option{WithClock(testutil.Clock), WithLogger(testutil.Logger())}, opts...)
	return New(store, opts...), func(p string) string { return testutil.ReadFile(t, store, p) }
}

func TestPropagate_Release(t *testing.T) {
	p, read := newPropagator(t, project(t))
	report, err := p.Propagate(context.Background(), fileSet(), "1.1.0", "1.0.0")
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("failures: %v", report.Failures)
	}
	if len(report.Changed()) != 4 {
		t.Errorf("changed = %v", report.Changed())
	}

	wantPkg := `;; -*- no-byte-compile: t -*-
(define-package "magit" "1.1.0"
  "A Git porcelain inside Emacs."
  '((emacs         "27.1")
    (compat        "29.1")
    (foo           "1.0")
    (magit-section "1.1.0"))
  :homepage "https://magit.vc"
  :keywords '("git" "tools"))
`
	if got := read("lisp/magit-pkg.el"); got != wantPkg {
		t.Errorf("descriptor =\n%s\nwant\n%s", got, wantPkg)
	}

	lib := read("lisp/magit.el")
	for _, want := range []string{
		";; Package-Version: 1.1.0\n",
		";; Package-Requires: (\n;;     (emacs         \"27.1\")\n;;     (compat        \"29.1\")\n;;     (magit-section \"1.1.0\"))\n",
		`(defconst magit-version "1.1.0"`,
		`'(magit . "1.1.0")`,
		`'(magit . "0.9.0")`,
		`'(magit . "3.0.0")`,
		`'(transient . "1.0.5")`,
		";; Copyright (C) 2008-2024",
	} {
		if !strings.Contains(lib, want) {
			t.Errorf("library missing %q:\n%s", want, lib)
		}
	}
	if strings.Contains(lib, `"1.0.1"`) {
		t.Error("annotation between releases was not bumped")
	}

	sec := read("lisp/magit-section.el")
	if !strings.Contains(sec, ";; Version: 1.1.0\n") || !strings.Contains(sec, `(defconst magit-section-version "1.1.0")`) {
		t.Errorf("section library =\n%s", sec)
	}
	if !strings.Contains(sec, `;; Package-Requires: ((emacs "27.1") (compat "29.1"))`) {
		t.Errorf("unrelated single-line requires should be untouched:\n%s", sec)
	}

	doc := read("docs/magit.org")
	if !strings.Contains(doc, "#+subtitle: for version 1.1.0\n") || !strings.Contains(doc, "This manual is for Magit version 1.1.0.\n") {
		t.Errorf("manual =\n%s", doc)
	}
}

func TestPropagate_Idempotent(t *testing.T) {
	p, read := newPropagator(t, project(t))
	if _, err := p.Propagate(context.Background(), fileSet(), "1.1.0", "1.0.0"); err != nil {
		t.Fatal(err)
	}
	first := read("lisp/magit.el") + read("lisp/magit-pkg.el")
	report, err := p.Propagate(context.Background(), fileSet(), "1.1.0", "1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if changed := report.Changed(); len(changed) != 0 {
		t.Errorf("second pass changed %v", changed)
	}
	if second := read("lisp/magit.el") + read("lisp/magit-pkg.el"); second != first {
		t.Error("content differs after second pass")
	}
}

func TestPropagate_SnapshotUsesDateForDescriptorDeps(t *testing.T) {
	p, read := newPropagator(t, project(t))
	report, err := p.Propagate(context.Background(), fileSet(), "1.0.0.50-git", "1.0.0")
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("failures: %v", report.Failures)
	}
	pkg := read("lisp/magit-pkg.el")
	if !strings.Contains(pkg, `(define-package "magit" "1.0.0.50-git"`) {
		t.Errorf("descriptor version not set:\n%s", pkg)
	}
	if !strings.Contains(pkg, `(magit-section "20261018")`) {
		t.Errorf("snapshot dependency should be pinned to a date:\n%s", pkg)
	}
	if strings.Contains(pkg, `(magit-section "1.0.0.50-git")`) {
		t.Error("snapshot string leaked into a dependency constraint")
	}

	lib := read("lisp/magit.el")
	if !strings.Contains(lib, ";; Package-Version: 1.0.0.50-git\n") {
		t.Errorf("library header not set:\n%s", lib)
	}
	if !strings.Contains(lib, `'(magit . "1.0.1")`) || !strings.Contains(lib, `(magit-section "1.0.0"))`) {
		t.Error("snapshot must not touch annotations or library requirements")
	}
}

func TestPropagate_SingleModuleSkipsLibrary(t *testing.T) {
	files := map[string]string{
		"foo.el":     ";;; foo.el\n;; Version: 0.1.0\n(defconst foo-version \"0.1.0\")\n",
		"foo-pkg.el": `(define-package "foo" "0.1.0" "Foo." '((emacs "26.1")))`,
	}
	p, read := newPropagator(t, files)
	fs := &models.FileSet{Libraries: []string{"foo.el"}, Descriptors: []string{"foo-pkg.el"}}
	report, err := p.Propagate(context.Background(), fs, "0.2.0", "0.1.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("failures: %v", report.Failures)
	}
	if got := read("foo.el"); got != files["foo.el"] {
		t.Errorf("sole module should be left alone, got %q", got)
	}
	if got := read("foo-pkg.el"); !strings.Contains(got, `(define-package "foo" "0.2.0"`) || !strings.Contains(got, `'((emacs "26.1"))`) {
		t.Errorf("descriptor = %q", got)
	}
}

func TestPropagate_MalformedDescriptorCollected(t *testing.T) {
	files := project(t)
	files["lisp/magit-pkg.el"] = `(define-package "magit" "1.0.0" "A Git porcelain."` // unterminated
	p, read := newPropagator(t, files)
	report, err := p.Propagate(context.Background(), fileSet(), "1.1.0", "1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failures) != 1 || report.Failures[0].Path != "lisp/magit-pkg.el" {
		t.Fatalf("failures = %v", report.Failures)
	}
	if !errors.Is(report.Failures, apperr.ErrMalformed) {
		t.Errorf("failure kind = %v", report.Failures)
	}
	if got := read("lisp/magit-pkg.el"); got != files["lisp/magit-pkg.el"] {
		t.Error("failed descriptor was modified")
	}
	if !strings.Contains(read("lisp/magit.el"), ";; Package-Version: 1.1.0") {
		t.Error("other files should still be rewritten")
	}
}

func TestPropagate_MissingRequires(t *testing.T) {
	files := project(t)
	files["lisp/magit-section.el"] = ";; Version: 1.0.0\n(defconst magit-section-version \"1.0.0\")\n"

	p, read := newPropagator(t, files)
	report, err := p.Propagate(context.Background(), fileSet(), "1.1.0", "1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(report.Failures, apperr.ErrMissingDescriptor) {
		t.Fatalf("failures = %v, want ErrMissingDescriptor", report.Failures)
	}
	if got := read("lisp/magit-section.el"); got != files["lisp/magit-section.el"] {
		t.Error("file with a missing element must be left untouched")
	}

	p, read = newPropagator(t, files, WithSkipMissing(true))
	report, err = p.Propagate(context.Background(), fileSet(), "1.1.0", "1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("failures with skip: %v", report.Failures)
	}
	if !strings.Contains(read("lisp/magit-section.el"), ";; Version: 1.1.0") {
		t.Error("skip mode should still rewrite the version")
	}
}

func TestPropagate_DocBuildTriggered(t *testing.T) {
	files := project(t)
	files["docs/magit.texi"] = "\\input texinfo\n"
	builder := &testutil.DocBuilder{}
	p, _ := newPropagator(t, files, WithDocBuilder(builder))
	fs := fileSet()
	fs.DocSources = []string{"docs/magit.texi"}
	if _, err := p.Propagate(context.Background(), fs, "1.1.0", "1.0.0"); err != nil {
		t.Fatal(err)
	}
	if len(builder.Builds) != 1 || builder.Builds[0] {
		t.Errorf("builds = %v, want one partial build", builder.Builds)
	}
}

func TestPropagate_Cancelled(t *testing.T) {
	p, _ := newPropagator(t, project(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Propagate(ctx, fileSet(), "1.1.0", "1.0.0"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestUpdates(t *testing.T) {
	p := New(nil, WithClock(testutil.Clock))
	lib, desc := p.Updates(fileSet(), "2.0.0")
	if lib["magit"] != "2.0.0" || lib["magit-section"] != "2.0.0" || desc["magit"] != "2.0.0" {
		t.Errorf("release updates = %v / %v", lib, desc)
	}
	_, desc = p.Updates(fileSet(), "2.0.0.50-git")
	if desc["magit-section"] != "20261018" {
		t.Errorf("snapshot descriptor updates = %v", desc)
	}
}

func TestPropagate_CRLFKeepsLineEndings(t *testing.T) {
	files := map[string]string{
		"a-pkg.el": "(define-package \"a\" \"1.0.0\" \"A.\" '((emacs \"27.1\") (b \"1.0.0\")))\r\n",
		"a.el":     ";;; a.el --- A\r\n;; Version: 1.0.0\r\n;; Package-Requires: (\r\n;;     (emacs \"27.1\")\r\n;;     (b \"1.0.0\"))\r\n(defconst a-version \"1.0.0\")\r\n",
		"b.el":     ";;; b.el --- B\r\n;; Version: 1.0.0\r\n;; Package-Requires: ((emacs \"27.1\"))\r\n(defconst b-version \"1.0.0\")\r\n",
		"a.org":    "#+subtitle: for version 1.0.0\r\n\r\nThis manual is for A version 1.0.0.\r\n",
	}
	p, read := newPropagator(t, files)
	fs := &models.FileSet{Libraries: []string{"a.el", "b.el"}, Descriptors: []string{"a-pkg.el"}, Docs: []string{"a.org"}}
	report, err := p.Propagate(context.Background(), fs, "1.1.0", "1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("failures: %v", report.Failures)
	}

	want := map[string]string{
		"a-pkg.el": "(define-package \"a\" \"1.1.0\"\r\n  \"A.\"\r\n  '((emacs \"27.1\")\r\n    (b     \"1.1.0\")))\r\n",
		"a.el":     ";;; a.el --- A\r\n;; Version: 1.1.0\r\n;; Package-Requires: (\r\n;;     (emacs \"27.1\")\r\n;;     (b     \"1.1.0\"))\r\n(defconst a-version \"1.1.0\")\r\n",
		"b.el":     ";;; b.el --- B\r\n;; Version: 1.1.0\r\n;; Package-Requires: ((emacs \"27.1\"))\r\n(defconst b-version \"1.1.0\")\r\n",
		"a.org":    "#+subtitle: for version 1.1.0\r\n\r\nThis manual is for A version 1.1.0.\r\n",
	}
	for path, w := range want {
		got := read(path)
		if got != w {
			t.Errorf("%s =\n%q\nwant\n%q", path, got, w)
		}
		if strings.Count(got, "\n") != strings.Count(got, "\r\n") {
			t.Errorf("%s has mixed line endings", path)
		}
	}
}
