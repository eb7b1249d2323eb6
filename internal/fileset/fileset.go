// Package fileset discovers the release-bumpable files of a project.
package fileset

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/starford/elrelease/internal/changelog"
	"github.com/starford/elrelease/internal/models"
	"github.com/starford/elrelease/internal/storage"
)

// Layout describes where a project keeps its files.
type Layout struct {
	SourceDir         string   // searched for libraries and descriptors; root when absent
	DocsDir           string   // searched for documentation; root when absent
	LibraryPattern    string   // e.g. "*.el"
	DescriptorPattern string   // e.g. "*-pkg.el"
	DocPattern        string   // e.g. "*.org"
	DocSourcePattern  string   // e.g. "*.texi"
	ExcludeLibraries  []string // base-name patterns never treated as libraries
	ExcludeDocs       []string // base names never treated as documentation
	Changelog         []string // changelog candidates; their base names are never documentation
}

// DefaultLayout is the conventional Emacs package layout.
func DefaultLayout() Layout {
	return Layout{
		SourceDir:         "lisp",
		DocsDir:           "docs",
		LibraryPattern:    "*.el",
		DescriptorPattern: "*-pkg.el",
		DocPattern:        "*.org",
		DocSourcePattern:  "*.texi",
		ExcludeLibraries:  []string{"*-autoloads.el", ".dir-locals.el"},
		ExcludeDocs:       []string{"README.org"},
		Changelog:         changelog.DefaultCandidates,
	}
}

// Discover lists libraries, descriptors and docs under the project root.
func Discover(store storage.Provider, layout Layout) (*models.FileSet, error) {
	srcDir := dirOrRoot(store, layout.SourceDir)
	docsDir := dirOrRoot(store, layout.DocsDir)

	descriptors, err := store.List(srcDir, layout.DescriptorPattern)
	if err != nil {
		return nil, fmt.Errorf("fileset: descriptors: %w", err)
	}
	modules, err := store.List(srcDir, layout.LibraryPattern)
	if err != nil {
		return nil, fmt.Errorf("fileset: libraries: %w", err)
	}
	fs := &models.FileSet{Descriptors: descriptors}
	for _, m := range modules {
		if slices.Contains(descriptors, m) || matchesAny(path.Base(m), layout.ExcludeLibraries) {
			continue
		}
		fs.Libraries = append(fs.Libraries, m)
	}

	docs, err := store.List(docsDir, layout.DocPattern)
	if err != nil {
		return nil, fmt.Errorf("fileset: docs: %w", err)
	}
	for _, d := range docs {
		base := path.Base(d)
		if matchesAny(base, layout.ExcludeDocs) || isChangelog(base, layout.Changelog) {
			continue
		}
		fs.Docs = append(fs.Docs, d)
	}
	if layout.DocSourcePattern != "" {
		fs.DocSources, err = store.List(docsDir, layout.DocSourcePattern)
		if err != nil {
			return nil, fmt.Errorf("fileset: doc sources: %w", err)
		}
	}
	return fs, nil
}

func dirOrRoot(store storage.Provider, dir string) string {
	if dir != "" && store.IsDir(dir) {
		return dir
	}
	return ""
}

func isChangelog(base string, candidates []string) bool {
	for _, c := range candidates {
		if path.Base(c) == base {
			return true
		}
	}
	return false
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok || strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}
