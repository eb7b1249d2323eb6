// Package models defines the domain types shared across release operations.
package models

import (
	"path/filepath"
	"strings"
	"time"
)

// FileSet is the set of release-bumpable files discovered in a project.
// Paths are relative to the project root and sorted.
type FileSet struct {
	Libraries   []string `json:"libraries"`
	Descriptors []string `json:"descriptors"`
	Docs        []string `json:"docs"`
	DocSources  []string `json:"doc_sources,omitempty"`
}

// PropagationLibraries returns the libraries that receive version headers.
// A project with a single module carries its version in the descriptor only.
func (fs *FileSet) PropagationLibraries() []string {
	if len(fs.Libraries) <= 1 {
		return nil
	}
	return fs.Libraries
}

// ModuleName returns the feature name of a library or descriptor file:
// "lisp/magit-pkg.el" and "lisp/magit.el" both yield "magit".
func ModuleName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), ".el")
	return strings.TrimSuffix(base, "-pkg")
}

// Dependency is one (name version...) element of a dependency list.
type Dependency struct {
	Name        string   `json:"name"`
	Constraints []string `json:"constraints"`
}

// ChangelogEntry is the header of the most recent changelog entry.
type ChangelogEntry struct {
	Version string `json:"version"`
	Date    string `json:"date"`
	// Start and End delimit the header line within the file, newline excluded.
	Start int `json:"-"`
	End   int `json:"-"`
}

// Run is one journaled release operation.
type Run struct {
	ID        int64     `json:"id"`
	Operation string    `json:"operation"`
	Version   string    `json:"version"`
	Previous  string    `json:"previous"`
	Changed   []string  `json:"changed"`
	Failures  []string  `json:"failures,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
	Committed bool      `json:"committed"`
	StartedAt time.Time `json:"started_at"`
}
