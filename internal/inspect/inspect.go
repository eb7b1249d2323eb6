// Package inspect reports the version every release-bumpable file currently
// declares, so a maintainer can spot files that disagree before a release.
package inspect

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/starford/elrelease/internal/changelog"
	"github.com/starford/elrelease/internal/models"
	"github.com/starford/elrelease/internal/parser"
	"github.com/starford/elrelease/internal/storage"
)

// Field is one version declaration found in a file.
type Field struct {
	Path  string `json:"path"`
	Field string `json:"field"`
	Value string `json:"value"`
}

// Status is the version state of a project.
type Status struct {
	LatestRelease string                 `json:"latest_release,omitempty"`
	Changelog     *models.ChangelogEntry `json:"changelog,omitempty"`
	ChangelogPath string                 `json:"changelog_path,omitempty"`
	Fields        []Field                `json:"fields"`
	Errors        []string               `json:"errors,omitempty"`
}

// Versions returns the distinct declared values, sorted.
func (s *Status) Versions() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, f := range s.Fields {
		if _, ok := seen[f.Value]; ok {
			continue
		}
		seen[f.Value] = struct{}{}
		out = append(out, f.Value)
	}
	sort.Strings(out)
	return out
}

// Consistent reports whether every file declares the same version.
func (s *Status) Consistent() bool {
	return len(s.Versions()) <= 1
}

// Scan reads every file of fs concurrently (at most limit at a time) and
// collects its version fields. Nothing is written.
func Scan(ctx context.Context, store storage.Provider, fs *models.FileSet, limit int) (*Status, error) {
	type job struct {
		path string
		scan func(path string, src []byte) []Field
	}
	var jobs []job
	for _, p := range fs.Descriptors {
		jobs = append(jobs, job{p, scanDescriptor})
	}
	for _, p := range fs.Libraries {
		jobs = append(jobs, job{p, scanLibrary})
	}
	for _, p := range fs.Docs {
		jobs = append(jobs, job{p, scanDoc})
	}

	results := make([][]Field, len(jobs))
	errs := make([]error, len(jobs))
	g, gCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			src, err := store.Read(j.path)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = j.scan(j.path, src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	st := &Status{}
	for i := range jobs {
		st.Fields = append(st.Fields, results[i]...)
		if errs[i] != nil {
			st.Errors = append(st.Errors, errs[i].Error())
		}
	}
	return st, nil
}

// WithChangelog adds the newest changelog entry found by r.
func (s *Status) WithChangelog(store storage.Provider, r *changelog.Reconciler) error {
	path, ok := r.Find()
	if !ok {
		return nil
	}
	src, err := store.Read(path)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	s.ChangelogPath = path
	if e, ok := changelog.Latest(src); ok {
		s.Changelog = e
	}
	return nil
}

func scanDescriptor(path string, src []byte) []Field {
	d, err := parser.ParseDescriptor(src)
	if err != nil {
		return nil
	}
	return []Field{{Path: path, Field: "define-package", Value: d.Version}}
}

func scanLibrary(path string, src []byte) []Field {
	var out []Field
	for _, name := range []string{"Version", "Package-Version"} {
		if v, _, ok := parser.HeaderField(src, name); ok {
			out = append(out, Field{Path: path, Field: name, Value: v})
		}
	}
	module := models.ModuleName(path)
	if v, _, ok := parser.VersionConstant(src, module); ok {
		out = append(out, Field{Path: path, Field: module + "-version", Value: v})
	}
	return out
}

func scanDoc(path string, src []byte) []Field {
	var out []Field
	if v, _, ok := parser.SubtitleVersion(src); ok {
		out = append(out, Field{Path: path, Field: "subtitle", Value: v})
	}
	if v, _, ok := parser.ManualVersion(src); ok {
		out = append(out, Field{Path: path, Field: "manual", Value: v})
	}
	return out
}
