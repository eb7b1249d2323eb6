// Package vcs drives git on behalf of release operations: listing release
// tags, staging tracked changes and creating the release commit.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"

	"github.com/starford/elrelease/internal/version"
)

// CommitRequest describes the commit that closes a release operation.
type CommitRequest struct {
	Message    string
	SigningKey string // passed to -S when set
	AllowEmpty bool
}

// Git runs the git executable inside a work tree.
type Git struct {
	dir       string
	tagPrefix string
	logger    *slog.Logger
	run       func(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// NewGit creates a Git collaborator for the work tree at dir. Release tags
// are expected to look like "{tagPrefix}{version}", e.g. "v4.1.0".
func NewGit(dir, tagPrefix string, logger *slog.Logger) *Git {
	return &Git{dir: dir, tagPrefix: tagPrefix, logger: logger, run: execGit}
}

func execGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Releases returns known release versions, newest first. Tags that do not
// parse as release versions are ignored.
func (g *Git) Releases(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, g.dir, "tag", "--list", g.tagPrefix+"*")
	if err != nil {
		return nil, err
	}
	return SortReleases(strings.Fields(string(out)), g.tagPrefix), nil
}

// SortReleases strips prefix from tags, drops anything that is not a
// release version, and orders the rest newest first.
func SortReleases(tags []string, prefix string) []string {
	type entry struct {
		raw string
		v   version.Version
	}
	var list []entry
	for _, t := range tags {
		raw := strings.TrimPrefix(t, prefix)
		v, err := version.Parse(raw)
		if err != nil || v.Snapshot {
			continue
		}
		list = append(list, entry{raw: raw, v: v})
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].v.Compare(list[j].v) > 0
	})
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.raw
	}
	return out
}

// StageAll stages modifications of tracked files.
func (g *Git) StageAll(ctx context.Context) error {
	_, err := g.run(ctx, g.dir, "add", "--update")
	return err
}

// Commit creates a commit from the index.
func (g *Git) Commit(ctx context.Context, req CommitRequest) error {
	args := []string{"commit", "--message", req.Message}
	if req.SigningKey != "" {
		args = append(args, "--gpg-sign="+req.SigningKey)
	}
	if req.AllowEmpty {
		args = append(args, "--allow-empty")
	}
	if _, err := g.run(ctx, g.dir, args...); err != nil {
		return err
	}
	g.logger.Info("commit created", slog.String("message", req.Message), slog.Bool("signed", req.SigningKey != ""))
	return nil
}
