// Package copyright extends copyright notices to cover the current year.
package copyright

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/starford/elrelease/internal/apperr"
	"github.com/starford/elrelease/internal/checksum"
	"github.com/starford/elrelease/internal/models"
	"github.com/starford/elrelease/internal/storage"
)

// noticeRe matches "Copyright (C) 2008-2024" and "Copyright (C) 2019",
// with an optional en dash or comma-separated year list before the last year.
var noticeRe = regexp.MustCompile(`(?i)Copyright[ \t]+(?:\(C\)|©)[ \t]+((?:\d{4}(?:[ \t]*(?:-|–|,)[ \t]*))*)(\d{4})`)

// Extend returns src with its first copyright notice covering year. It
// reports false when nothing needed to change.
func Extend(src []byte, year int) ([]byte, bool) {
	m := noticeRe.FindSubmatchIndex(src)
	if m == nil {
		return src, false
	}
	last, err := strconv.Atoi(string(src[m[4]:m[5]]))
	if err != nil || last >= year {
		return src, false
	}
	var repl string
	switch {
	case m[3] > m[2] && isRangeEnd(src[m[2]:m[3]]):
		// "2008-2024" → "2008-2026"
		repl = strconv.Itoa(year)
	default:
		// "2019" → "2019-2026", "2008, 2019" → "2008, 2019-2026"
		repl = string(src[m[4]:m[5]]) + "-" + strconv.Itoa(year)
	}
	out := make([]byte, 0, len(src)+5)
	out = append(out, src[:m[4]]...)
	out = append(out, repl...)
	out = append(out, src[m[5]:]...)
	return out, true
}

// isRangeEnd reports whether the year prefix ends in a range dash.
func isRangeEnd(prefix []byte) bool {
	for i := len(prefix) - 1; i >= 0; i-- {
		switch c := prefix[i]; {
		case c == ' ' || c == '\t':
			continue
		case c == '-':
			return true
		case c == 0x93 && i >= 2 && prefix[i-2] == 0xe2 && prefix[i-1] == 0x80:
			return true // en dash, UTF-8 e2 80 93
		default:
			return false
		}
	}
	return false
}

// DocBuilder regenerates derived documentation.
type DocBuilder interface {
	Build(ctx context.Context, full bool) error
}

// Bumper updates copyright years across library files.
type Bumper struct {
	store  storage.Provider
	docs   DocBuilder
	now    func() time.Time
	logger *slog.Logger
}

// NewBumper creates a Bumper. docs may be nil.
func NewBumper(store storage.Provider, docs DocBuilder, now func() time.Time, logger *slog.Logger) *Bumper {
	if now == nil {
		now = time.Now
	}
	return &Bumper{store: store, docs: docs, now: now, logger: logger}
}

// Report lists the files whose notice changed and the files that failed.
type Report struct {
	Year     int
	Changed  []string
	Failures apperr.FileErrors
}

// Bump extends the notice of every library in fs to the current year and
// rebuilds the documentation when it has sources.
func (b *Bumper) Bump(ctx context.Context, fs *models.FileSet) (*Report, error) {
	report := &Report{Year: b.now().Year()}
	for _, path := range fs.Libraries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		src, err := b.store.Read(path)
		if err != nil {
			report.Failures = append(report.Failures, &apperr.FileError{Path: path, Err: err})
			continue
		}
		out, changed := Extend(src, report.Year)
		if !changed {
			continue
		}
		if err := b.store.Write(path, out); err != nil {
			report.Failures = append(report.Failures, &apperr.FileError{Path: path, Err: err})
			continue
		}
		report.Changed = append(report.Changed, path)
		b.logger.Debug("copyright extended", slog.String("path", path), slog.String("checksum", checksum.Short(out)))
	}
	if len(fs.DocSources) > 0 && b.docs != nil {
		if err := b.docs.Build(ctx, true); err != nil {
			report.Failures = append(report.Failures, &apperr.FileError{Path: fs.DocSources[0], Err: fmt.Errorf("rebuild docs: %w", err)})
		}
	}
	b.logger.Info("copyright years bumped",
		slog.Int("year", report.Year),
		slog.Int("changed", len(report.Changed)),
		slog.Int("failed", len(report.Failures)))
	return report, nil
}
