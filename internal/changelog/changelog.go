// Package changelog reconciles the newest changelog entry with the version
// being released.
//
// Reconciliation is split in two steps. Plan inspects the file and decides
// what to do; when the decision needs a human answer the plan carries the
// question. Apply then writes the planned content, or aborts when the
// question was answered no.
package changelog

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/starford/elrelease/internal/apperr"
	"github.com/starford/elrelease/internal/models"
	"github.com/starford/elrelease/internal/parser"
	"github.com/starford/elrelease/internal/storage"
)

// Unreleased is the date placeholder of an entry that has not shipped.
const Unreleased = "UNRELEASED"

// Action is the outcome of reconciling the changelog.
type Action string

const (
	ActionNone        Action = "none"        // no changelog and nothing released yet
	ActionCreated     Action = "created"     // file created with a stub for the previous release
	ActionInserted    Action = "inserted"    // stub inserted into a file without entries
	ActionStubbed     Action = "stubbed"     // newest header reset to UNRELEASED
	ActionAdded       Action = "added"       // dated entry added above the previous release
	ActionDated       Action = "dated"       // newest entry's date set to today
	ActionUnchanged   Action = "unchanged"   // newest entry already up to date
	ActionOverwritten Action = "overwritten" // mismatching header replaced after confirmation
)

// headerRe matches "* vVERSION DATE" and a dateless "* vVERSION".
var headerRe = regexp.MustCompile(`(?m)^\* v(\d[\d.]*(?:\.50-git)?)(?:[ \t]+(\S+))?(?:[ \t]|\r?$)`)

// FormatHeader renders an entry header, padding "v{version}" to nine
// columns and keeping at least one space before the date.
func FormatHeader(version, date string) string {
	v := "v" + version
	if len(v) >= 9 {
		return "* " + v + " " + date
	}
	return fmt.Sprintf("* %-9s%s", v, date)
}

// Latest returns the first entry header in src.
func Latest(src []byte) (*models.ChangelogEntry, bool) {
	m := headerRe.FindSubmatchIndex(src)
	if m == nil {
		return nil, false
	}
	end := m[0]
	for end < len(src) && src[end] != '\n' {
		end++
	}
	if end > m[0] && src[end-1] == '\r' {
		end--
	}
	e := &models.ChangelogEntry{
		Version: string(src[m[2]:m[3]]),
		Start:   m[0],
		End:     end,
	}
	if m[4] >= 0 {
		e.Date = string(src[m[4]:m[5]])
	}
	return e, true
}

// Request describes what the changelog should say after reconciliation.
type Request struct {
	Target   string // version the newest entry should carry
	Previous string // latest release, empty when there is none
	Stub     bool   // post-release mode: newest entry becomes UNRELEASED
}

// Plan is a decided but not yet written reconciliation.
type Plan struct {
	Path    string
	Action  Action
	Entry   *models.ChangelogEntry // newest entry after the change
	Prompt  string                 // non-empty when Apply needs an approval
	Warning error

	content []byte
	write   bool
}

// Result reports what Apply did.
type Result struct {
	Path    string
	Action  Action
	Entry   *models.ChangelogEntry
	Warning error
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithCandidates sets the changelog paths searched, in order. The first one
// is used when the file has to be created.
func WithCandidates(paths ...string) Option {
	return func(r *Reconciler) {
		if len(paths) > 0 {
			r.candidates = paths
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// Reconciler finds the changelog and keeps its newest entry in step with
// the release being prepared.
type Reconciler struct {
	store      storage.Provider
	candidates []string
	now        func() time.Time
	logger     *slog.Logger
}

// DefaultCandidates lists the changelog locations searched by default.
var DefaultCandidates = []string{"CHANGELOG", "CHANGELOG.org", "docs/CHANGELOG"}

// New creates a Reconciler over store.
func New(store storage.Provider, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:      store,
		candidates: DefaultCandidates,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Find returns the path of the existing changelog.
func (r *Reconciler) Find() (string, bool) {
	for _, c := range r.candidates {
		if r.store.Exists(c) {
			return c, true
		}
	}
	return "", false
}

func (r *Reconciler) today() string {
	return r.now().Format("2006-01-02")
}

// Plan decides how to reconcile the changelog for req without writing.
// The first matching rule wins.
func (r *Reconciler) Plan(req Request) (*Plan, error) {
	path, exists := r.Find()
	if !exists {
		if req.Previous == "" {
			return &Plan{Action: ActionNone}, nil
		}
		path = r.candidates[0]
		header := FormatHeader(req.Previous, Unreleased)
		content := "# -*- mode: org -*-\n" + header + "\n"
		entry, _ := Latest([]byte(content))
		return &Plan{
			Path:    path,
			Action:  ActionCreated,
			Entry:   entry,
			Prompt:  fmt.Sprintf("Create %s? ", path),
			content: []byte(content),
			write:   true,
		}, nil
	}

	src, err := r.store.Read(path)
	if err != nil {
		return nil, fmt.Errorf("changelog: %w", err)
	}
	p := &Plan{Path: path}

	entry, found := Latest(src)
	if !found {
		at := preambleEnd(src)
		eol := parser.LineEnding(src)
		stub := FormatHeader(req.Target, Unreleased) + eol + eol
		if at > 0 && src[at-1] != '\n' {
			stub = eol + stub
		}
		p.Action = ActionInserted
		p.content = splice(src, at, at, stub)
		p.write = true
		p.Entry, _ = Latest(p.content)
		return p, nil
	}

	today := r.today()
	switch {
	case req.Stub:
		p.Action = ActionStubbed
		p.content = splice(src, entry.Start, entry.End, FormatHeader(req.Target, Unreleased))
	case req.Previous != "" && entry.Version == req.Previous:
		p.Action = ActionAdded
		eol := parser.LineEnding(src)
		p.content = splice(src, entry.Start, entry.Start, FormatHeader(req.Target, today)+eol+eol)
		p.Warning = fmt.Errorf("%w: %s has no notes for v%s yet; please fill them in", apperr.ErrStubChangelog, path, req.Target)
	case entry.Version == req.Target:
		if entry.Date == today {
			p.Action = ActionUnchanged
			p.Entry = entry
			return p, nil
		}
		p.Action = ActionDated
		p.content = splice(src, entry.Start, entry.End, FormatHeader(req.Target, today))
	default:
		p.Action = ActionOverwritten
		p.Prompt = fmt.Sprintf("Overwrite changelog entry v%s (%s) with v%s? ", entry.Version, entry.Date, req.Target)
		p.content = splice(src, entry.Start, entry.End, FormatHeader(req.Target, today))
	}
	if bytes.Equal(p.content, src) {
		return &Plan{Path: path, Action: ActionUnchanged, Entry: entry}, nil
	}
	p.write = true
	p.Entry, _ = Latest(p.content)
	return p, nil
}

// Apply carries out p. approved answers p.Prompt and is ignored when the
// plan asks nothing; a refusal aborts with apperr.ErrChangelogAbort and
// leaves the file untouched.
func (r *Reconciler) Apply(p *Plan, approved bool) (*Result, error) {
	if p.Prompt != "" && !approved {
		return nil, fmt.Errorf("%w: %s left unchanged", apperr.ErrChangelogAbort, orDefault(p.Path, "changelog"))
	}
	if p.write {
		if err := r.store.Write(p.Path, p.content); err != nil {
			return nil, fmt.Errorf("changelog: %w", err)
		}
	}
	res := &Result{Path: p.Path, Action: p.Action, Entry: p.Entry, Warning: p.Warning}
	attrs := []any{slog.String("path", p.Path), slog.String("action", string(p.Action))}
	if p.Entry != nil {
		attrs = append(attrs, slog.String("version", p.Entry.Version), slog.String("date", p.Entry.Date))
	}
	r.logger.Info("changelog reconciled", attrs...)
	if p.Warning != nil {
		r.logger.Warn("changelog needs attention", slog.String("warning", p.Warning.Error()))
	}
	return res, nil
}

// Confirmer answers yes/no questions.
type Confirmer interface {
	Confirm(message string) (bool, error)
}

// Reconcile plans, asks c when the plan needs approval, and applies.
func (r *Reconciler) Reconcile(req Request, c Confirmer) (*Result, error) {
	p, err := r.Plan(req)
	if err != nil {
		return nil, err
	}
	approved := true
	if p.Prompt != "" {
		if approved, err = c.Confirm(p.Prompt); err != nil {
			return nil, fmt.Errorf("changelog: confirm: %w", err)
		}
	}
	return r.Apply(p, approved)
}

// preambleEnd returns the offset after leading "#" lines such as
// "# -*- mode: org -*-".
func preambleEnd(src []byte) int {
	pos := 0
	for pos < len(src) && src[pos] == '#' {
		nl := bytes.IndexByte(src[pos:], '\n')
		if nl < 0 {
			return len(src)
		}
		pos += nl + 1
	}
	return pos
}

func splice(src []byte, start, end int, repl string) []byte {
	out := make([]byte, 0, len(src)-(end-start)+len(repl))
	out = append(out, src[:start]...)
	out = append(out, repl...)
	return append(out, src[end:]...)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
