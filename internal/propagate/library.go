package propagate

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/starford/elrelease/internal/apperr"
	"github.com/starford/elrelease/internal/deps"
	"github.com/starford/elrelease/internal/parser"
	"github.com/starford/elrelease/internal/version"
)

var packageVersionRe = regexp.MustCompile(`:package-version\s+'\(([^\s().]+)\s+\.\s+"([^"]+)"\)`)

// libraryRewrite holds what a library file rewrite needs.
type libraryRewrite struct {
	module      string
	version     string
	previous    string
	syncDeps    bool // false for development snapshots
	updates     map[string]string
	order       deps.Order
	skipMissing bool
}

func (l libraryRewrite) apply(src []byte) ([]byte, error) {
	var edits []edit
	hasHeader := false
	for _, field := range []string{"Version", "Package-Version"} {
		if _, span, ok := parser.HeaderField(src, field); ok {
			edits = append(edits, edit{span.Start, span.End, l.version})
			hasHeader = true
		}
	}

	if _, span, ok := parser.VersionConstant(src, l.module); ok {
		edits = append(edits, edit{span.Start, span.End, l.version})
	}

	if l.syncDeps {
		edits = append(edits, l.annotationEdits(src)...)
		e, err := l.requiresEdit(src, hasHeader)
		if err != nil {
			return nil, err
		}
		if e != nil {
			edits = append(edits, *e)
		}
	}
	return applyEdits(src, edits), nil
}

// annotationEdits moves :package-version annotations of this project's
// packages forward when previous < annotated < version.
func (l libraryRewrite) annotationEdits(src []byte) []edit {
	if l.previous == "" {
		return nil
	}
	var edits []edit
	for _, m := range packageVersionRe.FindAllSubmatchIndex(src, -1) {
		name, annotated := string(src[m[2]:m[3]]), string(src[m[4]:m[5]])
		if _, ours := l.updates[name]; !ours {
			continue
		}
		if version.Between(annotated, l.previous, l.version) {
			edits = append(edits, edit{m[4], m[5], l.version})
		}
	}
	return edits
}

// requiresEdit rewrites the Package-Requires header. A library that
// declares a version but no requirements is reported unless skipMissing.
func (l libraryRewrite) requiresEdit(src []byte, hasHeader bool) (*edit, error) {
	h, err := parser.FindRequires(src)
	if err != nil {
		return nil, err
	}
	if h == nil {
		if hasHeader && !l.skipMissing {
			return nil, fmt.Errorf("%w: no Package-Requires header", apperr.ErrMissingDescriptor)
		}
		return nil, nil
	}
	current, err := parser.Dependencies(h.List)
	if err != nil {
		return nil, err
	}
	updated := l.order.Update(current, l.updates)
	if reflect.DeepEqual(current, updated) {
		return nil, nil
	}

	var text string
	if h.Multiline {
		cont := strings.TrimRight(h.Lead, " \t") + "     "
		text = deps.FormatAligned(updated, h.Lead+"Package-Requires: (\n"+cont, cont)
		text = strings.ReplaceAll(text, "\n", parser.LineEnding(src))
	} else {
		text = h.Lead + "Package-Requires: " + deps.FormatInline(updated)
	}
	return &edit{h.Span.Start, h.Span.End, text}, nil
}
