package parser

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/starford/elrelease/internal/apperr"
)

// Span is a half-open byte range in a source file.
type Span struct {
	Start, End int
}

// HeaderField finds the first ";; NAME: value" line and returns the span of
// its value. ok is false when the field is absent.
func HeaderField(src []byte, name string) (value string, span Span, ok bool) {
	re := regexp.MustCompile(`(?m)^;+[ \t]*` + regexp.QuoteMeta(name) + `:[ \t]*(\S.*?)[ \t\r]*$`)
	m := re.FindSubmatchIndex(src)
	if m == nil {
		return "", Span{}, false
	}
	return string(src[m[2]:m[3]]), Span{m[2], m[3]}, true
}

// RequiresHeader is the Package-Requires field of a library header, which
// may continue over several comment lines.
type RequiresHeader struct {
	Span      Span   // whole-line span covering every line of the field
	Lead      string // comment prefix of the first line, e.g. ";; "
	Multiline bool
	List      *Node
	Text      string // the joined list text List was read from
}

var requiresRe = regexp.MustCompile(`(?m)^(;+[ \t]*)Package-Requires:[ \t]*`)
var commentLeadRe = regexp.MustCompile(`^;+[ \t]*`)

// FindRequires locates and reads the Package-Requires header of a library.
// It returns nil, nil when the library has no such header.
func FindRequires(src []byte) (*RequiresHeader, error) {
	m := requiresRe.FindSubmatchIndex(src)
	if m == nil {
		return nil, nil
	}
	h := &RequiresHeader{Lead: string(src[m[2]:m[3]])}
	h.Span.Start = m[0]

	var text bytes.Buffer
	pos := m[1]
	lines := 0
	for {
		eol := bytes.IndexByte(src[pos:], '\n')
		lineEnd, next := len(src), 0
		if eol >= 0 {
			lineEnd, next = pos+eol, pos+eol+1
			if lineEnd > pos && src[lineEnd-1] == '\r' {
				lineEnd--
			}
		}
		text.Write(src[pos:lineEnd])
		text.WriteByte('\n')
		lines++
		h.Span.End = lineEnd
		if depth(text.Bytes()) <= 0 || eol < 0 {
			break
		}
		rest := src[next:]
		lead := commentLeadRe.Find(rest)
		if lead == nil {
			return nil, fmt.Errorf("%w: unterminated Package-Requires header", apperr.ErrMalformed)
		}
		pos = next + len(lead)
	}
	h.Multiline = lines > 1
	h.Text = text.String()

	list, err := ReadString(h.Text)
	if err != nil {
		return nil, fmt.Errorf("read Package-Requires: %w", err)
	}
	if list.Kind != KindList {
		return nil, fmt.Errorf("%w: Package-Requires is not a list", apperr.ErrMalformed)
	}
	h.List = list
	return h, nil
}

// depth returns the paren nesting left open at the end of s, ignoring
// parens inside strings.
func depth(s []byte) int {
	d := 0
	inString, escaped := false, false
	for _, c := range s {
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '(':
			d++
		case c == ')':
			d--
		}
	}
	return d
}
