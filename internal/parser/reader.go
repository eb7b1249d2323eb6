// Package parser reads the parts of Emacs Lisp source that release
// bookkeeping touches: package descriptor forms and library header fields.
//
// The reader understands lists, vectors, strings, symbols and quote
// prefixes. Every node remembers its byte span so callers can splice
// replacements into the original text instead of reprinting it.
package parser

import (
	"fmt"
	"strings"

	"github.com/starford/elrelease/internal/apperr"
)

// Kind classifies a Node.
type Kind int

const (
	KindSymbol Kind = iota
	KindString
	KindList
	KindVector
)

// Node is one form read from source.
type Node struct {
	Kind     Kind
	Text     string // symbol name, or decoded string value
	Children []*Node
	Quoted   bool // preceded by ' or #'
	Start    int  // offset of the first byte, quote prefix included
	End      int  // offset just past the last byte
}

// Raw returns the exact source text of n.
func (n *Node) Raw(src []byte) string {
	return string(src[n.Start:n.End])
}

// IsSymbol reports whether n is the symbol name.
func (n *Node) IsSymbol(name string) bool {
	return n != nil && n.Kind == KindSymbol && n.Text == name
}

type reader struct {
	src []byte
	pos int
}

// Read reads the first form at or after offset. It returns the node and the
// offset just past it.
func Read(src []byte, offset int) (*Node, int, error) {
	r := &reader{src: src, pos: offset}
	r.skipSpace()
	if r.pos >= len(r.src) {
		return nil, r.pos, fmt.Errorf("%w: unexpected end of input", apperr.ErrMalformed)
	}
	n, err := r.read()
	if err != nil {
		return nil, r.pos, err
	}
	return n, r.pos, nil
}

// ReadString reads a single form from s.
func ReadString(s string) (*Node, error) {
	n, _, err := Read([]byte(s), 0)
	return n, err
}

func (r *reader) skipSpace() {
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		switch {
		case c == ';':
			for r.pos < len(r.src) && r.src[r.pos] != '\n' {
				r.pos++
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			r.pos++
		default:
			return
		}
	}
}

func (r *reader) read() (*Node, error) {
	start := r.pos
	quoted := false
	switch {
	case r.src[r.pos] == '\'':
		quoted = true
		r.pos++
	case r.src[r.pos] == '#' && r.pos+1 < len(r.src) && r.src[r.pos+1] == '\'':
		quoted = true
		r.pos += 2
	}
	if quoted {
		r.skipSpace()
		if r.pos >= len(r.src) {
			return nil, fmt.Errorf("%w: quote at end of input", apperr.ErrMalformed)
		}
		n, err := r.read()
		if err != nil {
			return nil, err
		}
		n.Quoted = true
		n.Start = start
		return n, nil
	}

	switch c := r.src[r.pos]; c {
	case '(':
		return r.readSeq(KindList, ')')
	case '[':
		return r.readSeq(KindVector, ']')
	case ')', ']':
		return nil, fmt.Errorf("%w: unexpected %q at offset %d", apperr.ErrMalformed, c, r.pos)
	case '"':
		return r.readString()
	default:
		return r.readSymbol(), nil
	}
}

func (r *reader) readSeq(kind Kind, closer byte) (*Node, error) {
	n := &Node{Kind: kind, Start: r.pos}
	r.pos++
	for {
		r.skipSpace()
		if r.pos >= len(r.src) {
			return nil, fmt.Errorf("%w: unterminated list starting at offset %d", apperr.ErrMalformed, n.Start)
		}
		if r.src[r.pos] == closer {
			r.pos++
			n.End = r.pos
			return n, nil
		}
		child, err := r.read()
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
}

func (r *reader) readString() (*Node, error) {
	n := &Node{Kind: KindString, Start: r.pos}
	r.pos++
	var sb strings.Builder
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		switch c {
		case '\\':
			if r.pos+1 >= len(r.src) {
				return nil, fmt.Errorf("%w: dangling escape in string", apperr.ErrMalformed)
			}
			next := r.src[r.pos+1]
			switch next {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\n':
				// escaped newline is a line continuation
			default:
				sb.WriteByte(next)
			}
			r.pos += 2
		case '"':
			r.pos++
			n.Text = sb.String()
			n.End = r.pos
			return n, nil
		default:
			sb.WriteByte(c)
			r.pos++
		}
	}
	return nil, fmt.Errorf("%w: unterminated string starting at offset %d", apperr.ErrMalformed, n.Start)
}

func (r *reader) readSymbol() *Node {
	n := &Node{Kind: KindSymbol, Start: r.pos}
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		if c == '\\' && r.pos+1 < len(r.src) {
			r.pos += 2
			continue
		}
		if isDelimiter(c) {
			break
		}
		r.pos++
	}
	n.End = r.pos
	n.Text = string(r.src[n.Start:n.End])
	return n
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '(', ')', '[', ']', '"', '\'', ';':
		return true
	}
	return false
}

// Quote renders s as an Emacs Lisp string literal.
func Quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	sb.WriteByte('"')
	return sb.String()
}
