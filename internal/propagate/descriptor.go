package propagate

import (
	"strings"

	"github.com/starford/elrelease/internal/deps"
	"github.com/starford/elrelease/internal/parser"
)

// rewriteDescriptor sets the version of a define-package form, updates its
// dependency list and prints the form in canonical layout:
//
//	(define-package "magit" "4.1.0"
//	  "A Git porcelain inside Emacs."
//	  '((emacs         "27.1")
//	    (magit-section "4.1.0"))
//	  :homepage "https://magit.vc")
func rewriteDescriptor(src []byte, ver string, updates map[string]string, order deps.Order) ([]byte, error) {
	d, err := parser.ParseDescriptor(src)
	if err != nil {
		return nil, err
	}
	requires := order.Update(d.Requires, updates)

	elems := []string{d.DocstringRaw}
	if len(requires) == 0 {
		elems = append(elems, "nil")
	} else {
		elems = append(elems, deps.FormatAligned(requires, "'(", "    "))
	}
	for _, prop := range d.Properties {
		elems = append(elems, prop.Key+" "+prop.Value)
	}

	var sb strings.Builder
	sb.WriteString("(define-package ")
	sb.WriteString(d.NameRaw)
	sb.WriteByte(' ')
	sb.WriteString(parser.Quote(ver))
	for _, e := range elems {
		sb.WriteString("\n  ")
		sb.WriteString(e)
	}
	sb.WriteByte(')')

	form := sb.String()
	if eol := parser.LineEnding(src); eol != "\n" {
		form = strings.ReplaceAll(strings.ReplaceAll(form, "\r\n", "\n"), "\n", eol)
	}
	return []byte(d.Prefix + form + d.Suffix), nil
}
