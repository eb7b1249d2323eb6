// Package deps rewrites dependency version constraints and keeps dependency
// lists in canonical order: the core runtime first, the compatibility shim
// second, everything else by name.
package deps

import (
	"sort"
	"strings"

	"github.com/starford/elrelease/internal/models"
	"github.com/starford/elrelease/internal/parser"
)

// Order names the two dependencies that sort ahead of the rest.
type Order struct {
	Core   string
	Compat string
}

// DefaultOrder is the ordering used by Emacs packages.
var DefaultOrder = Order{Core: "emacs", Compat: "compat"}

func (o Order) rank(name string) int {
	switch name {
	case o.Core:
		return 0
	case o.Compat:
		return 1
	}
	return 2
}

// Less reports whether dependency a sorts before b.
func (o Order) Less(a, b string) bool {
	ra, rb := o.rank(a), o.rank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

// Sort returns a canonically ordered copy of list.
func (o Order) Sort(list []models.Dependency) []models.Dependency {
	out := clone(list)
	sort.SliceStable(out, func(i, j int) bool {
		return o.Less(out[i].Name, out[j].Name)
	})
	return out
}

// Update replaces the constraint of every dependency named in updates with
// the single new constraint, leaves the others alone, and returns the list
// in canonical order. The input is not modified.
func (o Order) Update(list []models.Dependency, updates map[string]string) []models.Dependency {
	out := clone(list)
	for i := range out {
		if c, ok := updates[out[i].Name]; ok {
			out[i].Constraints = []string{c}
		}
	}
	return o.Sort(out)
}

func clone(list []models.Dependency) []models.Dependency {
	out := make([]models.Dependency, len(list))
	for i, d := range list {
		out[i] = models.Dependency{
			Name:        d.Name,
			Constraints: append([]string(nil), d.Constraints...),
		}
	}
	return out
}

// FormatEntry renders one dependency, padding the name to width.
func FormatEntry(d models.Dependency, width int) string {
	var sb strings.Builder
	sb.WriteByte('(')
	sb.WriteString(d.Name)
	for i, c := range d.Constraints {
		if i == 0 {
			sb.WriteString(strings.Repeat(" ", max(width-len(d.Name), 0)))
		}
		sb.WriteByte(' ')
		sb.WriteString(parser.Quote(c))
	}
	sb.WriteByte(')')
	return sb.String()
}

// FormatInline renders list on one line: ((emacs "27.1") (dash "2.19")).
func FormatInline(list []models.Dependency) string {
	parts := make([]string, len(list))
	for i, d := range list {
		parts[i] = FormatEntry(d, 0)
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// FormatAligned renders one dependency per line with names left-aligned to
// the longest name. The first entry follows open directly, later entries
// are prefixed by indent.
func FormatAligned(list []models.Dependency, open, indent string) string {
	if len(list) == 0 {
		return open + ")"
	}
	width := 0
	for _, d := range list {
		width = max(width, len(d.Name))
	}
	var sb strings.Builder
	sb.WriteString(open)
	for i, d := range list {
		if i > 0 {
			sb.WriteByte('\n')
			sb.WriteString(indent)
		}
		sb.WriteString(FormatEntry(d, width))
	}
	sb.WriteByte(')')
	return sb.String()
}

// Names returns the dependency names in list order.
func Names(list []models.Dependency) []string {
	out := make([]string, len(list))
	for i, d := range list {
		out[i] = d.Name
	}
	return out
}
