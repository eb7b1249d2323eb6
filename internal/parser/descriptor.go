package parser

import (
	"fmt"

	"github.com/starford/elrelease/internal/apperr"
	"github.com/starford/elrelease/internal/models"
)

// Property is one trailing keyword/value pair of a define-package form,
// kept as source text.
type Property struct {
	Key   string
	Value string
}

// Descriptor is a parsed "-pkg.el" file:
//
//	(define-package NAME VERSION DOCSTRING REQUIRES PROPERTIES...)
type Descriptor struct {
	Prefix       string // text before the form, usually comment lines
	NameRaw      string
	Name         string
	Version      string
	DocstringRaw string
	Requires     []models.Dependency
	Properties   []Property
	Suffix       string // text after the form
}

// ParseDescriptor parses the first form of src as a package descriptor.
func ParseDescriptor(src []byte) (*Descriptor, error) {
	form, end, err := Read(src, 0)
	if err != nil {
		return nil, err
	}
	if form.Kind != KindList || len(form.Children) == 0 || !form.Children[0].IsSymbol("define-package") {
		return nil, fmt.Errorf("%w: first form is not define-package", apperr.ErrMalformed)
	}
	el := form.Children
	if len(el) < 4 {
		return nil, fmt.Errorf("%w: define-package needs name, version and docstring", apperr.ErrMalformed)
	}
	if len(el) < 5 {
		return nil, fmt.Errorf("%w: define-package has no dependency list", apperr.ErrMissingDescriptor)
	}
	if el[1].Kind != KindString || el[2].Kind != KindString {
		return nil, fmt.Errorf("%w: package name and version must be strings", apperr.ErrMalformed)
	}
	requires, err := Dependencies(el[4])
	if err != nil {
		return nil, err
	}

	d := &Descriptor{
		Prefix:       string(src[:form.Start]),
		NameRaw:      el[1].Raw(src),
		Name:         el[1].Text,
		Version:      el[2].Text,
		DocstringRaw: el[3].Raw(src),
		Requires:     requires,
		Suffix:       string(src[end:]),
	}
	props := el[5:]
	if len(props)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of define-package properties", apperr.ErrMalformed)
	}
	for i := 0; i < len(props); i += 2 {
		d.Properties = append(d.Properties, Property{
			Key:   props[i].Raw(src),
			Value: props[i+1].Raw(src),
		})
	}
	return d, nil
}

// Dependencies converts a dependency list form into entries. The symbol nil
// and the empty list both mean "no dependencies".
func Dependencies(n *Node) ([]models.Dependency, error) {
	if n.IsSymbol("nil") {
		return nil, nil
	}
	if n.Kind != KindList {
		return nil, fmt.Errorf("%w: dependency list is not a list", apperr.ErrMalformed)
	}
	out := make([]models.Dependency, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Kind != KindList || len(c.Children) == 0 || c.Children[0].Kind != KindSymbol {
			return nil, fmt.Errorf("%w: bad dependency entry at offset %d", apperr.ErrMalformed, c.Start)
		}
		dep := models.Dependency{Name: c.Children[0].Text}
		for _, v := range c.Children[1:] {
			if v.Kind != KindString {
				return nil, fmt.Errorf("%w: dependency %s has a non-string version", apperr.ErrMalformed, dep.Name)
			}
			dep.Constraints = append(dep.Constraints, v.Text)
		}
		out = append(out, dep)
	}
	return out, nil
}
