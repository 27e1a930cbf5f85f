// ABOUTME: Ordered, name-keyed collections for pipeline parameters and environment variables.
// ABOUTME: Display order is insertion order; uniqueness is enforced on the name.
package pipeline

import (
	"iter"
	"slices"
)

type namedItem interface {
	Name() string
	setName(string)
}

// collection keeps items in insertion order and rejects duplicate names.
type collection[T namedItem] struct {
	kind  string
	items []T
}

// Add appends an item, failing with *DuplicateNameError if the name is taken.
func (c *collection[T]) Add(item T) error {
	if c.index(item.Name()) >= 0 {
		return &DuplicateNameError{Collection: c.kind, Name: item.Name()}
	}
	c.items = append(c.items, item)
	return nil
}

// Get looks an item up by name.
func (c *collection[T]) Get(name string) (T, bool) {
	var zero T
	i := c.index(name)
	if i < 0 {
		return zero, false
	}
	return c.items[i], true
}

// Remove deletes the named item and reports whether it existed.
func (c *collection[T]) Remove(name string) bool {
	i := c.index(name)
	if i < 0 {
		return false
	}
	c.items = slices.Delete(c.items, i, i+1)
	return true
}

// Rename changes an item's name in place, keeping its position.
func (c *collection[T]) Rename(from, to string) error {
	i := c.index(from)
	if i < 0 {
		return &NotFoundError{Collection: c.kind, Name: from}
	}
	if from == to {
		return nil
	}
	if c.index(to) >= 0 {
		return &DuplicateNameError{Collection: c.kind, Name: to}
	}
	c.items[i].setName(to)
	return nil
}

// Len returns the number of items.
func (c *collection[T]) Len() int { return len(c.items) }

// All iterates the items in display order.
func (c *collection[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, item := range c.items {
			if !yield(item) {
				return
			}
		}
	}
}

// Names returns item names in display order.
func (c *collection[T]) Names() []string {
	names := make([]string, len(c.items))
	for i, item := range c.items {
		names[i] = item.Name()
	}
	return names
}

func (c *collection[T]) index(name string) int {
	return slices.IndexFunc(c.items, func(item T) bool { return item.Name() == name })
}

// Parameter is a named pipeline parameter.
type Parameter struct {
	name  string
	value string
}

// NewParameter creates a parameter.
func NewParameter(name, value string) *Parameter {
	return &Parameter{name: name, value: value}
}

// Name returns the parameter name.
func (p *Parameter) Name() string { return p.name }

// Value returns the parameter value.
func (p *Parameter) Value() string { return p.value }

// SetValue replaces the parameter value.
func (p *Parameter) SetValue(v string) { p.value = v }

func (p *Parameter) setName(n string) { p.name = n }

// Parameters is the ordered parameter collection of a pipeline.
type Parameters struct {
	collection[*Parameter]
}

// NewParameters creates an empty parameter collection.
func NewParameters() *Parameters {
	return &Parameters{collection[*Parameter]{kind: "parameters"}}
}

func (ps *Parameters) clone() *Parameters {
	cp := NewParameters()
	for _, p := range ps.items {
		cp.items = append(cp.items, NewParameter(p.name, p.value))
	}
	return cp
}

// EnvironmentVariables is the ordered environment variable collection of a pipeline.
type EnvironmentVariables struct {
	collection[*EnvironmentVariable]
}

// NewEnvironmentVariables creates an empty variable collection.
func NewEnvironmentVariables() *EnvironmentVariables {
	return &EnvironmentVariables{collection[*EnvironmentVariable]{kind: "environment_variables"}}
}

// Plain returns the plain variables in display order.
func (vs *EnvironmentVariables) Plain() []*EnvironmentVariable {
	return vs.filter(false)
}

// Secure returns the secure variables in display order.
func (vs *EnvironmentVariables) Secure() []*EnvironmentVariable {
	return vs.filter(true)
}

func (vs *EnvironmentVariables) filter(secure bool) []*EnvironmentVariable {
	var out []*EnvironmentVariable
	for _, v := range vs.items {
		if v.secure == secure {
			out = append(out, v)
		}
	}
	return out
}

func (vs *EnvironmentVariables) clone() *EnvironmentVariables {
	cp := NewEnvironmentVariables()
	for _, v := range vs.items {
		vv := *v
		cp.items = append(cp.items, &vv)
	}
	return cp
}
