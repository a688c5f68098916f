package core

import (
	"sort"

	"github.com/ehrbase/aqlengine/core/internal/errs"
)

// TypeDescription describes a reference model type as the compiler sees it.
type TypeDescription struct {
	Name     string   `json:"name" yaml:"name"`
	Parents  []string `json:"parents,omitempty" yaml:"parents,omitempty"`
	Abstract bool     `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Structural types are stored one row per node and can be used in
	// CONTAINS clauses.
	Structural bool `json:"structural,omitempty" yaml:"structural,omitempty"`

	// Concrete lists the concrete types an abstract type stands for.
	Concrete   []string               `json:"concrete,omitempty" yaml:"concrete,omitempty"`
	Attributes []AttributeDescription `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

type AttributeDescription struct {
	Name     string   `json:"name" yaml:"name"`
	Types    []string `json:"types" yaml:"types"`
	Multiple bool     `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	Nullable bool     `json:"nullable,omitempty" yaml:"nullable,omitempty"`
}

// DescribeType returns the catalog entry of the RM type name.
func (e *Engine) DescribeType(name string) (*TypeDescription, error) {
	ti, ok := e.cat.Lookup(name)
	if !ok {
		return nil, errs.Invalid("unknown RM type %s", name)
	}

	td := &TypeDescription{
		Name:       ti.Name,
		Parents:    ti.Parents,
		Abstract:   ti.Abstract,
		Structural: e.cat.IsStructural(ti.Name),
	}
	if ti.Abstract {
		td.Concrete = e.cat.DescendantsOf(ti.Name).Names()
		return td, nil
	}

	for n, ai := range e.cat.AttributesOf(ti.Name) {
		td.Attributes = append(td.Attributes, AttributeDescription{
			Name:     n,
			Types:    ai.Types.Names(),
			Multiple: ai.Multiple,
			Nullable: ai.Nullable,
		})
	}
	sort.Slice(td.Attributes, func(i, j int) bool {
		return td.Attributes[i].Name < td.Attributes[j].Name
	})
	return td, nil
}

// Types returns the names of all concrete RM types.
func (e *Engine) Types() []string {
	return e.cat.ConcreteTypes()
}
