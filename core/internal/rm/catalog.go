// Package rm exposes the openEHR reference model to the query compiler: the
// type hierarchy, attribute schemas, the structural types that are stored one
// row per node and the columns materialized outside the JSON data.
package rm

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rm.yaml
var rmSchema []byte

type typeDecl struct {
	Name       string     `yaml:"name"`
	Parents    []string   `yaml:"parents"`
	Abstract   bool       `yaml:"abstract"`
	Primitive  bool       `yaml:"primitive"`
	Attributes []attrDecl `yaml:"attributes"`
}

type attrDecl struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Multiple bool   `yaml:"multiple"`
	Nullable bool   `yaml:"nullable"`
}

// TypeInfo describes one RM type.
type TypeInfo struct {
	Name      string
	Parents   []string
	Abstract  bool
	Primitive bool

	// ancestors including the type itself
	ancestors map[string]struct{}
}

// AttInfo is the schema of one attribute of a concrete type. Types holds the
// concrete types the attribute may carry.
type AttInfo struct {
	Declared string
	Types    TypeSet
	Multiple bool
	Nullable bool
}

// Catalog is the immutable RM type catalog. It is safe for concurrent use.
type Catalog struct {
	types       map[string]*TypeInfo
	attrs       map[string]map[string]AttInfo
	descendants map[string]TypeSet
	structures  map[string]StructureType
	reach       map[string]TypeSet
}

var (
	defaultCatalog *Catalog
	defaultErr     error
	once           sync.Once
)

// Default returns the catalog built from the embedded schema. It is built on
// first use.
func Default() *Catalog {
	once.Do(func() {
		defaultCatalog, defaultErr = NewCatalog(rmSchema)
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultCatalog
}

// NewCatalog builds a catalog from a YAML schema.
func NewCatalog(schema []byte) (*Catalog, error) {
	var decls []typeDecl
	dec := yaml.NewDecoder(bytes.NewReader(schema))
	dec.KnownFields(true)
	if err := dec.Decode(&decls); err != nil {
		return nil, fmt.Errorf("rm schema: %w", err)
	}

	c := &Catalog{
		types:       make(map[string]*TypeInfo, len(decls)),
		attrs:       make(map[string]map[string]AttInfo, len(decls)),
		descendants: make(map[string]TypeSet, len(decls)),
	}

	byName := make(map[string]*typeDecl, len(decls))
	for i := range decls {
		d := &decls[i]
		if _, ok := byName[d.Name]; ok {
			return nil, fmt.Errorf("rm schema: duplicate type %s", d.Name)
		}
		byName[d.Name] = d
		c.types[d.Name] = &TypeInfo{
			Name:      d.Name,
			Parents:   d.Parents,
			Abstract:  d.Abstract,
			Primitive: d.Primitive,
		}
	}

	for _, d := range decls {
		for _, p := range d.Parents {
			if _, ok := byName[p]; !ok {
				return nil, fmt.Errorf("rm schema: %s: unknown parent %s", d.Name, p)
			}
		}
		for _, a := range d.Attributes {
			if _, ok := byName[a.Type]; !ok {
				return nil, fmt.Errorf("rm schema: %s.%s: unknown type %s", d.Name, a.Name, a.Type)
			}
		}
	}

	for _, ti := range c.types {
		anc := make(map[string]struct{})
		if err := c.collectAncestors(ti.Name, anc, nil); err != nil {
			return nil, err
		}
		ti.ancestors = anc
	}

	for name := range c.types {
		var desc []string
		for _, ti := range c.types {
			if _, ok := ti.ancestors[name]; ok && !ti.Abstract {
				desc = append(desc, ti.Name)
			}
		}
		c.descendants[name] = NewTypeSet(desc...)
	}

	for _, ti := range c.types {
		if ti.Abstract {
			continue
		}
		c.attrs[ti.Name] = c.resolveAttributes(ti.Name, byName)
	}

	if err := c.buildStructures(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) collectAncestors(name string, anc map[string]struct{}, path []string) error {
	for _, p := range path {
		if p == name {
			return fmt.Errorf("rm schema: inheritance cycle at %s", name)
		}
	}
	anc[name] = struct{}{}
	for _, p := range c.types[name].Parents {
		if err := c.collectAncestors(p, anc, append(path, name)); err != nil {
			return err
		}
	}
	return nil
}

// resolveAttributes merges declared attributes from the root of the hierarchy
// down so that redeclarations override inherited attributes.
func (c *Catalog) resolveAttributes(name string, byName map[string]*typeDecl) map[string]AttInfo {
	out := make(map[string]AttInfo)
	var walk func(n string)
	walk = func(n string) {
		for _, p := range c.types[n].Parents {
			walk(p)
		}
		for _, a := range byName[n].Attributes {
			out[a.Name] = AttInfo{
				Declared: a.Type,
				Types:    c.descendants[a.Type],
				Multiple: a.Multiple,
				Nullable: a.Nullable,
			}
		}
	}
	walk(name)
	return out
}

// Lookup returns the type named name.
func (c *Catalog) Lookup(name string) (*TypeInfo, bool) {
	ti, ok := c.types[name]
	return ti, ok
}

// AttributesOf returns the attributes of a concrete type.
func (c *Catalog) AttributesOf(name string) map[string]AttInfo {
	return c.attrs[name]
}

// Attribute returns the schema of attribute attr on concrete type name.
func (c *Catalog) Attribute(name, attr string) (AttInfo, bool) {
	ai, ok := c.attrs[name][attr]
	return ai, ok
}

// DescendantsOf returns the concrete types that are name or inherit from it.
func (c *Catalog) DescendantsOf(name string) TypeSet {
	return c.descendants[name]
}

func (c *Catalog) IsAbstract(name string) bool {
	ti, ok := c.types[name]
	return ok && ti.Abstract
}

func (c *Catalog) IsPrimitive(name string) bool {
	ti, ok := c.types[name]
	return ok && ti.Primitive
}

// IsA reports whether name is ancestor or inherits from it.
func (c *Catalog) IsA(name, ancestor string) bool {
	ti, ok := c.types[name]
	if !ok {
		return false
	}
	_, ok = ti.ancestors[ancestor]
	return ok
}

func (c *Catalog) IsDvOrdered(name string) bool {
	return c.IsA(name, "DV_ORDERED")
}

func (c *Catalog) IsLocatable(name string) bool {
	return c.IsA(name, "LOCATABLE")
}

// IsStructural reports whether instances of name are stored one row per node.
func (c *Catalog) IsStructural(name string) bool {
	st, ok := c.structures[name]
	return ok && !st.Intermediate
}

// ConcreteTypes returns all concrete types sorted by name.
func (c *Catalog) ConcreteTypes() []string {
	var out []string
	for n, ti := range c.types {
		if !ti.Abstract {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// AttributeNames returns every attribute name declared in the catalog.
func (c *Catalog) AttributeNames() []string {
	seen := make(map[string]struct{})
	for _, am := range c.attrs {
		for a := range am {
			seen[a] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
