package pathanalysis

import (
	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

// Containment is the analysis of one class or VERSION expression of the
// FROM clause.
type Containment struct {
	Expr       aql.Containment
	Identifier string
	Root       Root

	// Types are the concrete types the containment may match.
	Types rm.TypeSet

	// StructureRoot is the stored object kind; RootAny for EHR.
	StructureRoot rm.StructureRoot

	// Parent is the nearest enclosing class or VERSION expression.
	Parent *Containment

	// Version is the VERSION expression for a class directly below one, and
	// the contained class for a VERSION expression.
	Version *Containment
}

// IsEhr reports whether the containment is the EHR.
func (c *Containment) IsEhr() bool {
	return c.Root.Type == "EHR"
}

// IsVersion reports whether the containment is a VERSION expression.
func (c *Containment) IsVersion() bool {
	_, ok := c.Expr.(*aql.VersionExpr)
	return ok
}

// Containments indexes the analyzed FROM clause.
type Containments struct {
	// List holds the containments in textual order.
	List   []*Containment
	byExpr map[aql.Containment]*Containment
}

// Of returns the analysis of a class or VERSION expression.
func (cs *Containments) Of(c aql.Containment) *Containment {
	return cs.byExpr[c]
}

var objectRootTypes = map[string]rm.StructureRoot{
	"COMPOSITION": rm.RootComposition,
	"EHR_STATUS":  rm.RootEhrStatus,
	"FOLDER":      rm.RootFolder,
}

// AnalyzeContainments resolves the candidate types of every containment in
// from.
func AnalyzeContainments(cat *rm.Catalog, from aql.Containment) (_ *Containments, err error) {
	defer errs.Recover(&err)

	cs := &Containments{byExpr: make(map[aql.Containment]*Containment)}

	aql.WalkContainment(from, func(node, parent aql.Containment) {
		var c *Containment
		switch v := node.(type) {
		case *aql.ClassExpr:
			c = &Containment{
				Expr:       v,
				Identifier: v.Identifier,
				Root:       Root{Type: v.Type, Predicates: v.Predicates},
			}
		case *aql.VersionExpr:
			c = &Containment{
				Expr:       v,
				Identifier: v.Identifier,
				Root:       Root{Type: "ORIGINAL_VERSION", Predicates: v.Predicates, ObjectRoot: true},
			}
		default:
			return
		}
		if parent != nil {
			c.Parent = cs.byExpr[parent]
		}
		cs.List = append(cs.List, c)
		cs.byExpr[node] = c
	})

	for _, c := range cs.List {
		if err := cs.resolve(cat, c); err != nil {
			return nil, err
		}
	}
	for _, c := range cs.List {
		if c.IsVersion() {
			if inner, ok := aql.ContainedBy(c.Expr).(*aql.ClassExpr); ok {
				ic := cs.byExpr[inner]
				c.Version, ic.Version = ic, c
				c.StructureRoot = ic.StructureRoot
			}
		}
	}
	return cs, nil
}

func (cs *Containments) resolve(cat *rm.Catalog, c *Containment) error {
	render := aql.RenderContainment(c.Expr)

	ti, ok := cat.Lookup(c.Root.Type)
	if !ok {
		return errs.Invalid("unknown RM type %s", c.Root.Type).WithPath(render)
	}

	switch ti.Name {
	case "EHR", "ORIGINAL_VERSION":
		tree, err := AnalyzePath(cat, c.Root, nil, nil)
		if err != nil {
			return err.(*errs.Error).WithPath(render)
		}
		c.Types = tree.Candidates.Types()
		return nil
	}

	types := cat.DescendantsOf(ti.Name).Filter(func(t string) bool {
		st, ok := cat.Structure(t)
		return ok && st.Entry()
	})
	if types.Empty() {
		return errs.Invalid("%s cannot be used in a containment", ti.Name).WithPath(render)
	}

	tree, err := AnalyzePath(cat, c.Root, nil, nil)
	if err != nil {
		return err.(*errs.Error).WithPath(render)
	}
	c.Types = tree.Candidates.Types().Intersect(types)
	if c.Types.Empty() {
		return errs.Invalid("containment matches no RM type").WithPath(render)
	}

	roots := map[rm.StructureRoot]struct{}{}
	for _, t := range c.Types.Names() {
		if r := cat.StructureRootOf(t); r != rm.RootAny {
			roots[r] = struct{}{}
		}
	}
	switch len(roots) {
	case 0:
		c.StructureRoot = rm.RootComposition
		for p := c.Parent; p != nil; p = p.Parent {
			if p.StructureRoot != rm.RootAny {
				c.StructureRoot = p.StructureRoot
				break
			}
		}
	case 1:
		for r := range roots {
			c.StructureRoot = r
		}
	default:
		return errs.Invalid("ambiguous structure root for %s", ti.Name).WithPath(render)
	}

	c.Root.ObjectRoot = c.Types.All(func(t string) bool {
		_, ok := objectRootTypes[t]
		return ok
	})
	if c.Root.ObjectRoot && c.Types.Contains("FOLDER") && c.Parent != nil && c.Parent.Types.Contains("FOLDER") {
		c.Root.ObjectRoot = false
	}
	return nil
}
