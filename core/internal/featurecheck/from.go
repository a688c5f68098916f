package featurecheck

import (
	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/pathanalysis"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

// checkFrom validates the shape of the containment tree.
func (c *Checker) checkFrom(q *aql.Query) error {
	if q.From == nil {
		return errs.Invalid("FROM clause is missing")
	}

	root := q.From
	if ce, ok := root.(*aql.ClassExpr); ok && ce.Type == "EHR" {
		if err := c.checkEhrPredicates(ce); err != nil {
			return err
		}
		root = ce.Contains
	}
	if so, ok := root.(*aql.SetOperator); ok {
		return errs.Unsupported("AND/OR at the top of the containment is not supported").
			WithPath(aql.RenderContainment(so))
	}

	var err *errs.Error
	aql.WalkContainment(q.From, func(n, parent aql.Containment) {
		if err == nil {
			err = c.checkContainment(q.From, n, parent)
		}
	})
	if err != nil {
		return err
	}
	return nil
}

func (c *Checker) checkContainment(from, n, parent aql.Containment) *errs.Error {
	render := aql.RenderContainment(n)

	switch v := n.(type) {
	case *aql.NotContainment:
		return errs.Unsupported("NOT CONTAINS is not supported").WithPath(render)

	case *aql.ClassExpr:
		if v.Type == "EHR" && n != from {
			return errs.Invalid("EHR must be the outermost containment").WithPath(render)
		}

	case *aql.VersionExpr:
		switch v.Selector {
		case aql.VersionAll:
			return errs.Unsupported("ALL_VERSIONS is not supported").WithPath(render)
		case aql.VersionOther:
			return errs.Unsupported("VERSION predicates are not supported").WithPath(render)
		}
		if parent != nil {
			if pc, ok := parent.(*aql.ClassExpr); !ok || pc.Type != "EHR" {
				return errs.Unsupported("VERSION is only supported at the top or directly below EHR").WithPath(render)
			}
		}
		if _, ok := v.Contains.(*aql.ClassExpr); !ok {
			return errs.Unsupported("VERSION must directly contain a single class expression").WithPath(render)
		}
	}
	return nil
}

// checkEhrPredicates only allows ehr_id/value comparisons on EHR.
func (c *Checker) checkEhrPredicates(ce *aql.ClassExpr) error {
	for _, ap := range ce.Predicates {
		for _, cp := range ap.Operands {
			render := aql.RenderPredicates(ce.Predicates)
			if cp.Path.AttributePath() != "ehr_id/value" {
				return errs.Unsupported("only ehr_id/value is supported in EHR predicates").WithPath(render)
			}
			if cp.Op != aql.PredEQ && cp.Op != aql.PredNEQ {
				return errs.Unsupported("ehr_id/value only supports = and !=").WithPath(render)
			}
			switch v := cp.Value.(type) {
			case *aql.Parameter:
				return errs.Invalid("unresolved parameter $%s", v.Name).WithPath(render)
			case *aql.Primitive:
				s, ok := v.Str()
				if !ok {
					return errs.Invalid("ehr_id/value must be compared with a string").WithPath(render)
				}
				if err := c.validateUID(s, false); err != nil {
					return err.WithPath(render)
				}
			default:
				return errs.Unsupported("predicates comparing two paths are not supported").WithPath(render)
			}
		}
	}
	return nil
}

// checkContainmentNesting validates containment predicates and the
// parent/child compatibility of nested class expressions.
func (c *Checker) checkContainmentNesting(cs *pathanalysis.Containments) error {
	for _, ct := range cs.List {
		if ct.IsEhr() || ct.IsVersion() {
			continue
		}
		render := aql.RenderContainment(ct.Expr)

		if err := pathanalysis.ValidatePredicates(c.cat, ct.Types, ct.Root.Predicates); err != nil {
			return err.(*errs.Error).WithPath(render)
		}

		parent := ct.Parent
		if parent != nil && parent.IsVersion() {
			if !ct.Root.ObjectRoot {
				return errs.Invalid("VERSION must contain COMPOSITION, EHR_STATUS or FOLDER").WithPath(render)
			}
			parent = parent.Parent
		}
		if parent == nil || parent.IsEhr() {
			continue
		}
		if !c.canContain(parent.Types, ct.Types) {
			return errs.Invalid("%s cannot contain %s", parent.Root.Type, ct.Root.Type).WithPath(render)
		}
	}
	return nil
}

// canContain reports whether any of children can be nested below any of
// parents. Folders reference compositions as members.
func (c *Checker) canContain(parents, children rm.TypeSet) bool {
	return parents.Any(func(p string) bool {
		return children.Any(func(t string) bool {
			return c.cat.CanContain(p, t) || (p == "FOLDER" && t == "COMPOSITION")
		})
	})
}
