package pathanalysis

import (
	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

// ValidatePredicates checks the predicates written on a node whose
// candidates are owner.
func ValidatePredicates(cat *rm.Catalog, owner rm.TypeSet, preds []aql.AndPredicate) error {
	for _, ap := range preds {
		for _, cp := range ap.Operands {
			if err := validatePredicate(cat, owner, cp); err != nil {
				return err.WithPath(aql.RenderPredicates(preds))
			}
		}
	}
	return nil
}

func validatePredicate(cat *rm.Catalog, owner rm.TypeSet, cp aql.ComparisonPredicate) *errs.Error {
	switch v := cp.Value.(type) {
	case *aql.Parameter:
		return errs.Invalid("unresolved parameter $%s", v.Name)
	case *aql.ObjectPath:
		return errs.Unsupported("predicates comparing two paths are not supported")
	case *aql.Primitive:
		if v.Type == aql.PrimNull {
			return errs.Unsupported("NULL is not supported in predicates")
		}
	}

	if cp.Path.Len() == 0 {
		return errs.Invalid("predicate without path")
	}
	for _, n := range cp.Path.Nodes {
		if len(n.Predicates) != 0 {
			return errs.Unsupported("nested predicates are not supported")
		}
	}

	first := cp.Path.Nodes[0].Attribute
	if attributeTypes(cat, owner, first).Any(cat.IsStructural) {
		return errs.Unsupported("predicates on child structures are not supported")
	}

	if cp.IsArchetypeNodeID() {
		if cp.Op != aql.PredEQ && cp.Op != aql.PredNEQ {
			return errs.Unsupported("archetype_node_id only supports = and !=")
		}
		s, ok := cp.StringValue()
		if !ok || !(rm.IsArchetypeID(s) || rm.IsNodeID(s)) {
			return errs.Invalid("invalid archetype_node_id %s", aql.RenderPredicates([]aql.AndPredicate{{Operands: []aql.ComparisonPredicate{cp}}}))
		}
	}
	return nil
}

// checkPathPredicates rejects predicates outside of locatable structure
// nodes and validates the rest.
func checkPathPredicates(cat *rm.Catalog, ip *aql.IdentifiedPath, pt *PathTypes) error {
	if len(ip.RootPredicate) != 0 {
		return errs.Unsupported("predicates on path roots are not supported").WithPath(aql.RenderPath(ip))
	}
	if ip.Path == nil {
		return nil
	}
	for i, n := range ip.Path.Nodes {
		if len(n.Predicates) == 0 {
			continue
		}
		step := pt.Steps[i]
		if i >= pt.StructureLen || step.Category != CatStructure {
			return errs.Unsupported("predicates are only supported on structure nodes").WithPath(aql.RenderPath(ip))
		}
		if err := ValidatePredicates(cat, step.Types, n.Predicates); err != nil {
			return err.(*errs.Error).WithPath(aql.RenderPath(ip))
		}
	}
	return nil
}
