package pathanalysis

import (
	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

var (
	numericTypes  = rm.NewTypeSet("Integer", "Integer64", "Real", "Double")
	stringTypes   = rm.NewTypeSet("String", "DV_DATE_TIME", "DV_DATE", "DV_TIME", "DV_DURATION")
	booleanTypes  = rm.NewTypeSet("Boolean")
	temporalTypes = rm.NewTypeSet("DV_DATE_TIME", "DV_DATE", "DV_TIME", "DV_DURATION")
)

// OperandTypes returns the leaf types a path compared with p may have. ok is
// false when p does not constrain the leaf.
func OperandTypes(p *aql.Primitive) (rm.TypeSet, bool) {
	if p == nil {
		return rm.TypeSet{}, false
	}
	switch p.Type {
	case aql.PrimInteger, aql.PrimReal:
		return numericTypes, true
	case aql.PrimString, aql.PrimTemporal:
		return stringTypes, true
	case aql.PrimBoolean:
		return booleanTypes, true
	}
	return rm.TypeSet{}, false
}

// IsTemporalType reports whether t is a temporal DV_ORDERED type.
func IsTemporalType(t string) bool {
	return temporalTypes.Contains(t)
}

// WhereLeafTypes analyzes a WHERE path compared with operand. The leaf is
// narrowed to the operand type first; when that leaves nothing the plain
// analysis is used. The leaf must then be primitive or DV_ORDERED.
func WhereLeafTypes(cat *rm.Catalog, root Root, ip *aql.IdentifiedPath, operand *aql.Primitive) (*PathTypes, error) {
	var pt *PathTypes

	if ot, ok := OperandTypes(operand); ok && ip.Path.Len() > 0 {
		narrowed, err := typesOf(cat, root, ip, &ot)
		if err == nil {
			pt = narrowed
		}
	}
	if pt == nil {
		var err error
		if pt, err = TypesOf(cat, root, ip); err != nil {
			return nil, err
		}
	}

	if err := CheckWhereLeaf(cat, pt); err != nil {
		return nil, err
	}
	return pt, nil
}

// CheckWhereLeaf enforces that conditions only compare primitive or
// DV_ORDERED values.
func CheckWhereLeaf(cat *rm.Catalog, pt *PathTypes) error {
	if pt.Extracted != nil {
		return nil
	}
	lt := pt.LeafTypes()
	ok := !lt.Empty() && lt.All(func(t string) bool {
		return cat.IsPrimitive(t) || cat.IsDvOrdered(t)
	})
	if !ok {
		return errs.Unsupported("conditions only support primitive or DV_ORDERED values, got %s", lt).
			WithPath(aql.RenderPath(pt.Path))
	}
	return nil
}

// IsNumericType reports whether t is a numeric primitive.
func IsNumericType(t string) bool {
	return numericTypes.Contains(t)
}
