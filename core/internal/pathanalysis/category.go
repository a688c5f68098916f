package pathanalysis

import (
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

// Category is the storage category of an analysis node, derived from its
// candidate types.
type Category int

const (
	CatNone Category = iota
	// CatStructure nodes are stored one row per instance.
	CatStructure
	// CatStructureIntermediate nodes live in the JSON of their parent row but
	// own structure children.
	CatStructureIntermediate
	CatRMType
	CatFoundation
	// CatFoundationExtended is a mix of RM types and primitives.
	CatFoundationExtended
)

func (c Category) String() string {
	switch c {
	case CatStructure:
		return "STRUCTURE"
	case CatStructureIntermediate:
		return "STRUCTURE_INTERMEDIATE"
	case CatRMType:
		return "RM_TYPE"
	case CatFoundation:
		return "FOUNDATION"
	case CatFoundationExtended:
		return "FOUNDATION_EXTENDED"
	}
	return "NONE"
}

// IsStructural reports whether the category takes part in the stored
// hierarchy.
func (c Category) IsStructural() bool {
	return c == CatStructure || c == CatStructureIntermediate
}

// Merge combines two distinct categories. Structural categories never mix
// with anything, including each other.
func (c Category) Merge(o Category) Category {
	switch {
	case c == CatNone:
		return o
	case o == CatNone:
		return c
	case c.IsStructural() || o.IsStructural():
		panic(errs.Internal("cannot merge categories %s and %s", c, o))
	case c == o:
		return c
	}
	// RM_TYPE, FOUNDATION and FOUNDATION_EXTENDED in any combination
	return CatFoundationExtended
}

func categoryOfType(cat *rm.Catalog, t string) Category {
	if st, ok := cat.Structure(t); ok {
		if st.Intermediate {
			return CatStructureIntermediate
		}
		return CatStructure
	}
	if cat.IsPrimitive(t) {
		return CatFoundation
	}
	return CatRMType
}

// CategoryOf folds the categories of all types in s.
func CategoryOf(cat *rm.Catalog, s rm.TypeSet) Category {
	seen := make(map[Category]struct{}, 2)
	res := CatNone
	for _, t := range s.Names() {
		c := categoryOfType(cat, t)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		res = res.Merge(c)
	}
	return res
}
