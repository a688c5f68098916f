package pathanalysis

import (
	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

// Step is the analysis result for one attribute of a path.
type Step struct {
	Attribute string
	Types     rm.TypeSet
	Category  Category
	// Multiple is set when the attribute is multi-valued on any candidate
	// owner.
	Multiple bool
}

// PathTypes is the analysis result of one identified path.
type PathTypes struct {
	Path      *aql.IdentifiedPath
	Root      Root
	RootTypes rm.TypeSet
	Steps     []Step

	// StructureLen is the number of leading steps stored as rows; the
	// remaining steps address JSON inside the row reached by the prefix.
	StructureLen int

	// Extracted is set when the steps after the structure prefix map to a
	// physical column.
	Extracted *rm.ExtractedColumn
}

// magnitudeAttributes maps DV_ORDERED types to the attribute their derived
// magnitude is computed from.
var magnitudeAttributes = map[string]string{
	"DV_QUANTITY":  "magnitude",
	"DV_COUNT":     "magnitude",
	"DV_ORDINAL":   "value",
	"DV_SCALE":     "value",
	"DV_DATE_TIME": "value",
	"DV_DATE":      "value",
	"DV_TIME":      "value",
	"DV_DURATION":  "value",
}

// TypesOf analyzes ip below root.
func TypesOf(cat *rm.Catalog, root Root, ip *aql.IdentifiedPath) (*PathTypes, error) {
	return typesOf(cat, root, ip, nil)
}

func typesOf(cat *rm.Catalog, root Root, ip *aql.IdentifiedPath, leaf *rm.TypeSet) (*PathTypes, error) {
	tree, err := analyze(cat, root, ip.RootPredicate, ip.Path, leaf)
	if err != nil {
		if e, ok := err.(*errs.Error); ok {
			return nil, e.WithPath(aql.RenderPath(ip))
		}
		return nil, err
	}
	return newPathTypes(cat, root, tree, ip), nil
}

func newPathTypes(cat *rm.Catalog, root Root, tree *ANode, ip *aql.IdentifiedPath) *PathTypes {
	pt := &PathTypes{
		Path:      ip,
		Root:      root,
		RootTypes: tree.Candidates.Types(),
	}

	n := tree
	for _, pn := range ip.Path.Attributes() {
		n = n.Child(pn)
		pt.Steps = append(pt.Steps, Step{
			Attribute: pn,
			Types:     n.Candidates.Types(),
			Category:  n.Category(cat),
			Multiple:  n.Multiple,
		})
	}

	last := -1
	for i, s := range pt.Steps {
		if !s.Category.IsStructural() {
			break
		}
		if s.Category == CatStructure {
			last = i
		}
	}
	pt.StructureLen = last + 1

	pt.Extracted = findExtracted(cat, pt)
	return pt
}

func findExtracted(cat *rm.Catalog, pt *PathTypes) *rm.ExtractedColumn {
	if pt.Path.Path == nil {
		return nil
	}
	rest := pt.Path.Path.Nodes[pt.StructureLen:]
	if len(rest) == 0 {
		return nil
	}
	for _, n := range rest {
		if len(n.Predicates) != 0 {
			return nil
		}
	}

	owners := pt.RootTypes
	if pt.StructureLen > 0 {
		owners = pt.Steps[pt.StructureLen-1].Types
	} else if CategoryOf(cat, owners) != CatStructure {
		// EHR and VERSION roots only know their extracted columns
		if pt.Root.Type != "EHR" && pt.Root.Type != "ORIGINAL_VERSION" {
			return nil
		}
	}

	attrs := pt.Path.Path.Attributes()[pt.StructureLen:]
	ec, ok := rm.FindExtractedColumn(owners, attrs)
	if !ok {
		return nil
	}
	if ec.Kind == rm.ExtractedVOID || ec.Kind == rm.ExtractedTemplateID {
		if pt.StructureLen > 0 || (!pt.Root.ObjectRoot && pt.Root.Type != "ORIGINAL_VERSION") {
			return nil
		}
	}
	return ec
}

// Len is the number of steps.
func (pt *PathTypes) Len() int {
	return len(pt.Steps)
}

// LeafTypes returns the candidates of the last step, or of the root for an
// empty path.
func (pt *PathTypes) LeafTypes() rm.TypeSet {
	if pt.Extracted != nil {
		return rm.NewTypeSet(pt.Extracted.TargetTypes...)
	}
	if len(pt.Steps) == 0 {
		return pt.RootTypes
	}
	return pt.Steps[len(pt.Steps)-1].Types
}

func (pt *PathTypes) LeafCategory(cat *rm.Catalog) Category {
	return CategoryOf(cat, pt.LeafTypes())
}

// EndsAtStructure reports whether the path addresses a whole stored object.
func (pt *PathTypes) EndsAtStructure() bool {
	return pt.Extracted == nil && pt.StructureLen == len(pt.Steps)
}

// JSONSteps are the steps read from the data column of the row at the end
// of the structure prefix. Empty for extracted columns.
func (pt *PathTypes) JSONSteps() []Step {
	if pt.Extracted != nil {
		return nil
	}
	return pt.Steps[pt.StructureLen:]
}

// LeafIsDvOrdered reports whether every candidate of the leaf is DV_ORDERED.
func (pt *PathTypes) LeafIsDvOrdered(cat *rm.Catalog) bool {
	lt := pt.LeafTypes()
	return !lt.Empty() && lt.All(cat.IsDvOrdered)
}

// MagnitudeOwner returns the step index of the DV_ORDERED object whose
// derived magnitude represents the leaf value. The leaf is either that
// object or its magnitude attribute. Only JSON steps qualify.
func (pt *PathTypes) MagnitudeOwner(cat *rm.Catalog) (int, bool) {
	if pt.Extracted != nil || len(pt.Steps) == 0 {
		return 0, false
	}
	last := len(pt.Steps) - 1
	if last < pt.StructureLen {
		return 0, false
	}
	if pt.LeafIsDvOrdered(cat) {
		return last, true
	}

	if last-1 < pt.StructureLen {
		return 0, false
	}
	leaf := pt.Steps[last]
	owner := pt.Steps[last-1]
	if !leaf.Types.All(cat.IsPrimitive) || owner.Types.Empty() {
		return 0, false
	}
	ok := owner.Types.All(func(t string) bool {
		return magnitudeAttributes[t] == leaf.Attribute
	})
	if !ok {
		return 0, false
	}
	return last - 1, true
}

// MultipleJSONSteps returns the indexes of multi-valued JSON steps.
func (pt *PathTypes) MultipleJSONSteps() []int {
	var out []int
	for i := pt.StructureLen; i < len(pt.Steps) && pt.Extracted == nil; i++ {
		if pt.Steps[i].Multiple {
			out = append(out, i)
		}
	}
	return out
}
