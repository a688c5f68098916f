package pathanalysis

import (
	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

// Root describes the containment a path starts from.
type Root struct {
	// Type is the containment RM type; EHR for the EHR root and
	// ORIGINAL_VERSION for VERSION containments.
	Type       string
	Predicates []aql.AndPredicate

	// ObjectRoot is set when the containment addresses the root row of a
	// versioned object.
	ObjectRoot bool
}

// ANode is one attribute step of the analysis tree. Children hold the path
// continuation as well as the attributes named in predicates.
type ANode struct {
	Attribute  string
	Candidates Candidates
	Multiple   bool

	parent   *ANode
	keys     []string
	children map[string]*ANode

	// archetype constraints from predicates; each entry narrows
	constraints []rm.TypeSet
	leaf        *rm.TypeSet
}

func newANode(attr string, parent *ANode) *ANode {
	return &ANode{Attribute: attr, parent: parent, children: make(map[string]*ANode)}
}

// Child returns the child for attr, or nil.
func (n *ANode) Child(attr string) *ANode {
	return n.children[attr]
}

// Children returns the children in insertion order.
func (n *ANode) Children() []*ANode {
	out := make([]*ANode, len(n.keys))
	for i, k := range n.keys {
		out[i] = n.children[k]
	}
	return out
}

func (n *ANode) Category(cat *rm.Catalog) Category {
	return CategoryOf(cat, n.Candidates.Types())
}

func (n *ANode) child(attr string) *ANode {
	if c, ok := n.children[attr]; ok {
		return c
	}
	c := newANode(attr, n)
	n.children[attr] = c
	n.keys = append(n.keys, attr)
	return c
}

func (n *ANode) addNodes(cat *rm.Catalog, nodes []aql.PathNode) *ANode {
	cur := n
	for _, pn := range nodes {
		cur = cur.child(pn.Attribute)
		cur.addPredicates(cat, pn.Predicates)
	}
	return cur
}

func (n *ANode) addPredicates(cat *rm.Catalog, preds []aql.AndPredicate) {
	if len(preds) == 0 {
		return
	}
	if c, ok := archetypeConstraint(cat, preds); ok {
		n.constraints = append(n.constraints, c)
	}
	for _, ap := range preds {
		for _, cp := range ap.Operands {
			if cp.Path.Len() != 0 {
				n.addNodes(cat, cp.Path.Nodes)
			}
		}
	}
}

// archetypeConstraint derives the types allowed by archetype id predicates.
// AND groups intersect; OR groups union, and a group without an archetype id
// leaves the node unconstrained.
func archetypeConstraint(cat *rm.Catalog, preds []aql.AndPredicate) (rm.TypeSet, bool) {
	var union rm.TypeSet
	for _, ap := range preds {
		group := Unconstrained()
		for _, cp := range ap.Operands {
			if !cp.IsArchetypeNodeID() || cp.Op != aql.PredEQ {
				continue
			}
			v, ok := cp.StringValue()
			if !ok {
				continue
			}
			aid, ok := rm.ParseArchetypeID(v)
			if !ok {
				continue
			}
			group = group.Narrow(cat.DescendantsOf(aid.Type))
		}
		if !group.Constrained() {
			return rm.TypeSet{}, false
		}
		union = union.Union(group.Types())
	}
	return union, true
}

// AnalyzePath builds the analysis tree for path below root and narrows it to
// a fixed point. variablePredicates are the predicates written on the path's
// identifier. It fails with an invalid query error when the root ends up
// without candidates.
func AnalyzePath(cat *rm.Catalog, root Root, variablePredicates []aql.AndPredicate, path *aql.ObjectPath) (*ANode, error) {
	return analyze(cat, root, variablePredicates, path, nil)
}

func analyze(cat *rm.Catalog, root Root, variablePredicates []aql.AndPredicate, path *aql.ObjectPath, leaf *rm.TypeSet) (*ANode, error) {
	if _, ok := cat.Lookup(root.Type); !ok {
		return nil, errs.Invalid("unknown RM type %s", root.Type)
	}

	rn := newANode("", nil)
	rn.Candidates = CandidatesOf(cat.DescendantsOf(root.Type))
	rn.addPredicates(cat, root.Predicates)
	rn.addPredicates(cat, variablePredicates)

	ln := rn
	if path != nil {
		ln = rn.addNodes(cat, path.Nodes)
	}
	if leaf != nil && ln != rn {
		ln.leaf = leaf
	}

	initCandidates(cat, rn)
	narrow(cat, rn)

	if rn.Candidates.Empty() {
		return nil, errs.Invalid("path matches no RM type")
	}
	return rn, nil
}

func initCandidates(cat *rm.Catalog, n *ANode) {
	for _, c := range n.constraints {
		n.Candidates = n.Candidates.Narrow(c)
	}
	if n.leaf != nil {
		n.Candidates = n.Candidates.Narrow(*n.leaf)
	}
	for _, k := range n.keys {
		c := n.children[k]
		c.Candidates = CandidatesOf(attributeTypes(cat, n.Candidates.Types(), k))
		initCandidates(cat, c)
	}
}

// attributeTypes is the union of the types attr may carry on any of owners.
func attributeTypes(cat *rm.Catalog, owners rm.TypeSet, attr string) rm.TypeSet {
	var out rm.TypeSet
	for _, t := range owners.Names() {
		if ai, ok := cat.Attribute(t, attr); ok {
			out = out.Union(ai.Types)
		}
	}
	return out
}

// narrow runs the constraint propagation until nothing changes. Candidate
// sets only shrink, so it terminates.
func narrow(cat *rm.Catalog, rn *ANode) {
	for {
		changed := narrowDown(cat, rn)
		if narrowUp(cat, rn) {
			changed = true
		}
		if !changed {
			break
		}
	}
	setMultiple(cat, rn)
}

func narrowDown(cat *rm.Catalog, n *ANode) bool {
	changed := false
	for _, k := range n.keys {
		c := n.children[k]
		nc := c.Candidates.Narrow(attributeTypes(cat, n.Candidates.Types(), k))
		if !nc.Equal(c.Candidates) {
			c.Candidates = nc
			changed = true
		}
		if narrowDown(cat, c) {
			changed = true
		}
	}
	return changed
}

func narrowUp(cat *rm.Catalog, n *ANode) bool {
	changed := false
	for _, k := range n.keys {
		if narrowUp(cat, n.children[k]) {
			changed = true
		}
	}
	if len(n.keys) == 0 {
		return changed
	}

	nc := n.Candidates.Narrow(n.Candidates.Types().Filter(func(t string) bool {
		for _, k := range n.keys {
			ai, ok := cat.Attribute(t, k)
			if !ok || !ai.Types.Intersects(n.children[k].Candidates.Types()) {
				return false
			}
		}
		return true
	}))
	if !nc.Equal(n.Candidates) {
		n.Candidates = nc
		changed = true
	}
	return changed
}

func setMultiple(cat *rm.Catalog, n *ANode) {
	for _, k := range n.keys {
		c := n.children[k]
		c.Multiple = n.Candidates.Types().Any(func(t string) bool {
			ai, ok := cat.Attribute(t, k)
			return ok && ai.Multiple
		})
		setMultiple(cat, c)
	}
}
