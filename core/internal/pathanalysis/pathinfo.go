package pathanalysis

import (
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

// JoinMode describes the role of a structure node in the join plan.
type JoinMode int

const (
	JoinModeRoot JoinMode = iota
	// JoinModeData nodes provide the data of at least one path.
	JoinModeData
	JoinModeInternalSingleChild
	JoinModeInternalFork
)

func (m JoinMode) String() string {
	switch m {
	case JoinModeRoot:
		return "ROOT"
	case JoinModeData:
		return "DATA"
	case JoinModeInternalSingleChild:
		return "INTERNAL_SINGLE_CHILD"
	case JoinModeInternalFork:
		return "INTERNAL_FORK"
	}
	return "?"
}

// JoinType tells how a structure node row is attached to the row it is
// joined against.
type JoinType int

const (
	JoinNone JoinType = iota
	// JoinParentChild joins on parent_num of the direct structure parent.
	JoinParentChild
	// JoinArchetypeAnchor joins by num range below the anchor plus
	// rm_entity and archetype.
	JoinArchetypeAnchor
	// JoinNodeIDAnchor joins by num range below the anchor plus citem_num
	// and node id.
	JoinNodeIDAnchor
	// JoinSkipped nodes get no row of their own.
	JoinSkipped
)

func (t JoinType) String() string {
	switch t {
	case JoinParentChild:
		return "PARENT_CHILD"
	case JoinArchetypeAnchor:
		return "ARCHETYPE_ANCHOR"
	case JoinNodeIDAnchor:
		return "NODE_ID_ANCHOR"
	case JoinSkipped:
		return "SKIPPED"
	}
	return "NONE"
}

// NodeInfo is the join plan entry of one structure node.
type NodeInfo struct {
	Node      *CohesionNode
	Mode      JoinMode
	Skippable bool
	Join      JoinType

	// StructureParent is the nearest structure ancestor; intermediate
	// nodes in between are transparent.
	StructureParent *CohesionNode

	// Anchor is the nearest structure ancestor that is not skipped. It is
	// the row the node is joined against.
	Anchor *CohesionNode

	// SameParentAsSiblings is set when siblings below a skipped multiple
	// fork must share FirstSibling's parent row.
	SameParentAsSiblings bool
	FirstSibling         *CohesionNode

	StructureChildren []*CohesionNode

	// AttributePath names the attributes from StructureParent to the node,
	// intermediates included.
	AttributePath []string
}

// PathInfo is the join plan of one cohesion tree.
type PathInfo struct {
	Root  *CohesionNode
	infos map[*CohesionNode]*NodeInfo
	order []*CohesionNode
}

// NewPathInfo plans the joins of the tree rooted at root. Nodes are skipped
// when their identity is implied by their descendants.
func NewPathInfo(cat *rm.Catalog, root *CohesionNode) *PathInfo {
	pi := &PathInfo{Root: root, infos: make(map[*CohesionNode]*NodeInfo)}
	pi.collect(root, nil)
	pi.skippable(cat, root)
	pi.joins(root)
	return pi
}

// Info returns the plan entry of a structure node.
func (pi *PathInfo) Info(n *CohesionNode) *NodeInfo {
	ni, ok := pi.infos[n]
	if !ok {
		panic(errs.Internal("node is not part of the join plan"))
	}
	return ni
}

// Joined returns the structure nodes that get a row of their own, parents
// before children, the root excluded.
func (pi *PathInfo) Joined() []*CohesionNode {
	var out []*CohesionNode
	for _, n := range pi.order {
		if n != pi.Root && !pi.infos[n].Skippable {
			out = append(out, n)
		}
	}
	return out
}

// structureChildren returns the structure nodes directly below n, looking
// through intermediate nodes.
func structureChildren(n *CohesionNode) []*CohesionNode {
	var out []*CohesionNode
	for _, c := range n.Children {
		switch c.Category {
		case CatStructure:
			out = append(out, c)
		case CatStructureIntermediate:
			out = append(out, structureChildren(c)...)
		}
	}
	return out
}

func (pi *PathInfo) collect(n, parent *CohesionNode) {
	ni := &NodeInfo{
		Node:              n,
		StructureParent:   parent,
		StructureChildren: structureChildren(n),
	}
	switch {
	case n.IsRoot:
		ni.Mode = JoinModeRoot
	case len(n.PathsEndingHere) != 0:
		ni.Mode = JoinModeData
	case len(ni.StructureChildren) == 0:
		panic(errs.Internal("structure node %s without paths or children", n.Attribute.Attribute))
	case len(ni.StructureChildren) == 1:
		ni.Mode = JoinModeInternalSingleChild
	default:
		ni.Mode = JoinModeInternalFork
	}
	if parent != nil {
		for c := n; c != parent; c = c.Parent {
			ni.AttributePath = append([]string{c.Attribute.Attribute}, ni.AttributePath...)
		}
	}

	pi.infos[n] = ni
	pi.order = append(pi.order, n)
	for _, c := range ni.StructureChildren {
		pi.collect(c, n)
	}
}

// skippable decides bottom up whether a node can be left out of the join:
// its own identity must be implied by the identity of its children.
func (pi *PathInfo) skippable(cat *rm.Catalog, n *CohesionNode) {
	ni := pi.infos[n]
	for _, c := range ni.StructureChildren {
		pi.skippable(cat, c)
	}

	if ni.Mode == JoinModeRoot || ni.Mode == JoinModeData || n.HasExtraFilters() {
		return
	}
	if !n.Kind.HasNodeID() && n.Types.Any(cat.IsLocatable) {
		return
	}

	// archetype ids only imply archetype parents, at-codes only at-code parents
	pins := func(c *CohesionNode) bool {
		if n.Kind.HasNodeID() {
			return c.Kind == n.Kind
		}
		return c.Kind.HasNodeID()
	}

	switch ni.Mode {
	case JoinModeInternalSingleChild:
		ni.Skippable = pins(ni.StructureChildren[0])
	case JoinModeInternalFork:
		for _, c := range ni.StructureChildren {
			if pi.infos[c].Skippable || !pins(c) {
				return
			}
		}
		ni.Skippable = true
	}
}

func (pi *PathInfo) joins(n *CohesionNode) {
	ni := pi.infos[n]
	if !n.IsRoot {
		pi.planJoin(ni)
	}
	for _, c := range ni.StructureChildren {
		pi.joins(c)
	}
}

func (pi *PathInfo) planJoin(ni *NodeInfo) {
	if ni.Skippable {
		ni.Join = JoinSkipped
		return
	}

	sp := ni.StructureParent
	anchor := sp
	for pi.infos[anchor].Skippable {
		anchor = pi.infos[anchor].StructureParent
	}
	ni.Anchor = anchor

	if anchor == sp {
		ni.Join = JoinParentChild
		return
	}

	switch ni.Node.Kind {
	case IdentityArchetype:
		ni.Join = JoinArchetypeAnchor
	case IdentityNode:
		ni.Join = JoinNodeIDAnchor
	default:
		panic(errs.Internal("node below skipped parent has no node id"))
	}

	spi := pi.infos[sp]
	if spi.Mode != JoinModeInternalFork {
		return
	}
	multiple := false
	for c := sp; c != anchor; c = c.Parent {
		if c.Multiple {
			multiple = true
			break
		}
	}
	first := spi.StructureChildren[0]
	if multiple && first != ni.Node {
		ni.SameParentAsSiblings = true
		ni.FirstSibling = first
	}
}
