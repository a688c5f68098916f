package pathanalysis

import (
	"sort"

	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

// IdentityKind tells how the instances below one attribute are told apart.
type IdentityKind int

const (
	// IdentityBase nodes stand for any instance of the attribute.
	IdentityBase IdentityKind = iota
	IdentityArchetype
	IdentityNode
	IdentityName
)

func (k IdentityKind) String() string {
	switch k {
	case IdentityArchetype:
		return "ARCHETYPE"
	case IdentityNode:
		return "NODE"
	case IdentityName:
		return "NAME"
	}
	return "BASE"
}

// HasNodeID reports whether nodes of this kind are pinned by an
// archetype_node_id.
func (k IdentityKind) HasNodeID() bool {
	return k == IdentityArchetype || k == IdentityNode
}

// PathFilter holds the predicates of one path at a node that are not covered
// by the node identity.
type PathFilter struct {
	Path       *aql.IdentifiedPath
	Predicates []aql.AndPredicate
}

// CohesionNode is one attribute position shared by paths that address the
// same instance.
type CohesionNode struct {
	// Attribute carries the identity predicates only.
	Attribute aql.PathNode
	Kind      IdentityKind
	NodeID    string
	Name      string
	HasName   bool

	Paths           []*aql.IdentifiedPath
	PathsEndingHere []*aql.IdentifiedPath
	Children        []*CohesionNode
	Parent          *CohesionNode
	IsRoot          bool

	// Depth is the number of attribute steps below the containment.
	Depth       int
	Containment *Containment

	Types    rm.TypeSet
	Category Category
	Multiple bool

	PathFilters []PathFilter
}

// HasExtraFilters reports whether any path adds predicates beyond the node
// identity.
func (n *CohesionNode) HasExtraFilters() bool {
	return len(n.PathFilters) != 0
}

// FiltersOf returns the extra predicates of ip at n.
func (n *CohesionNode) FiltersOf(ip *aql.IdentifiedPath) []aql.AndPredicate {
	for _, pf := range n.PathFilters {
		if aql.PathsEqual(pf.Path, ip) {
			return pf.Predicates
		}
	}
	return nil
}

// AttributePath returns the attributes from the containment down to n.
func (n *CohesionNode) AttributePath() []string {
	var out []string
	for c := n; c != nil && !c.IsRoot; c = c.Parent {
		out = append([]string{c.Attribute.Attribute}, out...)
	}
	return out
}

// Cohesion holds the cohesion trees of all containments of a query.
type Cohesion struct {
	// Roots follow the textual order of the containments.
	Roots  []*CohesionNode
	byRoot map[aql.Containment]*CohesionNode
	chains map[*aql.IdentifiedPath][]*CohesionNode
}

// Tree returns the cohesion tree of containment c, or nil when no path is
// rooted at it.
func (co *Cohesion) Tree(c aql.Containment) *CohesionNode {
	return co.byRoot[c]
}

// Chain returns the nodes ip passes through, starting at the root and ending
// at the last structure node of the path.
func (co *Cohesion) Chain(ip *aql.IdentifiedPath) []*CohesionNode {
	ch, ok := co.chains[ip]
	if !ok {
		panic(errs.Internal("path has no cohesion chain").WithPath(aql.RenderPath(ip)))
	}
	return ch
}

// DataNode returns the node whose row provides the data of ip.
func (co *Cohesion) DataNode(ip *aql.IdentifiedPath) *CohesionNode {
	ch := co.Chain(ip)
	return ch[len(ch)-1]
}

type cohesionPath struct {
	ip      *aql.IdentifiedPath
	pt      *PathTypes
	aliases []*aql.IdentifiedPath
}

type identity struct {
	kind     IdentityKind
	nodeID   string
	name     string
	hasName  bool
	residual []aql.AndPredicate
	// the operands consumed by the identity
	nodeOp, nameOp int
}

// AnalyzeCohesion builds one cohesion tree per containment that has paths.
func AnalyzeCohesion(cat *rm.Catalog, q *aql.Query, qt *QueryTypes) (_ *Cohesion, err error) {
	defer errs.Recover(&err)

	co := &Cohesion{
		byRoot: make(map[aql.Containment]*CohesionNode),
		chains: make(map[*aql.IdentifiedPath][]*CohesionNode),
	}

	byRoot := make(map[aql.Containment][]*cohesionPath)
	for _, ip := range q.AllPaths() {
		if err := checkPathPredicates(cat, ip, qt.Of(ip)); err != nil {
			return nil, err
		}
		list := byRoot[ip.Root]
		found := false
		for _, cp := range list {
			if aql.PathsEqual(cp.ip, ip) {
				cp.aliases = append(cp.aliases, ip)
				found = true
				break
			}
		}
		if !found {
			byRoot[ip.Root] = append(list, &cohesionPath{ip: ip, pt: qt.Of(ip), aliases: []*aql.IdentifiedPath{ip}})
		}
	}

	for _, c := range qt.Containments.List {
		paths := byRoot[c.Expr]
		if len(paths) == 0 {
			continue
		}
		root := &CohesionNode{
			IsRoot:      true,
			Containment: c,
			Types:       c.Types,
			Category:    CategoryOf(cat, c.Types),
		}
		co.build(cat, root, paths)
		co.Roots = append(co.Roots, root)
		co.byRoot[c.Expr] = root
	}
	return co, nil
}

func (co *Cohesion) build(cat *rm.Catalog, n *CohesionNode, paths []*cohesionPath) {
	var cont []*cohesionPath
	for _, p := range paths {
		n.Paths = append(n.Paths, p.ip)
		for _, a := range p.aliases {
			co.chains[a] = append(co.chains[a], n)
		}
		if p.pt.StructureLen == n.Depth {
			n.PathsEndingHere = append(n.PathsEndingHere, p.ip)
		} else {
			cont = append(cont, p)
		}
	}

	// partition by attribute name in order of first appearance
	var attrs []string
	byAttr := make(map[string][]*cohesionPath)
	for _, p := range cont {
		a := p.ip.Path.Nodes[n.Depth].Attribute
		if _, ok := byAttr[a]; !ok {
			attrs = append(attrs, a)
		}
		byAttr[a] = append(byAttr[a], p)
	}

	for _, a := range attrs {
		n.Children = append(n.Children, co.group(cat, n, a, byAttr[a])...)
	}
}

type subgroup struct {
	key   string
	node  *CohesionNode
	paths []*cohesionPath
}

// group merges the identities of all paths addressing attr below n and
// creates one child per distinguishable instance.
func (co *Cohesion) group(cat *rm.Catalog, n *CohesionNode, attr string, paths []*cohesionPath) []*CohesionNode {
	depth := n.Depth
	ids := make([]identity, len(paths))
	kinds := map[IdentityKind]bool{}
	allNames := true
	for i, p := range paths {
		ids[i] = identityOf(p.ip.Path.Nodes[depth])
		kinds[ids[i].kind] = true
		if !ids[i].hasName {
			allNames = false
		}
	}

	kind := mergeKinds(kinds)
	withName := kind.HasNodeID() && allNames

	groups := map[string]*subgroup{}
	var keys []string
	for i, p := range paths {
		id := ids[i]
		key := ""
		switch kind {
		case IdentityArchetype, IdentityNode:
			key = id.nodeID
			if withName {
				key += "\x00" + id.name
			}
		case IdentityName:
			key = id.name
		}

		g, ok := groups[key]
		if !ok {
			child := &CohesionNode{
				Parent:      n,
				Depth:       depth + 1,
				Containment: n.Containment,
				Kind:        kind,
			}
			// archetype ids and at-codes may share a position
			if kind.HasNodeID() {
				child.Kind = id.kind
			}
			child.Attribute.Attribute = attr
			switch kind {
			case IdentityArchetype, IdentityNode:
				child.NodeID = id.nodeID
				ops := []aql.ComparisonPredicate{aql.ArchetypeNodeIDPredicate(id.nodeID)}
				if withName {
					child.Name, child.HasName = id.name, true
					ops = append(ops, aql.NameValuePredicate(id.name))
				}
				child.Attribute.Predicates = []aql.AndPredicate{{Operands: ops}}
			case IdentityName:
				child.Name, child.HasName = id.name, true
				child.Attribute.Predicates = []aql.AndPredicate{{Operands: []aql.ComparisonPredicate{aql.NameValuePredicate(id.name)}}}
			}
			g = &subgroup{key: key, node: child}
			groups[key] = g
			keys = append(keys, key)
		}
		g.paths = append(g.paths, p)

		step := p.pt.Steps[depth]
		g.node.Types = g.node.Types.Union(step.Types)
		g.node.Multiple = g.node.Multiple || step.Multiple

		if res := residual(p.ip.Path.Nodes[depth], id, kind, withName); len(res) != 0 {
			if g.node.FiltersOf(p.ip) == nil {
				g.node.PathFilters = append(g.node.PathFilters, PathFilter{Path: p.ip, Predicates: res})
			}
		}
	}

	sort.Strings(keys)
	out := make([]*CohesionNode, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		g.node.Category = CategoryOf(cat, g.node.Types)
		co.build(cat, g.node, g.paths)
		out = append(out, g.node)
	}
	return out
}

// mergeKinds reduces the identity kinds seen at one position. Any BASE
// occurrence makes the group BASE; names only combine with names. A mix of
// archetype ids and at-codes stays keyed by node id, each child keeping the
// kind of its own id.
func mergeKinds(kinds map[IdentityKind]bool) IdentityKind {
	switch {
	case kinds[IdentityBase]:
		return IdentityBase
	case kinds[IdentityName] && (kinds[IdentityArchetype] || kinds[IdentityNode]):
		return IdentityBase
	case kinds[IdentityArchetype]:
		return IdentityArchetype
	case kinds[IdentityNode]:
		return IdentityNode
	case kinds[IdentityName]:
		return IdentityName
	}
	return IdentityBase
}

// identityOf reads the identity of a path node from a single AND group of
// equality comparisons with string literals.
func identityOf(pn aql.PathNode) identity {
	id := identity{nodeOp: -1, nameOp: -1}
	if len(pn.Predicates) != 1 {
		return id
	}
	for i, cp := range pn.Predicates[0].Operands {
		if cp.Op != aql.PredEQ {
			continue
		}
		v, ok := cp.StringValue()
		if !ok {
			continue
		}
		switch {
		case cp.IsArchetypeNodeID() && id.nodeOp < 0:
			switch {
			case rm.IsArchetypeID(v):
				id.kind = IdentityArchetype
			case rm.IsNodeID(v):
				id.kind = IdentityNode
			default:
				continue
			}
			id.nodeID = v
			id.nodeOp = i
		case cp.IsNameValue() && id.nameOp < 0:
			id.name = v
			id.hasName = true
			id.nameOp = i
		}
	}
	if id.nodeOp < 0 && id.hasName {
		id.kind = IdentityName
	}
	return id
}

// residual returns the predicates of pn not covered by the merged identity.
func residual(pn aql.PathNode, id identity, kind IdentityKind, withName bool) []aql.AndPredicate {
	if len(pn.Predicates) == 0 {
		return nil
	}
	if kind == IdentityBase || len(pn.Predicates) != 1 {
		return pn.Predicates
	}

	var keep []aql.ComparisonPredicate
	for i, cp := range pn.Predicates[0].Operands {
		switch {
		case i == id.nodeOp && kind.HasNodeID():
			continue
		case i == id.nameOp && (kind == IdentityName || withName):
			continue
		}
		keep = append(keep, cp)
	}
	if len(keep) == 0 {
		return nil
	}
	return []aql.AndPredicate{{Operands: keep}}
}
