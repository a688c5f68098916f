package asl

import (
	"fmt"

	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/dbformat"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/pathanalysis"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

// Builder turns a checked query into a plan.
type Builder struct {
	cat *rm.Catalog
}

func NewBuilder(cat *rm.Catalog) *Builder {
	return &Builder{cat: cat}
}

type buildState struct {
	cat *rm.Catalog
	q   *aql.Query
	qt  *pathanalysis.QueryTypes
	co  *pathanalysis.Cohesion
	eq  *EncapsulatingQuery

	seq     map[string]int
	queries map[*pathanalysis.Containment]*StructureQuery
	nodes   map[*pathanalysis.CohesionNode]*StructureQuery
	objects map[*StructureQuery]*RmObjectDataQuery
	items   map[*StructureQuery]*FilteringQuery
	where   []*Exp
	hasOr   bool
}

// Build plans q. qt is the analysis returned by the feature checker for q;
// constructs the checker rejects panic with an internal error.
func (b *Builder) Build(q *aql.Query, qt *pathanalysis.QueryTypes) (_ *EncapsulatingQuery, err error) {
	defer errs.Recover(&err)

	co, err := pathanalysis.AnalyzeCohesion(b.cat, q, qt)
	if err != nil {
		return nil, err
	}

	st := &buildState{
		cat:     b.cat,
		q:       q,
		qt:      qt,
		co:      co,
		eq:      &EncapsulatingQuery{base: base{alias: "q"}},
		seq:     make(map[string]int),
		queries: make(map[*pathanalysis.Containment]*StructureQuery),
		nodes:   make(map[*pathanalysis.CohesionNode]*StructureQuery),
		objects: make(map[*StructureQuery]*RmObjectDataQuery),
		items:   make(map[*StructureQuery]*FilteringQuery),
	}

	exists := st.containment(q.From, nil, false)
	if st.hasOr {
		st.where = append(st.where, exists)
	}
	for _, root := range co.Roots {
		st.cohesion(root)
	}

	st.selectClause()
	st.where = append(st.where, st.condition(q.Where))
	st.eq.Where = And(st.where...)
	st.orderBy()
	st.groupBy()

	st.eq.Distinct = q.Select.Distinct
	st.eq.Limit = q.Limit
	st.eq.Offset = q.Offset
	return st.eq, nil
}

func (st *buildState) alias(prefix string) string {
	n := st.seq[prefix]
	st.seq[prefix] = n + 1
	return fmt.Sprintf("%s%d", prefix, n)
}

func (st *buildState) join(t JoinType, target Query, on *Exp) {
	if st.eq.From == nil {
		st.eq.From = target
		st.where = append(st.where, on)
		return
	}
	st.eq.Joins = append(st.eq.Joins, &Join{Type: t, Target: target, On: on})
}

// containment joins the class expressions of c below parent and returns
// the condition telling whether c matched.
func (st *buildState) containment(c aql.Containment, parent *StructureQuery, optional bool) *Exp {
	switch v := c.(type) {
	case *aql.ClassExpr:
		ct := st.qt.Containments.Of(v)
		sq := st.classQuery(ct, parent, optional)
		exists := NotNull(st.keyField(sq))
		if v.Contains != nil {
			exists = And(exists, st.containment(v.Contains, sq, optional))
		}
		return exists

	case *aql.VersionExpr:
		inner, ok := v.Contains.(*aql.ClassExpr)
		if !ok {
			panic(errs.Internal("VERSION without class expression"))
		}
		exists := st.containment(inner, parent, optional)
		ct := st.qt.Containments.Of(v)
		st.queries[ct] = st.queries[ct.Version]
		return exists

	case *aql.SetOperator:
		opt := optional || v.Op == aql.SetOr
		if v.Op == aql.SetOr {
			st.hasOr = true
		}
		parts := make([]*Exp, 0, len(v.Values))
		for _, val := range v.Values {
			parts = append(parts, st.containment(val, parent, opt))
		}
		if v.Op == aql.SetOr {
			return Or(parts...)
		}
		return And(parts...)
	}
	panic(errs.Internal("unexpected containment %T", c))
}

func (st *buildState) keyField(sq *StructureQuery) Field {
	if sq.Source == SourceEhr {
		return &ColumnField{Owner: sq, Table: TableEhr, Column: "id"}
	}
	return &ColumnField{Owner: sq, Column: "num"}
}

func (st *buildState) classQuery(ct *pathanalysis.Containment, parent *StructureQuery, optional bool) *StructureQuery {
	sq := &StructureQuery{Containment: ct}
	if ct.IsEhr() {
		sq.alias = st.alias("e")
		sq.Source = SourceEhr
	} else {
		sq.alias = st.alias("s")
		sq.Source = SourceData
		sq.Root = ct.StructureRoot
		sq.Types = ct.Types.Names()
		sq.ObjectRoot = ct.Root.ObjectRoot
	}
	st.queries[ct] = sq

	jt := JoinInner
	if optional {
		jt = JoinLeft
	}
	filter := st.predicates(sq, ct.Types, ct.Root.Predicates)

	switch {
	case parent == nil:
		st.join(jt, sq, filter)
	case parent.Source == SourceEhr:
		st.join(jt, sq, And(Rel(RelEhr, sq, parent, ""), filter))
	case parent.Root == rm.RootFolder && sq.Root != rm.RootFolder:
		fq := st.folderItems(parent)
		st.join(jt, sq, And(Rel(RelFolderItem, sq, fq, ""), Rel(RelSameEhr, sq, parent, ""), filter))
	default:
		st.join(jt, sq, And(Rel(RelDescendant, sq, parent, ""), filter))
	}
	return sq
}

func (st *buildState) folderItems(folder *StructureQuery) *FilteringQuery {
	if fq, ok := st.items[folder]; ok {
		return fq
	}
	fq := &FilteringQuery{base: base{alias: st.alias("f")}, Folder: folder}
	st.items[folder] = fq
	st.join(JoinLeftLateral, fq, nil)
	return fq
}

// predicates converts node predicates evaluated on the row of sq.
func (st *buildState) predicates(sq *StructureQuery, owner rm.TypeSet, preds []aql.AndPredicate) *Exp {
	var ors []*Exp
	for _, ap := range preds {
		var ands []*Exp
		for _, cp := range ap.Operands {
			ands = append(ands, st.predicate(sq, owner, cp))
		}
		ors = append(ors, And(ands...))
	}
	return Or(ors...)
}

func (st *buildState) predicate(sq *StructureQuery, owner rm.TypeSet, cp aql.ComparisonPredicate) *Exp {
	p, ok := cp.Value.(*aql.Primitive)
	if !ok {
		panic(errs.Internal("unexpected predicate value %T", cp.Value))
	}
	op := CompareOp(aql.ComparisonOp(cp.Op))

	attrs := cp.Path.Attributes()
	if ec, ok := rm.FindExtractedColumn(owner, attrs); ok {
		return Compare(st.extracted(sq, ec, owner), op, p.Val)
	}
	return Compare(&JSONField{Owner: sq, Path: aliases(attrs)}, op, p.Val)
}

func (st *buildState) extracted(sq *StructureQuery, ec *rm.ExtractedColumn, owner rm.TypeSet) *ExtractedField {
	if ec.VersionOnly {
		sq.Version = true
	}
	if ec.Audit {
		sq.Audit = true
	}
	return &ExtractedField{Owner: sq, Column: ec, Types: owner.Names()}
}

func aliases(attrs []string) []string {
	out := make([]string, len(attrs))
	for i, a := range attrs {
		al, err := dbformat.AttributeAlias(a)
		if err != nil {
			panic(errs.Internal("%s", err.Error()))
		}
		out[i] = al
	}
	return out
}

// cohesion joins a row for every structure node of the tree that cannot be
// skipped.
func (st *buildState) cohesion(root *pathanalysis.CohesionNode) {
	rq, ok := st.queries[root.Containment]
	if !ok {
		panic(errs.Internal("containment %s was not planned", root.Containment.Identifier))
	}
	st.nodes[root] = rq

	pi := pathanalysis.NewPathInfo(st.cat, root)
	for _, n := range pi.Joined() {
		ni := pi.Info(n)
		anchor := st.nodes[ni.Anchor]

		sq := &StructureQuery{
			base:   base{alias: st.alias("n")},
			Source: SourceData,
			Root:   anchor.Root,
			Types:  n.Types.Names(),
			Node:   n,
		}

		var on *Exp
		switch ni.Join {
		case pathanalysis.JoinParentChild:
			attr := ""
			for i, a := range aliases(ni.AttributePath) {
				if i > 0 {
					attr += "/"
				}
				attr += a
			}
			on = Rel(RelParentChild, sq, anchor, attr)
		case pathanalysis.JoinArchetypeAnchor:
			on = Rel(RelDescendant, sq, anchor, "")
		case pathanalysis.JoinNodeIDAnchor:
			on = And(Rel(RelDescendant, sq, anchor, ""), Rel(RelSameArchetype, sq, anchor, ""))
		default:
			panic(errs.Internal("unexpected join %s", ni.Join))
		}
		if ni.SameParentAsSiblings {
			on = And(on, Rel(RelSameParent, sq, st.nodes[ni.FirstSibling], ""))
		}

		st.join(JoinLeft, sq, And(on, st.identity(sq, n), st.nodeFilters(sq, n)))
		st.nodes[n] = sq
	}
}

func (st *buildState) identity(sq *StructureQuery, n *pathanalysis.CohesionNode) *Exp {
	var out []*Exp
	if n.Kind.HasNodeID() {
		ec := rm.ExtractedColumnOf(rm.ExtractedArchetypeNodeID)
		out = append(out, Compare(st.extracted(sq, ec, n.Types), OpEquals, n.NodeID))
	}
	if n.HasName {
		ec := rm.ExtractedColumnOf(rm.ExtractedNameValue)
		out = append(out, Compare(st.extracted(sq, ec, n.Types), OpEquals, n.Name))
	}
	return And(out...)
}

// nodeFilters applies the predicates paths add beyond the node identity.
// A path without extra predicates sees every row, so filters only apply
// when all paths carry some.
func (st *buildState) nodeFilters(sq *StructureQuery, n *pathanalysis.CohesionNode) *Exp {
	if !n.HasExtraFilters() {
		return nil
	}
	var ors []*Exp
	for _, ip := range n.Paths {
		preds := n.FiltersOf(ip)
		if len(preds) == 0 {
			return nil
		}
		ors = append(ors, st.predicates(sq, n.Types, preds))
	}
	return Or(ors...)
}

// rowOf returns the query holding the row ip reads from.
func (st *buildState) rowOf(ip *aql.IdentifiedPath) *StructureQuery {
	sq, ok := st.nodes[st.co.DataNode(ip)]
	if !ok {
		panic(errs.Internal("no row planned").WithPath(aql.RenderPath(ip)))
	}
	return sq
}

// pathField returns the field reading ip. Multi-valued terminal attributes
// are unnested when unnest is set.
func (st *buildState) pathField(ip *aql.IdentifiedPath, unnest bool) (Field, *pathanalysis.PathTypes) {
	pt := st.qt.Of(ip)
	sq := st.rowOf(ip)

	if ec := pt.Extracted; ec != nil {
		owner := pt.RootTypes
		if pt.StructureLen > 0 {
			owner = pt.Steps[pt.StructureLen-1].Types
		}
		return st.extracted(sq, ec, owner), pt
	}

	if pt.EndsAtStructure() {
		return &ObjectField{Owner: st.object(sq)}, pt
	}

	steps := pt.JSONSteps()
	attrs := make([]string, len(steps))
	for i, s := range steps {
		attrs[i] = s.Attribute
	}
	jf := &JSONField{Owner: sq, Path: aliases(attrs)}

	if unnest && steps[len(steps)-1].Multiple {
		pdq := &PathDataQuery{base: base{alias: st.alias("p")}, Data: jf}
		st.join(JoinLeftLateral, pdq, nil)
		return &JSONField{Owner: pdq}, pt
	}
	return jf, pt
}

func (st *buildState) object(sq *StructureQuery) *RmObjectDataQuery {
	if oq, ok := st.objects[sq]; ok {
		return oq
	}
	oq := &RmObjectDataQuery{base: base{alias: st.alias("o")}, Source: sq}
	st.objects[sq] = oq
	st.join(JoinLeftLateral, oq, nil)
	return oq
}

// magnitude returns the derived magnitude field when the leaf of pt is a
// DV_ORDERED object or its magnitude attribute.
func (st *buildState) magnitude(jf *JSONField, pt *pathanalysis.PathTypes) (*MagnitudeField, bool) {
	idx, ok := pt.MagnitudeOwner(st.cat)
	if !ok {
		return nil, false
	}
	trim := pt.Len() - 1 - idx
	obj := &JSONField{Owner: jf.Owner, Path: jf.Path[:len(jf.Path)-trim]}
	return &MagnitudeField{Object: obj, Types: pt.Steps[idx].Types.Names()}, true
}
