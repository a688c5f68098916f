package aql

import (
	"encoding/json"
	"fmt"

	"github.com/ehrbase/aqlengine/core/internal/errs"
)

// ReplaceParameters returns a copy of q with every $parameter replaced by its
// value. Containment identity is preserved across the copy: paths in the
// result point at the containments of the result. List values are expanded
// inside MATCHES.
func ReplaceParameters(q *Query, params map[string]interface{}) (_ *Query, err error) {
	defer errs.Recover(&err)

	r := &replacer{params: params, roots: make(map[Containment]Containment)}
	nq := &Query{
		Select: Select{Distinct: q.Select.Distinct},
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	nq.From = r.containment(q.From)

	for _, se := range q.Select.Exprs {
		nq.Select.Exprs = append(nq.Select.Exprs, SelectExpr{
			Column: r.column(se.Column),
			Alias:  se.Alias,
		})
	}
	if q.Where != nil {
		nq.Where = r.condition(q.Where)
	}
	for _, ob := range q.OrderBy {
		nq.OrderBy = append(nq.OrderBy, OrderBy{Path: r.path(ob.Path), Desc: ob.Desc})
	}
	return nq, nil
}

type replacer struct {
	params map[string]interface{}
	roots  map[Containment]Containment
}

func (r *replacer) value(name string) interface{} {
	v, ok := r.params[name]
	if !ok {
		panic(errs.Invalid("missing value for parameter $%s", name))
	}
	return v
}

func (r *replacer) containment(c Containment) Containment {
	switch v := c.(type) {
	case nil:
		return nil
	case *ClassExpr:
		nc := &ClassExpr{Type: v.Type, Identifier: v.Identifier}
		r.roots[v] = nc
		nc.Predicates = r.predicates(v.Predicates)
		nc.Contains = r.containment(v.Contains)
		return nc
	case *VersionExpr:
		nc := &VersionExpr{Identifier: v.Identifier, Selector: v.Selector}
		r.roots[v] = nc
		nc.Predicates = r.predicates(v.Predicates)
		nc.Contains = r.containment(v.Contains)
		return nc
	case *SetOperator:
		ns := &SetOperator{Op: v.Op}
		for _, cv := range v.Values {
			ns.Values = append(ns.Values, r.containment(cv))
		}
		return ns
	case *NotContainment:
		return &NotContainment{Contains: r.containment(v.Contains)}
	}
	panic(errs.Internal("unexpected containment %T", c))
}

func (r *replacer) predicates(preds []AndPredicate) []AndPredicate {
	if preds == nil {
		return nil
	}
	out := make([]AndPredicate, len(preds))
	for i, ap := range preds {
		ops := make([]ComparisonPredicate, len(ap.Operands))
		for j, cp := range ap.Operands {
			ops[j] = ComparisonPredicate{
				Path:  r.objectPath(cp.Path),
				Op:    cp.Op,
				Value: cp.Value,
			}
			switch pv := cp.Value.(type) {
			case *Parameter:
				ops[j].Value = r.primitive(pv.Name, r.value(pv.Name))
			case *ObjectPath:
				ops[j].Value = r.objectPath(pv)
			}
		}
		out[i] = AndPredicate{Operands: ops}
	}
	return out
}

func (r *replacer) objectPath(p *ObjectPath) *ObjectPath {
	if p == nil {
		return nil
	}
	np := &ObjectPath{Nodes: make([]PathNode, len(p.Nodes))}
	for i, n := range p.Nodes {
		np.Nodes[i] = PathNode{Attribute: n.Attribute, Predicates: r.predicates(n.Predicates)}
	}
	return np
}

func (r *replacer) path(p *IdentifiedPath) *IdentifiedPath {
	if p == nil {
		return nil
	}
	root, ok := r.roots[p.Root]
	if !ok {
		panic(errs.Internal("path root %s is not part of the FROM clause", p.RootIdentifier()))
	}
	return &IdentifiedPath{
		Root:          root,
		RootPredicate: r.predicates(p.RootPredicate),
		Path:          r.objectPath(p.Path),
	}
}

func (r *replacer) column(c ColumnExpr) ColumnExpr {
	switch v := c.(type) {
	case *IdentifiedPath:
		return r.path(v)
	case *AggregateFunction:
		return &AggregateFunction{Func: v.Func, Path: r.path(v.Path), Distinct: v.Distinct}
	case *Function:
		return r.function(v)
	}
	return c
}

func (r *replacer) function(f *Function) *Function {
	nf := &Function{Name: f.Name}
	for _, a := range f.Args {
		nf.Args = append(nf.Args, r.operand(a))
	}
	return nf
}

func (r *replacer) operand(o Operand) Operand {
	switch v := o.(type) {
	case *Parameter:
		return r.primitive(v.Name, r.value(v.Name))
	case *IdentifiedPath:
		return r.path(v)
	case *Function:
		return r.function(v)
	}
	return o
}

func (r *replacer) condition(c Condition) Condition {
	switch v := c.(type) {
	case *Comparison:
		return &Comparison{Left: r.operand(v.Left), Op: v.Op, Right: r.operand(v.Right)}
	case *Like:
		return &Like{Path: r.path(v.Path), Value: r.operand(v.Value)}
	case *Matches:
		m := &Matches{Path: r.path(v.Path)}
		for _, o := range v.Values {
			if p, ok := o.(*Parameter); ok {
				if list, ok := r.value(p.Name).([]interface{}); ok {
					for _, lv := range list {
						m.Values = append(m.Values, r.primitive(p.Name, lv))
					}
					continue
				}
			}
			m.Values = append(m.Values, r.operand(o))
		}
		return m
	case *Exists:
		return &Exists{Path: r.path(v.Path)}
	case *Logical:
		l := &Logical{Op: v.Op}
		for _, cv := range v.Values {
			l.Values = append(l.Values, r.condition(cv))
		}
		return l
	case *Not:
		return &Not{Cond: r.condition(v.Cond)}
	}
	panic(errs.Internal("unexpected condition %T", c))
}

func (r *replacer) primitive(name string, v interface{}) *Primitive {
	switch tv := v.(type) {
	case nil:
		return &Primitive{Type: PrimNull}
	case string:
		if temporalRe.MatchString(tv) {
			return &Primitive{Type: PrimTemporal, Val: tv}
		}
		return String(tv)
	case bool:
		return Boolean(tv)
	case int:
		return Integer(int64(tv))
	case int32:
		return Integer(int64(tv))
	case int64:
		return Integer(tv)
	case float32:
		return Real(float64(tv))
	case float64:
		if tv == float64(int64(tv)) {
			return Integer(int64(tv))
		}
		return Real(tv)
	case json.Number:
		if i, err := tv.Int64(); err == nil {
			return Integer(i)
		}
		if f, err := tv.Float64(); err == nil {
			return Real(f)
		}
	}
	panic(errs.Invalid("unsupported value for parameter $%s: %s", name, fmt.Sprint(v)))
}
