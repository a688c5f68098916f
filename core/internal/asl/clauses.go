package asl

import (
	"fmt"

	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/dbformat"
	"github.com/ehrbase/aqlengine/core/internal/errs"
)

func (st *buildState) selectClause() {
	for i, se := range st.q.Select.Exprs {
		sf := &SelectField{
			Alias: fmt.Sprintf("c%d", i),
			Name:  se.Alias,
		}
		if sf.Name == "" {
			sf.Name = aql.RenderColumn(se.Column)
		}

		switch col := se.Column.(type) {
		case *aql.Primitive:
			sf.Field = &ConstantField{Value: col.Val}
			sf.Types = []string{col.Type.String()}

		case *aql.IdentifiedPath:
			f, pt := st.pathField(col, true)
			sf.Field = f
			sf.Path = aql.RenderPath(col)
			sf.Types = pt.LeafTypes().Names()
			sf.Kind = kindOf(f)

		case *aql.AggregateFunction:
			af := &AggregateField{Func: col.Func, Distinct: col.Distinct}
			sf.Field = af
			if col.Path == nil {
				sf.Types = []string{"Long"}
				break
			}
			f, pt := st.pathField(col.Path, false)
			af.Arg = f
			sf.Path = aql.RenderPath(col.Path)

			switch col.Func {
			case aql.AggCount:
				sf.Types = []string{"Long"}
			case aql.AggSum, aql.AggAvg:
				sf.Types = []string{"Double"}
			default:
				sf.Types = pt.LeafTypes().Names()
				sf.Kind = kindOf(f)
				if jf, ok := f.(*JSONField); ok {
					if mf, ok := st.magnitude(jf, pt); ok && pt.LeafIsDvOrdered(st.cat) {
						af.OrderKey = mf
					}
				}
			}

		default:
			panic(errs.Internal("unexpected select column %T", col))
		}
		st.eq.Select = append(st.eq.Select, sf)
	}
}

func kindOf(f Field) ColumnKind {
	switch f.(type) {
	case *JSONField:
		return ColumnJSON
	case *ObjectField:
		return ColumnObject
	}
	return ColumnValue
}

func (st *buildState) condition(c aql.Condition) *Exp {
	switch v := c.(type) {
	case nil:
		return nil

	case *aql.Logical:
		parts := make([]*Exp, 0, len(v.Values))
		for _, cv := range v.Values {
			parts = append(parts, st.condition(cv))
		}
		if v.Op == aql.LogicalOr {
			return Or(parts...)
		}
		return And(parts...)

	case *aql.Not:
		return Not(st.condition(v.Cond))

	case *aql.Comparison:
		if ip, ok := v.Left.(*aql.IdentifiedPath); ok {
			return st.comparison(ip, v.Op, operand(v.Right))
		}
		if ip, ok := v.Right.(*aql.IdentifiedPath); ok {
			return st.comparison(ip, flip(v.Op), operand(v.Left))
		}

	case *aql.Like:
		f, _ := st.pathField(v.Path, false)
		return Compare(f, OpLike, operand(v.Value).Val)

	case *aql.Matches:
		parts := make([]*Exp, 0, len(v.Values))
		for _, o := range v.Values {
			parts = append(parts, st.comparison(v.Path, aql.OpEQ, operand(o)))
		}
		return Or(parts...)
	}
	panic(errs.Internal("unexpected condition %s", aql.RenderCondition(c)))
}

func operand(o aql.Operand) *aql.Primitive {
	p, ok := o.(*aql.Primitive)
	if !ok {
		panic(errs.Internal("unexpected operand %s", aql.RenderOperand(o)))
	}
	return p
}

// flip mirrors op for a literal on the left.
func flip(op aql.ComparisonOp) aql.ComparisonOp {
	switch op {
	case aql.OpGT:
		return aql.OpLT
	case aql.OpGTEQ:
		return aql.OpLTEQ
	case aql.OpLT:
		return aql.OpGT
	case aql.OpLTEQ:
		return aql.OpGTEQ
	}
	return op
}

// comparison compares ip with a literal. DV_ORDERED values are compared on
// their derived magnitude when the literal converts for every candidate.
func (st *buildState) comparison(ip *aql.IdentifiedPath, op aql.ComparisonOp, p *aql.Primitive) *Exp {
	f, pt := st.pathField(ip, false)
	eop := CompareOp(op)

	jf, ok := f.(*JSONField)
	if !ok {
		return Compare(f, eop, p.Val)
	}
	mf, ok := st.magnitude(jf, pt)
	if !ok {
		return Compare(f, eop, p.Val)
	}

	var val float64
	for i, t := range mf.Types {
		m, ok := dbformat.OperandMagnitude(t, p.Val)
		if !ok || (i > 0 && m != val) {
			return Compare(f, eop, p.Val)
		}
		val = m
	}
	return Compare(mf, eop, val)
}

func (st *buildState) orderBy() {
	for _, ob := range st.q.OrderBy {
		f, pt := st.pathField(ob.Path, false)
		if jf, ok := f.(*JSONField); ok {
			if mf, ok := st.magnitude(jf, pt); ok {
				f = mf
			}
		}
		st.eq.OrderBy = append(st.eq.OrderBy, &OrderByField{Field: f, Desc: ob.Desc})
	}
}

// groupBy groups by every plain select and order field once an aggregate is
// selected.
func (st *buildState) groupBy() {
	agg := false
	for _, sf := range st.eq.Select {
		if _, ok := sf.Field.(*AggregateField); ok {
			agg = true
			break
		}
	}
	if !agg {
		return
	}

	add := func(f Field) {
		switch f.(type) {
		case *AggregateField, *ConstantField:
			return
		}
		st.eq.GroupBy = append(st.eq.GroupBy, f)
	}
	for _, sf := range st.eq.Select {
		add(sf.Field)
	}
	for _, ob := range st.eq.OrderBy {
		add(ob.Field)
	}
}

// Fields returns the select fields of the plan by name, for tests and
// diagnostics.
func (eq *EncapsulatingQuery) Fields() map[string]Field {
	out := make(map[string]Field, len(eq.Select))
	for _, sf := range eq.Select {
		out[sf.Name] = sf.Field
	}
	return out
}
