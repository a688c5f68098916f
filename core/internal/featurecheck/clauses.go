package featurecheck

import (
	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/pathanalysis"
)

type clause int

const (
	clauseSelect clause = iota
	clauseWhere
	clauseOrderBy
)

func withPath(err *errs.Error, path string) *errs.Error {
	if err == nil {
		return nil
	}
	return err.WithPath(path)
}

// checkPath applies the rules shared by all clauses.
func (cc *clauseChecker) checkPath(ip *aql.IdentifiedPath, cl clause) (*pathanalysis.PathTypes, *errs.Error) {
	pt := cc.qt.Of(ip)
	render := aql.RenderPath(ip)

	ct := cc.qt.Containments.Of(ip.Root)
	if ct.IsEhr() || ct.IsVersion() {
		if pt.Extracted == nil {
			return nil, errs.Unsupported("only extracted columns are supported on %s", ct.Root.Type).WithPath(render)
		}
		return pt, nil
	}

	owners := pt.RootTypes
	for _, s := range pt.Steps {
		if s.Attribute == "items" && owners.Contains("FOLDER") {
			return nil, errs.Unsupported("FOLDER/items is not supported").WithPath(render)
		}
		owners = s.Types
	}

	last := pt.Len() - 1
	if pt.Extracted == nil && last >= 0 && pt.Steps[last].Category == pathanalysis.CatStructureIntermediate {
		return nil, errs.Unsupported("paths ending at %s are not supported", pt.Steps[last].Types).WithPath(render)
	}

	for _, i := range pt.MultipleJSONSteps() {
		if cl == clauseSelect && i == last {
			continue
		}
		return nil, errs.Unsupported("multi-valued attribute %s is only supported at the end of a SELECT path",
			pt.Steps[i].Attribute).WithPath(render)
	}
	return pt, nil
}

func (cc *clauseChecker) checkSelect() error {
	if len(cc.q.Select.Exprs) == 0 {
		return errs.Invalid("SELECT clause is empty")
	}

	aliases := make(map[string]struct{}, len(cc.q.Select.Exprs))
	for _, se := range cc.q.Select.Exprs {
		if se.Alias != "" {
			if _, ok := aliases[se.Alias]; ok {
				return errs.Invalid("duplicate alias %s", se.Alias)
			}
			aliases[se.Alias] = struct{}{}
		}

		var err *errs.Error
		switch col := se.Column.(type) {
		case *aql.Primitive:
		case *aql.Function:
			err = errs.Unsupported("function %s is not supported", col.Name).WithPath(aql.RenderColumn(col))
		case *aql.IdentifiedPath:
			_, err = cc.checkPath(col, clauseSelect)
		case *aql.AggregateFunction:
			err = withPath(cc.checkAggregate(col), aql.RenderColumn(col))
		default:
			panic(errs.Internal("unexpected select column %T", col))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (cc *clauseChecker) checkAggregate(af *aql.AggregateFunction) *errs.Error {
	if af.Path == nil {
		if af.Func != aql.AggCount {
			return errs.Invalid("%s requires a path argument", af.Func)
		}
		return nil
	}

	pt, err := cc.checkPath(af.Path, clauseWhere)
	if err != nil {
		return err
	}
	ec := pt.Extracted
	lt := pt.LeafTypes()

	switch af.Func {
	case aql.AggCount:
		if ec != nil {
			if !ec.Aggregatable {
				return errs.Unsupported("COUNT is not supported on %s", ec.PathString())
			}
			return nil
		}
		if lt.Empty() || !lt.All(cc.cat.IsPrimitive) {
			return errs.Unsupported("COUNT only supports primitive values")
		}

	case aql.AggSum, aql.AggAvg:
		if ec != nil || lt.Empty() || !lt.All(pathanalysis.IsNumericType) {
			return errs.Unsupported("%s only supports numeric primitive values", af.Func)
		}

	case aql.AggMin, aql.AggMax:
		if ec != nil {
			if !ec.Aggregatable || !ec.OrderBy {
				return errs.Unsupported("%s is not supported on %s", af.Func, ec.PathString())
			}
			return nil
		}
		ok := !lt.Empty() && lt.All(func(t string) bool {
			return cc.cat.IsPrimitive(t) || cc.cat.IsDvOrdered(t)
		})
		if !ok {
			return errs.Unsupported("%s only supports primitive or DV_ORDERED values", af.Func)
		}
	}
	return nil
}

func (cc *clauseChecker) checkWhere() error {
	var err *errs.Error
	aql.WalkCondition(cc.q.Where, func(cond aql.Condition) {
		if err != nil {
			return
		}
		switch v := cond.(type) {
		case *aql.Exists:
			err = errs.Unsupported("EXISTS is not supported").WithPath(aql.RenderCondition(v))
		case *aql.Comparison:
			err = withPath(cc.checkComparison(v), aql.RenderCondition(v))
		case *aql.Like:
			err = withPath(cc.checkLike(v), aql.RenderCondition(v))
		case *aql.Matches:
			err = withPath(cc.checkMatches(v), aql.RenderCondition(v))
		}
	})
	if err != nil {
		return err
	}
	return nil
}

func (cc *clauseChecker) checkComparison(v *aql.Comparison) *errs.Error {
	var ip *aql.IdentifiedPath
	var val aql.Operand

	for _, o := range []aql.Operand{v.Left, v.Right} {
		switch ov := o.(type) {
		case *aql.Function:
			return errs.Unsupported("function %s is not supported", ov.Name)
		case *aql.IdentifiedPath:
			if ip != nil {
				return errs.Unsupported("comparing two paths is not supported")
			}
			ip = ov
		default:
			val = o
		}
	}
	if ip == nil {
		return errs.Unsupported("conditions must reference a path")
	}

	pt, err := cc.checkPath(ip, clauseWhere)
	if err != nil {
		return err
	}
	p, err := operandPrimitive(val)
	if err != nil {
		return err
	}
	return cc.checkOperand(pt, v.Op, p)
}

func (cc *clauseChecker) checkLike(v *aql.Like) *errs.Error {
	pt, err := cc.checkPath(v.Path, clauseWhere)
	if err != nil {
		return err
	}
	p, err := operandPrimitive(v.Value)
	if err != nil {
		return err
	}
	pattern, ok := p.Str()
	if !ok {
		return errs.Invalid("LIKE requires a string pattern")
	}

	if ec := pt.Extracted; ec != nil {
		return cc.checkExtractedLike(ec, pattern)
	}
	lt := pt.LeafTypes()
	if lt.Empty() || !lt.All(func(t string) bool { return t == "String" }) {
		return errs.Unsupported("LIKE only supports string values")
	}
	return nil
}

func (cc *clauseChecker) checkMatches(v *aql.Matches) *errs.Error {
	if len(v.Values) == 0 {
		return errs.Invalid("MATCHES requires at least one value")
	}
	pt, err := cc.checkPath(v.Path, clauseWhere)
	if err != nil {
		return err
	}
	for _, o := range v.Values {
		p, err := operandPrimitive(o)
		if err != nil {
			return err
		}
		if err := cc.checkOperand(pt, aql.OpEQ, p); err != nil {
			return err
		}
	}
	return nil
}

func (cc *clauseChecker) checkOrderBy() error {
	var selected []*aql.IdentifiedPath
	for _, se := range cc.q.Select.Exprs {
		if ip, ok := se.Column.(*aql.IdentifiedPath); ok {
			selected = append(selected, ip)
		}
	}

	for _, ob := range cc.q.OrderBy {
		render := aql.RenderPath(ob.Path)

		found := false
		for _, sp := range selected {
			if aql.PathStartsWith(ob.Path, sp) {
				found = true
				break
			}
		}
		if !found {
			return errs.Unsupported("ORDER BY paths must be part of the SELECT clause").WithPath(render)
		}

		pt, err := cc.checkPath(ob.Path, clauseOrderBy)
		if err != nil {
			return err
		}
		if ec := pt.Extracted; ec != nil {
			if !ec.OrderBy {
				return errs.Unsupported("ordering by %s is not supported", ec.PathString()).WithPath(render)
			}
			continue
		}
		lt := pt.LeafTypes()
		ok := !lt.Empty() && lt.All(func(t string) bool {
			return cc.cat.IsPrimitive(t) || cc.cat.IsDvOrdered(t)
		})
		if !ok {
			return errs.Unsupported("ORDER BY only supports primitive or DV_ORDERED values").WithPath(render)
		}
	}
	return nil
}

func (cc *clauseChecker) checkPaging() error {
	q := cc.q
	if q.Offset != nil && q.Limit == nil {
		return errs.Unsupported("OFFSET without LIMIT is not supported")
	}
	if (q.Limit != nil && *q.Limit < 0) || (q.Offset != nil && *q.Offset < 0) {
		return errs.Invalid("LIMIT and OFFSET must not be negative")
	}
	return nil
}
