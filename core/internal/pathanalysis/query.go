package pathanalysis

import (
	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

// QueryTypes holds the analysis of every path of a query.
type QueryTypes struct {
	Containments *Containments
	paths        map[*aql.IdentifiedPath]*PathTypes
}

// Of returns the analysis of ip, which must be a path of the analyzed query.
func (qt *QueryTypes) Of(ip *aql.IdentifiedPath) *PathTypes {
	pt, ok := qt.paths[ip]
	if !ok {
		panic(errs.Internal("path was not analyzed").WithPath(aql.RenderPath(ip)))
	}
	return pt
}

// AnalyzeQuery analyzes the containments and all SELECT, WHERE and ORDER BY
// paths of q. WHERE paths are narrowed by the operand they are compared with
// and must end in a primitive or DV_ORDERED value.
func AnalyzeQuery(cat *rm.Catalog, q *aql.Query) (_ *QueryTypes, err error) {
	defer errs.Recover(&err)

	cs, err := AnalyzeContainments(cat, q.From)
	if err != nil {
		return nil, err
	}
	qt := &QueryTypes{
		Containments: cs,
		paths:        make(map[*aql.IdentifiedPath]*PathTypes),
	}

	plain := func(ip *aql.IdentifiedPath) error {
		c, err := qt.rootOf(ip)
		if err != nil {
			return err
		}
		pt, err := TypesOf(cat, c.Root, ip)
		if err != nil {
			return err
		}
		qt.paths[ip] = pt
		return nil
	}

	for _, ip := range q.SelectPaths() {
		if err := plain(ip); err != nil {
			return nil, err
		}
	}
	for _, ip := range q.OrderByPaths() {
		if err := plain(ip); err != nil {
			return nil, err
		}
	}

	var werr error
	aql.WalkCondition(q.Where, func(cond aql.Condition) {
		if werr != nil {
			return
		}
		switch v := cond.(type) {
		case *aql.Comparison:
			l, lok := v.Left.(*aql.IdentifiedPath)
			r, rok := v.Right.(*aql.IdentifiedPath)
			lp, _ := v.Left.(*aql.Primitive)
			rp, _ := v.Right.(*aql.Primitive)
			if lok {
				werr = qt.where(cat, l, rp)
			}
			if rok && werr == nil {
				werr = qt.where(cat, r, lp)
			}
			for _, o := range []aql.Operand{v.Left, v.Right} {
				if f, ok := o.(*aql.Function); ok && werr == nil {
					werr = qt.functionArgs(cat, f)
				}
			}
		case *aql.Like:
			werr = qt.where(cat, v.Path, aql.String(""))
		case *aql.Matches:
			var op *aql.Primitive
			for _, o := range v.Values {
				if p, ok := o.(*aql.Primitive); ok {
					op = p
					break
				}
			}
			werr = qt.where(cat, v.Path, op)
		case *aql.Exists:
			werr = plain(v.Path)
		}
	})
	if werr != nil {
		return nil, werr
	}
	return qt, nil
}

func (qt *QueryTypes) where(cat *rm.Catalog, ip *aql.IdentifiedPath, op *aql.Primitive) error {
	c, err := qt.rootOf(ip)
	if err != nil {
		return err
	}
	pt, err := WhereLeafTypes(cat, c.Root, ip, op)
	if err != nil {
		return err
	}
	qt.paths[ip] = pt
	return nil
}

func (qt *QueryTypes) functionArgs(cat *rm.Catalog, f *aql.Function) error {
	for _, a := range f.Args {
		switch v := a.(type) {
		case *aql.IdentifiedPath:
			if err := qt.where(cat, v, nil); err != nil {
				return err
			}
		case *aql.Function:
			if err := qt.functionArgs(cat, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (qt *QueryTypes) rootOf(ip *aql.IdentifiedPath) (*Containment, error) {
	c := qt.Containments.Of(ip.Root)
	if c == nil {
		return nil, errs.Invalid("path root %s is not declared in FROM", ip.RootIdentifier()).
			WithPath(aql.RenderPath(ip))
	}
	return c, nil
}
