package psql

import (
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/ehrbase/aqlengine/core/internal/asl"
	"github.com/ehrbase/aqlengine/core/internal/dbformat"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

const (
	ehrTable   = "ehr"
	auditTable = "audit_details"
)

func colWithTable(table, col string) exp.IdentifierExpression {
	return goqu.T(table).Col(col)
}

func tableAlias(q asl.Query, t asl.Table) string {
	switch t {
	case asl.TableVersion:
		return q.Alias() + "_v"
	case asl.TableAudit:
		return q.Alias() + "_a"
	}
	return q.Alias()
}

// source renders the tables scanned by sq. The version and audit tables are
// joined inside parentheses so conditions on them hold for the whole row.
func (c *compilerContext) source(sq *asl.StructureQuery) exp.Expression {
	if sq.Source == asl.SourceEhr {
		return c.dialect.Table(ehrTable).As(sq.Alias())
	}
	if sq.Root == rm.RootAny {
		panic(errs.Internal("structure query %s has no root", sq.Alias()))
	}

	data := c.dialect.Table(c.dialect.DataTable(sq.Root)).As(sq.Alias())
	if !sq.Version && !sq.Audit {
		return data
	}

	va := tableAlias(sq, asl.TableVersion)
	src := goqu.L("? INNER JOIN ? ON ?",
		data,
		c.dialect.Table(c.dialect.VersionTable(sq.Root)).As(va),
		colWithTable(va, "vo_id").Eq(colWithTable(sq.Alias(), "vo_id")))

	if sq.Audit {
		aa := tableAlias(sq, asl.TableAudit)
		src = goqu.L("? INNER JOIN ? ON ?",
			src,
			c.dialect.Table(auditTable).As(aa),
			colWithTable(aa, "id").Eq(colWithTable(va, "audit_id")))
	}
	return goqu.L("(?)", src)
}

// rowConditions restricts the rows of sq to its candidate types.
func (c *compilerContext) rowConditions(sq *asl.StructureQuery) []exp.Expression {
	if sq.Source == asl.SourceEhr {
		return nil
	}
	var out []exp.Expression

	if len(sq.Types) != 0 {
		aliases := make([]interface{}, 0, len(sq.Types))
		for _, t := range sq.Types {
			if a, err := dbformat.TypeAlias(t); err == nil {
				aliases = append(aliases, a)
			}
		}
		if len(aliases) == 0 {
			return []exp.Expression{goqu.L("false")}
		}
		out = append(out, colWithTable(sq.Alias(), "rm_entity").In(aliases...))
	}
	if sq.ObjectRoot {
		out = append(out, colWithTable(sq.Alias(), "num").Eq(0))
	}
	return out
}

func (c *compilerContext) renderJoin(ds *goqu.SelectDataset, j *asl.Join) *goqu.SelectDataset {
	switch q := j.Target.(type) {
	case *asl.StructureQuery:
		on := c.rowConditions(q)
		if e := c.renderExp(j.On); e != nil {
			on = append(on, e)
		}
		if len(on) == 0 {
			on = append(on, goqu.L("true"))
		}
		if j.Type == asl.JoinInner {
			return ds.InnerJoin(c.source(q), goqu.On(on...))
		}
		return ds.LeftJoin(c.source(q), goqu.On(on...))

	case *asl.RmObjectDataQuery, *asl.FilteringQuery, *asl.PathDataQuery:
		if j.Type != asl.JoinLeftLateral {
			panic(errs.Internal("%s must be joined lateral", q.Alias()))
		}
		sub := c.renderLateral(q).As(q.Alias())
		on := goqu.On(goqu.L("true"))
		if e := c.renderExp(j.On); e != nil {
			on = goqu.On(e)
		}
		return ds.LeftJoin(goqu.Lateral(sub), on)
	}
	panic(errs.Internal("unexpected join target %T", j.Target))
}

func (c *compilerContext) renderLateral(q asl.Query) *goqu.SelectDataset {
	b := c.dialect.Builder()

	switch v := q.(type) {
	case *asl.RmObjectDataQuery:
		d := v.Alias() + "_d"
		row := func(col string) exp.IdentifierExpression { return colWithTable(d, col) }
		agg := goqu.L("jsonb_agg(jsonb_build_array(?, ?, ?, ?, ?) ORDER BY ?)",
			row("num"), row("parent_num"), row("entity_attribute"), row("entity_idx"), row("data"), row("num"))

		return b.From(c.dialect.Table(c.dialect.DataTable(v.Source.Root)).As(d)).
			Select(lit(c.dialect.RenderLateralColumn(agg)).As("data")).
			Where(c.subtree(d, v.Source)...)

	case *asl.FilteringQuery:
		d := v.Alias() + "_d"
		items := goqu.Func("unnest", colWithTable(d, "item_uuids"))

		return b.From(c.dialect.Table(c.dialect.DataTable(rm.RootFolder)).As(d)).
			Select(lit(c.dialect.RenderLateralColumn(items)).As("vo_id")).
			Distinct().
			Where(c.subtree(d, v.Folder)...)

	case *asl.PathDataQuery:
		elems := c.dialect.RenderArrayElements(c.renderJSON(v.Data, false))
		return b.Select(lit(c.dialect.RenderLateralColumn(elems)).As("data"))
	}
	panic(errs.Internal("unexpected lateral %T", q))
}

// subtree matches the rows of table alias d at or below the row of sq.
func (c *compilerContext) subtree(d string, sq *asl.StructureQuery) []exp.Expression {
	return []exp.Expression{
		colWithTable(d, "vo_id").Eq(colWithTable(sq.Alias(), "vo_id")),
		colWithTable(d, "num").Gte(colWithTable(sq.Alias(), "num")),
		colWithTable(d, "num").Lte(colWithTable(sq.Alias(), "num_cap")),
	}
}

func (c *compilerContext) renderRelation(r *asl.Relation) exp.Expression {
	child := func(col string) exp.IdentifierExpression { return colWithTable(r.Child.Alias(), col) }
	parent := func(col string) exp.IdentifierExpression { return colWithTable(r.Parent.Alias(), col) }

	switch r.Type {
	case asl.RelParentChild:
		return goqu.And(
			child("vo_id").Eq(parent("vo_id")),
			child("parent_num").Eq(parent("num")),
			child("entity_attribute").Eq(r.Attribute))

	case asl.RelDescendant:
		return goqu.And(
			child("vo_id").Eq(parent("vo_id")),
			child("num").Gt(parent("num")),
			child("num").Lte(parent("num_cap")))

	case asl.RelSameArchetype:
		return child("citem_num").Eq(parent("citem_num"))

	case asl.RelSameParent:
		return goqu.And(
			child("vo_id").Eq(parent("vo_id")),
			child("parent_num").Eq(parent("parent_num")))

	case asl.RelEhr:
		return child("ehr_id").Eq(parent("id"))

	case asl.RelSameEhr:
		return child("ehr_id").Eq(parent("ehr_id"))

	case asl.RelFolderItem:
		return child("vo_id").Eq(parent("vo_id"))
	}
	panic(errs.Internal("unexpected relation %s", r.Type))
}
