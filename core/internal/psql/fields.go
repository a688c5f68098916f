package psql

import (
	"sort"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/asl"
	"github.com/ehrbase/aqlengine/core/internal/dbformat"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

const terminologyOpenEHR = "openehr"

func (c *compilerContext) renderField(f asl.Field) exp.Expression {
	switch v := f.(type) {
	case *asl.ColumnField:
		return colWithTable(tableAlias(v.Owner, v.Table), v.Column)
	case *asl.JSONField:
		return c.renderJSON(v, false)
	case *asl.MagnitudeField:
		return c.renderMagnitude(v)
	case *asl.ExtractedField:
		return c.renderExtracted(v)
	case *asl.ObjectField:
		return colWithTable(v.Owner.Alias(), "data")
	case *asl.AggregateField:
		return c.renderAggregate(v)
	case *asl.ConstantField:
		return typedValue(v.Value)
	}
	panic(errs.Internal("unexpected field %T", f))
}

func (c *compilerContext) renderJSON(f *asl.JSONField, text bool) exp.LiteralExpression {
	return c.dialect.RenderJSONPath(colWithTable(f.Owner.Alias(), "data"), f.Path, text)
}

func (c *compilerContext) renderMagnitude(f *asl.MagnitudeField) exp.Expression {
	path := make([]string, 0, len(f.Object.Path)+1)
	path = append(path, f.Object.Path...)
	path = append(path, dbformat.MagnitudeKey)
	return goqu.Cast(c.dialect.RenderJSONPath(colWithTable(f.Object.Owner.Alias(), "data"), path, true), "numeric")
}

// typedValue casts a literal so the placeholder type is known where only
// the value determines it.
func typedValue(v interface{}) exp.Expression {
	switch v.(type) {
	case int64, int:
		return goqu.Cast(goqu.V(v), "bigint")
	case float64:
		return goqu.Cast(goqu.V(v), "double precision")
	case bool:
		return goqu.Cast(goqu.V(v), "boolean")
	case nil:
		return goqu.L("NULL")
	}
	return goqu.Cast(goqu.V(v), "text")
}

func (c *compilerContext) versionCol(f *asl.ExtractedField, col string) exp.IdentifierExpression {
	return colWithTable(tableAlias(f.Owner, asl.TableVersion), col)
}

func (c *compilerContext) auditCol(f *asl.ExtractedField, col string) exp.IdentifierExpression {
	return colWithTable(tableAlias(f.Owner, asl.TableAudit), col)
}

func (c *compilerContext) dataCol(f *asl.ExtractedField, col string) exp.IdentifierExpression {
	return colWithTable(f.Owner.Alias(), col)
}

func (c *compilerContext) renderExtracted(f *asl.ExtractedField) exp.Expression {
	switch f.Column.Kind {
	case rm.ExtractedNameValue:
		return c.dataCol(f, "entity_name")
	case rm.ExtractedArchetypeNodeID:
		return c.renderArchetypeNodeID(f)
	case rm.ExtractedVOID:
		return goqu.L("concat_ws('::', ?, CAST(? AS text), ?)",
			c.versionCol(f, "vo_id"), c.systemID, c.versionCol(f, "sys_version"))
	case rm.ExtractedTemplateID:
		return c.renderTemplateLookup(f)
	case rm.ExtractedEhrID:
		return c.dataCol(f, "id")
	case rm.ExtractedEhrTimeCreated:
		return c.dataCol(f, "creation_date")
	case rm.ExtractedEhrSystemID, rm.ExtractedAuditSystemID:
		return typedValue(c.systemID)
	case rm.ExtractedCommitTime:
		return c.versionCol(f, "sys_period_lower")
	case rm.ExtractedContributionID:
		return c.versionCol(f, "contribution_id")
	case rm.ExtractedAuditDescription:
		return c.auditCol(f, "description")
	case rm.ExtractedAuditCommitter:
		return c.auditCol(f, "committer")
	case rm.ExtractedChangeTypeValue:
		return c.auditCol(f, "change_type")
	case rm.ExtractedChangeTypeCode:
		return c.renderChangeTypeCode(f)
	case rm.ExtractedChangeTypeTerminology:
		return typedValue(terminologyOpenEHR)
	}
	panic(errs.Internal("unexpected extracted column %s", f.Column.PathString()))
}

// renderTypeName spells the rm_entity of the row as the RM type name.
func (c *compilerContext) renderTypeName(f *asl.ExtractedField) exp.Expression {
	types := append([]string(nil), f.Types...)
	sort.Strings(types)

	ce := goqu.Case().Value(c.dataCol(f, "rm_entity"))
	n := 0
	for _, t := range types {
		a, err := dbformat.TypeAlias(t)
		if err != nil {
			continue
		}
		ce = ce.When(a, goqu.Cast(goqu.V(t), "text"))
		n++
	}
	if n == 0 {
		return goqu.L("CAST(NULL AS text)")
	}
	return ce
}

// renderArchetypeNodeID rebuilds the archetype id of archetype roots from
// rm_entity and the stored concept.
func (c *compilerContext) renderArchetypeNodeID(f *asl.ExtractedField) exp.Expression {
	concept := c.dataCol(f, "entity_concept")
	return goqu.L("CASE WHEN ? LIKE '.%' THEN 'openEHR-EHR-' || ? || ? ELSE ? END",
		concept, c.renderTypeName(f), concept, concept)
}

func (c *compilerContext) renderTemplateLookup(f *asl.ExtractedField) exp.Expression {
	const ts = "ts"
	return c.dialect.Builder().
		From(c.dialect.Table("template_store").As(ts)).
		Select(colWithTable(ts, "template_id")).
		Where(colWithTable(ts, "id").Eq(c.versionCol(f, "template_id")))
}

// renderTemplateName maps the stored template uuid to the template id using
// the templates known to the store.
func (c *compilerContext) renderTemplateName(f *asl.ExtractedField) exp.Expression {
	var templates []Template
	if c.templates != nil {
		templates = c.templates.Templates()
	}
	if len(templates) == 0 {
		return goqu.L("CAST(NULL AS text)")
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })

	ce := goqu.Case().Value(c.versionCol(f, "template_id"))
	for _, t := range templates {
		ce = ce.When(goqu.Cast(goqu.V(t.UUID.String()), "uuid"), goqu.Cast(goqu.V(t.ID), "text"))
	}
	return ce
}

func (c *compilerContext) renderChangeTypeCode(f *asl.ExtractedField) exp.Expression {
	names := make([]string, 0, len(rm.ChangeTypeCodes))
	for n := range rm.ChangeTypeCodes {
		names = append(names, n)
	}
	sort.Strings(names)

	ce := goqu.Case().Value(goqu.Cast(c.auditCol(f, "change_type"), "text"))
	for _, n := range names {
		ce = ce.When(n, goqu.Cast(goqu.V(rm.ChangeTypeCodes[n]), "text"))
	}
	return ce
}

func (c *compilerContext) renderAggregate(f *asl.AggregateField) exp.Expression {
	if f.Arg == nil {
		return goqu.COUNT(goqu.Star())
	}
	arg := c.renderField(f.Arg)

	switch f.Func {
	case aql.AggCount:
		if f.Distinct {
			return goqu.L("COUNT(DISTINCT ?)", arg)
		}
		return goqu.COUNT(arg)

	case aql.AggSum, aql.AggAvg:
		num := c.numeric(f.Arg)
		fn := "SUM"
		if f.Func == aql.AggAvg {
			fn = "AVG"
		}
		if f.Distinct {
			return goqu.L(fn+"(DISTINCT ?)", num)
		}
		return goqu.Func(fn, num)

	case aql.AggMin, aql.AggMax:
		if _, ok := f.Arg.(*asl.JSONField); !ok && f.OrderKey == nil {
			if f.Func == aql.AggMin {
				return goqu.MIN(arg)
			}
			return goqu.MAX(arg)
		}
		key := arg
		if f.OrderKey != nil {
			key = c.renderField(f.OrderKey)
		}
		dir := "ASC"
		if f.Func == aql.AggMax {
			dir = "DESC"
		}
		return goqu.L("(array_agg(? ORDER BY ? "+dir+") FILTER (WHERE ? IS NOT NULL))[1]", arg, key, key)
	}
	panic(errs.Internal("unexpected aggregate %s", f.Func))
}

// numeric reads f as a number.
func (c *compilerContext) numeric(f asl.Field) exp.Expression {
	switch v := f.(type) {
	case *asl.JSONField:
		return goqu.Cast(c.renderJSON(v, true), "numeric")
	case *asl.MagnitudeField:
		return c.renderMagnitude(v)
	}
	return goqu.Cast(c.renderField(f), "numeric")
}

// orderExps returns the sort keys of f.
func (c *compilerContext) orderExps(f asl.Field) []exp.Expression {
	ef, ok := f.(*asl.ExtractedField)
	if !ok {
		return []exp.Expression{c.renderField(f)}
	}

	switch ef.Column.Kind {
	case rm.ExtractedArchetypeNodeID:
		// node ids sort before archetype ids, archetype ids by type first
		concept := c.dataCol(ef, "entity_concept")
		return []exp.Expression{
			goqu.L("? LIKE '.%'", concept),
			c.renderTypeName(ef),
			concept,
		}
	case rm.ExtractedVOID:
		return []exp.Expression{c.versionCol(ef, "vo_id"), c.versionCol(ef, "sys_version")}
	case rm.ExtractedTemplateID:
		return []exp.Expression{c.renderTemplateName(ef)}
	}
	return []exp.Expression{c.renderExtracted(ef)}
}

// groupExps returns what f is grouped by. Extracted values group by their
// physical columns.
func (c *compilerContext) groupExps(f asl.Field) []exp.Expression {
	ef, ok := f.(*asl.ExtractedField)
	if !ok {
		return []exp.Expression{c.renderField(f)}
	}
	if ef.Column.Constant {
		return nil
	}

	var out []exp.Expression
	for _, col := range ef.Column.Columns {
		switch {
		case ef.Column.Audit:
			out = append(out, c.auditCol(ef, col))
		case ef.Column.VersionOnly:
			out = append(out, c.versionCol(ef, col))
		default:
			out = append(out, c.dataCol(ef, col))
		}
	}
	return out
}
