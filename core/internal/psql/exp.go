package psql

import (
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/ehrbase/aqlengine/core/internal/asl"
	"github.com/ehrbase/aqlengine/core/internal/dbformat"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

func (c *compilerContext) renderExp(ex *asl.Exp) exp.Expression {
	if ex == nil {
		return nil
	}

	switch ex.Op {
	case asl.OpAnd, asl.OpOr:
		children := make([]exp.Expression, 0, len(ex.Children))
		for _, ch := range ex.Children {
			if e := c.renderExp(ch); e != nil {
				children = append(children, e)
			}
		}
		if ex.Op == asl.OpOr {
			return goqu.Or(children...)
		}
		return goqu.And(children...)

	case asl.OpNot:
		return goqu.L("NOT (?)", c.renderExp(ex.Children[0]))

	case asl.OpFalse:
		return goqu.L("false")

	case asl.OpNotNull:
		return lit(c.renderField(ex.Left.Field)).IsNotNull()

	case asl.OpRelation:
		return c.renderRelation(ex.Rel)

	case asl.OpIn:
		return lit(c.renderField(ex.Left.Field)).In(ex.Right.Vals...)
	}

	if ex.Right.Field != nil {
		return compare(lit(c.renderField(ex.Left.Field)), ex.Op, c.renderField(ex.Right.Field))
	}

	switch f := ex.Left.Field.(type) {
	case *asl.JSONField:
		return c.renderJSONCompare(f, ex.Op, ex.Right.Val)
	case *asl.ExtractedField:
		return c.renderExtractedCompare(f, ex.Op, ex.Right.Val)
	}
	return compare(lit(c.renderField(ex.Left.Field)), ex.Op, ex.Right.Val)
}

func compare(l exp.LiteralExpression, op asl.ExpOp, val interface{}) exp.Expression {
	switch op {
	case asl.OpEquals:
		return l.Eq(val)
	case asl.OpNotEquals:
		return l.Neq(val)
	case asl.OpGreaterThan:
		return l.Gt(val)
	case asl.OpGreaterOrEquals:
		return l.Gte(val)
	case asl.OpLesserThan:
		return l.Lt(val)
	case asl.OpLesserOrEquals:
		return l.Lte(val)
	case asl.OpLike:
		return l.Like(val)
	}
	panic(errs.Internal("unexpected operator %s", op))
}

// renderJSONCompare compares stored JSON with a JSON encoded literal. LIKE
// reads the value as text.
func (c *compilerContext) renderJSONCompare(f *asl.JSONField, op asl.ExpOp, val interface{}) exp.Expression {
	if op == asl.OpLike {
		return compare(c.renderJSON(f, true), op, val)
	}
	b, err := json.Marshal(val)
	if err != nil {
		panic(errs.Internal("encode literal: %s", err.Error()))
	}
	return compare(c.renderJSON(f, false), op, goqu.Cast(goqu.V(string(b)), "jsonb"))
}

func (c *compilerContext) renderExtractedCompare(f *asl.ExtractedField, op asl.ExpOp, val interface{}) exp.Expression {
	switch f.Column.Kind {
	case rm.ExtractedArchetypeNodeID:
		return c.renderArchetypeCompare(f, op, stringOf(val))

	case rm.ExtractedVOID:
		return c.renderVOIDCompare(f, op, stringOf(val))

	case rm.ExtractedTemplateID:
		return c.renderTemplateCompare(f, op, stringOf(val))

	case rm.ExtractedEhrID, rm.ExtractedContributionID:
		vo, err := rm.ParseVersionedObjectID(stringOf(val))
		if err != nil {
			panic(errs.Invalid("%s", err.Error()).WithPath(f.Column.PathString()))
		}
		return compare(lit(c.renderExtracted(f)), op, goqu.Cast(goqu.V(vo.ID.String()), "uuid"))

	case rm.ExtractedEhrTimeCreated, rm.ExtractedCommitTime:
		return compare(lit(c.renderExtracted(f)), op, goqu.Cast(goqu.V(stringOf(val)), "timestamptz"))

	case rm.ExtractedEhrSystemID, rm.ExtractedAuditSystemID:
		return constantCompare(c.systemID, op, stringOf(val))

	case rm.ExtractedChangeTypeTerminology:
		return constantCompare(terminologyOpenEHR, op, stringOf(val))

	case rm.ExtractedAuditCommitter:
		panic(errs.Internal("committer cannot be compared").WithPath(f.Column.PathString()))
	}
	return compare(lit(c.renderExtracted(f)), op, val)
}

func stringOf(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// renderArchetypeCompare matches rm_entity and entity_concept instead of the
// spelled archetype node id so the columns stay usable by indexes.
func (c *compilerContext) renderArchetypeCompare(f *asl.ExtractedField, op asl.ExpOp, val string) exp.Expression {
	concept := c.dataCol(f, "entity_concept")
	entity := c.dataCol(f, "rm_entity")

	if op == asl.OpLike {
		typ, rest, ok := rm.ArchetypePrefixType(val)
		if !ok {
			return concept.Like(val)
		}
		a, err := dbformat.TypeAlias(typ)
		if err != nil {
			return goqu.L("false")
		}
		return goqu.And(entity.Eq(a), concept.Like(rest))
	}

	var match exp.Expression
	if id, ok := rm.ParseArchetypeID(val); ok {
		a, err := dbformat.TypeAlias(id.Type)
		if err != nil {
			match = goqu.L("false")
		} else {
			match = goqu.And(entity.Eq(a), concept.Eq(id.StoredConcept()))
		}
	} else {
		match = concept.Eq(val)
	}

	switch op {
	case asl.OpEquals:
		return match
	case asl.OpNotEquals:
		return goqu.L("NOT (?)", match)
	}
	panic(errs.Internal("unexpected operator %s on archetype_node_id", op))
}

func (c *compilerContext) renderVOIDCompare(f *asl.ExtractedField, op asl.ExpOp, val string) exp.Expression {
	vo, err := rm.ParseVersionedObjectID(val)
	if err != nil {
		panic(errs.Invalid("%s", err.Error()).WithPath(f.Column.PathString()))
	}
	id := goqu.Cast(goqu.V(vo.ID.String()), "uuid")
	if !vo.HasVersion {
		return compare(lit(c.versionCol(f, "vo_id")), op, id)
	}
	return goqu.L(fmt.Sprintf("(?, ?) %s (?, ?)", sqlOp(op)),
		c.versionCol(f, "vo_id"), c.versionCol(f, "sys_version"), id, vo.Version)
}

// renderTemplateCompare compares the stored template uuid. Unknown templates
// match nothing.
func (c *compilerContext) renderTemplateCompare(f *asl.ExtractedField, op asl.ExpOp, val string) exp.Expression {
	switch op {
	case asl.OpEquals, asl.OpNotEquals:
	default:
		return compare(lit(c.renderTemplateName(f)), op, val)
	}

	var id string
	found := false
	if c.templates != nil {
		if u, ok := c.templates.TemplateUUID(val); ok {
			id, found = u.String(), true
		}
	}
	if !found {
		return constantCompare("", op, val)
	}
	return compare(lit(c.versionCol(f, "template_id")), op, goqu.Cast(goqu.V(id), "uuid"))
}

// constantCompare evaluates a comparison with a value known at compile time.
func constantCompare(constant string, op asl.ExpOp, val string) exp.Expression {
	var ok bool
	switch op {
	case asl.OpEquals:
		ok = constant == val
	case asl.OpNotEquals:
		ok = constant != val
	case asl.OpGreaterThan:
		ok = constant > val
	case asl.OpGreaterOrEquals:
		ok = constant >= val
	case asl.OpLesserThan:
		ok = constant < val
	case asl.OpLesserOrEquals:
		ok = constant <= val
	default:
		panic(errs.Internal("unexpected operator %s on a constant", op))
	}
	if ok {
		return goqu.L("true")
	}
	return goqu.L("false")
}

func sqlOp(op asl.ExpOp) string {
	switch op {
	case asl.OpEquals, asl.OpNotEquals, asl.OpGreaterThan, asl.OpGreaterOrEquals,
		asl.OpLesserThan, asl.OpLesserOrEquals:
		if op == asl.OpNotEquals {
			return "<>"
		}
		return op.String()
	}
	panic(errs.Internal("unexpected operator %s", op))
}
