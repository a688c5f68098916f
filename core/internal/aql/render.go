package aql

import (
	"strconv"
	"strings"
)

// RenderPath renders an identified path back to AQL text.
func RenderPath(p *IdentifiedPath) string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(p.RootIdentifier())
	renderPredicates(&sb, p.RootPredicate)
	if p.Path.Len() != 0 {
		sb.WriteByte('/')
		renderObjectPath(&sb, p.Path)
	}
	return sb.String()
}

// RenderObjectPath renders a relative path.
func RenderObjectPath(p *ObjectPath) string {
	var sb strings.Builder
	renderObjectPath(&sb, p)
	return sb.String()
}

// RenderPredicates renders a predicate list including the brackets.
func RenderPredicates(preds []AndPredicate) string {
	var sb strings.Builder
	renderPredicates(&sb, preds)
	return sb.String()
}

func renderObjectPath(sb *strings.Builder, p *ObjectPath) {
	if p == nil {
		return
	}
	for i, n := range p.Nodes {
		if i != 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(n.Attribute)
		renderPredicates(sb, n.Predicates)
	}
}

func renderPredicates(sb *strings.Builder, preds []AndPredicate) {
	if len(preds) == 0 {
		return
	}
	sb.WriteByte('[')
	for i, ap := range preds {
		if i != 0 {
			sb.WriteString(` or `)
		}
		renderAndPredicate(sb, ap)
	}
	sb.WriteByte(']')
}

func renderAndPredicate(sb *strings.Builder, ap AndPredicate) {
	ops := ap.Operands
	first := true

	// shorthand: [node_id, 'name']
	if len(ops) != 0 && ops[0].IsArchetypeNodeID() && ops[0].Op == PredEQ {
		if v, ok := ops[0].StringValue(); ok {
			sb.WriteString(v)
			ops = ops[1:]
			first = false

			if len(ops) != 0 && ops[0].IsNameValue() && ops[0].Op == PredEQ {
				if nv, ok := ops[0].StringValue(); ok {
					sb.WriteString(`, `)
					sb.WriteString(quote(nv))
					ops = ops[1:]
				}
			}
		}
	}

	for _, cp := range ops {
		if !first {
			sb.WriteString(` and `)
		}
		first = false
		renderObjectPath(sb, cp.Path)
		sb.WriteString(cp.Op.String())
		renderPredicateValue(sb, cp.Value)
	}
}

func renderPredicateValue(sb *strings.Builder, v PredicateValue) {
	switch pv := v.(type) {
	case *Primitive:
		sb.WriteString(RenderPrimitive(pv))
	case *Parameter:
		sb.WriteString(`$` + pv.Name)
	case *ObjectPath:
		renderObjectPath(sb, pv)
	}
}

// RenderPrimitive renders a literal as AQL.
func RenderPrimitive(p *Primitive) string {
	switch p.Type {
	case PrimString, PrimTemporal:
		s, _ := p.Str()
		return quote(s)
	case PrimInteger:
		return strconv.FormatInt(p.Val.(int64), 10)
	case PrimReal:
		return strconv.FormatFloat(p.Val.(float64), 'g', -1, 64)
	case PrimBoolean:
		if p.Val.(bool) {
			return "true"
		}
		return "false"
	case PrimNull:
		return "NULL"
	}
	return ""
}

func quote(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `\'`) + `'`
}

// RenderOperand renders a comparison operand.
func RenderOperand(o Operand) string {
	switch v := o.(type) {
	case *IdentifiedPath:
		return RenderPath(v)
	case *Primitive:
		return RenderPrimitive(v)
	case *Parameter:
		return `$` + v.Name
	case *Function:
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = RenderOperand(a)
		}
		return v.Name + `(` + strings.Join(args, `, `) + `)`
	}
	return ""
}

// RenderColumn renders a SELECT column expression.
func RenderColumn(c ColumnExpr) string {
	switch v := c.(type) {
	case *IdentifiedPath:
		return RenderPath(v)
	case *Primitive:
		return RenderPrimitive(v)
	case *Function:
		return RenderOperand(v)
	case *AggregateFunction:
		var sb strings.Builder
		sb.WriteString(v.Func.String())
		sb.WriteByte('(')
		if v.Distinct {
			sb.WriteString(`DISTINCT `)
		}
		if v.Path == nil {
			sb.WriteByte('*')
		} else {
			sb.WriteString(RenderPath(v.Path))
		}
		sb.WriteByte(')')
		return sb.String()
	}
	return ""
}

// RenderContainment renders a FROM clause expression.
func RenderContainment(c Containment) string {
	var sb strings.Builder
	renderContainment(&sb, c)
	return sb.String()
}

func renderContainment(sb *strings.Builder, c Containment) {
	switch v := c.(type) {
	case *ClassExpr:
		sb.WriteString(v.Type)
		if v.Identifier != "" {
			sb.WriteByte(' ')
			sb.WriteString(v.Identifier)
		}
		renderPredicates(sb, v.Predicates)
		renderContains(sb, v.Contains)

	case *VersionExpr:
		sb.WriteString(`VERSION`)
		if v.Identifier != "" {
			sb.WriteByte(' ')
			sb.WriteString(v.Identifier)
		}
		switch v.Selector {
		case VersionLatest:
			sb.WriteString(`[LATEST_VERSION]`)
		case VersionAll:
			sb.WriteString(`[ALL_VERSIONS]`)
		case VersionOther:
			renderPredicates(sb, v.Predicates)
		}
		renderContains(sb, v.Contains)

	case *SetOperator:
		sb.WriteByte('(')
		for i, cv := range v.Values {
			if i != 0 {
				if v.Op == SetAnd {
					sb.WriteString(` AND `)
				} else {
					sb.WriteString(` OR `)
				}
			}
			renderContainment(sb, cv)
		}
		sb.WriteByte(')')

	case *NotContainment:
		sb.WriteString(`NOT `)
		renderContainment(sb, v.Contains)
	}
}

func renderContains(sb *strings.Builder, c Containment) {
	if c == nil {
		return
	}
	if n, ok := c.(*NotContainment); ok {
		sb.WriteString(` NOT CONTAINS `)
		renderContainment(sb, n.Contains)
		return
	}
	sb.WriteString(` CONTAINS `)
	renderContainment(sb, c)
}

// RenderCondition renders a WHERE clause expression.
func RenderCondition(c Condition) string {
	switch v := c.(type) {
	case *Comparison:
		return RenderOperand(v.Left) + ` ` + v.Op.String() + ` ` + RenderOperand(v.Right)
	case *Like:
		return RenderPath(v.Path) + ` LIKE ` + RenderOperand(v.Value)
	case *Matches:
		vals := make([]string, len(v.Values))
		for i, o := range v.Values {
			vals[i] = RenderOperand(o)
		}
		return RenderPath(v.Path) + ` MATCHES {` + strings.Join(vals, `, `) + `}`
	case *Exists:
		return `EXISTS ` + RenderPath(v.Path)
	case *Not:
		return `NOT (` + RenderCondition(v.Cond) + `)`
	case *Logical:
		parts := make([]string, len(v.Values))
		for i, cv := range v.Values {
			parts[i] = RenderCondition(cv)
		}
		sep := ` AND `
		if v.Op == LogicalOr {
			sep = ` OR `
		}
		return `(` + strings.Join(parts, sep) + `)`
	}
	return ""
}

// RenderQuery renders the full query.
func RenderQuery(q *Query) string {
	var sb strings.Builder
	sb.WriteString(`SELECT `)
	if q.Select.Distinct {
		sb.WriteString(`DISTINCT `)
	}
	for i, se := range q.Select.Exprs {
		if i != 0 {
			sb.WriteString(`, `)
		}
		sb.WriteString(RenderColumn(se.Column))
		if se.Alias != "" {
			sb.WriteString(` AS `)
			sb.WriteString(se.Alias)
		}
	}
	sb.WriteString(` FROM `)
	renderContainment(&sb, q.From)

	if q.Where != nil {
		sb.WriteString(` WHERE `)
		sb.WriteString(RenderCondition(q.Where))
	}
	for i, ob := range q.OrderBy {
		if i == 0 {
			sb.WriteString(` ORDER BY `)
		} else {
			sb.WriteString(`, `)
		}
		sb.WriteString(RenderPath(ob.Path))
		if ob.Desc {
			sb.WriteString(` DESC`)
		}
	}
	if q.Limit != nil {
		sb.WriteString(` LIMIT `)
		sb.WriteString(strconv.FormatInt(*q.Limit, 10))
	}
	if q.Offset != nil {
		sb.WriteString(` OFFSET `)
		sb.WriteString(strconv.FormatInt(*q.Offset, 10))
	}
	return sb.String()
}
