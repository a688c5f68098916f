package aql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ehrbase/aqlengine/core/internal/errs"
)

var temporalRe = regexp.MustCompile(
	`^(\d{4}-\d{2}(-\d{2})?(T\d{2}(:\d{2}(:\d{2}([.,]\d+)?)?)?(Z|[+-]\d{2}(:?\d{2})?)?)?` +
		`|\d{2}:\d{2}(:\d{2}([.,]\d+)?)?(Z|[+-]\d{2}(:?\d{2})?)?)$`)

var reserved = map[string]struct{}{
	"select": {}, "distinct": {}, "as": {}, "from": {}, "contains": {},
	"and": {}, "or": {}, "not": {}, "where": {}, "order": {}, "by": {},
	"asc": {}, "desc": {}, "ascending": {}, "descending": {},
	"limit": {}, "offset": {}, "like": {}, "matches": {}, "exists": {},
}

type unresolved struct {
	path *IdentifiedPath
	name string
	pos  int
}

type parser struct {
	lex  lexer
	tok  token
	peek *token

	paths []unresolved
	ids   map[string]Containment
}

// Parse parses AQL text into a query. Syntax errors and references to
// unknown identifiers are reported as invalid queries.
func Parse(text string) (q *Query, err error) {
	p := &parser{lex: lexer{input: text}, ids: make(map[string]Containment)}
	defer errs.Recover(&err)

	if err = p.advance(); err != nil {
		return nil, errs.Invalid("%s", err.Error())
	}
	q = p.parseQuery()
	return q, nil
}

func (p *parser) fail(format string, args ...interface{}) {
	panic(errs.Invalid("at position %d: %s", p.tok.pos, fmt.Sprintf(format, args...)))
}

func (p *parser) advance() error {
	if p.peek != nil {
		p.tok = *p.peek
		p.peek = nil
		return nil
	}
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) next() token {
	t := p.tok
	if err := p.advance(); err != nil {
		panic(errs.Invalid("%s", err.Error()))
	}
	return t
}

func (p *parser) lookahead() token {
	if p.peek == nil {
		t, err := p.lex.next()
		if err != nil {
			panic(errs.Invalid("%s", err.Error()))
		}
		p.peek = &t
	}
	return *p.peek
}

func (p *parser) expectKeyword(kw string) {
	if !p.tok.is(kw) {
		p.fail("expected %s, found %s", strings.ToUpper(kw), p.tok)
	}
	p.next()
}

func (p *parser) expectPunct(s string) {
	if !p.tok.punct(s) {
		p.fail("expected '%s', found %s", s, p.tok)
	}
	p.next()
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.tok.is(kw) {
		p.next()
		return true
	}
	return false
}

func (p *parser) acceptPunct(s string) bool {
	if p.tok.punct(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) parseQuery() *Query {
	q := &Query{}

	p.expectKeyword("select")
	q.Select = p.parseSelect()

	p.expectKeyword("from")
	q.From = p.parseContainsExpr()

	if p.acceptKeyword("where") {
		q.Where = p.parseOrCondition()
	}

	if p.acceptKeyword("order") {
		p.expectKeyword("by")
		for {
			ob := OrderBy{Path: p.parseIdentifiedPath()}
			switch {
			case p.acceptKeyword("desc"), p.acceptKeyword("descending"):
				ob.Desc = true
			case p.acceptKeyword("asc"), p.acceptKeyword("ascending"):
			}
			q.OrderBy = append(q.OrderBy, ob)
			if !p.acceptPunct(",") {
				break
			}
		}
	}

	if p.acceptKeyword("limit") {
		v := p.parseCount()
		q.Limit = &v
	}
	if p.acceptKeyword("offset") {
		v := p.parseCount()
		q.Offset = &v
	}

	if p.tok.typ != tokEOF {
		p.fail("unexpected %s", p.tok)
	}

	p.resolve()
	return q
}

func (p *parser) parseCount() int64 {
	if p.tok.typ != tokInteger {
		p.fail("expected integer, found %s", p.tok)
	}
	v, err := strconv.ParseInt(p.tok.val, 10, 64)
	if err != nil || v < 0 {
		p.fail("invalid count %s", p.tok)
	}
	p.next()
	return v
}

// resolve binds every identified path to the containment declaring its
// identifier. Paths are parsed before FROM so this runs last.
func (p *parser) resolve() {
	for _, u := range p.paths {
		c, ok := p.ids[u.name]
		if !ok {
			panic(errs.Invalid("at position %d: unknown identifier '%s'", u.pos, u.name))
		}
		u.path.Root = c
	}
}

func (p *parser) parseSelect() Select {
	var s Select
	s.Distinct = p.acceptKeyword("distinct")

	for {
		var se SelectExpr
		se.Column = p.parseColumn()
		if p.acceptKeyword("as") {
			if p.tok.typ != tokIdent {
				p.fail("alias expected, found %s", p.tok)
			}
			se.Alias = p.next().val
		}
		s.Exprs = append(s.Exprs, se)
		if !p.acceptPunct(",") {
			break
		}
	}
	return s
}

var aggregates = map[string]AggregateFunc{
	"count": AggCount,
	"min":   AggMin,
	"max":   AggMax,
	"sum":   AggSum,
	"avg":   AggAvg,
}

func (p *parser) parseColumn() ColumnExpr {
	if p.tok.typ == tokIdent && p.lookahead().punct("(") {
		if fn, ok := aggregates[strings.ToLower(p.tok.val)]; ok {
			p.next()
			p.next()
			af := &AggregateFunction{Func: fn}
			af.Distinct = p.acceptKeyword("distinct")
			if p.acceptPunct("*") {
				if fn != AggCount {
					p.fail("%s(*) is not allowed", fn)
				}
			} else {
				af.Path = p.parseIdentifiedPath()
			}
			p.expectPunct(")")
			return af
		}
		return p.parseFunction()
	}

	switch p.tok.typ {
	case tokIdent:
		if lit := p.keywordLiteral(); lit != nil {
			return lit
		}
		return p.parseIdentifiedPath()
	case tokString, tokInteger, tokReal:
		return p.parsePrimitive()
	}
	p.fail("select expression expected, found %s", p.tok)
	return nil
}

func (p *parser) parseFunction() *Function {
	fn := &Function{Name: strings.ToUpper(p.next().val)}
	p.expectPunct("(")
	if !p.tok.punct(")") {
		for {
			fn.Args = append(fn.Args, p.parseOperand())
			if !p.acceptPunct(",") {
				break
			}
		}
	}
	p.expectPunct(")")
	return fn
}

func (p *parser) keywordLiteral() *Primitive {
	switch {
	case p.tok.is("true"):
		p.next()
		return Boolean(true)
	case p.tok.is("false"):
		p.next()
		return Boolean(false)
	case p.tok.is("null"):
		p.next()
		return &Primitive{Type: PrimNull}
	}
	return nil
}

func (p *parser) parsePrimitive() *Primitive {
	t := p.next()
	switch t.typ {
	case tokString:
		if temporalRe.MatchString(t.val) {
			return &Primitive{Type: PrimTemporal, Val: t.val}
		}
		return String(t.val)
	case tokInteger:
		v, err := strconv.ParseInt(t.val, 10, 64)
		if err != nil {
			p.fail("invalid integer %s", t.val)
		}
		return Integer(v)
	case tokReal:
		v, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			p.fail("invalid number %s", t.val)
		}
		return Real(v)
	}
	p.fail("literal expected, found %s", t)
	return nil
}

func (p *parser) parseIdentifiedPath() *IdentifiedPath {
	if p.tok.typ != tokIdent {
		p.fail("identifier expected, found %s", p.tok)
	}
	if _, ok := reserved[strings.ToLower(p.tok.val)]; ok {
		p.fail("identifier expected, found %s", strings.ToUpper(p.tok.val))
	}
	t := p.next()
	ip := &IdentifiedPath{}
	p.paths = append(p.paths, unresolved{path: ip, name: t.val, pos: t.pos})

	if p.tok.punct("[") {
		ip.RootPredicate = p.parsePredicate()
	}
	if p.acceptPunct("/") {
		ip.Path = p.parseObjectPath()
	}
	return ip
}

func (p *parser) parseObjectPath() *ObjectPath {
	op := &ObjectPath{}
	for {
		if p.tok.typ != tokIdent {
			p.fail("attribute expected, found %s", p.tok)
		}
		n := PathNode{Attribute: p.next().val}
		if p.tok.punct("[") {
			n.Predicates = p.parsePredicate()
		}
		op.Nodes = append(op.Nodes, n)
		if !p.acceptPunct("/") {
			break
		}
	}
	return op
}

// parsePredicate parses a bracketed predicate: [a or b], where each group is
// either the shorthand "node_id[, 'name'][and ...]" or a list of comparisons.
func (p *parser) parsePredicate() []AndPredicate {
	p.expectPunct("[")
	var out []AndPredicate
	for {
		out = append(out, p.parseAndPredicate())
		if !p.acceptKeyword("or") {
			break
		}
	}
	p.expectPunct("]")
	return out
}

func (p *parser) parseAndPredicate() AndPredicate {
	var ap AndPredicate

	if p.isNodeIDShorthand() {
		t := p.next()
		var v PredicateValue
		if t.typ == tokParam {
			v = &Parameter{Name: t.val}
		} else {
			v = String(t.val)
		}
		ap.Operands = append(ap.Operands, ComparisonPredicate{
			Path:  &ObjectPath{Nodes: []PathNode{{Attribute: ArchetypeNodeID}}},
			Op:    PredEQ,
			Value: v,
		})

		if p.acceptPunct(",") {
			var nv PredicateValue
			switch p.tok.typ {
			case tokString:
				nv = String(p.next().val)
			case tokParam:
				nv = &Parameter{Name: p.next().val}
			default:
				p.fail("name value expected, found %s", p.tok)
			}
			ap.Operands = append(ap.Operands, ComparisonPredicate{
				Path:  &ObjectPath{Nodes: []PathNode{{Attribute: "name"}, {Attribute: "value"}}},
				Op:    PredEQ,
				Value: nv,
			})
		}
		if !p.acceptKeyword("and") {
			return ap
		}
	}

	for {
		ap.Operands = append(ap.Operands, p.parseComparisonPredicate())
		if !p.acceptKeyword("and") {
			break
		}
	}
	return ap
}

func (p *parser) isNodeIDShorthand() bool {
	switch p.tok.typ {
	case tokParam:
		la := p.lookahead()
		return la.punct("]") || la.punct(",") || la.is("and") || la.is("or")
	case tokIdent:
		la := p.lookahead()
		return !la.punct("/") && la.typ != tokOp && !la.punct("[")
	}
	return false
}

var predOps = map[string]PredicateOp{
	"=":  PredEQ,
	"!=": PredNEQ,
	">":  PredGT,
	">=": PredGTEQ,
	"<":  PredLT,
	"<=": PredLTEQ,
}

func (p *parser) parseComparisonPredicate() ComparisonPredicate {
	cp := ComparisonPredicate{Path: p.parseObjectPath()}
	if p.tok.typ != tokOp {
		p.fail("comparison operator expected, found %s", p.tok)
	}
	cp.Op = predOps[p.next().val]

	switch p.tok.typ {
	case tokParam:
		cp.Value = &Parameter{Name: p.next().val}
	case tokString, tokInteger, tokReal:
		cp.Value = p.parsePrimitive()
	case tokIdent:
		if lit := p.keywordLiteral(); lit != nil {
			cp.Value = lit
		} else {
			cp.Value = p.parseObjectPath()
		}
	default:
		p.fail("predicate value expected, found %s", p.tok)
	}
	return cp
}

// parseContainsExpr parses the FROM clause. AND binds tighter than OR and the
// right hand side of CONTAINS is a full expression.
func (p *parser) parseContainsExpr() Containment {
	c := p.parseContainsAnd()
	if !p.tok.is("or") {
		return c
	}
	so := &SetOperator{Op: SetOr, Values: []Containment{c}}
	for p.acceptKeyword("or") {
		so.Values = append(so.Values, p.parseContainsAnd())
	}
	return so
}

func (p *parser) parseContainsAnd() Containment {
	c := p.parseContainsUnary()
	if !p.tok.is("and") {
		return c
	}
	so := &SetOperator{Op: SetAnd, Values: []Containment{c}}
	for p.acceptKeyword("and") {
		so.Values = append(so.Values, p.parseContainsUnary())
	}
	return so
}

func (p *parser) parseContainsUnary() Containment {
	switch {
	case p.acceptKeyword("not"):
		return &NotContainment{Contains: p.parseContainsUnary()}
	case p.acceptPunct("("):
		c := p.parseContainsExpr()
		p.expectPunct(")")
		return c
	}
	return p.parseClassExpr()
}

func (p *parser) parseClassExpr() Containment {
	if p.tok.typ != tokIdent {
		p.fail("class expression expected, found %s", p.tok)
	}
	if p.tok.is("version") {
		return p.parseVersionExpr()
	}

	ce := &ClassExpr{Type: strings.ToUpper(p.next().val)}
	if p.tok.typ == tokIdent && !p.isContainsKeyword() {
		ce.Identifier = p.next().val
		p.declare(ce.Identifier, ce)
	}
	if p.tok.punct("[") {
		ce.Predicates = p.parsePredicate()
	}
	ce.Contains = p.parseContains()
	return ce
}

func (p *parser) parseVersionExpr() Containment {
	p.next()
	ve := &VersionExpr{}
	if p.tok.typ == tokIdent && !p.isContainsKeyword() {
		ve.Identifier = p.next().val
		p.declare(ve.Identifier, ve)
	}
	if p.tok.punct("[") {
		la := p.lookahead()
		switch {
		case la.is("latest_version"):
			p.next()
			p.next()
			p.expectPunct("]")
			ve.Selector = VersionLatest
		case la.is("all_versions"):
			p.next()
			p.next()
			p.expectPunct("]")
			ve.Selector = VersionAll
		default:
			ve.Selector = VersionOther
			ve.Predicates = p.parsePredicate()
		}
	}
	ve.Contains = p.parseContains()
	return ve
}

func (p *parser) isContainsKeyword() bool {
	if p.tok.is("contains") {
		return true
	}
	if _, ok := reserved[strings.ToLower(p.tok.val)]; ok {
		return true
	}
	return false
}

func (p *parser) parseContains() Containment {
	if p.tok.is("not") && p.lookahead().is("contains") {
		p.next()
		p.next()
		return &NotContainment{Contains: p.parseContainsExpr()}
	}
	if p.acceptKeyword("contains") {
		return p.parseContainsExpr()
	}
	return nil
}

func (p *parser) declare(name string, c Containment) {
	if _, ok := p.ids[name]; ok {
		p.fail("duplicate identifier '%s'", name)
	}
	p.ids[name] = c
}

func (p *parser) parseOrCondition() Condition {
	c := p.parseAndCondition()
	if !p.tok.is("or") {
		return c
	}
	l := &Logical{Op: LogicalOr, Values: []Condition{c}}
	for p.acceptKeyword("or") {
		l.Values = append(l.Values, p.parseAndCondition())
	}
	return l
}

func (p *parser) parseAndCondition() Condition {
	c := p.parseUnaryCondition()
	if !p.tok.is("and") {
		return c
	}
	l := &Logical{Op: LogicalAnd, Values: []Condition{c}}
	for p.acceptKeyword("and") {
		l.Values = append(l.Values, p.parseUnaryCondition())
	}
	return l
}

func (p *parser) parseUnaryCondition() Condition {
	switch {
	case p.acceptKeyword("not"):
		return &Not{Cond: p.parseUnaryCondition()}
	case p.acceptKeyword("exists"):
		return &Exists{Path: p.parseIdentifiedPath()}
	case p.acceptPunct("("):
		c := p.parseOrCondition()
		p.expectPunct(")")
		return c
	}

	left := p.parseOperand()
	switch {
	case p.tok.typ == tokOp:
		op := ComparisonOp(predOps[p.next().val])
		return &Comparison{Left: left, Op: op, Right: p.parseOperand()}

	case p.acceptKeyword("like"):
		ip, ok := left.(*IdentifiedPath)
		if !ok {
			p.fail("LIKE requires a path on the left side")
		}
		return &Like{Path: ip, Value: p.parseOperand()}

	case p.acceptKeyword("matches"):
		ip, ok := left.(*IdentifiedPath)
		if !ok {
			p.fail("MATCHES requires a path on the left side")
		}
		m := &Matches{Path: ip}
		p.expectPunct("{")
		for {
			m.Values = append(m.Values, p.parseOperand())
			if !p.acceptPunct(",") {
				break
			}
		}
		p.expectPunct("}")
		return m
	}
	p.fail("condition expected, found %s", p.tok)
	return nil
}

func (p *parser) parseOperand() Operand {
	switch p.tok.typ {
	case tokParam:
		return &Parameter{Name: p.next().val}
	case tokString, tokInteger, tokReal:
		return p.parsePrimitive()
	case tokIdent:
		if lit := p.keywordLiteral(); lit != nil {
			return lit
		}
		if p.lookahead().punct("(") {
			return p.parseFunction()
		}
		return p.parseIdentifiedPath()
	}
	p.fail("operand expected, found %s", p.tok)
	return nil
}
