// Package aql holds the immutable query model the compiler consumes, along with
// a parser for AQL text and a renderer back to AQL.
package aql

import "strings"

type Query struct {
	Select  Select
	From    Containment
	Where   Condition
	OrderBy []OrderBy
	Limit   *int64
	Offset  *int64
}

type Select struct {
	Distinct bool
	Exprs    []SelectExpr
}

type SelectExpr struct {
	Column ColumnExpr
	Alias  string
}

// ColumnExpr is one of *IdentifiedPath, *AggregateFunction, *Function or *Primitive.
type ColumnExpr interface {
	columnExpr()
}

// Operand is one of *IdentifiedPath, *Primitive, *Parameter or *Function.
type Operand interface {
	operand()
}

type PrimitiveType int

const (
	PrimString PrimitiveType = iota + 1
	PrimInteger
	PrimReal
	PrimBoolean
	PrimTemporal
	PrimNull
)

func (t PrimitiveType) String() string {
	switch t {
	case PrimString:
		return "String"
	case PrimInteger:
		return "Integer"
	case PrimReal:
		return "Real"
	case PrimBoolean:
		return "Boolean"
	case PrimTemporal:
		return "Temporal"
	case PrimNull:
		return "NULL"
	}
	return "unknown"
}

// Primitive is a literal. Val holds a string, int64, float64, bool or nil.
type Primitive struct {
	Type PrimitiveType
	Val  interface{}
}

func (p *Primitive) columnExpr() {}
func (p *Primitive) operand()    {}
func (p *Primitive) predValue()  {}

// Str returns the literal as string for string and temporal primitives.
func (p *Primitive) Str() (string, bool) {
	s, ok := p.Val.(string)
	return s, ok
}

func (p *Primitive) IsNumeric() bool {
	return p.Type == PrimInteger || p.Type == PrimReal
}

func String(s string) *Primitive { return &Primitive{Type: PrimString, Val: s} }
func Integer(i int64) *Primitive { return &Primitive{Type: PrimInteger, Val: i} }
func Real(f float64) *Primitive  { return &Primitive{Type: PrimReal, Val: f} }
func Boolean(b bool) *Primitive  { return &Primitive{Type: PrimBoolean, Val: b} }

type Parameter struct {
	Name string
}

func (p *Parameter) operand()   {}
func (p *Parameter) predValue() {}

type AggregateFunc int

const (
	AggCount AggregateFunc = iota + 1
	AggMin
	AggMax
	AggSum
	AggAvg
)

func (f AggregateFunc) String() string {
	switch f {
	case AggCount:
		return "COUNT"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	case AggSum:
		return "SUM"
	case AggAvg:
		return "AVG"
	}
	return "?"
}

type AggregateFunction struct {
	Func     AggregateFunc
	Path     *IdentifiedPath // nil for COUNT(*)
	Distinct bool
}

func (a *AggregateFunction) columnExpr() {}

// Function is a single-row function call such as LENGTH(x).
type Function struct {
	Name string
	Args []Operand
}

func (f *Function) columnExpr() {}
func (f *Function) operand()    {}

// IdentifiedPath is a path rooted at a FROM clause identifier.
type IdentifiedPath struct {
	Root          Containment // *ClassExpr or *VersionExpr
	RootPredicate []AndPredicate
	Path          *ObjectPath
}

func (p *IdentifiedPath) columnExpr() {}
func (p *IdentifiedPath) operand()    {}

// RootIdentifier returns the identifier the path is rooted at.
func (p *IdentifiedPath) RootIdentifier() string {
	switch r := p.Root.(type) {
	case *ClassExpr:
		return r.Identifier
	case *VersionExpr:
		return r.Identifier
	}
	return ""
}

type ObjectPath struct {
	Nodes []PathNode
}

func (p *ObjectPath) predValue() {}

// Len is nil safe.
func (p *ObjectPath) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Nodes)
}

// Attributes returns the bare attribute names of the path.
func (p *ObjectPath) Attributes() []string {
	if p == nil {
		return nil
	}
	names := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		names[i] = n.Attribute
	}
	return names
}

// AttributePath joins the bare attribute names with '/'.
func (p *ObjectPath) AttributePath() string {
	return strings.Join(p.Attributes(), "/")
}

// Sub returns the nodes [from, to) as a new path.
func (p *ObjectPath) Sub(from, to int) *ObjectPath {
	return &ObjectPath{Nodes: p.Nodes[from:to]}
}

// PathNode is a single attribute step. Predicates are an OR of AND groups.
type PathNode struct {
	Attribute  string
	Predicates []AndPredicate
}

type AndPredicate struct {
	Operands []ComparisonPredicate
}

type PredicateOp int

const (
	PredEQ PredicateOp = iota + 1
	PredNEQ
	PredGT
	PredGTEQ
	PredLT
	PredLTEQ
)

func (o PredicateOp) String() string {
	switch o {
	case PredEQ:
		return "="
	case PredNEQ:
		return "!="
	case PredGT:
		return ">"
	case PredGTEQ:
		return ">="
	case PredLT:
		return "<"
	case PredLTEQ:
		return "<="
	}
	return "?"
}

// PredicateValue is one of *Primitive, *Parameter or *ObjectPath.
type PredicateValue interface {
	predValue()
}

type ComparisonPredicate struct {
	Path  *ObjectPath
	Op    PredicateOp
	Value PredicateValue
}

// Well known predicate paths.
const (
	ArchetypeNodeID = "archetype_node_id"
	NameValue       = "name/value"
)

// Containment is one of *ClassExpr, *VersionExpr, *SetOperator or *NotContainment.
type Containment interface {
	containment()
}

type ClassExpr struct {
	Type       string
	Identifier string
	Predicates []AndPredicate
	Contains   Containment
}

func (c *ClassExpr) containment() {}

type VersionSelector int

const (
	VersionNone VersionSelector = iota
	VersionLatest
	VersionAll
	VersionOther
)

type VersionExpr struct {
	Identifier string
	Selector   VersionSelector
	Predicates []AndPredicate
	Contains   Containment
}

func (v *VersionExpr) containment() {}

type SetOp int

const (
	SetAnd SetOp = iota + 1
	SetOr
)

type SetOperator struct {
	Op     SetOp
	Values []Containment
}

func (s *SetOperator) containment() {}

type NotContainment struct {
	Contains Containment
}

func (n *NotContainment) containment() {}

// Condition is one of *Comparison, *Like, *Matches, *Exists, *Logical or *Not.
type Condition interface {
	condition()
}

type ComparisonOp int

const (
	OpEQ ComparisonOp = iota + 1
	OpNEQ
	OpGT
	OpGTEQ
	OpLT
	OpLTEQ
)

func (o ComparisonOp) String() string {
	return PredicateOp(o).String()
}

type Comparison struct {
	Left  Operand
	Op    ComparisonOp
	Right Operand
}

type Like struct {
	Path  *IdentifiedPath
	Value Operand
}

type Matches struct {
	Path   *IdentifiedPath
	Values []Operand
}

type Exists struct {
	Path *IdentifiedPath
}

type LogicalOp int

const (
	LogicalAnd LogicalOp = iota + 1
	LogicalOr
)

type Logical struct {
	Op     LogicalOp
	Values []Condition
}

type Not struct {
	Cond Condition
}

func (c *Comparison) condition() {}
func (c *Like) condition()       {}
func (c *Matches) condition()    {}
func (c *Exists) condition()     {}
func (c *Logical) condition()    {}
func (c *Not) condition()        {}

type OrderBy struct {
	Path *IdentifiedPath
	Desc bool
}
