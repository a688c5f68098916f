package asl

import (
	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/util"
)

type ExpOp int

const (
	OpNop ExpOp = iota
	OpAnd
	OpOr
	OpNot
	OpEquals
	OpNotEquals
	OpGreaterThan
	OpGreaterOrEquals
	OpLesserThan
	OpLesserOrEquals
	OpLike
	OpIn
	OpNotNull
	OpFalse
	// OpRelation ties two structure rows together as Rel describes.
	OpRelation
)

func (op ExpOp) String() string {
	switch op {
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpNot:
		return "NOT"
	case OpEquals:
		return "="
	case OpNotEquals:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterOrEquals:
		return ">="
	case OpLesserThan:
		return "<"
	case OpLesserOrEquals:
		return "<="
	case OpLike:
		return "LIKE"
	case OpIn:
		return "IN"
	case OpNotNull:
		return "IS NOT NULL"
	case OpFalse:
		return "FALSE"
	case OpRelation:
		return "RELATION"
	}
	return "NOP"
}

// Exp is a condition of the plan. Comparisons read Left.Field and either
// Right.Field, Right.Val or Right.Vals.
type Exp struct {
	Op   ExpOp
	Left struct {
		Field Field
	}
	Right struct {
		Field Field
		Val   interface{}
		Vals  []interface{}
	}
	Rel      *Relation
	Children []*Exp
}

// RelationType is how a structure row relates to another row.
type RelationType int

const (
	// RelParentChild: same object, Child.parent_num = Parent.num and the
	// stored attribute path matches.
	RelParentChild RelationType = iota
	// RelDescendant: same object, Child.num in (Parent.num, Parent.num_cap].
	RelDescendant
	// RelSameArchetype: Child.citem_num = Parent.citem_num.
	RelSameArchetype
	// RelSameParent: Child.parent_num = Parent.parent_num.
	RelSameParent
	// RelEhr: Child belongs to the EHR scanned by Parent.
	RelEhr
	// RelSameEhr: both rows belong to the same EHR.
	RelSameEhr
	// RelFolderItem: Child is an object root listed by the FilteringQuery
	// Parent.
	RelFolderItem
)

func (t RelationType) String() string {
	switch t {
	case RelParentChild:
		return "PARENT_CHILD"
	case RelDescendant:
		return "DESCENDANT"
	case RelSameArchetype:
		return "SAME_ARCHETYPE"
	case RelSameParent:
		return "SAME_PARENT"
	case RelEhr:
		return "EHR"
	case RelSameEhr:
		return "SAME_EHR"
	case RelFolderItem:
		return "FOLDER_ITEM"
	}
	return "?"
}

type Relation struct {
	Type   RelationType
	Child  *StructureQuery
	Parent Query
	// Attribute is the stored entity_attribute of RelParentChild.
	Attribute string
}

func newExpOp(op ExpOp) *Exp {
	return &Exp{Op: op}
}

// And drops nil operands and flattens single operands.
func And(exps ...*Exp) *Exp {
	return junction(OpAnd, exps)
}

// Or drops nil operands and flattens single operands.
func Or(exps ...*Exp) *Exp {
	return junction(OpOr, exps)
}

func junction(op ExpOp, exps []*Exp) *Exp {
	var children []*Exp
	for _, e := range exps {
		switch {
		case e == nil:
		case e.Op == op:
			children = append(children, e.Children...)
		default:
			children = append(children, e)
		}
	}
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	}
	ex := newExpOp(op)
	ex.Children = children
	return ex
}

func Not(e *Exp) *Exp {
	ex := newExpOp(OpNot)
	ex.Children = []*Exp{e}
	return ex
}

// Compare compares f with a literal.
func Compare(f Field, op ExpOp, val interface{}) *Exp {
	ex := newExpOp(op)
	ex.Left.Field = f
	ex.Right.Val = val
	return ex
}

// CompareFields compares two fields.
func CompareFields(l Field, op ExpOp, r Field) *Exp {
	ex := newExpOp(op)
	ex.Left.Field = l
	ex.Right.Field = r
	return ex
}

func In(f Field, vals []interface{}) *Exp {
	ex := newExpOp(OpIn)
	ex.Left.Field = f
	ex.Right.Vals = vals
	return ex
}

func NotNull(f Field) *Exp {
	ex := newExpOp(OpNotNull)
	ex.Left.Field = f
	return ex
}

func False() *Exp {
	return newExpOp(OpFalse)
}

func Rel(t RelationType, child *StructureQuery, parent Query, attr string) *Exp {
	ex := newExpOp(OpRelation)
	ex.Rel = &Relation{Type: t, Child: child, Parent: parent, Attribute: attr}
	return ex
}

// CompareOp maps an AQL operator.
func CompareOp(op aql.ComparisonOp) ExpOp {
	switch op {
	case aql.OpEQ:
		return OpEquals
	case aql.OpNEQ:
		return OpNotEquals
	case aql.OpGT:
		return OpGreaterThan
	case aql.OpGTEQ:
		return OpGreaterOrEquals
	case aql.OpLT:
		return OpLesserThan
	case aql.OpLTEQ:
		return OpLesserOrEquals
	}
	return OpNop
}

// Walk visits e and its children depth first.
func Walk(e *Exp, fn func(*Exp)) {
	if e == nil {
		return
	}
	st := util.NewStackInf()
	st.Push(e)

	for st.Len() != 0 {
		ex := st.Pop().(*Exp)
		fn(ex)
		for i := len(ex.Children) - 1; i >= 0; i-- {
			if ex.Children[i] != nil {
				st.Push(ex.Children[i])
			}
		}
	}
}
