// Package asl holds the relational plan an AQL query is compiled into before
// it is rendered as SQL. Plan nodes reference each other by pointer; a field
// always points at the query that provides it.
package asl

import (
	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/pathanalysis"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

// Query is one of *StructureQuery, *EncapsulatingQuery, *RmObjectDataQuery,
// *FilteringQuery or *PathDataQuery.
type Query interface {
	Alias() string
	aslQuery()
}

type base struct {
	alias string
}

func (b *base) Alias() string { return b.alias }
func (b *base) aslQuery()     {}

// Source is the table a StructureQuery scans.
type Source int

const (
	SourceData Source = iota
	SourceEhr
)

// StructureQuery scans the rows of one stored RM structure type.
type StructureQuery struct {
	base
	Source Source
	Root   rm.StructureRoot

	// Types restrict rm_entity. Empty means any type.
	Types []string

	// ObjectRoot scans only the root rows (num = 0).
	ObjectRoot bool

	// Version and Audit request the version table and the audit of the
	// version.
	Version bool
	Audit   bool

	// Containment is set for FROM clause class expressions, Node for rows
	// joined for a cohesion tree node.
	Containment *pathanalysis.Containment
	Node        *pathanalysis.CohesionNode
}

// JoinType is the SQL join kind of a plan join.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	// JoinLeftLateral targets may reference all queries joined before them.
	JoinLeftLateral
)

func (t JoinType) String() string {
	switch t {
	case JoinLeft:
		return "LEFT"
	case JoinLeftLateral:
		return "LEFT LATERAL"
	}
	return "INNER"
}

type Join struct {
	Type   JoinType
	Target Query
	On     *Exp
}

// EncapsulatingQuery composes the plan. From is scanned first, Joins follow
// in order.
type EncapsulatingQuery struct {
	base
	From  Query
	Joins []*Join

	Distinct bool
	Select   []*SelectField
	Where    *Exp
	GroupBy  []Field
	OrderBy  []*OrderByField
	Limit    *int64
	Offset   *int64
}

// ColumnKind tells the caller how to read a result column.
type ColumnKind int

const (
	// ColumnValue columns hold plain SQL values.
	ColumnValue ColumnKind = iota
	// ColumnJSON columns hold stored JSON that needs dbformat.FromDB.
	ColumnJSON
	// ColumnObject columns hold the row aggregate of RmObjectDataQuery,
	// read with dbformat.ReconstructJSON.
	ColumnObject
)

func (k ColumnKind) String() string {
	switch k {
	case ColumnJSON:
		return "json"
	case ColumnObject:
		return "object"
	}
	return "value"
}

type SelectField struct {
	Field Field
	// Alias is the SQL column name.
	Alias string
	// Name is the AQL alias, or the rendered column when none was given.
	Name  string
	Path  string
	Types []string
	Kind  ColumnKind
}

type OrderByField struct {
	Field Field
	Desc  bool
}

// RmObjectDataQuery aggregates all rows of the object stored at Source into
// one JSON array of (num, parent_num, entity_attribute, entity_idx, data).
type RmObjectDataQuery struct {
	base
	Source *StructureQuery
}

// FilteringQuery lists the distinct versioned object ids referenced as items
// by the folder rows at or below Folder.
type FilteringQuery struct {
	base
	Folder *StructureQuery
}

// PathDataQuery unnests the multi-valued attribute at the end of Data, one
// row per element.
type PathDataQuery struct {
	base
	Data *JSONField
}

// Field is one of *ColumnField, *JSONField, *ExtractedField, *ObjectField,
// *AggregateField, *ConstantField or *MagnitudeField.
type Field interface {
	Provider() Query
}

// Table names a table read through a StructureQuery.
type Table int

const (
	TableData Table = iota
	TableVersion
	TableAudit
	TableEhr
)

// ColumnField is a physical column. Owner is a *StructureQuery,
// *FilteringQuery or *PathDataQuery.
type ColumnField struct {
	Owner  Query
	Table  Table
	Column string
}

func (f *ColumnField) Provider() Query { return f.Owner }

// JSONField reads Path from the data column of Owner. Path holds stored
// attribute aliases. An empty path denotes the whole value.
type JSONField struct {
	Owner Query
	Path  []string
}

func (f *JSONField) Provider() Query { return f.Owner }

// MagnitudeField is the derived magnitude of the DV_ORDERED object at
// Object.
type MagnitudeField struct {
	Object *JSONField
	Types  []string
}

func (f *MagnitudeField) Provider() Query { return f.Object.Owner }

// ExtractedField is a value kept outside the JSON data of the row.
type ExtractedField struct {
	Owner  *StructureQuery
	Column *rm.ExtractedColumn
	// Types are the candidate types of the row, used to spell archetype
	// node ids.
	Types []string
}

func (f *ExtractedField) Provider() Query { return f.Owner }

type ObjectField struct {
	Owner *RmObjectDataQuery
}

func (f *ObjectField) Provider() Query { return f.Owner }

// AggregateField applies Func to Arg; Arg is nil for COUNT(*). OrderKey is
// set for MIN and MAX of DV_ORDERED objects, which pick the object with the
// smallest or largest key.
type AggregateField struct {
	Func     aql.AggregateFunc
	Distinct bool
	Arg      Field
	OrderKey Field
}

func (f *AggregateField) Provider() Query { return nil }

type ConstantField struct {
	Value interface{}
}

func (f *ConstantField) Provider() Query { return nil }
