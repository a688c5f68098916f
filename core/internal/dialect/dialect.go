// Package dialect renders the parts of a query that depend on the storage
// layout and the database flavour.
package dialect

import (
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

type Dialect interface {
	Name() string

	// Builder returns the goqu dialect queries are built with.
	Builder() goqu.DialectWrapper

	// Table qualifies name with the storage schema.
	Table(name string) exp.IdentifierExpression
	DataTable(r rm.StructureRoot) string
	VersionTable(r rm.StructureRoot) string

	// RenderJSONPath reads path below e. The last step is read as text when
	// text is set.
	RenderJSONPath(e exp.Expression, path []string, text bool) exp.LiteralExpression
	// RenderArrayElements unnests the JSON value e, treating a scalar as a
	// single element array.
	RenderArrayElements(e exp.Expression) exp.LiteralExpression
	// RenderLateralColumn wraps a column projected by a left lateral join.
	RenderLateralColumn(e exp.Expression) exp.Expression
}
