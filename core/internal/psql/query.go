// Package psql renders ASL plans as PostgreSQL queries over the openEHR
// storage tables.
package psql

import (
	"fmt"
	"reflect"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/ehrbase/aqlengine/core/internal/asl"
	"github.com/ehrbase/aqlengine/core/internal/dialect"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/google/uuid"
)

// Template is a stored operational template.
type Template struct {
	ID   string
	UUID uuid.UUID
}

// TemplateStore resolves template ids to the ids they are stored under.
type TemplateStore interface {
	TemplateUUID(templateID string) (uuid.UUID, bool)
	Templates() []Template
}

type Config struct {
	Schema   string
	SystemID string

	LateralFilterWorkaround bool

	// Templates may be nil; no template is known then.
	Templates TemplateStore
}

// Column describes a result column.
type Column struct {
	Alias string
	Name  string
	Path  string
	Types []string
	Kind  asl.ColumnKind
}

type Metadata struct {
	Columns []Column
	Limit   *int64
	Offset  *int64
}

type compilerContext struct {
	md *Metadata
	*Compiler
}

type Compiler struct {
	dialect   dialect.Dialect
	systemID  string
	templates TemplateStore
}

func NewCompiler(conf Config) *Compiler {
	return &Compiler{
		dialect: &dialect.PostgresDialect{
			Schema:                  conf.Schema,
			LateralFilterWorkaround: conf.LateralFilterWorkaround,
		},
		systemID:  conf.SystemID,
		templates: conf.Templates,
	}
}

func (co *Compiler) GetDialect() dialect.Dialect {
	return co.dialect
}

// Compile renders eq as a prepared statement and returns its placeholders'
// arguments.
func (co *Compiler) Compile(eq *asl.EncapsulatingQuery) (md Metadata, sql string, args []interface{}, err error) {
	defer errs.Recover(&err)

	if eq == nil || eq.From == nil {
		return md, "", nil, errs.Internal("plan is empty")
	}

	c := &compilerContext{md: &md, Compiler: co}
	ds := c.compileQuery(eq)

	sql, args, err = ds.Prepared(true).ToSQL()
	if err != nil {
		return md, "", nil, errs.Internal("render sql: %s", err.Error())
	}
	return md, sql, args, nil
}

func (c *compilerContext) compileQuery(eq *asl.EncapsulatingQuery) *goqu.SelectDataset {
	sq, ok := eq.From.(*asl.StructureQuery)
	if !ok {
		panic(errs.Internal("plan starts with %T", eq.From))
	}

	ds := c.dialect.Builder().From(c.source(sq))
	for _, j := range eq.Joins {
		ds = c.renderJoin(ds, j)
	}

	where := c.rowConditions(sq)
	if w := c.renderExp(eq.Where); w != nil {
		where = append(where, w)
	}
	if len(where) != 0 {
		ds = ds.Where(where...)
	}

	cols := make([]interface{}, 0, len(eq.Select))
	for _, sf := range eq.Select {
		cols = append(cols, lit(c.renderField(sf.Field)).As(sf.Alias))
		c.md.Columns = append(c.md.Columns, Column{
			Alias: sf.Alias,
			Name:  sf.Name,
			Path:  sf.Path,
			Types: sf.Types,
			Kind:  sf.Kind,
		})
	}

	var group []interface{}
	for _, f := range eq.GroupBy {
		for _, e := range c.groupExps(f) {
			if !containsExp(group, e) {
				group = append(group, e)
			}
		}
	}
	if len(group) != 0 {
		ds = ds.GroupBy(group...)
	}

	if eq.Distinct && len(eq.OrderBy) != 0 {
		ds = c.renderDistinctOrdered(ds, eq, cols)
	} else {
		ds = ds.Select(cols...)
		if eq.Distinct {
			ds = ds.Distinct()
		}
		var order []exp.OrderedExpression
		for _, ob := range eq.OrderBy {
			for _, e := range c.orderExps(ob.Field) {
				order = append(order, ordered(e, ob.Desc))
			}
		}
		if len(order) != 0 {
			ds = ds.Order(order...)
		}
	}

	c.md.Limit, c.md.Offset = eq.Limit, eq.Offset
	if eq.Limit != nil {
		ds = ds.Limit(uint(*eq.Limit))
	}
	if eq.Offset != nil {
		ds = ds.Offset(uint(*eq.Offset))
	}
	return ds
}

// renderDistinctOrdered selects the order keys as hidden columns of a
// distinct subquery and orders the outer query by them.
func (c *compilerContext) renderDistinctOrdered(ds *goqu.SelectDataset, eq *asl.EncapsulatingQuery, cols []interface{}) *goqu.SelectDataset {
	var order []exp.OrderedExpression
	n := 0
	for _, ob := range eq.OrderBy {
		for _, e := range c.orderExps(ob.Field) {
			name := fmt.Sprintf("_o%d", n)
			n++
			cols = append(cols, lit(e).As(name))
			order = append(order, ordered(goqu.C(name), ob.Desc))
		}
	}
	inner := ds.Select(cols...).Distinct()

	outer := make([]interface{}, 0, len(eq.Select))
	for _, sf := range eq.Select {
		outer = append(outer, goqu.C(sf.Alias))
	}
	return c.dialect.Builder().From(inner.As("d")).Select(outer...).Order(order...)
}

func ordered(e exp.Expression, desc bool) exp.OrderedExpression {
	if desc {
		return lit(e).Desc().NullsLast()
	}
	return lit(e).Asc().NullsLast()
}

// lit makes any expression comparable.
func lit(e exp.Expression) exp.LiteralExpression {
	if l, ok := e.(exp.LiteralExpression); ok {
		return l
	}
	return goqu.L("?", e)
}

// containsExp reports whether list already holds an expression equal to e.
func containsExp(list []interface{}, e exp.Expression) bool {
	for _, v := range list {
		if reflect.DeepEqual(v, e) {
			return true
		}
	}
	return false
}
