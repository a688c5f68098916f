package dialect

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/ehrbase/aqlengine/core/internal/rm"
)

type PostgresDialect struct {
	Schema string

	// LateralFilterWorkaround wraps lateral join columns in aql_identity so
	// the planner does not push filters on them into the subquery.
	LateralFilterWorkaround bool
}

var tables = map[rm.StructureRoot][2]string{
	rm.RootComposition: {"comp_data", "comp_version"},
	rm.RootEhrStatus:   {"ehr_status_data", "ehr_status_version"},
	rm.RootFolder:      {"ehr_folder_data", "ehr_folder_version"},
}

func (d *PostgresDialect) Name() string {
	return "postgres"
}

func (d *PostgresDialect) Builder() goqu.DialectWrapper {
	return goqu.Dialect("postgres")
}

func (d *PostgresDialect) Table(name string) exp.IdentifierExpression {
	if d.Schema == "" {
		return goqu.T(name)
	}
	return goqu.S(d.Schema).Table(name)
}

func (d *PostgresDialect) DataTable(r rm.StructureRoot) string {
	return tables[r][0]
}

func (d *PostgresDialect) VersionTable(r rm.StructureRoot) string {
	return tables[r][1]
}

// RenderJSONPath renders column->'a'->'b', or ->>'b' for text.
func (d *PostgresDialect) RenderJSONPath(e exp.Expression, path []string, text bool) exp.LiteralExpression {
	if len(path) == 0 && text {
		return goqu.L("?#>>'{}'", e)
	}
	var sb strings.Builder
	sb.WriteString("?")
	for i, p := range path {
		if text && i == len(path)-1 {
			sb.WriteString("->>'")
		} else {
			sb.WriteString("->'")
		}
		sb.WriteString(strings.ReplaceAll(p, "'", "''"))
		sb.WriteString("'")
	}
	return goqu.L(sb.String(), e)
}

func (d *PostgresDialect) RenderArrayElements(e exp.Expression) exp.LiteralExpression {
	return goqu.L("jsonb_array_elements(CASE jsonb_typeof(?) WHEN 'array' THEN ? ELSE jsonb_build_array(?) END)", e, e, e)
}

func (d *PostgresDialect) RenderLateralColumn(e exp.Expression) exp.Expression {
	if !d.LateralFilterWorkaround {
		return e
	}
	fn := "aql_identity"
	if d.Schema != "" {
		fn = d.Schema + "." + fn
	}
	return goqu.Func(fn, e)
}
