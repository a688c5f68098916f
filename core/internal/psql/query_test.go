package psql

import (
	"strings"
	"testing"

	"github.com/doug-martin/goqu/v9/exp"
	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/asl"
	"github.com/ehrbase/aqlengine/core/internal/featurecheck"
	"github.com/ehrbase/aqlengine/core/internal/rm"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const systemID = "local.ehrbase.org"

var reportUUID = uuid.MustParse("2f1c0a1e-5d0b-4b5e-9d7e-6a1f2b3c4d5e")

type templates map[string]uuid.UUID

func (ts templates) TemplateUUID(id string) (uuid.UUID, bool) {
	u, ok := ts[id]
	return u, ok
}

func (ts templates) Templates() []Template {
	out := make([]Template, 0, len(ts))
	for id, u := range ts {
		out = append(out, Template{ID: id, UUID: u})
	}
	return out
}

func compile(t *testing.T, conf Config, text string) (Metadata, string, []interface{}) {
	t.Helper()
	q, err := aql.Parse(text)
	require.NoError(t, err)

	cat := rm.Default()
	qt, err := featurecheck.New(cat, systemID).Check(q)
	require.NoError(t, err)

	eq, err := asl.NewBuilder(cat).Build(q, qt)
	require.NoError(t, err)

	if conf.SystemID == "" {
		conf.SystemID = systemID
	}
	md, sql, args, err := NewCompiler(conf).Compile(eq)
	require.NoError(t, err)
	return md, sql, args
}

func TestCompileMagnitudeComparison(t *testing.T) {
	md, sql, args := compile(t, Config{Schema: "ehr"}, `SELECT o FROM EHR e CONTAINS COMPOSITION c
		CONTAINS OBSERVATION o[openEHR-EHR-OBSERVATION.blood_pressure.v2]
		WHERE o/data[at0001]/events[at0006]/data[at0003]/items[at0004]/value/value > 140`)

	for _, want := range []string{
		`FROM "ehr"."ehr" AS "e0"`,
		`INNER JOIN "ehr"."comp_data" AS "s0"`,
		`"s0"."ehr_id" = "e0"."id"`,
		`"s1"."num" > "s0"."num"`,
		`"s1"."num" <= "s0"."num_cap"`,
		`LEFT JOIN "ehr"."comp_data" AS "n0"`,
		`"n0"."citem_num" = "s1"."citem_num"`,
		`CAST("n0"."data"->'v'->>'M' AS numeric) > $`,
		`LATERAL (SELECT jsonb_agg(jsonb_build_array("o0_d"."num", "o0_d"."parent_num", "o0_d"."entity_attribute", "o0_d"."entity_idx", "o0_d"."data") ORDER BY "o0_d"."num") AS "data"`,
		`AS "c0"`,
	} {
		assert.Contains(t, sql, want)
	}
	assert.NotContains(t, sql, "aql_identity")

	assert.Contains(t, args, 140.0)
	assert.Contains(t, args, "OB")
	assert.Contains(t, args, ".blood_pressure.v2")

	require.Len(t, md.Columns, 1)
	assert.Equal(t, "o", md.Columns[0].Name)
	assert.Equal(t, asl.ColumnObject, md.Columns[0].Kind)
}

func TestCompileMixedNodeIDsKeepParent(t *testing.T) {
	_, sql, args := compile(t, Config{Schema: "ehr"}, `SELECT
			c/content[openEHR-EHR-SECTION.s.v1]/items[at0005]/name/value,
			c/content[openEHR-EHR-SECTION.s.v1]/items[openEHR-EHR-OBSERVATION.o.v1]/name/value
		FROM COMPOSITION c`)

	assert.Contains(t, args, ".s.v1")
	assert.Equal(t, 2, strings.Count(sql, `."parent_num" = "n0"."num"`), sql)
	assert.NotContains(t, sql, `"num" > "s0"."num"`)
}

func TestCompileWholeObjects(t *testing.T) {
	for _, q := range []string{
		`SELECT c FROM COMPOSITION c`,
		`SELECT c FROM EHR e CONTAINS COMPOSITION c`,
		`SELECT o FROM COMPOSITION c CONTAINS OBSERVATION o`,
	} {
		md, sql, _ := compile(t, Config{Schema: "ehr"}, q)
		require.Len(t, md.Columns, 1, q)
		assert.Equal(t, asl.ColumnObject, md.Columns[0].Kind, q)
		assert.Contains(t, sql, `LATERAL (SELECT jsonb_agg(jsonb_build_array(`, q)
	}
}

func TestCompileLateralFilterWorkaround(t *testing.T) {
	_, sql, _ := compile(t, Config{Schema: "ehr", LateralFilterWorkaround: true},
		`SELECT c FROM COMPOSITION c`)
	assert.Contains(t, sql, `ehr.aql_identity(jsonb_agg(`)
}

func TestCompileWithoutSchema(t *testing.T) {
	_, sql, _ := compile(t, Config{}, `SELECT c/name/value FROM COMPOSITION c`)
	assert.Contains(t, sql, `FROM "comp_data" AS "s0"`)
	assert.Contains(t, sql, `"s0"."entity_name" AS "c0"`)
}

func TestCompileVersionedObjectID(t *testing.T) {
	_, sql, args := compile(t, Config{Schema: "ehr"}, `SELECT c/uid/value FROM COMPOSITION c
		WHERE c/uid/value = '8849182c-82ad-4088-a07f-48ead4180515::local.ehrbase.org::2'`)

	assert.Contains(t, sql, `"ehr"."comp_version" AS "s0_v"`)
	assert.Contains(t, sql, `("s0_v"."vo_id", "s0_v"."sys_version") = (CAST($`)
	assert.Contains(t, sql, `concat_ws('::', "s0_v"."vo_id", CAST($`)
	assert.Contains(t, args, "8849182c-82ad-4088-a07f-48ead4180515")
	assert.Contains(t, args, int64(2))
	assert.Contains(t, args, systemID)
}

func TestCompileArchetypeNodeIDLike(t *testing.T) {
	_, sql, args := compile(t, Config{Schema: "ehr"}, `SELECT c FROM COMPOSITION c CONTAINS (OBSERVATION o OR EVALUATION v)
		WHERE o/archetype_node_id LIKE 'openEHR-EHR-OBSERVATION.%'`)

	assert.Contains(t, sql, `LEFT JOIN "ehr"."comp_data" AS "s1"`)
	assert.Contains(t, sql, `LEFT JOIN "ehr"."comp_data" AS "s2"`)
	assert.Contains(t, sql, `"s1"."rm_entity" = $`)
	assert.Contains(t, sql, `"s1"."entity_concept" LIKE $`)
	assert.Contains(t, sql, `"s1"."num" IS NOT NULL`)
	assert.Contains(t, args, "OB")
	assert.Contains(t, args, ".%")
}

func TestCompileTemplateID(t *testing.T) {
	conf := Config{Schema: "ehr", Templates: templates{"report": reportUUID}}

	_, sql, args := compile(t, conf, `SELECT c FROM COMPOSITION c
		WHERE c/archetype_details/template_id/value = 'report'`)
	assert.Contains(t, sql, `"s0_v"."template_id" = CAST($`)
	assert.Contains(t, args, reportUUID.String())

	_, sql, _ = compile(t, conf, `SELECT c FROM COMPOSITION c
		WHERE c/archetype_details/template_id/value = 'unknown'`)
	assert.NotContains(t, sql, `"s0_v"."template_id" =`)
	assert.Contains(t, sql, "false")

	_, sql, _ = compile(t, conf, `SELECT c/archetype_details/template_id/value FROM COMPOSITION c
		ORDER BY c/archetype_details/template_id/value`)
	assert.Contains(t, sql, `FROM "ehr"."template_store" AS "ts"`)
	assert.Contains(t, sql, `ORDER BY CASE "s0_v"."template_id" WHEN CAST($`)
}

func TestCompileAggregates(t *testing.T) {
	md, sql, _ := compile(t, Config{Schema: "ehr"},
		`SELECT e/ehr_id/value, COUNT(DISTINCT c/uid/value) FROM EHR e CONTAINS COMPOSITION c`)

	assert.Contains(t, sql, `COUNT(DISTINCT concat_ws('::', "s0_v"."vo_id"`)
	assert.Contains(t, sql, `GROUP BY "e0"."id"`)
	require.Len(t, md.Columns, 2)
	assert.Equal(t, []string{"Long"}, md.Columns[1].Types)

	_, sql, _ = compile(t, Config{Schema: "ehr"},
		`SELECT MAX(o/data/events/time), AVG(o/data/events/data/items/value/magnitude) FROM OBSERVATION o`)
	assert.Contains(t, sql, `(array_agg(`)
	assert.Contains(t, sql, `DESC) FILTER (WHERE CAST(`)
	assert.Contains(t, sql, `AVG(CAST(`)
	assert.NotContains(t, sql, "GROUP BY")
}

func TestCompileGroupByOnce(t *testing.T) {
	_, sql, _ := compile(t, Config{Schema: "ehr"}, `SELECT c/archetype_node_id, COUNT(c/uid/value)
		FROM COMPOSITION c ORDER BY c/archetype_node_id`)

	_, group, ok := strings.Cut(sql, "GROUP BY ")
	require.True(t, ok)
	group, _, _ = strings.Cut(group, " ORDER BY")
	assert.Equal(t, `"s0"."rm_entity", "s0"."entity_concept"`, group)
}

func TestCompileDistinctOrdered(t *testing.T) {
	md, sql, _ := compile(t, Config{Schema: "ehr"}, `SELECT DISTINCT c/name/value AS name FROM COMPOSITION c
		ORDER BY c/name/value DESC LIMIT 10 OFFSET 20`)

	assert.Contains(t, sql, `SELECT "c0" FROM (SELECT DISTINCT`)
	assert.Contains(t, sql, `AS "_o0"`)
	assert.Contains(t, sql, `) AS "d" ORDER BY "_o0" DESC NULLS LAST`)
	assert.Contains(t, sql, "LIMIT $")
	assert.Contains(t, sql, "OFFSET $")

	require.NotNil(t, md.Limit)
	assert.Equal(t, int64(10), *md.Limit)
	assert.Equal(t, "name", md.Columns[0].Name)
}

func TestCompileFolderItems(t *testing.T) {
	_, sql, _ := compile(t, Config{Schema: "ehr"}, `SELECT c FROM EHR e CONTAINS FOLDER f CONTAINS COMPOSITION c`)

	assert.Contains(t, sql, `SELECT DISTINCT unnest("f0_d"."item_uuids") AS "vo_id" FROM "ehr"."ehr_folder_data" AS "f0_d"`)
	assert.Contains(t, sql, `"s1"."vo_id" = "f0"."vo_id"`)
	assert.Contains(t, sql, `"s1"."ehr_id" = "s0"."ehr_id"`)
}

func TestCompileUnnest(t *testing.T) {
	md, sql, _ := compile(t, Config{Schema: "ehr"}, `SELECT o/data/events/data/items/value/mappings FROM OBSERVATION o`)

	assert.Contains(t, sql, `jsonb_array_elements(CASE jsonb_typeof(`)
	assert.Contains(t, sql, `"p0"."data" AS "c0"`)
	assert.Equal(t, asl.ColumnJSON, md.Columns[0].Kind)
}

func TestCompileEmptyPlan(t *testing.T) {
	_, _, _, err := NewCompiler(Config{}).Compile(&asl.EncapsulatingQuery{})
	require.Error(t, err)
}

func TestConstantCompare(t *testing.T) {
	literal := func(e exp.Expression) string {
		l, ok := e.(exp.LiteralExpression)
		require.True(t, ok)
		return l.Literal()
	}
	assert.Equal(t, "true", literal(constantCompare("a", asl.OpEquals, "a")))
	assert.Equal(t, "false", literal(constantCompare("a", asl.OpNotEquals, "a")))
	assert.Equal(t, "true", literal(constantCompare("b", asl.OpGreaterThan, "a")))
}
