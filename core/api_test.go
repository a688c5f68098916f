package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

const bloodPressure = `SELECT o/data[at0001]/events[at0006]/data[at0003]/items[at0004]/value
	FROM EHR e CONTAINS COMPOSITION c CONTAINS OBSERVATION o[openEHR-EHR-OBSERVATION.blood_pressure.v2]
	WHERE o/data[at0001]/events[at0006]/data[at0003]/items[at0004]/value/value > 140`

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{OptionSetLogger(zaptest.NewLogger(t).Sugar())}, opts...)
	e, err := New(&Config{SystemID: "local.ehrbase.org"}, opts...)
	require.NoError(t, err)
	return e
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		conf Config
		err  string
	}{
		{name: "no system id", conf: Config{}, err: "system_id"},
		{name: "bad system id", conf: Config{SystemID: "a::b"}, err: "system_id"},
		{name: "mysql", conf: Config{SystemID: "x", DBType: "mysql"}, err: "unsupported database type"},
		{name: "duplicate template", conf: Config{SystemID: "x", Templates: []TemplateConfig{
			{ID: "a", UUID: uuid.NewString()}, {ID: "a", UUID: uuid.NewString()},
		}}, err: "listed twice"},
		{name: "ok", conf: Config{SystemID: "x", DBType: "Postgres"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conf.Validate()
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestNewDefaults(t *testing.T) {
	conf := &Config{SystemID: "local.ehrbase.org"}
	_, err := New(conf)
	require.NoError(t, err)

	assert.Equal(t, "ehr", conf.DBSchema)
	assert.Equal(t, "postgres", conf.DBType)
	require.NotNil(t, conf.LateralFilterWorkaround)
	assert.True(t, *conf.LateralFilterWorkaround)
	assert.Equal(t, 1000, conf.CacheSize)

	_, err = New(&Config{SystemID: "x", Templates: []TemplateConfig{{ID: "a", UUID: "nope"}}})
	require.Error(t, err)
}

func TestCompile(t *testing.T) {
	e := newEngine(t)

	res, err := e.Compile(context.Background(), bloodPressure, nil)
	require.NoError(t, err)

	assert.Contains(t, res.SQL, `FROM "ehr"."ehr" AS "e0"`)
	assert.Contains(t, res.Params, 140.0)

	require.Len(t, res.Columns, 1)
	col := res.Columns[0]
	assert.Equal(t, "c0", col.Alias)
	assert.Equal(t, "o/data[at0001]/events[at0006]/data[at0003]/items[at0004]/value", col.Path)
	assert.True(t, col.JSON)
	assert.False(t, col.Object)

	again, err := e.Compile(context.Background(), bloodPressure, nil)
	require.NoError(t, err)
	assert.NotSame(t, res, again)
	assert.Equal(t, res, again)
	assert.Equal(t, 1, e.cache.Len())
}

func TestCompileResultIsolated(t *testing.T) {
	e := newEngine(t)
	const q = `SELECT c/name/value AS name FROM COMPOSITION c WHERE c/name/value = 'Report' LIMIT 5`

	a, err := e.Compile(context.Background(), q, nil)
	require.NoError(t, err)
	a.Params[0] = "changed"
	a.Columns[0].Name = "changed"
	a.Columns[0].Types = append(a.Columns[0].Types[:0], "changed")
	*a.Limit = 50

	b, err := e.Compile(context.Background(), q, nil)
	require.NoError(t, err)
	assert.Contains(t, b.Params, "Report")
	assert.NotContains(t, b.Params, "changed")
	assert.Equal(t, "name", b.Columns[0].Name)
	assert.NotContains(t, b.Columns[0].Types, "changed")
	assert.Equal(t, int64(5), *b.Limit)
}

func TestCompileWholeObject(t *testing.T) {
	e := newEngine(t)
	for _, q := range []string{
		`SELECT c FROM COMPOSITION c`,
		`SELECT c FROM EHR e CONTAINS COMPOSITION c`,
		`SELECT o FROM COMPOSITION c CONTAINS OBSERVATION o`,
	} {
		t.Run(q, func(t *testing.T) {
			res, err := e.Compile(context.Background(), q, nil)
			require.NoError(t, err)
			require.NotEmpty(t, res.Columns)
			assert.True(t, res.Columns[0].Object)
			assert.Contains(t, res.SQL, `jsonb_agg(`)
		})
	}
}

func TestCompileWithoutCache(t *testing.T) {
	e, err := New(&Config{SystemID: "x", CacheSize: -1})
	require.NoError(t, err)

	a, err := e.Compile(context.Background(), `SELECT c FROM COMPOSITION c`, nil)
	require.NoError(t, err)
	b, err := e.Compile(context.Background(), `SELECT c FROM COMPOSITION c`, nil)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, a.SQL, b.SQL)
	assert.True(t, a.Columns[0].Object)
	assert.Contains(t, a.SQL, `ehr.aql_identity(jsonb_agg(`)
}

func TestCompileParameters(t *testing.T) {
	e := newEngine(t)
	const q = `SELECT c/name/value FROM COMPOSITION c WHERE c/name/value = $name LIMIT 10`

	a, err := e.Compile(context.Background(), q, map[string]interface{}{"name": "Vital signs"})
	require.NoError(t, err)
	assert.Contains(t, a.Params, "Vital signs")
	require.NotNil(t, a.Limit)
	assert.Equal(t, int64(10), *a.Limit)

	b, err := e.Compile(context.Background(), q, map[string]interface{}{"name": "Report"})
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Contains(t, b.Params, "Report")

	_, err = e.Compile(context.Background(), q, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidQuery), "got %v", err)
}

func TestCompileQuery(t *testing.T) {
	e := newEngine(t)

	q, err := e.Parse(`SELECT c/uid/value FROM COMPOSITION c WHERE c/uid/value = $uid`)
	require.NoError(t, err)

	id := uuid.NewString()
	res, err := e.CompileQuery(context.Background(), q, map[string]interface{}{"uid": id})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, `"ehr"."comp_version" AS "s0_v"`)
	assert.Contains(t, res.Params, id)
}

func TestErrorKinds(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newEngine(t, OptionSetMetricsRegisterer(reg))

	tests := []struct {
		query string
		want  error
		kind  ErrorKind
	}{
		{`SELECT c FROM COMPOSITION c NOT CONTAINS OBSERVATION o`, ErrUnsupportedFeature, KindUnsupportedFeature},
		{`SELECT o FROM EHR_STATUS s CONTAINS OBSERVATION o`, ErrInvalidQuery, KindInvalidQuery},
		{`SELECT FROM`, ErrInvalidQuery, KindInvalidQuery},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := e.Compile(context.Background(), tt.query, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, tt.kind, KindOf(err))

			var ce *Error
			require.True(t, errors.As(err, &ce))
			assert.NotEmpty(t, ce.Msg)
		})
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(e.metrics.total.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.errors.WithLabelValues("invalid_query")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.errors.WithLabelValues("unsupported_feature")))

	assert.NoError(t, e.Check(context.Background(), `SELECT c FROM COMPOSITION c`, nil))
	assert.Error(t, e.Check(context.Background(), tests[0].query, nil))
}

func TestTemplateStoreOption(t *testing.T) {
	report := uuid.MustParse("8c4d2a0e-5b55-4f8b-9d2a-9c8f6a2b7e11")
	e := newEngine(t, OptionSetTemplateStore(NewTemplateList([]Template{{ID: "report", UUID: report}})))

	res, err := e.Compile(context.Background(), `SELECT c FROM COMPOSITION c
		WHERE c/archetype_details/template_id/value = 'report'`, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Params, report.String())

	ts, err := NewStaticTemplates([]TemplateConfig{{ID: "report", UUID: report.String()}})
	require.NoError(t, err)
	u, ok := ts.TemplateUUID("report")
	assert.True(t, ok)
	assert.Equal(t, report, u)
	_, ok = ts.TemplateUUID("other")
	assert.False(t, ok)
}

func TestCompileConcurrently(t *testing.T) {
	e := newEngine(t)

	var g errgroup.Group
	results := make([]*Result, 16)
	for i := range results {
		i := i
		g.Go(func() error {
			res, err := e.Compile(context.Background(),
				fmt.Sprintf(`SELECT c/name/value FROM COMPOSITION c LIMIT %d`, i%4+1), nil)
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())
	for i, res := range results {
		assert.Equal(t, results[i%4].SQL, res.SQL)
	}
}

func TestReadColumn(t *testing.T) {
	v, err := ReadColumn(Column{}, []byte("42"))
	require.NoError(t, err)
	assert.Equal(t, "42", string(v))

	v, err = ReadColumn(Column{Object: true}, nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ReadColumn(Column{JSON: true}, []byte(`{"T":"x","v":"y"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"_type":"DV_TEXT","value":"y"}`, string(v))
}

func TestDescribeType(t *testing.T) {
	e := newEngine(t)

	td, err := e.DescribeType("OBSERVATION")
	require.NoError(t, err)
	assert.True(t, td.Structural)
	assert.Equal(t, []string{"CARE_ENTRY"}, td.Parents)

	var data *AttributeDescription
	for i := range td.Attributes {
		if td.Attributes[i].Name == "data" {
			data = &td.Attributes[i]
		}
	}
	require.NotNil(t, data)
	assert.Equal(t, []string{"HISTORY"}, data.Types)

	td, err = e.DescribeType("ITEM_STRUCTURE")
	require.NoError(t, err)
	assert.True(t, td.Abstract)
	assert.Subset(t, td.Concrete, []string{"ITEM_LIST", "ITEM_SINGLE", "ITEM_TREE"})

	_, err = e.DescribeType("NO_SUCH_TYPE")
	assert.True(t, errors.Is(err, ErrInvalidQuery))
	assert.Contains(t, e.Types(), "COMPOSITION")
}
