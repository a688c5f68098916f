// Package core compiles openEHR AQL queries into PostgreSQL statements over
// the EHRbase storage tables.
//
// Queries are parsed, checked against the supported AQL subset, planned and
// rendered as a prepared statement. The engine never touches a database;
// callers execute the returned SQL themselves.
package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/ehrbase/aqlengine/core/internal/aql"
	"github.com/ehrbase/aqlengine/core/internal/asl"
	"github.com/ehrbase/aqlengine/core/internal/errs"
	"github.com/ehrbase/aqlengine/core/internal/featurecheck"
	"github.com/ehrbase/aqlengine/core/internal/psql"
	"github.com/ehrbase/aqlengine/core/internal/rm"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Engine compiles AQL. It is safe for concurrent use.
type Engine struct {
	conf      *Config
	log       *zap.SugaredLogger
	cat       *rm.Catalog
	templates TemplateStore
	registry  prometheus.Registerer
	metrics   *metrics
	cache     *Cache

	checker      *featurecheck.Checker
	builder      *asl.Builder
	psqlCompiler *psql.Compiler
}

type Option func(*Engine) error

// Query is a parsed AQL query.
type Query = aql.Query

// Column describes one column of the compiled statement.
type Column struct {
	// Alias is the SQL column name.
	Alias string `json:"alias"`
	// Name is the AQL column alias or the rendered column expression.
	Name string `json:"name"`
	// Path is the AQL path the column reads, empty for literals and COUNT(*).
	Path  string   `json:"path,omitempty"`
	Types []string `json:"types,omitempty"`

	// JSON columns hold stored JSON; convert with FromDB.
	JSON bool `json:"json,omitempty"`
	// Object columns hold the row aggregate of a whole RM object; convert
	// with ReconstructObject.
	Object bool `json:"object,omitempty"`
}

// Result is a compiled query. Every call returns its own copy.
type Result struct {
	SQL     string        `json:"sql"`
	Params  []interface{} `json:"params"`
	Columns []Column      `json:"columns"`
	Limit   *int64        `json:"limit,omitempty"`
	Offset  *int64        `json:"offset,omitempty"`
}

// New creates an engine for conf. A nil conf uses the defaults.
func New(conf *Config, options ...Option) (*Engine, error) {
	if conf == nil {
		conf = &Config{}
	}
	conf.setDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		conf: conf,
		log:  zap.NewNop().Sugar(),
		cat:  rm.Default(),
	}
	if len(conf.Templates) != 0 {
		ts, err := NewStaticTemplates(conf.Templates)
		if err != nil {
			return nil, err
		}
		e.templates = ts
	}

	for _, op := range options {
		if err := op(e); err != nil {
			return nil, err
		}
	}

	e.metrics = newMetrics(e.registry)
	if err := e.initCache(); err != nil {
		return nil, err
	}

	e.checker = featurecheck.New(e.cat, conf.SystemID)
	e.builder = asl.NewBuilder(e.cat)
	e.psqlCompiler = psql.NewCompiler(psql.Config{
		Schema:                  conf.DBSchema,
		SystemID:                conf.SystemID,
		LateralFilterWorkaround: *conf.LateralFilterWorkaround,
		Templates:               e.templates,
	})
	return e, nil
}

// OptionSetLogger sets the logger compile failures are reported to.
func OptionSetLogger(log *zap.SugaredLogger) Option {
	return func(e *Engine) error {
		e.log = log
		return nil
	}
}

// OptionSetTemplateStore sets the store template ids are resolved with. It
// replaces the templates listed in the config.
func OptionSetTemplateStore(ts TemplateStore) Option {
	return func(e *Engine) error {
		e.templates = ts
		return nil
	}
}

// OptionSetMetricsRegisterer registers the compile counters with reg.
func OptionSetMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) error {
		e.registry = reg
		return nil
	}
}

// OptionSetCatalog replaces the built in reference model with the YAML
// schema in schema.
func OptionSetCatalog(schema []byte) Option {
	return func(e *Engine) error {
		cat, err := rm.NewCatalog(schema)
		if err != nil {
			return err
		}
		e.cat = cat
		return nil
	}
}

// Parse parses text without checking it.
func (e *Engine) Parse(text string) (*Query, error) {
	q, err := aql.Parse(text)
	return q, wrapError(err)
}

// Check parses text and reports whether the query is supported.
func (e *Engine) Check(ctx context.Context, text string, params map[string]interface{}) error {
	q, err := e.prepare(ctx, text, params)
	if err != nil {
		return err
	}
	_, span := e.spanStart(ctx, "aql.check")
	_, err = e.checker.Check(q)
	span.end(err)
	return wrapError(err)
}

// Compile compiles the AQL text with the given parameter values.
func (e *Engine) Compile(ctx context.Context, text string, params map[string]interface{}) (*Result, error) {
	key, err := cacheKey(text, params)
	if err != nil {
		return nil, err
	}
	if res, ok := e.cache.Get(key); ok {
		e.metrics.compiled("cached")
		return res.clone(), nil
	}

	res, err := e.compile(ctx, text, params)
	if err != nil {
		return nil, err
	}
	e.cache.Set(key, res)
	return res.clone(), nil
}

// CompileQuery compiles an already parsed query. Results are not cached.
func (e *Engine) CompileQuery(ctx context.Context, q *Query, params map[string]interface{}) (*Result, error) {
	start := time.Now()
	text := aql.RenderQuery(q)

	q, err := aql.ReplaceParameters(q, params)
	if err != nil {
		return nil, e.failed(text, start, wrapError(err))
	}
	res, err := e.compileParsed(ctx, q)
	if err != nil {
		return nil, e.failed(text, start, err)
	}
	e.metrics.compiled("ok")
	return res, nil
}

func (e *Engine) compile(ctx context.Context, text string, params map[string]interface{}) (*Result, error) {
	start := time.Now()

	q, err := e.prepare(ctx, text, params)
	if err != nil {
		return nil, e.failed(text, start, err)
	}
	res, err := e.compileParsed(ctx, q)
	if err != nil {
		return nil, e.failed(text, start, err)
	}

	e.metrics.compiled("ok")
	e.log.Debugw("compiled aql", "query", text, "duration", time.Since(start))
	return res, nil
}

func (e *Engine) prepare(ctx context.Context, text string, params map[string]interface{}) (*aql.Query, error) {
	_, span := e.spanStart(ctx, "aql.parse")
	q, err := aql.Parse(text)
	if err == nil {
		q, err = aql.ReplaceParameters(q, params)
	}
	span.end(err)
	return q, wrapError(err)
}

func (e *Engine) compileParsed(ctx context.Context, q *aql.Query) (*Result, error) {
	_, span := e.spanStart(ctx, "aql.check")
	qt, err := e.checker.Check(q)
	span.end(err)
	if err != nil {
		return nil, wrapError(err)
	}

	_, span = e.spanStart(ctx, "aql.plan")
	plan, err := e.builder.Build(q, qt)
	span.end(err)
	if err != nil {
		return nil, wrapError(err)
	}

	_, span = e.spanStart(ctx, "aql.lower")
	md, sql, args, err := e.psqlCompiler.Compile(plan)
	span.end(err)
	if err != nil {
		return nil, wrapError(err)
	}
	return newResult(md, sql, args), nil
}

func (e *Engine) failed(query string, start time.Time, err error) error {
	kind := KindOf(err)
	e.metrics.failed(kind)

	if kind == KindInternal {
		kv := []interface{}{"query", query, "kind", kind.String(), "error", err}
		if st := errs.StackOf(err); st != nil {
			kv = append(kv, "stack", string(st))
		}
		e.log.Errorw("aql compile failed", kv...)
	} else {
		e.log.Debugw("aql rejected", "query", query, "kind", kind.String(), "error", err,
			"duration", time.Since(start))
	}
	return err
}

func newResult(md psql.Metadata, sql string, args []interface{}) *Result {
	res := &Result{
		SQL:     sql,
		Params:  args,
		Columns: make([]Column, 0, len(md.Columns)),
		Limit:   md.Limit,
		Offset:  md.Offset,
	}
	for _, c := range md.Columns {
		res.Columns = append(res.Columns, Column{
			Alias:  c.Alias,
			Name:   c.Name,
			Path:   c.Path,
			Types:  c.Types,
			JSON:   c.Kind == asl.ColumnJSON,
			Object: c.Kind == asl.ColumnObject,
		})
	}
	return res
}

// clone copies the slices of r so callers cannot change a cached result.
func (r *Result) clone() *Result {
	c := *r
	c.Params = append([]interface{}(nil), r.Params...)
	c.Columns = make([]Column, len(r.Columns))
	for i, col := range r.Columns {
		col.Types = append([]string(nil), col.Types...)
		c.Columns[i] = col
	}
	if r.Limit != nil {
		v := *r.Limit
		c.Limit = &v
	}
	if r.Offset != nil {
		v := *r.Offset
		c.Offset = &v
	}
	return &c
}

func cacheKey(text string, params map[string]interface{}) (string, error) {
	h := sha256.New()
	h.Write([]byte(text))
	if len(params) != 0 {
		b, err := json.Marshal(params)
		if err != nil {
			return "", errs.Invalid("parameters cannot be encoded: %s", err.Error())
		}
		h.Write([]byte{0})
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
