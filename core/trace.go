package core

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/ehrbase/aqlengine/core")

type span struct {
	trace.Span
}

// Starts tracing with the given name
func (e *Engine) spanStart(c context.Context, name string) (context.Context, span) {
	c, s := tracer.Start(c, name)
	return c, span{s}
}

func (s span) end(err error) {
	if err != nil {
		s.SetAttributes(attribute.String("error.kind", KindOf(err).String()))
		s.SetStatus(codes.Error, err.Error())
	}
	s.End()
}

type metrics struct {
	total  *prometheus.CounterVec
	errors *prometheus.CounterVec
}

// newMetrics registers the compile counters with reg. A nil reg keeps them
// unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		total: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aql_compile_total",
			Help: "AQL compilations by result.",
		}, []string{"result"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aql_compile_errors_total",
			Help: "Failed AQL compilations by error kind.",
		}, []string{"kind"}),
	}
}

func (m *metrics) compiled(result string) {
	m.total.WithLabelValues(result).Inc()
}

func (m *metrics) failed(kind ErrorKind) {
	m.total.WithLabelValues("error").Inc()
	m.errors.WithLabelValues(kind.String()).Inc()
}
