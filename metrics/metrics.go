// Package metrics exposes the service's Prometheus counters.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperr "conference-webapp/errors"
)

// Metrics is safe to use through a nil pointer; every recording method is a
// no-op then.
type Metrics struct {
	registry      *prometheus.Registry
	AuthFailures  *prometheus.CounterVec
	Operations    *prometheus.CounterVec
	Compensations *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AuthFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conference_auth_failures_total",
				Help: "Rejected bearer tokens by failure kind",
			},
			[]string{"kind"},
		),
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conference_repository_operations_total",
				Help: "Repository operations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		Compensations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conference_dual_write_compensations_total",
				Help: "Rollbacks of two-document writes by operation and result",
			},
			[]string{"op", "result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AuthFailures,
		m.Operations,
		m.Compensations,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AuthFailure(kind string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(kind).Inc()
}

// Operation records the outcome of a repository operation from its error.
func (m *Metrics) Operation(op string, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, Outcome(err)).Inc()
}

func (m *Metrics) Compensation(op, result string) {
	if m == nil {
		return
	}
	m.Compensations.WithLabelValues(op, result).Inc()
}

func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrInconsistent):
		return "inconsistent"
	case errors.Is(err, apperr.ErrNoChange):
		return "no_change"
	case errors.Is(err, apperr.ErrInvalidIdentifier), errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
