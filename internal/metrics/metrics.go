// Package metrics provides Prometheus instrumentation for the gatherd
// server.
//
// All metrics are registered in a custom [prometheus.Registry] (not the
// global default) so that only gatherd metrics appear on the /metrics
// endpoint.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mhalley/gatherd/internal/core"
)

// Metrics holds all Prometheus collectors used by the gatherd server.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	EvaluationsTotal    *prometheus.CounterVec
	TransitionsTotal    *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
	AuthFailuresTotal   prometheus.Counter
}

// New creates and registers all gatherd metrics in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatherd_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gatherd_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatherd_evaluations_total",
			Help: "Total number of rule evaluations, by evaluator and result.",
		}, []string{"evaluator", "result"}),

		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatherd_attendee_transitions_total",
			Help: "Total number of attendee lifecycle firing attempts, by event and result.",
		}, []string{"event", "result"}),

		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatherd_notifications_total",
			Help: "Total number of notification delivery attempts, by template and status.",
		}, []string{"template", "status"}),

		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatherd_auth_failures_total",
			Help: "Total number of failed authentication attempts.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EvaluationsTotal,
		m.TransitionsTotal,
		m.NotificationsTotal,
		m.AuthFailuresTotal,
	)

	return m
}

// Handler returns an [http.Handler] that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordEvaluation increments the evaluation counter for one evaluator run.
func (m *Metrics) RecordEvaluation(evaluator string, passed bool) {
	m.EvaluationsTotal.WithLabelValues(evaluator, passResult(passed)).Inc()
}

// RecordTransition increments the lifecycle transition counter.
func (m *Metrics) RecordTransition(event core.LifecycleEvent, applied bool) {
	result := "applied"
	if !applied {
		result = "denied"
	}
	m.TransitionsTotal.WithLabelValues(string(event), result).Inc()
}

// RecordNotification increments the notification counter for one delivery
// attempt.
func (m *Metrics) RecordNotification(template core.NotificationTemplate, err error) {
	status := "delivered"
	if err != nil {
		status = "failed"
	}
	m.NotificationsTotal.WithLabelValues(string(template), status).Inc()
}

// RecordHTTPRequest increments the request counter and observes latency for
// one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, seconds float64) {
	code := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route, code).Observe(seconds)
}

func passResult(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}
