// Package metrics provides Prometheus metrics for the dashboard backend.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	WorkerReportsTotal *prometheus.CounterVec
	EscalationsTotal   *prometheus.CounterVec
	TodoistSyncTotal   *prometheus.CounterVec
	WebhookEventsTotal *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "missioncontrol_http_requests_total",
				Help: "Total number of API requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "missioncontrol_http_request_duration_seconds",
				Help:    "API request duration by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		WorkerReportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "missioncontrol_worker_reports_total",
				Help: "Worker reports received by event type and result.",
			},
			[]string{"event_type", "result"},
		),
		EscalationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "missioncontrol_escalations_total",
				Help: "Escalations opened by triggering event type.",
			},
			[]string{"event_type"},
		),
		TodoistSyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "missioncontrol_todoist_sync_total",
				Help: "Todoist sync runs by trigger and result.",
			},
			[]string{"trigger", "result"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "missioncontrol_webhook_events_total",
				Help: "Todoist webhook events by event name.",
			},
			[]string{"event"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "missioncontrol_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.WorkerReportsTotal)
	reg.MustRegister(m.EscalationsTotal)
	reg.MustRegister(m.TodoistSyncTotal)
	reg.MustRegister(m.WebhookEventsTotal)
	reg.MustRegister(m.ErrorsTotal)
	reg.MustRegister(collectors.NewGoCollector())

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (for testing).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// The Record methods are no-ops on a nil *Metrics so collectors stay optional.

// RecordRequest counts a served API request and its duration.
func (m *Metrics) RecordRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// RecordReport counts an ingested worker report. result is "inserted" or "duplicate".
func (m *Metrics) RecordReport(eventType, result string) {
	if m == nil {
		return
	}
	m.WorkerReportsTotal.WithLabelValues(eventType, result).Inc()
}

// RecordEscalation counts an escalation derived from a report.
func (m *Metrics) RecordEscalation(eventType string) {
	if m == nil {
		return
	}
	m.EscalationsTotal.WithLabelValues(eventType).Inc()
}

// RecordSync counts a Todoist sync run.
func (m *Metrics) RecordSync(trigger, result string) {
	if m == nil {
		return
	}
	m.TodoistSyncTotal.WithLabelValues(trigger, result).Inc()
}

// RecordWebhook counts a received webhook event.
func (m *Metrics) RecordWebhook(event string) {
	if m == nil {
		return
	}
	m.WebhookEventsTotal.WithLabelValues(event).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}
