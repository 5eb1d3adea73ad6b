// Package metrics exposes prometheus HTTP metrics and domain counters.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/taskflow/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry so several instances can coexist in tests.
// All recording methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry
	service  string

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	statusCategory  *prometheus.CounterVec

	tasksCreated     prometheus.Counter
	taskTransitions  *prometheus.CounterVec
	reportsSubmitted prometheus.Counter
	leaveDecisions   *prometheus.CounterVec
	aiRequests       *prometheus.CounterVec
	authAttempts     *prometheus.CounterVec
}

// New creates and registers every collector for service.
func New(service string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		service:  service,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"service", "method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "method", "path", "status"}),
		statusCategory: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_status_category_total",
			Help: "Total number of responses by status category (2xx, 3xx, 4xx, 5xx)",
		}, []string{"service", "category"}),
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskflow_tasks_created_total",
			Help: "Tasks created",
		}),
		taskTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_task_status_transitions_total",
			Help: "Task status changes by target status",
		}, []string{"status"}),
		reportsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskflow_daily_reports_submitted_total",
			Help: "Daily report submissions, including resubmissions",
		}),
		leaveDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_leave_decisions_total",
			Help: "Leave request decisions by status",
		}, []string{"status"}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_ai_requests_total",
			Help: "AI drafting calls by outcome",
		}, []string{"outcome"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_auth_attempts_total",
			Help: "Login and registration attempts by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.requestDuration, m.statusCategory,
		m.tasksCreated, m.taskTransitions, m.reportsSubmitted,
		m.leaveDecisions, m.aiRequests, m.authAttempts,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Middleware records request count, duration and status category.
// The path label is the matched route pattern to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := httpx.NewStatusWriter(w)
		next.ServeHTTP(sw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(sw.Status)
		m.requests.WithLabelValues(m.service, r.Method, path, status).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path, status).Observe(time.Since(start).Seconds())
		if c := category(sw.Status); c != "" {
			m.statusCategory.WithLabelValues(m.service, c).Inc()
		}
	})
}

func category(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	}
	return ""
}

func (m *Metrics) TaskCreated() {
	if m != nil {
		m.tasksCreated.Inc()
	}
}

func (m *Metrics) TaskTransition(status string) {
	if m != nil {
		m.taskTransitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) ReportSubmitted() {
	if m != nil {
		m.reportsSubmitted.Inc()
	}
}

func (m *Metrics) LeaveDecided(status string) {
	if m != nil {
		m.leaveDecisions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) AIRequest(outcome string) {
	if m != nil {
		m.aiRequests.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) AuthAttempt(kind, outcome string) {
	if m != nil {
		m.authAttempts.WithLabelValues(kind, outcome).Inc()
	}
}
