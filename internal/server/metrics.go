package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/codegangsta/negroni"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the Prometheus collectors exported on /api/metrics.
type Metrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	incidents    prometheus.Counter
	analyses     *prometheus.CounterVec
	pullRequests prometheus.Counter
	merges       prometheus.Counter
}

// NewMetrics creates collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devcopilot",
			Name:      "http_requests_total",
			Help:      "API requests by route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "devcopilot",
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		incidents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devcopilot",
			Name:      "incidents_created_total",
			Help:      "Incidents raised by scans.",
		}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devcopilot",
			Name:      "analyses_total",
			Help:      "Incident analyses by result.",
		}, []string{"result"}),
		pullRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devcopilot",
			Name:      "pull_requests_created_total",
			Help:      "Fix pull requests opened.",
		}),
		merges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devcopilot",
			Name:      "pull_requests_merged_total",
			Help:      "Fix pull requests merged.",
		}),
	}
	m.registry.MustRegister(
		m.requests, m.duration, m.incidents, m.analyses, m.pullRequests, m.merges,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency by route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		status := 0
		if rw, ok := w.(negroni.ResponseWriter); ok {
			status = rw.Status()
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
