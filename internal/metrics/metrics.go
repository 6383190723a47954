package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tphummel/sitewatch/internal/stats"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitewatch_http_requests_total",
			Help: "Total number of HTTP requests by method, route, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitewatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sitewatch_http_requests_in_flight",
		Help: "Current number of HTTP requests being processed.",
	})

	sessionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitewatch_session_events_total",
			Help: "Session transitions published by the auth service, by event.",
		},
		[]string{"event"},
	)
)

// StatusCounter is the subset of db.DB needed to collect fleet metrics.
type StatusCounter interface {
	StatusCounts() (stats.SiteStats, error)
}

// fleetCollector is a custom Prometheus collector that queries the database
// on each scrape to report equipment and alert counts across all sites.
type fleetCollector struct {
	db            StatusCounter
	equipmentDesc *prometheus.Desc
	alertsDesc    *prometheus.Desc
}

// NewFleetCollector returns the collector behind sitewatch_equipment_total
// and sitewatch_alerts_total.
func NewFleetCollector(db StatusCounter) prometheus.Collector {
	return &fleetCollector{
		db: db,
		equipmentDesc: prometheus.NewDesc(
			"sitewatch_equipment_total",
			"Number of equipment records, partitioned by status.",
			[]string{"status"},
			nil,
		),
		alertsDesc: prometheus.NewDesc(
			"sitewatch_alerts_total",
			"Number of alerts, partitioned by type and status.",
			[]string{"type", "status"},
			nil,
		),
	}
}

func (c *fleetCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.equipmentDesc
	ch <- c.alertsDesc
}

func (c *fleetCollector) Collect(ch chan<- prometheus.Metric) {
	counts, err := c.db.StatusCounts()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.equipmentDesc, err)
		ch <- prometheus.NewInvalidMetric(c.alertsDesc, err)
		return
	}
	for status, n := range counts.Equipment {
		ch <- prometheus.MustNewConstMetric(c.equipmentDesc, prometheus.GaugeValue, float64(n), status)
	}
	for typ, byStatus := range counts.Alerts {
		for status, n := range byStatus {
			ch <- prometheus.MustNewConstMetric(c.alertsDesc, prometheus.GaugeValue, float64(n), typ, status)
		}
	}
}

// Register registers all metrics with the default Prometheus registry.
// Call once at startup after the database is initialised.
func Register(db StatusCounter) {
	prometheus.MustRegister(
		// Standard Go runtime and process metrics
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),

		// HTTP service metrics
		httpRequestsTotal,
		httpRequestDuration,
		httpRequestsInFlight,

		// Application metrics
		sessionEventsTotal,
		NewFleetCollector(db),
	)
}

// ObserveSession counts one published session event.
func ObserveSession(event string) {
	sessionEventsTotal.WithLabelValues(event).Inc()
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture the response status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware wraps an http.Handler to record HTTP metrics.
// pattern should be the route pattern string (e.g. "/api/v1/sites/{id}")
// so the path label has bounded cardinality.
func Middleware(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			httpRequestsInFlight.Dec()
			status := strconv.Itoa(rw.status)
			httpRequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(rw, r)
	})
}
