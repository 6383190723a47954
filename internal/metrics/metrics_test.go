package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/tphummel/sitewatch/internal/metrics"
	"github.com/tphummel/sitewatch/internal/stats"
)

type fakeCounts struct {
	counts stats.SiteStats
	err    error
}

func (f fakeCounts) StatusCounts() (stats.SiteStats, error) { return f.counts, f.err }

func TestFleetCollector(t *testing.T) {
	c := metrics.NewFleetCollector(fakeCounts{counts: stats.SiteStats{
		Equipment: map[string]int{"online": 2, "offline": 1},
		Alerts: map[string]map[string]int{
			"error": {"new": 3},
			"info":  {"resolved": 1},
		},
	}})

	expected := `
# HELP sitewatch_alerts_total Number of alerts, partitioned by type and status.
# TYPE sitewatch_alerts_total gauge
sitewatch_alerts_total{status="new",type="error"} 3
sitewatch_alerts_total{status="resolved",type="info"} 1
# HELP sitewatch_equipment_total Number of equipment records, partitioned by status.
# TYPE sitewatch_equipment_total gauge
sitewatch_equipment_total{status="offline"} 1
sitewatch_equipment_total{status="online"} 2
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestFleetCollector_Empty(t *testing.T) {
	c := metrics.NewFleetCollector(fakeCounts{counts: stats.Aggregate(nil, nil)})
	if n := testutil.CollectAndCount(c); n != 0 {
		t.Errorf("metrics for empty store: got %d, want 0", n)
	}
}

func TestFleetCollector_StoreError(t *testing.T) {
	c := metrics.NewFleetCollector(fakeCounts{err: errors.New("db down")})
	if err := testutil.CollectAndCompare(c, strings.NewReader("")); err == nil {
		t.Error("expected collection to fail when the store errors")
	}
}

func TestMiddleware_PassesThroughStatus(t *testing.T) {
	h := metrics.Middleware("/api/v1/sites/{id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sites/abc", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestMiddleware_PreservesFlusher(t *testing.T) {
	var flushErr error
	h := metrics.Middleware("/api/v1/session/events", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flushErr = http.NewResponseController(w).Flush()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/session/events", nil))
	if flushErr != nil {
		t.Errorf("Flush through metrics middleware: %v", flushErr)
	}
}
