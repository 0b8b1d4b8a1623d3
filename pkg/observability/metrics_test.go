package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.ObserveRequest("shifts.create", "POST", 201, "", 15*time.Millisecond)
	m.ObserveRequest("shifts.create", "POST", 429, "RATE_LIMITED", time.Millisecond)
	m.IncRateLimited("shifts.create")
	m.IncIdempotency("shifts.create", "replayed")
	m.IncWebhook("stripe", "valid")
	m.AddBatchItems("success", 3)
	m.AddBatchItems("failure", 0)
	m.IncAuditFailure()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("shifts.create", "POST", "201", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitRejections.WithLabelValues("shifts.create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IdempotencyOutcomes.WithLabelValues("shifts.create", "replayed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BatchItemsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditFailures))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("r", "GET", 200, "", time.Millisecond)
		m.ObserveStage("r", "auth", time.Millisecond)
		m.IncRateLimited("r")
		m.IncIdempotency("r", "executed")
		m.IncWebhook("s", "invalid")
		m.AddBatchItems("success", 1)
		m.IncAuditFailure()
	})
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.IncRateLimited("shifts.list")

	w := httptest.NewRecorder()
	m.Handler(registry).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "api_rate_limit_rejections_total"))
}
