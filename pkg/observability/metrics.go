package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors. All methods are safe
// on a nil receiver.
type Metrics struct {
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	StageDuration        *prometheus.HistogramVec
	RateLimitRejections  *prometheus.CounterVec
	IdempotencyOutcomes  *prometheus.CounterVec
	WebhookVerifications *prometheus.CounterVec
	BatchItemsTotal      *prometheus.CounterVec
	AuditFailures        prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_requests_total",
				Help: "Total number of requests handled by governed endpoints",
			},
			[]string{"route", "method", "status", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_request_duration_seconds",
				Help:    "End-to-end pipeline duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_stage_duration_seconds",
				Help:    "Duration of individual middleware stages in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"route", "stage"},
		),
		RateLimitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_rate_limit_rejections_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
		IdempotencyOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_idempotency_outcomes_total",
				Help: "Idempotency lookups by outcome (executed, replayed, conflict, in_progress)",
			},
			[]string{"route", "outcome"},
		),
		WebhookVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_webhook_verifications_total",
				Help: "Inbound webhook verifications by result",
			},
			[]string{"source", "result"},
		),
		BatchItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_batch_items_total",
				Help: "Batch items processed by outcome",
			},
			[]string{"outcome"},
		),
		AuditFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "api_audit_write_failures_total",
				Help: "Audit entries that could not be written",
			},
		),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.StageDuration,
		m.RateLimitRejections,
		m.IdempotencyOutcomes,
		m.WebhookVerifications,
		m.BatchItemsTotal,
		m.AuditFailures,
	)

	return m
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(route, method string, status int, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status), code).Inc()
	m.RequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// ObserveStage records the time spent in one pipeline stage.
func (m *Metrics) ObserveStage(route, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(route, stage).Observe(d.Seconds())
}

func (m *Metrics) IncRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimitRejections.WithLabelValues(route).Inc()
}

func (m *Metrics) IncIdempotency(route, outcome string) {
	if m == nil {
		return
	}
	m.IdempotencyOutcomes.WithLabelValues(route, outcome).Inc()
}

func (m *Metrics) IncWebhook(source, result string) {
	if m == nil {
		return
	}
	m.WebhookVerifications.WithLabelValues(source, result).Inc()
}

func (m *Metrics) AddBatchItems(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.BatchItemsTotal.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) IncAuditFailure() {
	if m == nil {
		return
	}
	m.AuditFailures.Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
