package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AppMetrics holds every metric the service emits.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Triage pipeline
	StageRunsTotal   *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	PipelineFallback *prometheus.CounterVec

	// Recovery engine
	RecoveryOutcomes *prometheus.CounterVec

	// Model runtime
	ModelCallsTotal   *prometheus.CounterVec
	ModelCallDuration *prometheus.HistogramVec
	EmbedCacheAccess  *prometheus.CounterVec

	// Terminology
	LexicalSearchDuration *prometheus.HistogramVec
	LexicalResultCount    *prometheus.HistogramVec

	// Errors
	ErrorsTotal *prometheus.CounterVec
}

var (
	httpDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	stageDurationBuckets = []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120, 300}
	modelDurationBuckets = []float64{.05, .1, .5, 1, 2, 5, 10, 30, 60, 120}
	dbDurationBuckets    = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}
	resultCountBuckets   = []float64{0, 1, 2, 3, 5, 10, 25, 50}
)

// NewAppMetrics registers all metrics on the collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal: collector.RegisterCounter(
			"http_requests_total", "Total HTTP requests", "method", "path", "status_code"),
		HTTPRequestDuration: collector.RegisterHistogram(
			"http_request_duration_seconds", "HTTP request duration", httpDurationBuckets, "method", "path"),

		StageRunsTotal: collector.RegisterCounter(
			"triage_stage_runs_total", "Pipeline stage executions", "stage", "outcome"),
		StageDuration: collector.RegisterHistogram(
			"triage_stage_duration_seconds", "Pipeline stage duration", stageDurationBuckets, "stage"),
		PipelineFallback: collector.RegisterCounter(
			"triage_fallbacks_total", "Degraded-mode fallbacks taken", "stage"),

		RecoveryOutcomes: collector.RegisterCounter(
			"recovery_outcomes_total", "Recovery engine outcomes by parse method", "shape", "method"),

		ModelCallsTotal: collector.RegisterCounter(
			"model_calls_total", "Model runtime calls", "operation", "status"),
		ModelCallDuration: collector.RegisterHistogram(
			"model_call_duration_seconds", "Model runtime call duration", modelDurationBuckets, "operation"),
		EmbedCacheAccess: collector.RegisterCounter(
			"embed_cache_access_total", "Embedding cache accesses", "result"),

		LexicalSearchDuration: collector.RegisterHistogram(
			"terminology_search_duration_seconds", "Lexical search duration", dbDurationBuckets, "backend"),
		LexicalResultCount: collector.RegisterHistogram(
			"terminology_search_result_count", "Lexical search result count", resultCountBuckets, "backend"),

		ErrorsTotal: collector.RegisterCounter(
			"errors_total", "Errors by component and code module", "component", "module"),
	}
}

// RecordHTTPRequest observes one handled request.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStage observes one pipeline stage execution.  outcome is "ok",
// "degraded", or "error".
func (m *AppMetrics) RecordStage(stage, outcome string, duration time.Duration) {
	m.StageRunsTotal.WithLabelValues(stage, outcome).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if outcome == "degraded" {
		m.PipelineFallback.WithLabelValues(stage).Inc()
	}
}

// RecordRecovery observes one recovery attempt.  method is the engine's
// producing method, or "none" when nothing was recovered.
func (m *AppMetrics) RecordRecovery(shape, method string) {
	if method == "" {
		method = "none"
	}
	m.RecoveryOutcomes.WithLabelValues(shape, method).Inc()
}

// RecordModelCall observes one runtime call.
func (m *AppMetrics) RecordModelCall(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ModelCallsTotal.WithLabelValues(operation, status).Inc()
	m.ModelCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordEmbedCache observes an embedding cache access.
func (m *AppMetrics) RecordEmbedCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.EmbedCacheAccess.WithLabelValues(result).Inc()
}

// RecordLexicalSearch observes one terminology lookup.
func (m *AppMetrics) RecordLexicalSearch(backend string, results int, duration time.Duration) {
	m.LexicalSearchDuration.WithLabelValues(backend).Observe(duration.Seconds())
	m.LexicalResultCount.WithLabelValues(backend).Observe(float64(results))
}

// RecordError counts an error against a component, labeled by the error
// code's module prefix.
func (m *AppMetrics) RecordError(component, module string) {
	m.ErrorsTotal.WithLabelValues(component, module).Inc()
}
