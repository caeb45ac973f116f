package prometheus

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() (*AppMetrics, MetricsCollector) {
	collector := NewCollector(CollectorConfig{Namespace: "clinsight"}, nil)
	return NewAppMetrics(collector), collector
}

func TestRecordStage(t *testing.T) {
	m, _ := newTestMetrics()

	m.RecordStage("extract", "ok", 250*time.Millisecond)
	m.RecordStage("explain", "degraded", time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.StageRunsTotal.WithLabelValues("extract", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StageRunsTotal.WithLabelValues("explain", "degraded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PipelineFallback.WithLabelValues("explain")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.PipelineFallback.WithLabelValues("extract")))
}

func TestRecordRecovery(t *testing.T) {
	m, _ := newTestMetrics()

	m.RecordRecovery("object", "repair")
	m.RecordRecovery("array", "")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RecoveryOutcomes.WithLabelValues("object", "repair")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RecoveryOutcomes.WithLabelValues("array", "none")))
}

func TestRecordModelCall(t *testing.T) {
	m, _ := newTestMetrics()

	m.RecordModelCall("complete", nil, 2*time.Second)
	m.RecordModelCall("embed", errors.New("timeout"), 100*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ModelCallsTotal.WithLabelValues("complete", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ModelCallsTotal.WithLabelValues("embed", "failure")))
}

func TestRecordEmbedCache(t *testing.T) {
	m, _ := newTestMetrics()

	m.RecordEmbedCache(true)
	m.RecordEmbedCache(true)
	m.RecordEmbedCache(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.EmbedCacheAccess.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EmbedCacheAccess.WithLabelValues("miss")))
}

func TestHandlerExposesNamespacedMetrics(t *testing.T) {
	m, collector := newTestMetrics()
	m.RecordHTTPRequest("POST", "/api/v1/triage/run", 200, 42*time.Millisecond)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "clinsight_http_requests_total"), body)
}

func TestRegisterTwiceReturnsSameVec(t *testing.T) {
	collector := NewCollector(CollectorConfig{Namespace: "clinsight"}, nil)
	a := collector.RegisterCounter("dup_total", "dup", "l")
	b := collector.RegisterCounter("dup_total", "dup", "l")
	assert.Same(t, a, b)
}
