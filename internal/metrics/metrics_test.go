package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordReport(t *testing.T) {
	m := New()
	m.RecordReport("TASK_FAILED", "inserted")
	m.RecordReport("TASK_FAILED", "inserted")
	m.RecordReport("TASK_FAILED", "duplicate")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WorkerReportsTotal.WithLabelValues("TASK_FAILED", "inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkerReportsTotal.WithLabelValues("TASK_FAILED", "duplicate")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("GET", "/health", "200", 0.01)
		m.RecordReport("X", "inserted")
		m.RecordEscalation("X")
		m.RecordSync("manual", "ok")
		m.RecordWebhook("item:added")
		m.RecordError("api", "internal")
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.RecordSync("manual", "ok")
	m.RecordRequest("GET", "/projects", "200", 0.002)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `missioncontrol_todoist_sync_total{result="ok",trigger="manual"} 1`)
	assert.Contains(t, string(body), "missioncontrol_http_request_duration_seconds")
}
