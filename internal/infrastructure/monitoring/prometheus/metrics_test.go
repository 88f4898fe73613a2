package prometheus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppMetrics_Bins(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	m.ObserveBins(20, "computed", 42, 3*time.Millisecond)
	m.ObserveBins(20, "cache", 42, time.Millisecond)
	m.ObserveBins(20, "cache", 42, time.Millisecond)

	out := scrapeMetrics(t, c)
	assert.Equal(t, 1.0, metricValue(t, out, `test_unit_bin_computations_total{level="20",source="computed"}`))
	assert.Equal(t, 2.0, metricValue(t, out, `test_unit_bin_computations_total{level="20",source="cache"}`))
	assert.Equal(t, 3.0, metricValue(t, out, `test_unit_bin_groups_count{level="20"}`))
}

func TestAppMetrics_MessagesAndInstructions(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	m.ObserveMessage("kafka", "applied")
	m.ObserveMessage("kafka", "duplicate")
	m.ObserveInstruction("ADD_CONTEXT")
	m.ObserveInstruction("ADD_CONTEXT")
	m.SetSessions(3)
	m.SetDatasetRecords("paper", 120)

	out := scrapeMetrics(t, c)
	assert.Equal(t, 1.0, metricValue(t, out, `test_unit_messages_total{source="kafka",status="duplicate"}`))
	assert.Equal(t, 2.0, metricValue(t, out, `test_unit_instructions_applied_total{kind="ADD_CONTEXT"}`))
	assert.Equal(t, 3.0, metricValue(t, out, "test_unit_sessions_active"))
	assert.Equal(t, 120.0, metricValue(t, out, `test_unit_dataset_records{kind="paper"}`))
}

func TestAppMetrics_CacheAndErrors(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	m.ObserveCache("bins", true)
	m.ObserveCache("bins", false)
	m.ObserveCache("bins", false)
	m.ObserveError("explorer", "BIN_001")
	RecordHTTPRequest(m, "GET", "/api/v1/levels", 200, 2*time.Millisecond)

	out := scrapeMetrics(t, c)
	assert.Equal(t, 1.0, metricValue(t, out, `test_unit_cache_hits_total{cache="bins"}`))
	assert.Equal(t, 2.0, metricValue(t, out, `test_unit_cache_misses_total{cache="bins"}`))
	assert.Equal(t, 1.0, metricValue(t, out, `test_unit_errors_total{code="BIN_001",component="explorer"}`))
	assert.Equal(t, 1.0, metricValue(t, out, `test_unit_http_requests_total{method="GET",route="/api/v1/levels",status_code="200"}`))
}

func TestAppMetrics_NilSafe(t *testing.T) {
	var m *AppMetrics
	assert.NotPanics(t, func() {
		m.ObserveBins(10, "computed", 1, time.Millisecond)
		m.ObserveMessage("http", "applied")
		m.SetSessions(1)
		m.ObserveCache("bins", true)
		RecordHTTPRequest(m, "GET", "/", 200, time.Millisecond)
	})
}
