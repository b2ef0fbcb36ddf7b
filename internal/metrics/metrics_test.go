package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefbowerman/undftd-cli/internal/pipeline"
)

func TestCollectorRecordCall(t *testing.T) {
	c := NewCollector()
	c.RecordCall("SearchCustomers", 100*time.Millisecond, nil)
	c.RecordCall("SearchCustomers", 300*time.Millisecond, errors.New("boom"))
	c.RecordCall("CustomerCreate", 50*time.Millisecond, nil)

	snap := c.Snapshot()
	require.Len(t, snap.Operations, 2)

	create := snap.Operations[0]
	assert.Equal(t, "CustomerCreate", create.Operation)
	assert.Equal(t, int64(1), create.Count)

	search := snap.Operations[1]
	assert.Equal(t, "SearchCustomers", search.Operation)
	assert.Equal(t, int64(2), search.Count)
	assert.Equal(t, int64(1), search.Errors)
	assert.Equal(t, int64(100), search.MinTimeMs)
	assert.Equal(t, int64(300), search.MaxTimeMs)
	assert.InDelta(t, 200, search.AvgTimeMs, 0.001)
}

func TestCollectorRecordWait(t *testing.T) {
	c := NewCollector()
	c.RecordWait(0)
	c.RecordWait(250 * time.Millisecond)
	c.RecordWait(250 * time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.LimiterWaits)
	assert.Equal(t, int64(500), snap.LimiterWaitMs)
}

func TestCollectorEmpty(t *testing.T) {
	snap := NewCollector().Snapshot()
	assert.Empty(t, snap.Operations)
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}

func TestMetricsObserve(t *testing.T) {
	m := New("")
	stage := pipeline.StageReconciliation

	m.PhaseStarted(stage, 3)
	m.Observe(pipeline.Progress{Stage: stage, Completed: 1, Total: 3, Outcome: pipeline.OutcomeSuccess})
	m.Observe(pipeline.Progress{Stage: stage, Completed: 2, Total: 3, Outcome: pipeline.OutcomeSuccess})
	m.PhaseFinished(stage, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.records.WithLabelValues(string(stage), "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.records.WithLabelValues(string(stage), "failure")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.stage.WithLabelValues(string(stage))), 0.0)
}

func TestMetricsRecordCall(t *testing.T) {
	m := New("test")
	m.RecordCall("DraftOrderCreate", 20*time.Millisecond, nil)
	m.RecordCall("DraftOrderCreate", 20*time.Millisecond, errors.New("throttled"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("DraftOrderCreate", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("DraftOrderCreate", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.callSeconds))

	snap := m.Collector().Snapshot()
	require.Len(t, snap.Operations, 1)
	assert.Equal(t, int64(1), snap.Operations[0].Errors)
}

func TestMetricsWriteTextfile(t *testing.T) {
	m := New("")
	m.Observe(pipeline.Progress{Stage: pipeline.StageInvoiceSend, Completed: 1, Total: 1, Outcome: pipeline.OutcomeFailure})
	m.RecordWait(100 * time.Millisecond)

	path := filepath.Join(t.TempDir(), "undftd.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `undftd_records_total{outcome="failure",stage="invoice-send"} 1`)
	assert.Contains(t, text, "undftd_limiter_wait_seconds_count 1")
}

func TestMetricsWriteTextfileBadPath(t *testing.T) {
	m := New("")
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "undftd.prom"))
	assert.Error(t, err)
}
