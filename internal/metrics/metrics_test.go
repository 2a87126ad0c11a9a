package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPool struct{ running, queued int }

func (s stubPool) InFlight() int { return s.running }
func (s stubPool) Pending() int  { return s.queued }

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.TranscodeJob(OutcomeSuccess)
	m.TranscodeJob(OutcomeFailure)
	m.TranscodeJob(OutcomeFailure)
	m.EncodeAttempt("720p", OutcomeFailure)
	m.SyncTask("share", OutcomeSuccess)
	m.ReconcileRun(OutcomeSkipped)
	m.RegisterPool("share-sync", stubPool{running: 3, queued: 7})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transcodeJobs.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.encodeAttempts.WithLabelValues("720p", OutcomeFailure)))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `video_share_pool_in_flight_tasks{pool="share-sync"} 3`)
	assert.Contains(t, string(body), `video_share_pool_pending_tasks{pool="share-sync"} 7`)
	assert.Contains(t, string(body), `video_share_reconcile_runs_total{outcome="skipped"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TranscodeJob(OutcomeSuccess)
		m.ReconciledSync(OutcomeFailure)
		m.RegisterPool("x", stubPool{})
	})
}
