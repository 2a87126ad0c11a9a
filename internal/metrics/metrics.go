package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "video_share"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds every collector of the service. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	transcodeJobs   *prometheus.CounterVec
	encodeAttempts  *prometheus.CounterVec
	syncTasks       *prometheus.CounterVec
	revokeNotices   *prometheus.CounterVec
	reconciledSyncs *prometheus.CounterVec
	reconcileRuns   *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transcodeJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcode_jobs_total",
			Help:      "Work items finished, by outcome.",
		}, []string{"outcome"}),
		encodeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encode_attempts_total",
			Help:      "Encoder invocations, by quality and outcome.",
		}, []string{"quality", "outcome"}),
		syncTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "share_sync_tasks_total",
			Help:      "Outbound cross-site share sync tasks, by phase reached and outcome.",
		}, []string{"phase", "outcome"}),
		revokeNotices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revoke_notices_total",
			Help:      "Outbound revoke notices, by outcome.",
		}, []string{"outcome"}),
		reconciledSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_share_syncs_total",
			Help:      "Inbound share syncs handled by the reconciler, by outcome.",
		}, []string{"outcome"}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Reconciler ticks, by outcome. Skipped means a run was already in progress.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transcodeJobs,
		m.encodeAttempts,
		m.syncTasks,
		m.revokeNotices,
		m.reconciledSyncs,
		m.reconcileRuns,
	)
	return m
}

// PoolStats is implemented by the worker pool.
type PoolStats interface {
	InFlight() int
	Pending() int
}

// RegisterPool exports in-flight and queued task gauges for a pool.
func (m *Metrics) RegisterPool(name string, p PoolStats) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"pool": name}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "pool_in_flight_tasks",
			Help:        "Tasks currently running.",
			ConstLabels: labels,
		}, func() float64 { return float64(p.InFlight()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "pool_pending_tasks",
			Help:        "Tasks waiting for a free slot.",
			ConstLabels: labels,
		}, func() float64 { return float64(p.Pending()) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TranscodeJob(outcome string) {
	if m != nil {
		m.transcodeJobs.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) EncodeAttempt(quality, outcome string) {
	if m != nil {
		m.encodeAttempts.WithLabelValues(quality, outcome).Inc()
	}
}

// SyncTask records where an outbound sync task ended: "endpoint", "artifacts",
// "video", "share".
func (m *Metrics) SyncTask(phase, outcome string) {
	if m != nil {
		m.syncTasks.WithLabelValues(phase, outcome).Inc()
	}
}

func (m *Metrics) RevokeNotice(outcome string) {
	if m != nil {
		m.revokeNotices.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ReconciledSync(outcome string) {
	if m != nil {
		m.reconciledSyncs.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ReconcileRun(outcome string) {
	if m != nil {
		m.reconcileRuns.WithLabelValues(outcome).Inc()
	}
}
