package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	VideosFinished     *prometheus.CounterVec
	StageLatency       *prometheus.HistogramVec
	DeliveriesSent     prometheus.Counter
	SubscribersBlocked prometheus.Counter
	CacheLookups       *prometheus.CounterVec
	QueueDepth         prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		VideosFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "videos_finished_total",
			Help: "Total number of videos reaching a terminal status.",
		}, []string{"status"}),

		StageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_seconds",
			Help:    "Wall-clock latency of each pipeline stage, successes only.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),

		DeliveriesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deliveries_sent_total",
			Help: "Total number of summary messages delivered to subscribers.",
		}),

		SubscribersBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subscribers_blocked_total",
			Help: "Total number of subscribers marked blocked after a permanent send failure.",
		}),

		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups partitioned by result (hit, miss, error).",
		}, []string{"result"}),

		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Current number of jobs waiting in the in-memory queue.",
		}),
	}

	reg.MustRegister(
		m.VideosFinished,
		m.StageLatency,
		m.DeliveriesSent,
		m.SubscribersBlocked,
		m.CacheLookups,
		m.QueueDepth,
	)

	return m
}

// PipelineHooks returns the metric callbacks expected by pipeline.Hooks.
// Centralises the prometheus observation calls so the orchestrator stays
// import-free.
func (m *Metrics) PipelineHooks() (
	onStage func(domain.Stage, time.Duration),
	onFinished func(domain.Status),
) {
	onStage = func(stage domain.Stage, latency time.Duration) {
		m.StageLatency.WithLabelValues(string(stage)).Observe(latency.Seconds())
	}
	onFinished = func(status domain.Status) {
		m.VideosFinished.WithLabelValues(string(status)).Inc()
	}
	return
}

// WorkerHooks returns the metric callback expected by worker.Hooks.
// The worker settles failed videos, so the failed leg of the terminal
// counter is observed here rather than in the orchestrator.
func (m *Metrics) WorkerHooks() (onFailed func()) {
	return func() {
		m.VideosFinished.WithLabelValues(string(domain.StatusFailed)).Inc()
	}
}

// FanoutHooks returns the metric callbacks expected by fanout.Hooks.
func (m *Metrics) FanoutHooks() (onSent func(), onBlocked func()) {
	onSent = func() { m.DeliveriesSent.Inc() }
	onBlocked = func() { m.SubscribersBlocked.Inc() }
	return
}

// CacheHooks returns the metric callbacks expected by cache.Hooks.
func (m *Metrics) CacheHooks() (onHit, onMiss, onError func()) {
	onHit = func() { m.CacheLookups.WithLabelValues("hit").Inc() }
	onMiss = func() { m.CacheLookups.WithLabelValues("miss").Inc() }
	onError = func() { m.CacheLookups.WithLabelValues("error").Inc() }
	return
}
