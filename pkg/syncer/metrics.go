package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for sync runs.
type Metrics struct {
	MeetingsSynced   prometheus.Counter
	MeetingsRerouted prometheus.Counter
	MeetingsRenamed  prometheus.Counter
	MeetingsSkipped  prometheus.Counter
	MeetingsFailed   prometheus.Counter
	RunSeconds       prometheus.Histogram
	RunsTotal        *prometheus.CounterVec
}

// DefaultMetrics creates metrics on the default registerer.
func DefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// NewMetrics creates sync metrics registered with reg. Tests pass a
// private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MeetingsSynced: factory.NewCounter(prometheus.CounterOpts{
			Name: "granola_sync_meetings_synced_total",
			Help: "Meetings materialized for the first time",
		}),
		MeetingsRerouted: factory.NewCounter(prometheus.CounterOpts{
			Name: "granola_sync_meetings_rerouted_total",
			Help: "Meetings moved to a different destination folder",
		}),
		MeetingsRenamed: factory.NewCounter(prometheus.CounterOpts{
			Name: "granola_sync_meetings_renamed_total",
			Help: "Meetings renamed in place after a title change",
		}),
		MeetingsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "granola_sync_meetings_skipped_total",
			Help: "Meetings skipped because they were not ready to sync",
		}),
		MeetingsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "granola_sync_meetings_failed_total",
			Help: "Meetings that failed to render or write and will retry next run",
		}),
		RunSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "granola_sync_run_seconds",
			Help:    "Duration of a full sync run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "granola_sync_runs_total",
			Help: "Sync runs by outcome",
		}, []string{"status"}),
	}
}

// The inc* helpers are nil-safe so a Syncer without metrics works.

func (m *Metrics) observeRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		m.RunSeconds.Observe(seconds)
	}
}

func (m *Metrics) incSynced() {
	if m != nil {
		m.MeetingsSynced.Inc()
	}
}

func (m *Metrics) incRerouted() {
	if m != nil {
		m.MeetingsRerouted.Inc()
	}
}

func (m *Metrics) incRenamed() {
	if m != nil {
		m.MeetingsRenamed.Inc()
	}
}

func (m *Metrics) incSkipped() {
	if m != nil {
		m.MeetingsSkipped.Inc()
	}
}

func (m *Metrics) incFailed() {
	if m != nil {
		m.MeetingsFailed.Inc()
	}
}
