package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the prometheus collectors published by the sync service.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	SemestersInFlight prometheus.Gauge
	SectionsProcessed prometheus.Counter
	SectionsSkipped   prometheus.Counter
	Enrollments       *prometheus.CounterVec
	Releases          *prometheus.CounterVec
	ErrorsQueued      *prometheus.CounterVec
	ErrorsReplayed    *prometheus.CounterVec
}

// New registers all collectors against the provided registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ues_sync",
			Name:      "runs_total",
			Help:      "Reconciliation runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ues_sync",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full reconciliation run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		SemestersInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ues_sync",
			Name:      "semesters_in_session",
			Help:      "In-session semesters seen by the last run.",
		}),
		SectionsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ues_sync",
			Name:      "sections_processed_total",
			Help:      "Sections promoted to processed.",
		}),
		SectionsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ues_sync",
			Name:      "sections_skipped_total",
			Help:      "Sections dropped from the source and skipped.",
		}),
		Enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ues_sync",
			Name:      "enrollments_total",
			Help:      "Enrollments applied at the target, by role.",
		}, []string{"role"}),
		Releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ues_sync",
			Name:      "releases_total",
			Help:      "Enrollment rows released, by role.",
		}, []string{"role"}),
		ErrorsQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ues_sync",
			Name:      "errors_queued_total",
			Help:      "Error records enqueued, by kind.",
		}, []string{"kind"}),
		ErrorsReplayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ues_sync",
			Name:      "errors_replayed_total",
			Help:      "Error records replayed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.SemestersInFlight,
		m.SectionsProcessed,
		m.SectionsSkipped,
		m.Enrollments,
		m.Releases,
		m.ErrorsQueued,
		m.ErrorsReplayed,
	)

	return m
}

// NewNop returns metrics bound to a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
