package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	runPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tierrun",
		Subsystem: "persistence",
		Name:      "last_run_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent run persisted with its tier.",
	})
	lpAwarded = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tierrun",
		Subsystem: "scoring",
		Name:      "lp_awarded",
		Help:      "LP awarded per ingested run.",
		Buckets:   []float64{1, 5, 10, 20, 40, 60, 80, 120, 160, 240},
	}, []string{"role"})
	runsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tierrun",
		Subsystem: "ingest",
		Name:      "runs_total",
		Help:      "Runs processed by ingestion, by outcome.",
	}, []string{"outcome"})
	tierTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tierrun",
		Subsystem: "ladder",
		Name:      "transitions_total",
		Help:      "Tier transitions applied, by role and kind.",
	}, []string{"role", "kind"})
	tierConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tierrun",
		Subsystem: "ladder",
		Name:      "write_conflicts_total",
		Help:      "Tier writes retried after a concurrent modification.",
	})
)

func init() {
	prometheus.MustRegister(runPersistGauge, lpAwarded, runsIngested, tierTransitions, tierConflicts)
}

// RecordRunPersisted updates the persistence watermark gauge.
func RecordRunPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	runPersistGauge.Set(float64(ts.Unix()))
}

// RecordLPAwarded observes the LP earned by a scored run.
func RecordLPAwarded(role string, lp int) {
	lpAwarded.WithLabelValues(role).Observe(float64(lp))
}

// RecordRunOutcome counts an ingestion attempt: "ingested", "duplicate" or "rejected".
func RecordRunOutcome(outcome string) {
	runsIngested.WithLabelValues(outcome).Inc()
}

// RecordTransition counts a grade-up or promotion.
func RecordTransition(role, kind string) {
	tierTransitions.WithLabelValues(role, kind).Inc()
}

// RecordTierConflict counts an optimistic concurrency retry.
func RecordTierConflict() {
	tierConflicts.Inc()
}
