// Package metrics implements Prometheus self-monitoring for the survey
// core: garbling shocks, concurrency conflicts, submissions, and active
// session counts. There is no business-domain collector analogous to the
// teacher's claim/XR collectors (this system has no Kubernetes resource
// model) — instead pkg/garbling, pkg/interpreter, and cmd/surveyd update
// these counters imperatively at the point the event occurs, exactly as
// the teacher's poller updates StoreClaims/StoreXRs. The one pull-style
// collector that remains, SessionCollector, mirrors ClaimCollector's
// shape for a single gauge sourced from live in-memory state.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Self-monitoring metrics for the survey core. These use the
// "safely_report_" prefix.
//
// All metrics are pre-registered via RegisterSelfMetrics and updated
// imperatively by pkg/garbling, pkg/interpreter, and cmd/surveyd.
var (
	// GarblingShocksTotal counts garbling transform applications, by
	// question name and the value of the shock drawn ("true"/"false").
	GarblingShocksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safely_report_garbling_shocks_total",
		Help: "Total number of garbling transforms applied, partitioned by question and shock outcome.",
	}, []string{"question", "shock"})

	// ConcurrencyConflictsTotal counts optimistic-locking losses on a
	// garbling block write.
	ConcurrencyConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safely_report_concurrency_conflicts_total",
		Help: "Total number of garbling block writes that lost an optimistic-locking race.",
	})

	// BlockRefillsTotal counts how often a population/covariate block's
	// shock pool was reshuffled and refilled.
	BlockRefillsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safely_report_block_refills_total",
		Help: "Total number of garbling block shock-pool refills, partitioned by block name.",
	}, []string{"block"})

	// SubmissionsTotal counts successfully committed survey responses.
	SubmissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safely_report_submissions_total",
		Help: "Total number of survey responses successfully committed.",
	})

	// ResubmissionAttemptsTotal counts rejected duplicate submissions.
	ResubmissionAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safely_report_resubmission_attempts_total",
		Help: "Total number of submission attempts rejected as duplicates.",
	})

	// AdvanceDuration tracks how long the interpreter takes to compute
	// the next element to show.
	AdvanceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "safely_report_advance_duration_seconds",
		Help:    "Duration of interpreter advance-to-next-element calls in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// S3PersistDuration tracks the duration of S3 backup persist operations.
	S3PersistDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "safely_report_s3_persist_duration_seconds",
		Help:    "Duration of S3 submissions-backup persist operations in seconds.",
		Buckets: prometheus.DefBuckets,
	})
)

// RegisterSelfMetrics registers all self-monitoring metrics with the
// given Prometheus registry.
func RegisterSelfMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		GarblingShocksTotal,
		ConcurrencyConflictsTotal,
		BlockRefillsTotal,
		SubmissionsTotal,
		ResubmissionAttemptsTotal,
		AdvanceDuration,
		S3PersistDuration,
	)
}
