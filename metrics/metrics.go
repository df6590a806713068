// Package metrics exposes coredoc's Prometheus instrumentation: write
// latency, WAL append/fsync timings, replication lag, and promotion
// outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WritesTotal counts completed write operations by kind and outcome.
	WritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coredoc",
		Name:      "writes_total",
		Help:      "Total write operations by kind and outcome.",
	}, []string{"kind", "outcome"})

	// AppendFsyncSeconds measures the time spent in WAL Append, including
	// fsync, per record.
	AppendFsyncSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "coredoc",
		Name:      "wal_append_fsync_seconds",
		Help:      "Latency of a single WAL append including fsync.",
		Buckets:   prometheus.DefBuckets,
	})

	// QueryPlansTotal counts plans produced by the planner, by plan class
	// (primary_lookup, index_eq, index_scan, collection_scan), for watching
	// plan-class drift.
	QueryPlansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coredoc",
		Name:      "query_plans_total",
		Help:      "Query plans produced by the planner, by plan class.",
	}, []string{"class"})

	// ReplicationLagRecords tracks how many records a follower is behind
	// the authority's durable lsn, sampled per shipping session.
	ReplicationLagRecords = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "coredoc",
		Name:      "replication_lag_records",
		Help:      "Records a follower is behind the authority's durable lsn.",
	}, []string{"follower_id"})

	// PromotionsTotal counts promotion attempts by terminal state.
	PromotionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coredoc",
		Name:      "promotions_total",
		Help:      "Promotion attempts by terminal state (completed, failed).",
	}, []string{"state"})

	// AuthorityConflictsTotal counts fatal halts triggered by a generation
	// mismatch during replication handshake.
	AuthorityConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "coredoc",
		Name:      "authority_conflicts_total",
		Help:      "Fatal halts caused by observing a higher remote generation.",
	})
)

func init() {
	prometheus.MustRegister(
		WritesTotal,
		AppendFsyncSeconds,
		QueryPlansTotal,
		ReplicationLagRecords,
		PromotionsTotal,
		AuthorityConflictsTotal,
	)
}

// Handler returns the HTTP handler that serves the registered metrics in
// the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
