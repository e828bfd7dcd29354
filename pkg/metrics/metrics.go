// Package metrics holds the Prometheus collectors shared by the inventory service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobRuns counts scheduled job runs by job and outcome (ok, error).
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantry_job_runs_total",
		Help: "Scheduled job runs by job and outcome",
	}, []string{"job", "outcome"})

	// JobSkips counts ticks dropped because the previous run was still executing.
	JobSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantry_job_skips_total",
		Help: "Scheduled job ticks skipped because a run was in progress",
	}, []string{"job"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pantry_job_duration_seconds",
		Help:    "Scheduled job run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	}, []string{"job"})

	BatchesWasted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantry_batches_wasted_total",
		Help: "Batches moved to waste by reason",
	}, []string{"reason"})

	NotificationsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantry_notifications_raised_total",
		Help: "Notifications raised by type and severity",
	}, []string{"type", "severity"})

	// ConsumedQuantity is in base units, labelled by base unit.
	ConsumedQuantity = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantry_consumed_quantity_total",
		Help: "Quantity consumed through FIFO allocation, in base units",
	}, []string{"base_unit"})

	// IntegrityRepairs counts groups whose total was forced to 1 because
	// active batches summed to zero.
	IntegrityRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pantry_integrity_repairs_total",
		Help: "Group totals repaired during recompute",
	})

	TxRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantry_tx_retries_total",
		Help: "Transactions retried after a serialization or deadlock error",
	}, []string{"operation"})
)

// ObserveJob records the outcome and duration of one job run.
func ObserveJob(job string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	JobRuns.WithLabelValues(job, outcome).Inc()
	JobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
