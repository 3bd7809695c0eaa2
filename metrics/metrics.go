// ABOUTME: Prometheus metrics for contact syncs
// ABOUTME: Counts runs, reconciled contacts and skipped phones, and times fetch and reconcile phases
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRunsTotal tracks sync runs by CRM and outcome
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cellsync",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of sync runs by CRM and status",
		},
		[]string{"crm_type", "status"},
	)

	// SyncDuration tracks end-to-end sync duration in seconds
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cellsync",
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"crm_type"},
	)

	// FetchDuration tracks how long fetching candidates from a CRM takes
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cellsync",
			Subsystem: "crm",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of CRM candidate fetches in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"crm_type"},
	)

	// ContactsReconciled counts mapping changes by kind (inserted, merged)
	ContactsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cellsync",
			Subsystem: "reconcile",
			Name:      "contacts_total",
			Help:      "Contact mapping changes made by reconciliation",
		},
		[]string{"crm_type", "kind"},
	)

	// PhonesSkipped counts candidate phones that failed normalization
	PhonesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cellsync",
			Subsystem: "reconcile",
			Name:      "phones_skipped_total",
			Help:      "Candidate phone numbers skipped because they could not be normalized",
		},
		[]string{"crm_type"},
	)

	// LockWaitsTotal tracks per-cell lock acquisition outcomes
	LockWaitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cellsync",
			Subsystem: "lock",
			Name:      "acquisitions_total",
			Help:      "Per-cell lock acquisitions by result",
		},
		[]string{"result"},
	)
)
