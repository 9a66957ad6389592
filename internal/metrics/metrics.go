// Package metrics exposes the Prometheus instruments for the wallet engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OpsTotal counts wallet mutations by operation and outcome code.
	// Successful calls are labelled with code "OK".
	OpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "economy",
		Subsystem: "wallet",
		Name:      "ops_total",
		Help:      "Wallet mutations by operation and outcome code.",
	}, []string{"op", "code"})

	// RetriesTotal counts transient-failure retries by operation.
	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "economy",
		Subsystem: "wallet",
		Name:      "retries_total",
		Help:      "Transaction attempts retried after a transient database failure.",
	}, []string{"op"})

	// ReplayTotal counts idempotent replays served without re-execution.
	ReplayTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "economy",
		Subsystem: "wallet",
		Name:      "replays_total",
		Help:      "Idempotency-key replays served from the store or cache.",
	}, []string{"op"})

	// OpDuration observes wall-clock latency of wallet mutations.
	OpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "economy",
		Subsystem: "wallet",
		Name:      "op_duration_seconds",
		Help:      "Latency of wallet mutations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	// Degraded is 1 while the engine refuses work due to database loss.
	Degraded = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "economy",
		Name:      "degraded_mode",
		Help:      "1 while the engine is in degraded mode, 0 otherwise.",
	})

	// LedgerAppendsTotal counts committed ledger rows by source.
	LedgerAppendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "economy",
		Subsystem: "ledger",
		Name:      "appends_total",
		Help:      "Committed ledger entries by writing source.",
	}, []string{"source"})
)

// SetDegraded drives the degraded-mode gauge from the health monitor.
func SetDegraded(degraded bool) {
	if degraded {
		Degraded.Set(1)
	} else {
		Degraded.Set(0)
	}
}
