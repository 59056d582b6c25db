package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ClassificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classifications_total",
		Help: "Messages classified, by verdict",
	}, []string{"verdict"})

	LedgerMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_mutations_total",
		Help: "Ledger credits, debits and chaos post records",
	}, []string{"kind"})

	EscrowOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_outcomes_total",
		Help: "Escrow protocol outcomes",
	}, []string{"outcome"})

	LeaderboardRendersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leaderboard_renders_total",
		Help: "Leaderboard renders pushed to the transport",
	})

	ReconciliationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconciliation_seconds",
		Help:    "Duration of historical reconciliation passes",
		Buckets: prometheus.DefBuckets,
	})

	ReconciliationMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_messages_total",
		Help: "Messages replayed during reconciliation",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Duration of network requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Count of network requests",
	}, []string{"component", "operation", "status"})
)

// MustRegister registers every metric.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ClassificationsTotal,
		LedgerMutationsTotal,
		EscrowOutcomesTotal,
		LeaderboardRendersTotal,
		ReconciliationSeconds,
		ReconciliationMessages,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest records the duration and status of a network call.
func ObserveNetworkRequest(component, operation string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, status).Inc()
}

// IncClassification bumps the verdict counter.
func IncClassification(verdict string) {
	ClassificationsTotal.WithLabelValues(verdict).Inc()
}

// IncLedgerMutation bumps the mutation counter for credit/debit/post.
func IncLedgerMutation(kind string) {
	LedgerMutationsTotal.WithLabelValues(kind).Inc()
}

// IncEscrowOutcome bumps an escrow outcome counter.
func IncEscrowOutcome(outcome string) {
	EscrowOutcomesTotal.WithLabelValues(outcome).Inc()
}
