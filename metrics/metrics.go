package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the vesting engine and its workers
var (
	GrantsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vesting_grants_created_total",
			Help: "Total number of grants issued into the ledger",
		},
	)

	ClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vesting_claims_total",
			Help: "Claim attempts by result",
		},
		[]string{"result"},
	)

	GrantsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vesting_grants_expired_total",
			Help: "Total number of grants moved to expired",
		},
	)

	GrantsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vesting_grants_completed_total",
			Help: "Total number of grants persisted as completed",
		},
	)

	SettlementDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vesting_settlement_deliveries_total",
			Help: "Claim event deliveries to the settlement service by result",
		},
		[]string{"result"},
	)

	ClaimDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vesting_claim_duration_seconds",
			Help:    "Duration of claim transactions",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(GrantsCreatedTotal)
	prometheus.MustRegister(ClaimsTotal)
	prometheus.MustRegister(GrantsExpiredTotal)
	prometheus.MustRegister(GrantsCompletedTotal)
	prometheus.MustRegister(SettlementDeliveriesTotal)
	prometheus.MustRegister(ClaimDuration)
}
