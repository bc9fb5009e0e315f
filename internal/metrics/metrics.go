package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReserveDuration tracks the latency of ticket reservations.
	ReserveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticket_reserve_duration_seconds",
			Help:    "Duration of ticket reservation requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"status"}, // success, insufficient_inventory, duplicate_payment, error
	)

	// ReconciliationFindings counts discrepancies recorded by reconciliation passes.
	ReconciliationFindings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_reconciliation_findings_total",
			Help: "Reconciliation findings recorded, by classification",
		},
		[]string{"finding"},
	)

	// ExpiredClaimsSwept counts claims released by the expiry sweeper.
	ExpiredClaimsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticket_expired_claims_swept_total",
			Help: "Pending claims expired and released by the sweeper",
		},
	)
)

// RecordReserveDuration records the duration of one reservation attempt.
func RecordReserveDuration(status string, duration float64) {
	ReserveDuration.WithLabelValues(status).Observe(duration)
}
