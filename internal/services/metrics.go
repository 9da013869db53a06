package services

import "github.com/prometheus/client_golang/prometheus"

// Ledger counters. Label values are a small fixed set.
var (
	visitsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_visits_recorded_total",
		Help: "Visits accepted by the ledger.",
	})

	// visitsRejected is labelled by reason: invalid_code, unknown_user, duplicate_day.
	visitsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_visits_rejected_total",
			Help: "Visits rejected by the ledger, by reason.",
		},
		[]string{"reason"},
	)

	bonusesEarned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_bonuses_earned_total",
		Help: "Free-visit bonuses awarded.",
	})

	// bonusRedemptions is labelled by result: redeemed, rejected.
	bonusRedemptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_bonus_redemptions_total",
			Help: "Bonus redemption attempts, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(visitsRecorded, visitsRejected, bonusesEarned, bonusRedemptions)
}
