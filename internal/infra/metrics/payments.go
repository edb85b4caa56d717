package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		creditsSettledTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by provider and status (initiated/completed/failed).",
		},
		[]string{"provider", "status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Total minor-unit value of completed payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	creditsSettledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credits_settled_total",
			Help: "Chapter credits granted through payment settlement.",
		},
	)
)

func IncPayment(provider, status string) {
	paymentsTotal.WithLabelValues(norm(provider), norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func AddCreditsSettled(credits int64) {
	creditsSettledTotal.Add(float64(credits))
}
