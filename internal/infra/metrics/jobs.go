package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		recurringChargesTotal,
		reconciledPaymentsTotal,
		chapterGenerationsTotal,
	)
}

var (
	recurringChargesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recurring_charges_total",
			Help: "Worker-initiated recurring charges by outcome.",
		},
		[]string{"outcome"},
	)

	reconciledPaymentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciled_payments_total",
			Help: "Stale pending payments expired by the reconciler.",
		},
	)

	chapterGenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chapter_generations_total",
			Help: "Chapter generation attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

func IncRecurringCharge(outcome string) {
	recurringChargesTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddRecurringCharges(outcome string, n int) {
	recurringChargesTotal.WithLabelValues(norm(outcome)).Add(float64(n))
}

func AddReconciled(n int) {
	reconciledPaymentsTotal.Add(float64(n))
}

func IncChapterGeneration(outcome string) {
	chapterGenerationsTotal.WithLabelValues(norm(outcome)).Inc()
}
