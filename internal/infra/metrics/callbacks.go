package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		callbacksTotal,
		callbackSignatureFailures,
	)
}

var (
	callbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Gateway callbacks by provider, phase (check/result/webhook) and answer.",
		},
		[]string{"provider", "phase", "answer"},
	)

	callbackSignatureFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callback_signature_failures_total",
			Help: "Callbacks dropped for a bad or missing signature.",
		},
		[]string{"provider"},
	)
)

func IncCallback(provider, phase, answer string) {
	callbacksTotal.WithLabelValues(norm(provider), norm(phase), norm(answer)).Inc()
}

func IncSignatureFailure(provider string) {
	callbackSignatureFailures.WithLabelValues(norm(provider)).Inc()
}
