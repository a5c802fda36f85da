package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway callback metrics
	callbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_callbacks_total",
		Help: "Total gateway callbacks processed",
	}, []string{
		"outcome",  // success, open, fail, notification
		"decision", // confirm, cancel, fail, no_result
		"result",   // ok, rejected, not_found, transient, error
	})

	callbackProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "gateway_callback_duration_seconds",
		Help: "Time to reconcile one gateway callback",
		// Lock waits dominate under concurrent notifications
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{
		"outcome",
	})

	callbackFormsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_callback_forms_total",
		Help: "Hosted payment form wrapper requests",
	}, []string{
		"result", // rendered, rejected, not_found, error
	})

	paymentRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_requests_total",
		Help: "Payment requests created at the gateway",
	}, []string{
		"currency",
		"status", // created, rejected, failed
	})

	gatewayBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_circuit_breaker_state",
		Help: "Gateway API circuit breaker state (1 for the current state)",
	}, []string{
		"state",
	})
)

// RecordCallback records one reconciled callback
func RecordCallback(outcome, decision, result string, duration float64) {
	callbacksTotal.WithLabelValues(outcome, decision, result).Inc()
	callbackProcessingDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordCallbackForm records a payment form wrapper request
func RecordCallbackForm(result string) {
	callbackFormsTotal.WithLabelValues(result).Inc()
}

// RecordPaymentRequest records a payment request creation attempt
func RecordPaymentRequest(currency, status string) {
	paymentRequestsTotal.WithLabelValues(currency, status).Inc()
}

// SetGatewayBreakerState marks state as the current breaker state
func SetGatewayBreakerState(state string, all ...string) {
	for _, s := range all {
		gatewayBreakerState.WithLabelValues(s).Set(0)
	}
	gatewayBreakerState.WithLabelValues(state).Set(1)
}
