package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the verification gate.
type Metrics struct {
	CodesIssued      prometheus.Counter
	DeliveryFailures prometheus.Counter
	Confirmations    *prometheus.CounterVec
}

// New creates and registers the gate metrics.
func New() *Metrics {
	return &Metrics{
		CodesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_gate_codes_issued_total",
			Help: "Total number of one-time codes issued",
		}),
		DeliveryFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_gate_delivery_failures_total",
			Help: "Total number of code deliveries the transport reported as failed",
		}),
		Confirmations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_gate_confirmations_total",
			Help: "Code confirmation attempts by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveConfirmation(outcome string) {
	if m != nil {
		m.Confirmations.WithLabelValues(outcome).Inc()
	}
}
