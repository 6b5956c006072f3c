package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the cross-cutting Prometheus metrics. Feature-specific
// metrics live in their feature packages (gate, allocation).
type Metrics struct {
	RequestsCreated  prometheus.Counter
	DonorsRegistered prometheus.Counter
	DonationsLogged  prometheus.Counter
}

// New creates and registers all cross-cutting Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_requests_created_total",
			Help: "Total number of blood requests created",
		}),
		DonorsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_donors_registered_total",
			Help: "Total number of donors registered",
		}),
		DonationsLogged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_donations_logged_total",
			Help: "Total number of donations logged",
		}),
	}
}

// Handler exposes the default registry for the metrics listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
