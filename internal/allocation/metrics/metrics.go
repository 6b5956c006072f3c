package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the allocation engine.
type Metrics struct {
	Proposals *prometheus.CounterVec
	Commits   *prometheus.CounterVec
}

// New creates and registers the allocation metrics.
func New() *Metrics {
	return &Metrics{
		Proposals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_allocation_proposals_total",
			Help: "Allocation proposals by outcome",
		}, []string{"outcome"}),
		Commits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_allocation_commits_total",
			Help: "Allocation commits by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveProposal(outcome string) {
	if m != nil {
		m.Proposals.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveCommit(outcome string) {
	if m != nil {
		m.Commits.WithLabelValues(outcome).Inc()
	}
}
