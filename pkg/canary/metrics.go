package canary

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles prometheus collectors for deployment lifecycle activity.
type Metrics struct {
	DeploymentsCreated prometheus.Counter
	Promotions         prometheus.Counter
	Rollbacks          prometheus.Counter
	Expirations        prometheus.Counter
	Evaluations        *prometheus.CounterVec
}

// NewMetrics creates the lifecycle collectors and registers them.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		DeploymentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canary_deployments_created_total",
			Help: "Total number of canary deployments created.",
		}),
		Promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canary_promotions_total",
			Help: "Total number of canary deployments promoted to baseline.",
		}),
		Rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canary_rollbacks_total",
			Help: "Total number of canary deployments rolled back.",
		}),
		Expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canary_expirations_total",
			Help: "Total number of canary deployments expired by the sweeper.",
		}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canary_evaluations_total",
			Help: "Total number of quality gate evaluations by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		m.DeploymentsCreated,
		m.Promotions,
		m.Rollbacks,
		m.Expirations,
		m.Evaluations,
	)

	return m
}

// The helpers below tolerate a nil receiver so the manager can run
// without a registry wired in.

func (m *Metrics) evaluation(outcome string) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) created() {
	if m == nil {
		return
	}
	m.DeploymentsCreated.Inc()
}

func (m *Metrics) promoted() {
	if m == nil {
		return
	}
	m.Promotions.Inc()
}

func (m *Metrics) rolledBack() {
	if m == nil {
		return
	}
	m.Rollbacks.Inc()
}

func (m *Metrics) expired() {
	if m == nil {
		return
	}
	m.Expirations.Inc()
}
