package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the claim lifecycle.
type Metrics struct {
	ClaimsCreated     prometheus.Counter
	ClaimsDecided     *prometheus.CounterVec
	DecisionConflicts prometheus.Counter
	CryptoDuration    *prometheus.HistogramVec
}

// New registers claim metrics with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers claim metrics with reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ClaimsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "attesto_claims_created_total",
			Help: "Total number of claims created",
		}),
		ClaimsDecided: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attesto_claims_decided_total",
			Help: "Total number of claim decisions by outcome and career type",
		}, []string{"status", "career_type"}),
		DecisionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "attesto_claim_decision_conflicts_total",
			Help: "Total number of decisions that lost a concurrent race",
		}),
		CryptoDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attesto_credential_crypto_duration_seconds",
			Help:    "Time spent signing and encrypting credentials",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncClaimsCreated() {
	m.ClaimsCreated.Inc()
}

func (m *Metrics) IncClaimsDecided(status, careerType string) {
	m.ClaimsDecided.WithLabelValues(status, careerType).Inc()
}

func (m *Metrics) IncDecisionConflicts() {
	m.DecisionConflicts.Inc()
}

// ObserveCrypto records how long a sign or encrypt step took.
func (m *Metrics) ObserveCrypto(operation string, d time.Duration) {
	m.CryptoDuration.WithLabelValues(operation).Observe(d.Seconds())
}
