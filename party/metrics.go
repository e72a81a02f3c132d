package party

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "knockout"

type metrics struct {
	registrations prometheus.Counter
	ballots       prometheus.Counter
	votes         prometheus.Counter
	rounds        prometheus.Counter
	eliminations  prometheus.Counter
	candidates    prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "registrations_total",
			Help:      "Number of identities that completed registration",
		}),
		ballots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ballots_total",
			Help:      "Number of accepted ballots",
		}),
		votes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "votes_total",
			Help:      "Number of recipient votes applied across all ballots",
		}),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rounds_total",
			Help:      "Number of rounds started",
		}),
		eliminations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "eliminations_total",
			Help:      "Number of candidates observed eliminated",
		}),
		candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "ranked_candidates",
			Help:      "Number of candidates in the cumulative tally",
		}),
	}
	reg.MustRegister(
		m.registrations,
		m.ballots,
		m.votes,
		m.rounds,
		m.eliminations,
		m.candidates,
	)
	return m
}
