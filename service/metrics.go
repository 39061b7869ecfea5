package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "ballotbox"

// Cast outcomes used as the "outcome" label.
const (
	outcomeAccepted    = "accepted"
	outcomeAlreadyVote = "already_voted"
	outcomeNoKeys      = "keys_not_issued"
	outcomeMismatch    = "key_mismatch"
	outcomeInvalid     = "invalid_ballot"
	outcomeClosed      = "voting_closed"
	outcomeError       = "error"
)

// Metrics tracks enrolment, key issuance, casting and counting.
type Metrics struct {
	enrolments   prometheus.Counter
	keysIssued   prometheus.Counter
	casts        *prometheus.CounterVec
	castDuration prometheus.Histogram
	tallies      prometheus.Counter
	tallyBallots prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		enrolments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "enrolments_total",
			Help:      "Accounts enrolled.",
		}),
		keysIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "keys_issued_total",
			Help:      "Voter key pairs issued, including re-issues.",
		}),
		casts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "casts_total",
			Help:      "Cast attempts by outcome.",
		}, []string{"outcome"}),
		castDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cast_duration_seconds",
			Help:      "Time spent sealing and committing accepted ballots.",
			Buckets:   prometheus.DefBuckets,
		}),
		tallies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tallies_total",
			Help:      "Tally runs.",
		}),
		tallyBallots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "tallied_ballots",
			Help:      "Ballots counted by the latest tally.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.enrolments, m.keysIssued, m.casts, m.castDuration, m.tallies, m.tallyBallots)
	}
	return m
}

func (m *Metrics) RecordEnrolment() {
	m.enrolments.Inc()
}

func (m *Metrics) RecordKeysIssued() {
	m.keysIssued.Inc()
}

func (m *Metrics) RecordCast(outcome string, duration time.Duration) {
	m.casts.WithLabelValues(outcome).Inc()
	if outcome == outcomeAccepted {
		m.castDuration.Observe(duration.Seconds())
	}
}

func (m *Metrics) RecordTally(ballots int) {
	m.tallies.Inc()
	m.tallyBallots.Set(float64(ballots))
}
