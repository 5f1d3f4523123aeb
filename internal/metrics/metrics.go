// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes Prometheus counters for the journey, the points
// ledger and the community directory.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/research-journey/internal/journey"
)

const namespace = "research_journey"

// Metrics implements ledger.Recorder and directory.Recorder and observes
// journey events.
type Metrics struct {
	PhaseTransitions  *prometheus.CounterVec
	TopicsConfirmed   prometheus.Counter
	ResearchCompleted prometheus.Counter
	PointsAwardedSum  prometheus.Counter
	Redemptions       *prometheus.CounterVec
	BackendFailures   *prometheus.CounterVec
	DriftCorrections  prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PhaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Projects that entered a phase, by phase entered.",
		}, []string{"phase"}),
		TopicsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topics_confirmed_total",
			Help:      "Research topics confirmed.",
		}),
		ResearchCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_completed_total",
			Help:      "Projects that completed the evaluation phase.",
		}),
		PointsAwardedSum: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Points awarded across all users.",
		}),
		Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reward_redemptions_total",
			Help:      "Reward redemptions by outcome.",
		}, []string{"outcome"}),
		BackendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_backend_failures_total",
			Help:      "Failed or panicked community platform searches, by backend.",
		}, []string{"backend"}),
		DriftCorrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_drift_corrections_total",
			Help:      "Point totals repaired by reconciliation.",
		}),
	}
	reg.MustRegister(
		m.PhaseTransitions,
		m.TopicsConfirmed,
		m.ResearchCompleted,
		m.PointsAwardedSum,
		m.Redemptions,
		m.BackendFailures,
		m.DriftCorrections,
	)
	return m
}

func (m *Metrics) PointsAwarded(amount int) { m.PointsAwardedSum.Add(float64(amount)) }
func (m *Metrics) RewardRedeemed()          { m.Redemptions.WithLabelValues("redeemed").Inc() }
func (m *Metrics) RedemptionRefused()       { m.Redemptions.WithLabelValues("refused").Inc() }
func (m *Metrics) DriftCorrected()          { m.DriftCorrections.Inc() }

// BackendFailed counts a directory backend failure.
func (m *Metrics) BackendFailed(backend string) { m.BackendFailures.WithLabelValues(backend).Inc() }

// Observe is a journey.Observer.
func (m *Metrics) Observe(e journey.Event) {
	switch e.Kind {
	case journey.EventPhaseChanged:
		m.PhaseTransitions.WithLabelValues(string(e.Phase)).Inc()
	case journey.EventTopicConfirmed:
		m.TopicsConfirmed.Inc()
	case journey.EventResearchCompleted:
		m.ResearchCompleted.Inc()
	}
}
