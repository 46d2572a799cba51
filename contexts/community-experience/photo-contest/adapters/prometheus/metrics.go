package prometheusadapter

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"photocontest/contexts/community-experience/photo-contest/ports"
)

// Metrics records contest activity on a prometheus registry.
type Metrics struct {
	submissionsAccepted prometheus.Counter
	submissionsRejected *prometheus.CounterVec
	ballotsPublished    *prometheus.CounterVec
	ballotPublishFailed *prometheus.CounterVec
	reactionFetchFailed prometheus.Counter
	roundsArmed         prometheus.Counter
	roundsResolved      *prometheus.CounterVec
	phase               *prometheus.GaugeVec
}

var phases = []string{"idle", "posting", "voting", "tie_break", "closed"}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		submissionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "contest",
			Name:      "submissions_accepted_total",
			Help:      "Photo submissions accepted into the registry.",
		}),
		submissionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contest",
			Name:      "posts_rejected_total",
			Help:      "Posts deleted by the photo channel rules, by reason.",
		}, []string{"reason"}),
		ballotsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contest",
			Name:      "ballots_published_total",
			Help:      "Ballots published, by round.",
		}, []string{"round"}),
		ballotPublishFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contest",
			Name:      "ballot_publish_failures_total",
			Help:      "Ballots that could not be published, by round.",
		}, []string{"round"}),
		reactionFetchFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "contest",
			Name:      "reaction_fetch_failures_total",
			Help:      "Reaction count reads that failed and were counted as zero.",
		}),
		roundsArmed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "contest",
			Name:      "tiebreak_armed_total",
			Help:      "Tie-break rounds armed.",
		}),
		roundsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contest",
			Name:      "tiebreak_resolved_total",
			Help:      "Tie-break rounds resolved, by trigger.",
		}, []string{"trigger"}),
		phase: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "contest",
			Name:      "phase",
			Help:      "1 for the current contest phase, 0 otherwise.",
		}, []string{"phase"}),
	}
}

func (m *Metrics) SubmissionAccepted() {
	m.submissionsAccepted.Inc()
}

func (m *Metrics) SubmissionRejected(reason string) {
	m.submissionsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) BallotsPublished(round int, count int) {
	m.ballotsPublished.WithLabelValues(strconv.Itoa(round)).Add(float64(count))
}

func (m *Metrics) BallotPublishFailed(round int) {
	m.ballotPublishFailed.WithLabelValues(strconv.Itoa(round)).Inc()
}

func (m *Metrics) ReactionFetchFailed() {
	m.reactionFetchFailed.Inc()
}

func (m *Metrics) RoundArmed() {
	m.roundsArmed.Inc()
}

func (m *Metrics) RoundResolved(trigger string) {
	m.roundsResolved.WithLabelValues(trigger).Inc()
}

func (m *Metrics) PhaseChanged(phase string) {
	for _, item := range phases {
		value := 0.0
		if item == phase {
			value = 1
		}
		m.phase.WithLabelValues(item).Set(value)
	}
}

var _ ports.Metrics = (*Metrics)(nil)
