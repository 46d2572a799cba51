package prometheusadapter

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordContestActivity(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.SubmissionAccepted()
	metrics.SubmissionRejected("duplicate_slot")
	metrics.SubmissionRejected("duplicate_slot")
	metrics.BallotsPublished(1, 4)
	metrics.BallotPublishFailed(2)
	metrics.RoundResolved("manual")
	metrics.PhaseChanged("voting")
	metrics.PhaseChanged("tie_break")

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.submissionsAccepted))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.submissionsRejected.WithLabelValues("duplicate_slot")))
	assert.Equal(t, float64(4), testutil.ToFloat64(metrics.ballotsPublished.WithLabelValues("1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ballotPublishFailed.WithLabelValues("2")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.roundsResolved.WithLabelValues("manual")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.phase.WithLabelValues("voting")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.phase.WithLabelValues("tie_break")))
}
