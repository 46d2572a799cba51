package application

import (
	"log/slog"

	"photocontest/contexts/community-experience/photo-contest/ports"
)

const ModuleName = "community-experience/photo-contest"

// ResolveLogger guarantees a non-nil logger for application/worker code paths.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// ResolveMetrics falls back to a no-op recorder when metrics are disabled.
func ResolveMetrics(metrics ports.Metrics) ports.Metrics {
	if metrics == nil {
		return noopMetrics{}
	}
	return metrics
}

type noopMetrics struct{}

func (noopMetrics) SubmissionAccepted() {}
func (noopMetrics) SubmissionRejected(string) {}
func (noopMetrics) BallotsPublished(int, int) {}
func (noopMetrics) BallotPublishFailed(int) {}
func (noopMetrics) ReactionFetchFailed() {}
func (noopMetrics) RoundArmed() {}
func (noopMetrics) RoundResolved(string) {}
func (noopMetrics) PhaseChanged(string) {}
