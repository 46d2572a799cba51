package tally

import (
	"context"
	"log/slog"

	application "photocontest/contexts/community-experience/photo-contest/application"
	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	"photocontest/contexts/community-experience/photo-contest/ports"
)

// Engine reads the platform's de-duplicated reaction counts. It is stateless
// and keeps no vote history of its own.
type Engine struct {
	Reactions ports.ReactionReader
	Marker    string
	Metrics   ports.Metrics
	Logger    *slog.Logger
}

// Tally fetches one count per ballot. A ballot whose count cannot be read is
// counted as zero so that one failing surface never blocks a round.
func (e Engine) Tally(ctx context.Context, ballots []entities.Ballot) entities.TallyResult {
	logger := application.ResolveLogger(e.Logger)
	metrics := application.ResolveMetrics(e.Metrics)

	result := entities.TallyResult{
		Counts: make([]entities.BallotCount, 0, len(ballots)),
	}
	for _, ballot := range ballots {
		count, err := e.Reactions.FetchReactionCount(ctx, ballot.BallotID, e.Marker)
		if err != nil {
			metrics.ReactionFetchFailed()
			logger.Warn("reaction count unavailable, counted as zero",
				"event", "contest_tally_fetch_failed",
				"module", application.ModuleName,
				"layer", "application",
				"ballot_id", ballot.BallotID,
				"round", ballot.Round,
				"error", err.Error(),
			)
			count = 0
		}
		if count < 0 {
			count = 0
		}
		result.Counts = append(result.Counts, entities.BallotCount{Ballot: ballot, Votes: count})
		if count > result.MaxVotes {
			result.MaxVotes = count
		}
	}

	if result.MaxVotes == 0 {
		return result
	}
	for _, item := range result.Counts {
		if item.Votes == result.MaxVotes {
			result.Leaders = append(result.Leaders, item.Ballot)
		}
	}
	return result
}
