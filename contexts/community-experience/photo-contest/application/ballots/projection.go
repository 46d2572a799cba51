package ballots

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	application "photocontest/contexts/community-experience/photo-contest/application"
	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	domainerrors "photocontest/contexts/community-experience/photo-contest/domain/errors"
	"photocontest/contexts/community-experience/photo-contest/ports"
)

// RenderFunc builds the surface for the index-th ballot (1-based) of a round.
type RenderFunc func(round int, index int, submission entities.Submission) ports.SurfaceContent

type Config struct {
	Publisher ports.SurfacePublisher
	Clock     ports.Clock
	Marker    string
	Render    RenderFunc
	Metrics   ports.Metrics
	Logger    *slog.Logger
}

// Projection maps accepted submissions to per-round ballots and tracks which
// ballots currently accept votes. At most one round is eligible at a time.
type Projection struct {
	mu sync.RWMutex

	ballots     map[string]entities.Ballot
	submissions map[string]entities.Submission
	rounds      map[int][]string
	epoch       uint64

	publisher ports.SurfacePublisher
	clock     ports.Clock
	marker    string
	render    RenderFunc
	metrics   ports.Metrics
	logger    *slog.Logger
}

func New(cfg Config) *Projection {
	render := cfg.Render
	if render == nil {
		render = defaultRender
	}
	return &Projection{
		ballots:     make(map[string]entities.Ballot),
		submissions: make(map[string]entities.Submission),
		rounds:      make(map[int][]string),
		publisher:   cfg.Publisher,
		clock:       cfg.Clock,
		marker:      cfg.Marker,
		render:      render,
		metrics:     application.ResolveMetrics(cfg.Metrics),
		logger:      application.ResolveLogger(cfg.Logger),
	}
}

// PublishRound mints one ballot per submission, in input order, and makes
// them the only eligible ballots. Each ballot keeps a copy of the submission
// it was minted from, so later rounds do not depend on the original post. A submission whose surface cannot be
// published is skipped; the returned slice only holds ballots that exist on
// the platform. If Reset runs while surfaces are being published, nothing is
// recorded and ErrStaleRound is returned.
func (p *Projection) PublishRound(
	ctx context.Context,
	round int,
	destination string,
	submissions []entities.Submission,
) ([]entities.Ballot, error) {
	p.mu.RLock()
	epoch := p.epoch
	p.mu.RUnlock()

	minted := make([]entities.Ballot, 0, len(submissions))
	sources := make([]entities.Submission, 0, len(submissions))
	for _, submission := range submissions {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: publish round %d: %v", domainerrors.ErrStaleRound, round, err)
		}
		index := len(minted) + 1
		content := p.render(round, index, submission)
		content.Destination = destination

		surfaceID, err := p.publisher.PublishSurface(ctx, content)
		if err != nil || strings.TrimSpace(surfaceID) == "" {
			p.metrics.BallotPublishFailed(round)
			p.logger.Warn("ballot publish failed, submission skipped",
				"event", "contest_ballot_publish_failed",
				"module", application.ModuleName,
				"layer", "application",
				"round", round,
				"submission_id", submission.SubmissionID,
				"error", errString(err),
			)
			continue
		}
		if p.marker != "" {
			if err := p.publisher.AddMarker(ctx, surfaceID, p.marker); err != nil {
				p.logger.Warn("ballot seed marker failed",
					"event", "contest_ballot_marker_failed",
					"module", application.ModuleName,
					"layer", "application",
					"round", round,
					"ballot_id", surfaceID,
					"error", err.Error(),
				)
			}
		}
		minted = append(minted, entities.Ballot{
			BallotID:     surfaceID,
			SubmissionID: submission.SubmissionID,
			Round:        round,
			Index:        index,
			Eligible:     true,
			PublishedAt:  p.now(),
		})
		sources = append(sources, submission)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.epoch != epoch {
		p.logger.Warn("ballots discarded after contest reset",
			"event", "contest_ballots_stale",
			"module", application.ModuleName,
			"layer", "application",
			"round", round,
			"minted", len(minted),
		)
		return nil, domainerrors.ErrStaleRound
	}
	for r := range p.rounds {
		if r != round {
			p.invalidateLocked(r)
		}
	}
	for i, ballot := range minted {
		p.ballots[ballot.BallotID] = ballot
		p.submissions[ballot.BallotID] = sources[i]
		p.rounds[round] = append(p.rounds[round], ballot.BallotID)
	}
	p.metrics.BallotsPublished(round, len(minted))
	p.logger.Info("ballot round published",
		"event", "contest_ballot_round_published",
		"module", application.ModuleName,
		"layer", "application",
		"round", round,
		"requested", len(submissions),
		"published", len(minted),
	)
	return append([]entities.Ballot(nil), minted...), nil
}

// InvalidatePriorRound marks every ballot of round ineligible and returns
// the ballots that were still eligible. Ballots are never deleted.
func (p *Projection) InvalidatePriorRound(round int) []entities.Ballot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.invalidateLocked(round)
}

func (p *Projection) invalidateLocked(round int) []entities.Ballot {
	var changed []entities.Ballot
	for _, id := range p.rounds[round] {
		ballot := p.ballots[id]
		if !ballot.Eligible {
			continue
		}
		ballot.Eligible = false
		p.ballots[id] = ballot
		changed = append(changed, ballot)
	}
	return changed
}

func (p *Projection) ResolveOriginal(ballotID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ballot, ok := p.ballots[strings.TrimSpace(ballotID)]
	if !ok {
		return "", false
	}
	return ballot.SubmissionID, true
}

// SubmissionFor returns the submission snapshot a ballot was minted from.
func (p *Projection) SubmissionFor(ballotID string) (entities.Submission, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	submission, ok := p.submissions[strings.TrimSpace(ballotID)]
	return submission, ok
}

// Surface re-renders a ballot's surface from its submission snapshot.
func (p *Projection) Surface(ballotID string) (ports.SurfaceContent, bool) {
	p.mu.RLock()
	ballot, ok := p.ballots[strings.TrimSpace(ballotID)]
	submission := p.submissions[ballot.BallotID]
	p.mu.RUnlock()
	if !ok {
		return ports.SurfaceContent{}, false
	}
	return p.render(ballot.Round, ballot.Index, submission), true
}

func (p *Projection) Lookup(ballotID string) (entities.Ballot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ballot, ok := p.ballots[strings.TrimSpace(ballotID)]
	return ballot, ok
}

func (p *Projection) EligibleBallots(round int) []entities.Ballot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var items []entities.Ballot
	for _, id := range p.rounds[round] {
		if ballot := p.ballots[id]; ballot.Eligible {
			items = append(items, ballot)
		}
	}
	return items
}

// Ballots returns every ballot minted for round, eligible or not.
func (p *Projection) Ballots(round int) []entities.Ballot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	items := make([]entities.Ballot, 0, len(p.rounds[round]))
	for _, id := range p.rounds[round] {
		items = append(items, p.ballots[id])
	}
	return items
}

// Reset drops all ballots. Publishing calls that started before the reset
// will not record their ballots.
func (p *Projection) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.epoch++
	p.ballots = make(map[string]entities.Ballot)
	p.submissions = make(map[string]entities.Submission)
	p.rounds = make(map[int][]string)
}

func (p *Projection) now() time.Time {
	if p.clock != nil {
		return p.clock.Now().UTC()
	}
	return time.Now().UTC()
}

func defaultRender(round int, index int, submission entities.Submission) ports.SurfaceContent {
	title := fmt.Sprintf("Photo #%d", index)
	if round > entities.RoundOne {
		title = fmt.Sprintf("Finalist #%d - Round %d", index, round)
	}
	return ports.SurfaceContent{
		Title:    title,
		MediaURL: submission.Media.URL,
		Footer:   submission.OwnerID,
	}
}

func errString(err error) string {
	if err == nil {
		return "empty surface id"
	}
	return err.Error()
}
