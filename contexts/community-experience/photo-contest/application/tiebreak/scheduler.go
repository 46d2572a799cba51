package tiebreak

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	application "photocontest/contexts/community-experience/photo-contest/application"
	"photocontest/contexts/community-experience/photo-contest/application/ballots"
	"photocontest/contexts/community-experience/photo-contest/application/tally"
	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	domainerrors "photocontest/contexts/community-experience/photo-contest/domain/errors"
	"photocontest/contexts/community-experience/photo-contest/ports"
)

type State string

// LockedBadge is appended to the title of round-one ballots once round two
// takes over.
const LockedBadge = "🔒 locked"

const (
	StateInactive  State = "inactive"
	StateArmed     State = "armed"
	StateResolving State = "resolving"
)

// Resolution is the outcome of a finished round-two vote. Leaders holding
// more than one ballot are final ex-aequo winners.
type Resolution struct {
	Round    int
	Trigger  entities.ResolutionTrigger
	Result   entities.TallyResult
	Leaders  []entities.Ballot
	TieFinal bool
	NoVotes  bool
}

type Config struct {
	Projection *ballots.Projection
	Tally      tally.Engine
	Platform   ports.Platform
	Timers     ports.TimerFactory
	Clock      ports.Clock
	OnResolved func(ctx context.Context, resolution Resolution)
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

// Scheduler owns the round-two lifecycle: arming a tie-break vote, the
// single deferred resolution and the manual early close. Every resolution
// path funnels through one guard so a round is announced at most once.
type Scheduler struct {
	mu sync.Mutex

	state    State
	arming   bool
	epoch    uint64
	timer    ports.Timer
	deadline time.Time
	live     []entities.Ballot

	projection *ballots.Projection
	tally      tally.Engine
	platform   ports.Platform
	timers     ports.TimerFactory
	clock      ports.Clock
	onResolved func(context.Context, Resolution)
	metrics    ports.Metrics
	logger     *slog.Logger
}

func New(cfg Config) *Scheduler {
	return &Scheduler{
		state:      StateInactive,
		projection: cfg.Projection,
		tally:      cfg.Tally,
		platform:   cfg.Platform,
		timers:     cfg.Timers,
		clock:      cfg.Clock,
		onResolved: cfg.OnResolved,
		metrics:    application.ResolveMetrics(cfg.Metrics),
		logger:     application.ResolveLogger(cfg.Logger),
	}
}

// Arm locks the round-one ballots, republishes the tied leaders as round-two
// ballots and schedules resolution after d. Finalists are rebuilt from the
// leaders' ballots, so a deleted original post does not drop a finalist.
// Leaders whose ballot cannot be republished are left out; if none can, the
// scheduler stays inactive.
func (s *Scheduler) Arm(
	ctx context.Context,
	destination string,
	leaders []entities.Ballot,
	d time.Duration,
) ([]entities.Ballot, error) {
	if d <= 0 {
		return nil, domainerrors.ErrInvalidTieDuration
	}

	s.mu.Lock()
	if s.state != StateInactive {
		s.mu.Unlock()
		return nil, domainerrors.ErrAlreadyArmed
	}
	s.state = StateArmed
	s.arming = true
	s.epoch++
	epoch := s.epoch
	s.live = nil
	s.deadline = time.Time{}
	s.mu.Unlock()

	s.lockRoundOne(ctx)

	finalists := make([]entities.Submission, 0, len(leaders))
	for _, leader := range leaders {
		submission, ok := s.projection.SubmissionFor(leader.BallotID)
		if !ok {
			s.logger.Warn("tied ballot unknown, left out of round two",
				"event", "contest_tiebreak_finalist_missing",
				"module", application.ModuleName,
				"layer", "application",
				"ballot_id", leader.BallotID,
				"submission_id", leader.SubmissionID,
			)
			continue
		}
		finalists = append(finalists, submission)
	}

	published, err := s.projection.PublishRound(ctx, entities.RoundTwo, destination, finalists)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil, domainerrors.ErrStaleRound
	}
	s.arming = false
	if err != nil {
		s.state = StateInactive
		return nil, err
	}
	if len(published) == 0 {
		s.state = StateInactive
		return nil, fmt.Errorf("%w: no round-two ballot could be published", domainerrors.ErrExternalCapability)
	}
	if len(published) < len(leaders) {
		s.logger.Warn("round two armed with fewer finalists than leaders",
			"event", "contest_tiebreak_degraded",
			"module", application.ModuleName,
			"layer", "application",
			"leaders", len(leaders),
			"published", len(published),
		)
	}

	s.live = published
	s.deadline = s.now().Add(d)
	fireCtx := context.WithoutCancel(ctx)
	s.timer = s.timers.AfterFunc(d, func() {
		s.fire(fireCtx, epoch)
	})
	s.metrics.RoundArmed()
	s.logger.Info("tie-break round armed",
		"event", "contest_tiebreak_armed",
		"module", application.ModuleName,
		"layer", "application",
		"finalists", len(published),
		"deadline", s.deadline,
	)
	return append([]entities.Ballot(nil), published...), nil
}

// ResolveNow closes round two immediately. Only the first of several
// concurrent callers proceeds; the others get ErrAlreadyArmed.
func (s *Scheduler) ResolveNow(ctx context.Context, trigger entities.ResolutionTrigger) (Resolution, error) {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()
	return s.resolve(ctx, trigger, epoch)
}

func (s *Scheduler) fire(ctx context.Context, epoch uint64) {
	if _, err := s.resolve(ctx, entities.TriggerDeadline, epoch); err != nil {
		s.logger.Debug("tie-break timer ignored",
			"event", "contest_tiebreak_timer_ignored",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
	}
}

func (s *Scheduler) resolve(ctx context.Context, trigger entities.ResolutionTrigger, epoch uint64) (Resolution, error) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return Resolution{}, domainerrors.ErrStaleRound
	}
	switch {
	case s.state == StateInactive:
		s.mu.Unlock()
		return Resolution{}, domainerrors.ErrNotArmed
	case s.state == StateResolving || s.arming:
		s.mu.Unlock()
		return Resolution{}, domainerrors.ErrAlreadyArmed
	}
	s.state = StateResolving
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	live := s.live
	s.mu.Unlock()

	result := s.tally.Tally(ctx, live)
	resolution := Resolution{
		Round:    entities.RoundTwo,
		Trigger:  trigger,
		Result:   result,
		Leaders:  result.Leaders,
		TieFinal: len(result.Leaders) > 1,
		NoVotes:  len(result.Leaders) == 0,
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return Resolution{}, domainerrors.ErrStaleRound
	}
	s.state = StateInactive
	s.live = nil
	s.deadline = time.Time{}
	s.mu.Unlock()

	s.projection.InvalidatePriorRound(entities.RoundTwo)
	s.metrics.RoundResolved(string(trigger))
	s.logger.Info("tie-break round resolved",
		"event", "contest_tiebreak_resolved",
		"module", application.ModuleName,
		"layer", "application",
		"trigger", string(trigger),
		"leaders", len(resolution.Leaders),
		"max_votes", result.MaxVotes,
	)
	if s.onResolved != nil {
		s.onResolved(ctx, resolution)
	}
	return resolution, nil
}

// Abort drops any armed round without announcing it. Pending timers and
// in-flight arming or resolution become no-ops.
func (s *Scheduler) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.state = StateInactive
	s.arming = false
	s.live = nil
	s.deadline = time.Time{}
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Deadline reports the round-two deadline while one is armed.
func (s *Scheduler) Deadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateInactive || s.deadline.IsZero() {
		return time.Time{}, false
	}
	return s.deadline, true
}

func (s *Scheduler) lockRoundOne(ctx context.Context) {
	for _, ballot := range s.projection.InvalidatePriorRound(entities.RoundOne) {
		if err := s.platform.ClearReactions(ctx, ballot.BallotID); err != nil {
			s.logWarn("round-one reactions not cleared", "contest_tiebreak_clear_failed", ballot, err)
		}
		content, ok := s.projection.Surface(ballot.BallotID)
		if !ok {
			content = ports.SurfaceContent{Title: fmt.Sprintf("Photo #%d", ballot.Index)}
		}
		content.Title += " " + LockedBadge
		if err := s.platform.EditSurface(ctx, ballot.BallotID, content); err != nil {
			s.logWarn("round-one ballot not marked locked", "contest_tiebreak_lock_failed", ballot, err)
		}
	}
}

func (s *Scheduler) logWarn(msg string, event string, ballot entities.Ballot, err error) {
	s.logger.Warn(msg,
		"event", event,
		"module", application.ModuleName,
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"error", err.Error(),
	)
}

func (s *Scheduler) now() time.Time {
	if s.clock != nil {
		return s.clock.Now().UTC()
	}
	return time.Now().UTC()
}
