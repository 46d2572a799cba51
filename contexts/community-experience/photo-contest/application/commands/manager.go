package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	application "photocontest/contexts/community-experience/photo-contest/application"
	"photocontest/contexts/community-experience/photo-contest/application/ballots"
	"photocontest/contexts/community-experience/photo-contest/application/registry"
	"photocontest/contexts/community-experience/photo-contest/application/tally"
	"photocontest/contexts/community-experience/photo-contest/application/tiebreak"
	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	domainerrors "photocontest/contexts/community-experience/photo-contest/domain/errors"
	"photocontest/contexts/community-experience/photo-contest/ports"
)

const (
	DefaultTieMinutes = 6 * 60
	MaxTieMinutes     = 24 * 60
)

// Actor is the caller of a command. Moderator capability is resolved by the
// platform bridge before the command reaches the manager.
type Actor struct {
	ID        string
	Moderator bool
}

type Settings struct {
	GuildID           string
	PhotoChannelID    string
	ResultChannelID   string
	VoteMarker        string
	RoleMentions      []string
	DefaultTieMinutes int
	MaxTieMinutes     int
}

type Config struct {
	Settings Settings
	Platform ports.Platform
	Clock    ports.Clock
	Timers   ports.TimerFactory
	IDGen    ports.IDGenerator
	Events   ports.EventPublisher
	Metrics  ports.Metrics
	Logger   *slog.Logger
}

// Manager is the contest state machine. It owns the registry, the ballot
// projection and the tie-break scheduler, and gates every command and
// platform event on the current phase.
type Manager struct {
	mu sync.Mutex

	state      entities.ContestState
	generation uint64
	closing    bool

	settings   Settings
	registry   *registry.Registry
	projection *ballots.Projection
	tally      tally.Engine
	scheduler  *tiebreak.Scheduler

	platform ports.Platform
	clock    ports.Clock
	idGen    ports.IDGenerator
	events   ports.EventPublisher
	metrics  ports.Metrics
	logger   *slog.Logger
}

func NewManager(cfg Config) *Manager {
	logger := application.ResolveLogger(cfg.Logger)
	metrics := application.ResolveMetrics(cfg.Metrics)
	settings := cfg.Settings
	if settings.DefaultTieMinutes <= 0 {
		settings.DefaultTieMinutes = DefaultTieMinutes
	}
	if settings.MaxTieMinutes <= 0 {
		settings.MaxTieMinutes = MaxTieMinutes
	}

	m := &Manager{
		state:    entities.ContestState{Phase: entities.PhaseIdle},
		settings: settings,
		platform: cfg.Platform,
		clock:    cfg.Clock,
		idGen:    cfg.IDGen,
		events:   cfg.Events,
		metrics:  metrics,
		logger:   logger,
	}
	m.registry = registry.New(logger)
	m.projection = ballots.New(ballots.Config{
		Publisher: cfg.Platform,
		Clock:     cfg.Clock,
		Marker:    settings.VoteMarker,
		Render:    m.renderBallot,
		Metrics:   metrics,
		Logger:    logger,
	})
	m.tally = tally.Engine{
		Reactions: cfg.Platform,
		Marker:    settings.VoteMarker,
		Metrics:   metrics,
		Logger:    logger,
	}
	m.scheduler = tiebreak.New(tiebreak.Config{
		Projection: m.projection,
		Tally:      m.tally,
		Platform:   cfg.Platform,
		Timers:     cfg.Timers,
		Clock:      cfg.Clock,
		OnResolved: m.onTieBreakResolved,
		Metrics:    metrics,
		Logger:     logger,
	})
	return m
}

// StartPosting resets every piece of contest state and opens submissions.
// It is allowed from any phase; an armed tie-break is dropped unannounced.
func (m *Manager) StartPosting(ctx context.Context, actor Actor) (entities.ContestState, error) {
	if err := requireModerator(actor); err != nil {
		return entities.ContestState{}, err
	}
	runID, err := m.idGen.NewID(ctx)
	if err != nil {
		return entities.ContestState{}, fmt.Errorf("%w: run id: %v", domainerrors.ErrInternal, err)
	}

	m.mu.Lock()
	m.generation++
	m.closing = false
	m.scheduler.Abort()
	m.registry.ResetAll()
	m.projection.Reset()
	now := m.now()
	m.state = entities.ContestState{
		RunID:            runID,
		Phase:            entities.PhasePosting,
		PostingStartedAt: &now,
	}
	state := m.state
	m.mu.Unlock()

	m.logger.Info("contest posting started",
		"event", "contest_posting_started",
		"module", application.ModuleName,
		"layer", "application",
		"run_id", runID,
		"actor_id", actor.ID,
	)
	m.phaseChanged(ctx, state)
	m.notice(ctx, m.settings.PhotoChannelID, postingOpenedNotice())
	return state, nil
}

type OpenVotesResult struct {
	GalleryID string
	Ballots   []entities.Ballot
}

// OpenVotes closes submissions and publishes one round-one ballot per live
// submission, in acceptance order.
func (m *Manager) OpenVotes(ctx context.Context, actor Actor) (OpenVotesResult, error) {
	if err := requireModerator(actor); err != nil {
		return OpenVotesResult{}, err
	}

	m.mu.Lock()
	switch m.state.Phase {
	case entities.PhasePosting:
	case entities.PhaseTieBreak:
		m.mu.Unlock()
		return OpenVotesResult{}, fmt.Errorf("%w: round two already active", domainerrors.ErrInvalidPhaseTransition)
	case entities.PhaseVoting:
		m.mu.Unlock()
		return OpenVotesResult{}, fmt.Errorf("%w: votes already open", domainerrors.ErrInvalidPhaseTransition)
	default:
		m.mu.Unlock()
		return OpenVotesResult{}, fmt.Errorf("%w: posting not started", domainerrors.ErrInvalidPhaseTransition)
	}
	submissions := m.registry.Live()
	if len(submissions) == 0 {
		m.mu.Unlock()
		return OpenVotesResult{}, domainerrors.ErrNoQualifyingSubmissions
	}
	m.state.Phase = entities.PhaseVoting
	m.state.ActiveRound = entities.RoundOne
	generation := m.generation
	state := m.state
	m.mu.Unlock()

	m.phaseChanged(ctx, state)

	galleryID, err := m.platform.CreateThread(ctx, m.settings.PhotoChannelID, galleryTitle(entities.RoundOne, m.now()))
	if err != nil || strings.TrimSpace(galleryID) == "" {
		m.logger.Warn("gallery thread unavailable, using photo channel",
			"event", "contest_gallery_thread_failed",
			"module", application.ModuleName,
			"layer", "application",
			"run_id", state.RunID,
			"error", errString(err),
		)
		galleryID = m.settings.PhotoChannelID
	}
	if !m.current(generation) {
		return OpenVotesResult{}, domainerrors.ErrStaleRound
	}

	m.notice(ctx, galleryID, galleryHeader(m.settings.RoleMentions, m.settings.VoteMarker))
	if galleryID != m.settings.PhotoChannelID {
		m.notice(ctx, m.settings.PhotoChannelID, galleryOpenedNotice(m.settings.RoleMentions, galleryID))
	}

	published, err := m.projection.PublishRound(ctx, entities.RoundOne, galleryID, submissions)

	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		return OpenVotesResult{}, domainerrors.ErrStaleRound
	}
	if err != nil || len(published) == 0 {
		m.state.Phase = entities.PhasePosting
		m.state.ActiveRound = 0
		reverted := m.state
		m.mu.Unlock()
		m.phaseChanged(ctx, reverted)
		if err == nil {
			err = fmt.Errorf("%w: no ballot could be published", domainerrors.ErrExternalCapability)
		}
		m.logger.Error("vote opening reverted",
			"event", "contest_open_votes_reverted",
			"module", application.ModuleName,
			"layer", "application",
			"run_id", state.RunID,
			"error", err.Error(),
		)
		return OpenVotesResult{}, err
	}
	m.state.GalleryID = galleryID
	m.mu.Unlock()

	m.logger.Info("contest votes opened",
		"event", "contest_votes_opened",
		"module", application.ModuleName,
		"layer", "application",
		"run_id", state.RunID,
		"gallery_id", galleryID,
		"ballots", len(published),
		"actor_id", actor.ID,
	)
	return OpenVotesResult{GalleryID: galleryID, Ballots: published}, nil
}

type CloseOutcome string

const (
	OutcomeWinner        CloseOutcome = "winner"
	OutcomeNoVotes       CloseOutcome = "no_votes"
	OutcomeTieBreakArmed CloseOutcome = "tie_break_armed"
	OutcomeTieFinal      CloseOutcome = "tie_final"
	OutcomeResolved      CloseOutcome = "resolved"
)

type CloseVotesResult struct {
	Outcome      CloseOutcome
	Announcement *entities.Announcement
	Finalists    []entities.Ballot
	Deadline     *time.Time
}

// CloseVotes ends round one, or forces round two to resolve when a tie-break
// is running. tieMinutes == 0 selects the configured default.
func (m *Manager) CloseVotes(ctx context.Context, actor Actor, tieMinutes int) (CloseVotesResult, error) {
	if err := requireModerator(actor); err != nil {
		return CloseVotesResult{}, err
	}
	if tieMinutes == 0 {
		tieMinutes = m.settings.DefaultTieMinutes
	}
	if tieMinutes < 1 || tieMinutes > m.settings.MaxTieMinutes {
		return CloseVotesResult{}, fmt.Errorf("%w: %d minutes, expected 1..%d",
			domainerrors.ErrInvalidTieDuration, tieMinutes, m.settings.MaxTieMinutes)
	}

	m.mu.Lock()
	switch m.state.Phase {
	case entities.PhaseTieBreak:
		m.mu.Unlock()
		return m.closeTieBreak(ctx, actor)
	case entities.PhaseVoting:
	default:
		phase := m.state.Phase
		m.mu.Unlock()
		return CloseVotesResult{}, fmt.Errorf("%w: no vote in progress (phase %s)", domainerrors.ErrInvalidPhaseTransition, phase)
	}
	if m.closing {
		m.mu.Unlock()
		return CloseVotesResult{}, domainerrors.ErrAlreadyArmed
	}
	m.closing = true
	generation := m.generation
	state := m.state
	roundOne := m.projection.EligibleBallots(entities.RoundOne)
	m.mu.Unlock()

	result := m.tally.Tally(ctx, roundOne)

	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		return CloseVotesResult{}, domainerrors.ErrStaleRound
	}
	if len(result.Leaders) <= 1 {
		m.closing = false
		m.state.Phase = entities.PhaseClosed
		closed := m.state
		m.mu.Unlock()

		m.phaseChanged(ctx, closed)
		m.projection.InvalidatePriorRound(entities.RoundOne)
		announcement := m.announce(ctx, state.RunID, entities.RoundOne, entities.TriggerManual, result, false)
		outcome := OutcomeWinner
		if announcement.NoVotes {
			outcome = OutcomeNoVotes
		}
		return CloseVotesResult{Outcome: outcome, Announcement: &announcement}, nil
	}

	m.state.Phase = entities.PhaseTieBreak
	m.state.ActiveRound = entities.RoundTwo
	galleryID := m.state.GalleryID
	tied := m.state
	m.mu.Unlock()
	m.phaseChanged(ctx, tied)

	duration := time.Duration(tieMinutes) * time.Minute
	finalists, err := m.scheduler.Arm(ctx, galleryID, result.Leaders, duration)

	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		return CloseVotesResult{}, domainerrors.ErrStaleRound
	}
	m.closing = false
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyArmed) || errors.Is(err, domainerrors.ErrStaleRound) {
			m.mu.Unlock()
			return CloseVotesResult{}, err
		}
		m.state.Phase = entities.PhaseClosed
		closed := m.state
		m.mu.Unlock()

		m.logger.Warn("tie-break could not be armed, round-one leaders share the win",
			"event", "contest_tiebreak_arm_failed",
			"module", application.ModuleName,
			"layer", "application",
			"run_id", state.RunID,
			"leaders", len(result.Leaders),
			"error", err.Error(),
		)
		m.phaseChanged(ctx, closed)
		announcement := m.announce(ctx, state.RunID, entities.RoundOne, entities.TriggerManual, result, true)
		return CloseVotesResult{Outcome: OutcomeTieFinal, Announcement: &announcement}, nil
	}

	var deadline *time.Time
	if at, ok := m.scheduler.Deadline(); ok && m.state.Phase == entities.PhaseTieBreak {
		deadline = &at
		m.state.RoundDeadline = deadline
	}
	m.mu.Unlock()

	if deadline != nil {
		m.notice(ctx, galleryID, tieBreakNotice(m.settings.RoleMentions, m.settings.VoteMarker, tieMinutes, *deadline))
		if galleryID != m.settings.PhotoChannelID {
			m.notice(ctx, m.settings.PhotoChannelID, tieBreakChannelNotice(m.settings.RoleMentions, galleryID))
		}
	}
	m.logger.Info("round one tied, tie-break armed",
		"event", "contest_round_one_tied",
		"module", application.ModuleName,
		"layer", "application",
		"run_id", state.RunID,
		"finalists", len(finalists),
		"tie_minutes", tieMinutes,
		"actor_id", actor.ID,
	)
	return CloseVotesResult{Outcome: OutcomeTieBreakArmed, Finalists: finalists, Deadline: deadline}, nil
}

func (m *Manager) closeTieBreak(ctx context.Context, actor Actor) (CloseVotesResult, error) {
	resolution, err := m.scheduler.ResolveNow(ctx, entities.TriggerManual)
	if err != nil {
		m.logger.Info("manual tie-break close rejected",
			"event", "contest_tiebreak_close_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"actor_id", actor.ID,
			"error", err.Error(),
		)
		return CloseVotesResult{}, err
	}
	outcome := OutcomeResolved
	switch {
	case resolution.NoVotes:
		outcome = OutcomeNoVotes
	case resolution.TieFinal:
		outcome = OutcomeTieFinal
	case len(resolution.Leaders) == 1:
		outcome = OutcomeWinner
	}
	return CloseVotesResult{Outcome: outcome}, nil
}

// onTieBreakResolved is the single announcement path for round two, whether
// the deadline fired or a moderator closed early.
func (m *Manager) onTieBreakResolved(ctx context.Context, resolution tiebreak.Resolution) {
	m.mu.Lock()
	if m.state.Phase != entities.PhaseTieBreak {
		phase := m.state.Phase
		m.mu.Unlock()
		m.logger.Warn("tie-break resolution outside tie-break phase ignored",
			"event", "contest_tiebreak_resolution_ignored",
			"module", application.ModuleName,
			"layer", "application",
			"phase", string(phase),
		)
		return
	}
	m.state.Phase = entities.PhaseClosed
	m.state.RoundDeadline = nil
	closed := m.state
	m.mu.Unlock()

	m.phaseChanged(ctx, closed)
	m.announce(ctx, closed.RunID, entities.RoundTwo, resolution.Trigger, resolution.Result, resolution.TieFinal)
}

// Status never fails; it is safe to call from any phase.
func (m *Manager) Status(_ context.Context) entities.StatusSnapshot {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	snapshot := entities.StatusSnapshot{
		RunID:           state.RunID,
		Phase:           state.Phase,
		ActiveRound:     state.ActiveRound,
		RoundDeadline:   state.RoundDeadline,
		PostingOpen:     state.PostingOpen(),
		VotesOpen:       state.VotesOpen(),
		TieBreakActive:  m.scheduler.State() != tiebreak.StateInactive,
		Submissions:     m.registry.Count(),
		RoundOneBallots: len(m.projection.Ballots(entities.RoundOne)),
		RoundTwoBallots: len(m.projection.Ballots(entities.RoundTwo)),
		GalleryID:       state.GalleryID,
		ServerTime:      m.now(),
	}
	if deadline, ok := m.scheduler.Deadline(); ok {
		snapshot.RoundDeadline = &deadline
	}
	return snapshot
}

func (m *Manager) State() entities.ContestState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

func (m *Manager) Projection() *ballots.Projection {
	return m.projection
}

func (m *Manager) Scheduler() *tiebreak.Scheduler {
	return m.scheduler
}

func (m *Manager) current(generation uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation == generation
}

func (m *Manager) renderBallot(round int, index int, submission entities.Submission) ports.SurfaceContent {
	return ports.SurfaceContent{
		Title:       ballotTitle(round, index),
		Description: "🔗 " + m.originalLink(submission.SubmissionID),
		MediaURL:    submission.Media.URL,
		Footer:      mention(submission.OwnerID),
	}
}

func (m *Manager) originalLink(submissionID string) string {
	if m.settings.GuildID == "" || m.settings.PhotoChannelID == "" {
		return "message " + submissionID
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", m.settings.GuildID, m.settings.PhotoChannelID, submissionID)
}

func (m *Manager) notice(ctx context.Context, destination string, text string) {
	if strings.TrimSpace(destination) == "" {
		return
	}
	if err := m.platform.SendNotice(ctx, destination, text); err != nil {
		m.logger.Warn("notice not delivered",
			"event", "contest_notice_failed",
			"module", application.ModuleName,
			"layer", "application",
			"destination", destination,
			"error", err.Error(),
		)
	}
}

func (m *Manager) now() time.Time {
	if m.clock != nil {
		return m.clock.Now().UTC()
	}
	return time.Now().UTC()
}

func requireModerator(actor Actor) error {
	if !actor.Moderator {
		return domainerrors.ErrNotModerator
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return "empty id"
	}
	return err.Error()
}
