package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	application "photocontest/contexts/community-experience/photo-contest/application"
	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	"photocontest/contexts/community-experience/photo-contest/ports"
)

const sourceService = "photo-contest"

// announce posts the result of a round and emits it on the event bus. A
// delivery failure is logged; the round stays closed either way.
func (m *Manager) announce(
	ctx context.Context,
	runID string,
	round int,
	trigger entities.ResolutionTrigger,
	result entities.TallyResult,
	tieFinal bool,
) entities.Announcement {
	announcementID, err := m.idGen.NewID(ctx)
	if err != nil {
		announcementID = fmt.Sprintf("%s-round-%d", runID, round)
	}

	winners := make([]entities.Winner, 0, len(result.Leaders))
	for _, leader := range result.Leaders {
		winner := entities.Winner{
			BallotID:     leader.BallotID,
			SubmissionID: leader.SubmissionID,
		}
		if submission, ok := m.projection.SubmissionFor(leader.BallotID); ok {
			winner.OwnerID = submission.OwnerID
			winner.MediaURL = submission.Media.URL
		}
		winners = append(winners, winner)
	}

	announcement := entities.Announcement{
		AnnouncementID: announcementID,
		RunID:          runID,
		Round:          round,
		Trigger:        trigger,
		Winners:        winners,
		MaxVotes:       result.MaxVotes,
		DisplayVotes:   result.DisplayMaxVotes(),
		TieFinal:       tieFinal && len(winners) > 1,
		NoVotes:        len(winners) == 0,
		AnnouncedAt:    m.now(),
	}

	m.notice(ctx, m.settings.ResultChannelID, announcementText(announcement, func(w entities.Winner) string {
		return m.originalLink(w.SubmissionID)
	}))
	m.logger.Info("contest round announced",
		"event", "contest_round_announced",
		"module", application.ModuleName,
		"layer", "application",
		"run_id", runID,
		"round", round,
		"trigger", string(trigger),
		"winners", len(winners),
		"tie_final", announcement.TieFinal,
		"no_votes", announcement.NoVotes,
	)
	m.publish(ctx, ports.TopicResultAnnounced, "announcement", announcementID, announcement.AnnouncedAt, resultPayload(announcement))
	return announcement
}

func (m *Manager) phaseChanged(ctx context.Context, state entities.ContestState) {
	m.metrics.PhaseChanged(string(state.Phase))
	m.publish(ctx, ports.TopicPhaseChanged, "contest_run", state.RunID, m.now(), ports.PhaseChangedPayload{
		RunID:       state.RunID,
		Phase:       string(state.Phase),
		ActiveRound: state.ActiveRound,
	})
}

func (m *Manager) publish(ctx context.Context, topic string, entityType string, entityID string, at time.Time, payload any) {
	if m.events == nil {
		return
	}
	envelope, err := newContestEnvelope(ctx, m.idGen, topic, entityType, entityID, at, payload)
	if err == nil {
		err = m.events.Publish(ctx, topic, envelope)
	}
	if err != nil {
		m.logger.Warn("contest event not published",
			"event", "contest_event_publish_failed",
			"module", application.ModuleName,
			"layer", "application",
			"topic", topic,
			"entity_id", entityID,
			"error", err.Error(),
		)
	}
}

func newContestEnvelope(
	ctx context.Context,
	idGen ports.IDGenerator,
	eventType string,
	entityType string,
	entityID string,
	occurredAt time.Time,
	payload any,
) (ports.EventEnvelope, error) {
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:        eventID,
		EventType:      eventType,
		SourceService:  sourceService,
		OccurredAtUTC:  occurredAt.UTC(),
		CorrelationID:  entityID,
		EntityType:     entityType,
		EntityID:       entityID,
		PayloadVersion: 1,
		Data:           data,
	}, nil
}

func resultPayload(announcement entities.Announcement) ports.ResultAnnouncedPayload {
	winners := make([]ports.WinnerPayload, 0, len(announcement.Winners))
	for _, winner := range announcement.Winners {
		winners = append(winners, ports.WinnerPayload{
			BallotID:     winner.BallotID,
			SubmissionID: winner.SubmissionID,
			OwnerID:      winner.OwnerID,
			MediaURL:     winner.MediaURL,
		})
	}
	return ports.ResultAnnouncedPayload{
		AnnouncementID: announcement.AnnouncementID,
		RunID:          announcement.RunID,
		Round:          announcement.Round,
		Trigger:        string(announcement.Trigger),
		Winners:        winners,
		MaxVotes:       announcement.MaxVotes,
		DisplayVotes:   announcement.DisplayVotes,
		TieFinal:       announcement.TieFinal,
		NoVotes:        announcement.NoVotes,
		AnnouncedAt:    announcement.AnnouncedAt,
	}
}

// AnnouncementFromPayload rebuilds an announcement carried on the bus.
func AnnouncementFromPayload(payload ports.ResultAnnouncedPayload) entities.Announcement {
	winners := make([]entities.Winner, 0, len(payload.Winners))
	for _, winner := range payload.Winners {
		winners = append(winners, entities.Winner{
			BallotID:     winner.BallotID,
			SubmissionID: winner.SubmissionID,
			OwnerID:      winner.OwnerID,
			MediaURL:     winner.MediaURL,
		})
	}
	return entities.Announcement{
		AnnouncementID: payload.AnnouncementID,
		RunID:          payload.RunID,
		Round:          payload.Round,
		Trigger:        entities.ResolutionTrigger(payload.Trigger),
		Winners:        winners,
		MaxVotes:       payload.MaxVotes,
		DisplayVotes:   payload.DisplayVotes,
		TieFinal:       payload.TieFinal,
		NoVotes:        payload.NoVotes,
		AnnouncedAt:    payload.AnnouncedAt,
	}
}
