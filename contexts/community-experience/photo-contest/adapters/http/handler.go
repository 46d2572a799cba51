package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"photocontest/contexts/community-experience/photo-contest/application/commands"
	"photocontest/contexts/community-experience/photo-contest/application/queries"
	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	domainerrors "photocontest/contexts/community-experience/photo-contest/domain/errors"
	"photocontest/contexts/community-experience/photo-contest/ports"
	httptransport "photocontest/contexts/community-experience/photo-contest/transport/http"
	"photocontest/internal/shared/events"
)

const bridgeSource = "chat-bridge"

type Handler struct {
	Manager *commands.Manager
	Results queries.ResultsQuery
	Events  ports.EventPublisher
	IDGen   ports.IDGenerator
	Clock   ports.Clock
	Logger  *slog.Logger
}

func (h Handler) StartPostingHandler(
	ctx context.Context,
	req httptransport.CommandRequest,
) (httptransport.StartPostingResponse, error) {
	state, err := h.Manager.StartPosting(ctx, actor(req.ActorID, req.Moderator))
	if err != nil {
		return httptransport.StartPostingResponse{}, err
	}
	return httptransport.StartPostingResponse{
		RunID: state.RunID,
		Phase: string(state.Phase),
	}, nil
}

func (h Handler) OpenVotesHandler(
	ctx context.Context,
	req httptransport.CommandRequest,
) (httptransport.OpenVotesResponse, error) {
	result, err := h.Manager.OpenVotes(ctx, actor(req.ActorID, req.Moderator))
	if err != nil {
		return httptransport.OpenVotesResponse{}, err
	}
	return httptransport.OpenVotesResponse{
		GalleryID: result.GalleryID,
		Ballots:   ballotItems(result.Ballots),
	}, nil
}

func (h Handler) CloseVotesHandler(
	ctx context.Context,
	req httptransport.CloseVotesRequest,
) (httptransport.CloseVotesResponse, error) {
	result, err := h.Manager.CloseVotes(ctx, actor(req.ActorID, req.Moderator), req.TieMinutes)
	if err != nil {
		return httptransport.CloseVotesResponse{}, err
	}
	resp := httptransport.CloseVotesResponse{
		Outcome:   string(result.Outcome),
		Finalists: ballotItems(result.Finalists),
		Deadline:  result.Deadline,
	}
	if result.Announcement != nil {
		item := announcementItem(*result.Announcement)
		resp.Announcement = &item
	}
	return resp, nil
}

func (h Handler) StatusHandler(ctx context.Context) httptransport.StatusResponse {
	status := h.Manager.Status(ctx)
	return httptransport.StatusResponse{
		RunID:           status.RunID,
		Phase:           string(status.Phase),
		ActiveRound:     status.ActiveRound,
		RoundDeadline:   status.RoundDeadline,
		PostingOpen:     status.PostingOpen,
		VotesOpen:       status.VotesOpen,
		TieBreakActive:  status.TieBreakActive,
		Submissions:     status.Submissions,
		RoundOneBallots: status.RoundOneBallots,
		RoundTwoBallots: status.RoundTwoBallots,
		GalleryID:       status.GalleryID,
		ServerTime:      status.ServerTime,
	}
}

func (h Handler) ListResultsHandler(ctx context.Context, limit int) (httptransport.ResultsResponse, error) {
	items, err := h.Results.ListResults(ctx, limit)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}
	resp := httptransport.ResultsResponse{Items: make([]httptransport.AnnouncementItem, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, announcementItem(item))
	}
	return resp, nil
}

func (h Handler) ContentPostedHandler(
	ctx context.Context,
	req httptransport.ContentPostedRequest,
) (httptransport.EventAcceptedResponse, error) {
	if strings.TrimSpace(req.MessageID) == "" || strings.TrimSpace(req.AuthorID) == "" {
		return httptransport.EventAcceptedResponse{}, domainerrors.ErrInvalidSubmission
	}
	media := make([]ports.MediaPayload, 0, len(req.Media))
	for _, item := range req.Media {
		media = append(media, ports.MediaPayload{URL: item.URL, Kind: item.Kind})
	}
	return h.publish(ctx, ports.TopicContentPosted, req.MessageID, ports.ContentPostedPayload{
		AuthorID:  req.AuthorID,
		MessageID: req.MessageID,
		ChannelID: req.ChannelID,
		Media:     media,
		FromBot:   req.FromBot,
	})
}

func (h Handler) ContentDeletedHandler(
	ctx context.Context,
	req httptransport.ContentDeletedRequest,
) (httptransport.EventAcceptedResponse, error) {
	if strings.TrimSpace(req.MessageID) == "" {
		return httptransport.EventAcceptedResponse{}, domainerrors.ErrInvalidSubmission
	}
	return h.publish(ctx, ports.TopicContentDeleted, req.MessageID, ports.ContentDeletedPayload{
		MessageID: req.MessageID,
		ChannelID: req.ChannelID,
	})
}

func (h Handler) ReactionObservedHandler(
	ctx context.Context,
	req httptransport.ReactionObservedRequest,
) (httptransport.EventAcceptedResponse, error) {
	if strings.TrimSpace(req.MessageID) == "" {
		return httptransport.EventAcceptedResponse{}, domainerrors.ErrInvalidSubmission
	}
	return h.publish(ctx, ports.TopicReactionObserved, req.MessageID, ports.ReactionObservedPayload{
		MessageID: req.MessageID,
		ChannelID: req.ChannelID,
		Marker:    req.Marker,
		UserID:    req.UserID,
		FromBot:   req.FromBot,
		Count:     req.Count,
	})
}

func (h Handler) publish(
	ctx context.Context,
	topic string,
	messageID string,
	payload any,
) (httptransport.EventAcceptedResponse, error) {
	eventID, err := h.IDGen.NewID(ctx)
	if err != nil {
		return httptransport.EventAcceptedResponse{}, err
	}
	envelope, err := events.NewEnvelope(eventID, topic, bridgeSource, "message", strings.TrimSpace(messageID), h.now(), payload)
	if err != nil {
		return httptransport.EventAcceptedResponse{}, err
	}
	if err := h.Events.Publish(ctx, topic, envelope); err != nil {
		return httptransport.EventAcceptedResponse{}, err
	}
	return httptransport.EventAcceptedResponse{EventID: eventID, Topic: topic}, nil
}

func (h Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func actor(id string, moderator bool) commands.Actor {
	return commands.Actor{ID: strings.TrimSpace(id), Moderator: moderator}
}

func ballotItems(items []entities.Ballot) []httptransport.BallotItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]httptransport.BallotItem, 0, len(items))
	for _, item := range items {
		out = append(out, httptransport.BallotItem{
			BallotID:     item.BallotID,
			SubmissionID: item.SubmissionID,
			Round:        item.Round,
			Index:        item.Index,
			Eligible:     item.Eligible,
		})
	}
	return out
}

func announcementItem(item entities.Announcement) httptransport.AnnouncementItem {
	winners := make([]httptransport.WinnerItem, 0, len(item.Winners))
	for _, winner := range item.Winners {
		winners = append(winners, httptransport.WinnerItem{
			BallotID:     winner.BallotID,
			SubmissionID: winner.SubmissionID,
			OwnerID:      winner.OwnerID,
			MediaURL:     winner.MediaURL,
		})
	}
	return httptransport.AnnouncementItem{
		AnnouncementID: item.AnnouncementID,
		RunID:          item.RunID,
		Round:          item.Round,
		Trigger:        string(item.Trigger),
		Winners:        winners,
		DisplayVotes:   item.DisplayVotes,
		TieFinal:       item.TieFinal,
		NoVotes:        item.NoVotes,
		AnnouncedAt:    item.AnnouncedAt,
	}
}
