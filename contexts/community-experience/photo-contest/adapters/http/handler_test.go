package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photocontest/contexts/community-experience/photo-contest/adapters/memory"
	"photocontest/contexts/community-experience/photo-contest/application/commands"
	"photocontest/contexts/community-experience/photo-contest/application/queries"
	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	domainerrors "photocontest/contexts/community-experience/photo-contest/domain/errors"
	"photocontest/contexts/community-experience/photo-contest/ports"
	httptransport "photocontest/contexts/community-experience/photo-contest/transport/http"
)

type capturePublisher struct {
	mu        sync.Mutex
	envelopes []ports.EventEnvelope
	err       error
}

func (p *capturePublisher) Publish(_ context.Context, _ string, envelope ports.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.envelopes = append(p.envelopes, envelope)
	return nil
}

func newHandler(t *testing.T) (Handler, *memory.Platform, *capturePublisher) {
	t.Helper()
	platform := memory.NewPlatform()
	publisher := &capturePublisher{}
	clock := memory.NewClock(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))
	ids := &memory.SequenceIDs{Prefix: "id"}
	manager := commands.NewManager(commands.Config{
		Settings: commands.Settings{PhotoChannelID: "photos", ResultChannelID: "results", VoteMarker: "👍"},
		Platform: platform,
		Clock:    clock,
		Timers:   memory.NewTimers(),
		IDGen:    ids,
		Events:   publisher,
	})
	return Handler{
		Manager: manager,
		Results: queries.ResultsQuery{Archive: memory.NewArchive()},
		Events:  publisher,
		IDGen:   ids,
		Clock:   clock,
	}, platform, publisher
}

func TestHandlerRunsContestCommands(t *testing.T) {
	handler, platform, _ := newHandler(t)
	ctx := context.Background()
	moderator := httptransport.CommandRequest{ActorID: "mod", Moderator: true}

	started, err := handler.StartPostingHandler(ctx, moderator)
	require.NoError(t, err)
	assert.Equal(t, "posting", started.Phase)
	assert.NotEmpty(t, started.RunID)

	_, err = handler.Manager.OnContentPosted(ctx, commands.ContentPosted{
		AuthorID:  "user-a",
		MessageID: "msg-1",
		ChannelID: "photos",
		Media:     []entities.MediaRef{{URL: "https://cdn.example/a.jpg", Kind: "image"}},
	})
	require.NoError(t, err)

	opened, err := handler.OpenVotesHandler(ctx, moderator)
	require.NoError(t, err)
	require.Len(t, opened.Ballots, 1)
	assert.Equal(t, 1, opened.Ballots[0].Index)

	platform.AddVotes(opened.Ballots[0].BallotID, 2)
	closed, err := handler.CloseVotesHandler(ctx, httptransport.CloseVotesRequest{ActorID: "mod", Moderator: true})
	require.NoError(t, err)
	assert.Equal(t, "winner", closed.Outcome)
	require.NotNil(t, closed.Announcement)
	assert.Equal(t, 2, closed.Announcement.DisplayVotes)
	require.Len(t, closed.Announcement.Winners, 1)
	assert.Equal(t, "user-a", closed.Announcement.Winners[0].OwnerID)

	status := handler.StatusHandler(ctx)
	assert.Equal(t, "closed", status.Phase)
	assert.False(t, status.VotesOpen)
}

func TestHandlerRejectsNonModerator(t *testing.T) {
	handler, _, _ := newHandler(t)
	_, err := handler.StartPostingHandler(context.Background(), httptransport.CommandRequest{ActorID: "user"})
	assert.ErrorIs(t, err, domainerrors.ErrNotModerator)
}

func TestContentPostedHandlerPublishesEnvelope(t *testing.T) {
	handler, _, publisher := newHandler(t)

	resp, err := handler.ContentPostedHandler(context.Background(), httptransport.ContentPostedRequest{
		AuthorID:  "user-a",
		MessageID: " msg-9 ",
		ChannelID: "photos",
		Media:     []httptransport.MediaItem{{URL: "https://cdn.example/a.jpg", Kind: "image"}},
	})
	require.NoError(t, err)
	assert.Equal(t, ports.TopicContentPosted, resp.Topic)
	assert.NotEmpty(t, resp.EventID)

	require.Len(t, publisher.envelopes, 1)
	envelope := publisher.envelopes[0]
	assert.Equal(t, "msg-9", envelope.EntityID)
	assert.Equal(t, ports.TopicContentPosted, envelope.EventType)

	var payload ports.ContentPostedPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, "user-a", payload.AuthorID)
	require.Len(t, payload.Media, 1)
	assert.Equal(t, "image", payload.Media[0].Kind)
}

func TestEventHandlersValidateMessageID(t *testing.T) {
	handler, _, publisher := newHandler(t)
	ctx := context.Background()

	_, err := handler.ContentPostedHandler(ctx, httptransport.ContentPostedRequest{AuthorID: "user-a"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidSubmission)
	_, err = handler.ContentDeletedHandler(ctx, httptransport.ContentDeletedRequest{})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidSubmission)
	_, err = handler.ReactionObservedHandler(ctx, httptransport.ReactionObservedRequest{Marker: "👍"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidSubmission)
	assert.Empty(t, publisher.envelopes)
}

func TestEventHandlerSurfacesPublishFailure(t *testing.T) {
	handler, _, publisher := newHandler(t)
	publisher.err = errors.New("bus closed")

	_, err := handler.ContentDeletedHandler(context.Background(), httptransport.ContentDeletedRequest{MessageID: "msg-1"})
	assert.EqualError(t, err, "bus closed")
}
