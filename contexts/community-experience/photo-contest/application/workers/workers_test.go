package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"photocontest/contexts/community-experience/photo-contest/adapters/memory"
	"photocontest/contexts/community-experience/photo-contest/application/commands"
	"photocontest/contexts/community-experience/photo-contest/application/queries"
	"photocontest/contexts/community-experience/photo-contest/ports"
	"photocontest/internal/platform/messaging"
	"photocontest/internal/shared/events"
)

func envelope(t *testing.T, topic string, payload any) events.Envelope {
	t.Helper()
	event, err := events.NewEnvelope("evt-"+topic, topic, "bridge", "message", "m", time.Now(), payload)
	require.NoError(t, err)
	return event
}

func TestPlatformEventsReachManagerAndResultsAreArchived(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	bus := messaging.NewBus(nil, nil)
	platform := memory.NewPlatform()
	archive := memory.NewArchive()
	manager := commands.NewManager(commands.Config{
		Settings: commands.Settings{PhotoChannelID: "photos", ResultChannelID: "results", VoteMarker: "👍"},
		Platform: platform,
		Clock:    memory.NewClock(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)),
		Timers:   memory.NewTimers(),
		IDGen:    &memory.SequenceIDs{Prefix: "id"},
		Events:   bus,
	})

	require.NoError(t, PlatformEventConsumer{Subscriber: bus, Manager: manager}.Start(ctx))
	require.NoError(t, ResultArchiver{Subscriber: bus, Archive: archive}.Start(ctx))

	moderator := commands.Actor{ID: "mod", Moderator: true}
	_, err := manager.StartPosting(ctx, moderator)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, ports.TopicContentPosted, envelope(t, ports.TopicContentPosted, ports.ContentPostedPayload{
		AuthorID:  "user-a",
		MessageID: "msg-1",
		ChannelID: "photos",
		Media:     []ports.MediaPayload{{URL: "https://cdn.example/1.jpg", Kind: "image"}},
	})))
	require.Eventually(t, func() bool {
		return manager.Registry().HasSlot("user-a")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, ports.TopicContentDeleted, envelope(t, ports.TopicContentDeleted, ports.ContentDeletedPayload{
		MessageID: "msg-1",
	})))
	require.Eventually(t, func() bool {
		return !manager.Registry().HasSlot("user-a")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, ports.TopicContentPosted, envelope(t, ports.TopicContentPosted, ports.ContentPostedPayload{
		AuthorID:  "user-a",
		MessageID: "msg-2",
		ChannelID: "photos",
		Media:     []ports.MediaPayload{{URL: "https://cdn.example/2.jpg", Kind: "image"}},
	})))
	require.Eventually(t, func() bool {
		return manager.Registry().HasSlot("user-a")
	}, time.Second, 5*time.Millisecond)

	opened, err := manager.OpenVotes(ctx, moderator)
	require.NoError(t, err)
	platform.AddVotes(opened.Ballots[0].BallotID, 3)
	_, err = manager.CloseVotes(ctx, moderator, 0)
	require.NoError(t, err)

	results := queries.ResultsQuery{Archive: archive}
	require.Eventually(t, func() bool {
		items, err := results.ListResults(ctx, 0)
		return err == nil && len(items) == 1
	}, time.Second, 5*time.Millisecond)

	items, err := results.ListResults(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, items[0].Round)
	require.Len(t, items[0].Winners, 1)
	assert.Equal(t, "user-a", items[0].Winners[0].OwnerID)
	assert.Equal(t, 3, items[0].DisplayVotes)

	cancel()
	bus.Wait()
}

func TestDisabledWorkersDoNotSubscribe(t *testing.T) {
	bus := messaging.NewBus(nil, nil)
	require.NoError(t, PlatformEventConsumer{Subscriber: bus, Disabled: true}.Start(context.Background()))
	require.NoError(t, ResultArchiver{Subscriber: bus}.Start(context.Background()))
}

func TestResultsQueryWithoutArchive(t *testing.T) {
	items, err := queries.ResultsQuery{}.ListResults(context.Background(), 500)
	require.NoError(t, err)
	assert.Empty(t, items)
}
