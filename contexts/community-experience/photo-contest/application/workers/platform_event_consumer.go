package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	application "photocontest/contexts/community-experience/photo-contest/application"
	"photocontest/contexts/community-experience/photo-contest/application/commands"
	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	"photocontest/contexts/community-experience/photo-contest/ports"
)

const defaultPlatformCG = "photo-contest-platform-cg"

// PlatformEventConsumer feeds chat platform events from the bus into the
// contest manager.
type PlatformEventConsumer struct {
	Subscriber    ports.EventSubscriber
	Manager       *commands.Manager
	ConsumerGroup string
	Disabled      bool
	Logger        *slog.Logger
}

func (c PlatformEventConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("platform event consumer disabled by feature flag",
			"event", "contest_platform_consumer_disabled",
			"module", application.ModuleName,
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultPlatformCG
	}

	handlers := []struct {
		topic   string
		handler func(context.Context, ports.EventEnvelope) error
	}{
		{ports.TopicContentPosted, c.handleContentPosted},
		{ports.TopicContentDeleted, c.handleContentDeleted},
		{ports.TopicReactionObserved, c.handleReactionObserved},
	}
	for _, item := range handlers {
		if err := c.Subscriber.Subscribe(ctx, item.topic, group, item.handler); err != nil {
			logger.Error("platform consumer subscribe failed",
				"event", "contest_platform_consumer_subscribe_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"topic", item.topic,
				"consumer_group", group,
				"error", err.Error(),
			)
			return err
		}
	}
	logger.Info("platform consumer subscriptions active",
		"event", "contest_platform_consumer_started",
		"module", application.ModuleName,
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (c PlatformEventConsumer) handleContentPosted(ctx context.Context, event ports.EventEnvelope) error {
	var payload ports.ContentPostedPayload
	if err := c.decode(event, &payload); err != nil {
		return err
	}
	media := make([]entities.MediaRef, 0, len(payload.Media))
	for _, item := range payload.Media {
		media = append(media, entities.MediaRef{URL: item.URL, Kind: item.Kind})
	}
	_, err := c.Manager.OnContentPosted(ctx, commands.ContentPosted{
		AuthorID:  payload.AuthorID,
		MessageID: payload.MessageID,
		ChannelID: payload.ChannelID,
		Media:     media,
		FromBot:   payload.FromBot,
	})
	return err
}

func (c PlatformEventConsumer) handleContentDeleted(ctx context.Context, event ports.EventEnvelope) error {
	var payload ports.ContentDeletedPayload
	if err := c.decode(event, &payload); err != nil {
		return err
	}
	c.Manager.OnContentDeleted(ctx, payload.MessageID)
	return nil
}

func (c PlatformEventConsumer) handleReactionObserved(ctx context.Context, event ports.EventEnvelope) error {
	var payload ports.ReactionObservedPayload
	if err := c.decode(event, &payload); err != nil {
		return err
	}
	c.Manager.OnReactionObserved(ctx, commands.ReactionObserved{
		MessageID: payload.MessageID,
		ChannelID: payload.ChannelID,
		Marker:    payload.Marker,
		UserID:    payload.UserID,
		FromBot:   payload.FromBot,
		Count:     payload.Count,
	})
	return nil
}

func (c PlatformEventConsumer) decode(event ports.EventEnvelope, target any) error {
	if err := json.Unmarshal(event.Data, target); err != nil {
		application.ResolveLogger(c.Logger).Error("platform event payload decode failed",
			"event", "contest_platform_event_decode_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return err
	}
	return nil
}
