package ports

import (
	"context"
	"time"

	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	"photocontest/internal/shared/events"
)

// SurfaceContent is what a ballot or notice looks like on the chat platform.
// Rendering (embeds, cards) is the platform adapter's concern.
type SurfaceContent struct {
	Destination string
	Title       string
	Description string
	MediaURL    string
	Footer      string
}

// SurfacePublisher mints voteable surfaces.
type SurfacePublisher interface {
	PublishSurface(ctx context.Context, content SurfaceContent) (string, error)
	AddMarker(ctx context.Context, surfaceID string, marker string) error
}

// ReactionReader reads the platform's de-duplicated reaction state.
type ReactionReader interface {
	FetchReactionCount(ctx context.Context, surfaceID string, marker string) (int, error)
}

// Platform is the full set of chat capabilities the contest consumes.
type Platform interface {
	SurfacePublisher
	ReactionReader
	EditSurface(ctx context.Context, surfaceID string, content SurfaceContent) error
	ClearReactions(ctx context.Context, surfaceID string) error
	RemoveReaction(ctx context.Context, messageID string, marker string, userID string) error
	DeleteMessage(ctx context.Context, messageID string) error
	SendNotice(ctx context.Context, destination string, text string) error
	CreateThread(ctx context.Context, parentID string, title string) (string, error)
}

type Clock interface {
	Now() time.Time
}

// Timer is a pending deferred action. Stop reports whether the call
// prevented the action from running.
type Timer interface {
	Stop() bool
}

type TimerFactory interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type Metrics interface {
	SubmissionAccepted()
	SubmissionRejected(reason string)
	BallotsPublished(round int, count int)
	BallotPublishFailed(round int)
	ReactionFetchFailed()
	RoundArmed()
	RoundResolved(trigger string)
	PhaseChanged(phase string)
}

// ResultArchive keeps a write-mostly history of announcements. It is never
// read back to restore contest state.
type ResultArchive interface {
	SaveAnnouncement(ctx context.Context, announcement entities.Announcement) error
	ListAnnouncements(ctx context.Context, limit int) ([]entities.Announcement, error)
}

type EventEnvelope = events.Envelope

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
