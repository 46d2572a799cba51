package ports

import "time"

const (
	TopicContentPosted    = "platform.content_posted"
	TopicContentDeleted   = "platform.content_deleted"
	TopicReactionObserved = "platform.reaction_observed"
	TopicResultAnnounced  = "contest.result_announced"
	TopicPhaseChanged     = "contest.phase_changed"
)

type MediaPayload struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

type ContentPostedPayload struct {
	AuthorID  string         `json:"author_id"`
	MessageID string         `json:"message_id"`
	ChannelID string         `json:"channel_id"`
	Media     []MediaPayload `json:"media"`
	FromBot   bool           `json:"from_bot"`
}

type ContentDeletedPayload struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
}

type ReactionObservedPayload struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	Marker    string `json:"marker"`
	UserID    string `json:"user_id"`
	FromBot   bool   `json:"from_bot"`
	Count     int    `json:"count"`
}

type WinnerPayload struct {
	BallotID     string `json:"ballot_id"`
	SubmissionID string `json:"submission_id"`
	OwnerID      string `json:"owner_id"`
	MediaURL     string `json:"media_url"`
}

type ResultAnnouncedPayload struct {
	AnnouncementID string          `json:"announcement_id"`
	RunID          string          `json:"run_id"`
	Round          int             `json:"round"`
	Trigger        string          `json:"trigger"`
	Winners        []WinnerPayload `json:"winners"`
	MaxVotes       int             `json:"max_votes"`
	DisplayVotes   int             `json:"display_votes"`
	TieFinal       bool            `json:"tie_final"`
	NoVotes        bool            `json:"no_votes"`
	AnnouncedAt    time.Time       `json:"announced_at"`
}

type PhaseChangedPayload struct {
	RunID       string `json:"run_id"`
	Phase       string `json:"phase"`
	ActiveRound int    `json:"active_round"`
}
