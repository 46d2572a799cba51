package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CommandRequest carries the caller resolved by the chat bridge. The bridge
// decides whether the caller holds the moderator capability.
type CommandRequest struct {
	ActorID   string `json:"actor_id"`
	Moderator bool   `json:"moderator"`
}

type CloseVotesRequest struct {
	ActorID    string `json:"actor_id"`
	Moderator  bool   `json:"moderator"`
	TieMinutes int    `json:"tie_minutes,omitempty"`
}

type BallotItem struct {
	BallotID     string `json:"ballot_id"`
	SubmissionID string `json:"submission_id"`
	Round        int    `json:"round"`
	Index        int    `json:"index"`
	Eligible     bool   `json:"eligible"`
}

type StartPostingResponse struct {
	RunID string `json:"run_id"`
	Phase string `json:"phase"`
}

type OpenVotesResponse struct {
	GalleryID string       `json:"gallery_id"`
	Ballots   []BallotItem `json:"ballots"`
}

type WinnerItem struct {
	BallotID     string `json:"ballot_id"`
	SubmissionID string `json:"submission_id"`
	OwnerID      string `json:"owner_id,omitempty"`
	MediaURL     string `json:"media_url,omitempty"`
}

type AnnouncementItem struct {
	AnnouncementID string       `json:"announcement_id"`
	RunID          string       `json:"run_id"`
	Round          int          `json:"round"`
	Trigger        string       `json:"trigger"`
	Winners        []WinnerItem `json:"winners"`
	DisplayVotes   int          `json:"display_votes"`
	TieFinal       bool         `json:"tie_final"`
	NoVotes        bool         `json:"no_votes"`
	AnnouncedAt    time.Time    `json:"announced_at"`
}

type CloseVotesResponse struct {
	Outcome      string            `json:"outcome"`
	Announcement *AnnouncementItem `json:"announcement,omitempty"`
	Finalists    []BallotItem      `json:"finalists,omitempty"`
	Deadline     *time.Time        `json:"deadline,omitempty"`
}

type StatusResponse struct {
	RunID           string     `json:"run_id,omitempty"`
	Phase           string     `json:"phase"`
	ActiveRound     int        `json:"active_round"`
	RoundDeadline   *time.Time `json:"round_deadline,omitempty"`
	PostingOpen     bool       `json:"posting_open"`
	VotesOpen       bool       `json:"votes_open"`
	TieBreakActive  bool       `json:"tie_break_active"`
	Submissions     int        `json:"submissions"`
	RoundOneBallots int        `json:"round_one_ballots"`
	RoundTwoBallots int        `json:"round_two_ballots"`
	GalleryID       string     `json:"gallery_id,omitempty"`
	ServerTime      time.Time  `json:"server_time"`
}

type ResultsResponse struct {
	Items []AnnouncementItem `json:"items"`
}

type MediaItem struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

type ContentPostedRequest struct {
	AuthorID  string      `json:"author_id"`
	MessageID string      `json:"message_id"`
	ChannelID string      `json:"channel_id"`
	Media     []MediaItem `json:"media"`
	FromBot   bool        `json:"from_bot"`
}

type ContentDeletedRequest struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
}

type ReactionObservedRequest struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	Marker    string `json:"marker"`
	UserID    string `json:"user_id"`
	FromBot   bool   `json:"from_bot"`
	Count     int    `json:"count"`
}

type EventAcceptedResponse struct {
	EventID string `json:"event_id"`
	Topic   string `json:"topic"`
}
