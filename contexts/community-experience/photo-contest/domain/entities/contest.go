package entities

import "time"

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhasePosting  Phase = "posting"
	PhaseVoting   Phase = "voting"
	PhaseTieBreak Phase = "tie_break"
	PhaseClosed   Phase = "closed"
)

const (
	RoundOne = 1
	RoundTwo = 2
)

// SeedOffset is subtracted from raw reaction counts before display. The
// service adds the vote marker to every ballot it publishes, so one reaction
// per ballot is its own.
const SeedOffset = 1

type MediaRef struct {
	URL  string
	Kind string
}

// Submission is one participant's accepted photo for the current run. Its id
// is the id of the originating chat message.
type Submission struct {
	SubmissionID string
	OwnerID      string
	Media        MediaRef
	CreatedAt    time.Time
}

// Ballot is a published, voteable surface for a submission in one round.
// Ballots are minted per round and only ever flipped to ineligible.
type Ballot struct {
	BallotID     string
	SubmissionID string
	Round        int
	Index        int
	Eligible     bool
	PublishedAt  time.Time
}

type ContestState struct {
	RunID            string
	Phase            Phase
	ActiveRound      int
	RoundDeadline    *time.Time
	PostingStartedAt *time.Time
	GalleryID        string
}

// PostingOpen reports whether a run exists and no vote is in progress.
func (s ContestState) PostingOpen() bool {
	return s.Phase == PhasePosting
}

func (s ContestState) VotesOpen() bool {
	return s.Phase == PhaseVoting || s.Phase == PhaseTieBreak
}

type BallotCount struct {
	Ballot Ballot
	Votes  int
}

// TallyResult is computed on demand; Counts keeps ballot order.
type TallyResult struct {
	Counts   []BallotCount
	MaxVotes int
	Leaders  []Ballot
}

func (r TallyResult) Empty() bool {
	return len(r.Counts) == 0
}

func (r TallyResult) DisplayMaxVotes() int {
	return DisplayVotes(r.MaxVotes)
}

func DisplayVotes(raw int) int {
	return max(raw-SeedOffset, 0)
}

type ResolutionTrigger string

const (
	TriggerDeadline ResolutionTrigger = "deadline"
	TriggerManual   ResolutionTrigger = "manual"
)

type Winner struct {
	BallotID     string
	SubmissionID string
	OwnerID      string
	MediaURL     string
}

// Announcement is the final word on a round. TieFinal marks ex-aequo winners
// after round two.
type Announcement struct {
	AnnouncementID string
	RunID          string
	Round          int
	Trigger        ResolutionTrigger
	Winners        []Winner
	MaxVotes       int
	DisplayVotes   int
	TieFinal       bool
	NoVotes        bool
	AnnouncedAt    time.Time
}

type StatusSnapshot struct {
	RunID           string
	Phase           Phase
	ActiveRound     int
	RoundDeadline   *time.Time
	PostingOpen     bool
	VotesOpen       bool
	TieBreakActive  bool
	Submissions     int
	RoundOneBallots int
	RoundTwoBallots int
	GalleryID       string
	ServerTime      time.Time
}
