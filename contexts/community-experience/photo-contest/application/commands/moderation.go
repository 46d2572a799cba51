package commands

import (
	"context"
	"errors"
	"strings"

	application "photocontest/contexts/community-experience/photo-contest/application"
	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	domainerrors "photocontest/contexts/community-experience/photo-contest/domain/errors"
)

type ContentPosted struct {
	AuthorID  string
	MessageID string
	ChannelID string
	Media     []entities.MediaRef
	FromBot   bool
}

func (p ContentPosted) MediaCount() int {
	return len(p.Media)
}

type ReactionObserved struct {
	MessageID string
	ChannelID string
	Marker    string
	UserID    string
	FromBot   bool
	Count     int
}

type PostDecision string

const (
	PostAccepted PostDecision = "accepted"
	PostRejected PostDecision = "rejected"
	PostIgnored  PostDecision = "ignored"
)

type RejectReason string

const (
	RejectVotesInProgress RejectReason = "votes_in_progress"
	RejectNoImage         RejectReason = "no_image"
	RejectMultipleImages  RejectReason = "multiple_images"
	RejectDuplicateSlot   RejectReason = "duplicate_slot"
	RejectOutsideContest  RejectReason = "outside_contest"
)

type PostOutcome struct {
	Decision PostDecision
	Reason   RejectReason
}

// OnContentPosted applies the photo channel rules to a new post. Rejected
// posts are deleted and their author is told why.
func (m *Manager) OnContentPosted(ctx context.Context, post ContentPosted) (PostOutcome, error) {
	post.AuthorID = strings.TrimSpace(post.AuthorID)
	post.MessageID = strings.TrimSpace(post.MessageID)
	if post.FromBot {
		return PostOutcome{Decision: PostIgnored}, nil
	}
	if post.AuthorID == "" || post.MessageID == "" {
		return PostOutcome{}, domainerrors.ErrInvalidSubmission
	}
	if channel := strings.TrimSpace(post.ChannelID); channel != "" && channel != m.settings.PhotoChannelID {
		return PostOutcome{Decision: PostIgnored}, nil
	}

	outcome, err := m.judgePost(post)
	if err != nil {
		return PostOutcome{}, err
	}
	switch outcome.Decision {
	case PostAccepted:
		m.metrics.SubmissionAccepted()
		m.logger.Info("contest submission accepted",
			"event", "contest_submission_accepted",
			"module", application.ModuleName,
			"layer", "application",
			"owner_id", post.AuthorID,
			"submission_id", post.MessageID,
		)
	case PostRejected:
		m.metrics.SubmissionRejected(string(outcome.Reason))
		m.logger.Info("contest post rejected",
			"event", "contest_post_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"owner_id", post.AuthorID,
			"message_id", post.MessageID,
			"reason", string(outcome.Reason),
		)
		if err := m.platform.DeleteMessage(ctx, post.MessageID); err != nil {
			m.logger.Warn("rejected post not deleted",
				"event", "contest_post_delete_failed",
				"module", application.ModuleName,
				"layer", "application",
				"message_id", post.MessageID,
				"error", err.Error(),
			)
		}
		m.notice(ctx, m.settings.PhotoChannelID, rejectionNotice(outcome.Reason, post.AuthorID))
	}
	return outcome, nil
}

func (m *Manager) judgePost(post ContentPosted) (PostOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.state.VotesOpen():
		return rejected(RejectVotesInProgress), nil
	case m.state.PostingOpen():
		switch {
		case post.MediaCount() == 0:
			return rejected(RejectNoImage), nil
		case post.MediaCount() > 1:
			return rejected(RejectMultipleImages), nil
		}
		err := m.registry.RecordSubmission(post.AuthorID, entities.Submission{
			SubmissionID: post.MessageID,
			OwnerID:      post.AuthorID,
			Media:        post.Media[0],
			CreatedAt:    m.now(),
		})
		switch {
		case errors.Is(err, domainerrors.ErrDuplicateSlot):
			return rejected(RejectDuplicateSlot), nil
		case err != nil:
			return PostOutcome{}, err
		}
		return PostOutcome{Decision: PostAccepted}, nil
	default:
		if post.MediaCount() == 0 {
			return rejected(RejectOutsideContest), nil
		}
		return PostOutcome{Decision: PostIgnored}, nil
	}
}

func rejected(reason RejectReason) PostOutcome {
	return PostOutcome{Decision: PostRejected, Reason: reason}
}

// OnContentDeleted frees the slot held through the deleted message. Unknown
// messages are ignored.
func (m *Manager) OnContentDeleted(_ context.Context, messageID string) bool {
	m.mu.Lock()
	released, ok := m.registry.ReleaseByMessage(messageID)
	m.mu.Unlock()
	if ok {
		m.logger.Info("contest submission released",
			"event", "contest_submission_released",
			"module", application.ModuleName,
			"layer", "application",
			"owner_id", released.OwnerID,
			"submission_id", released.SubmissionID,
		)
	}
	return ok
}

// OnReactionObserved removes vote-marker reactions placed on ballots that no
// longer accept votes while a vote is running. It reports whether a reaction
// was removed.
func (m *Manager) OnReactionObserved(ctx context.Context, reaction ReactionObserved) bool {
	if reaction.FromBot || reaction.Marker != m.settings.VoteMarker {
		return false
	}
	m.mu.Lock()
	votesOpen := m.state.VotesOpen()
	m.mu.Unlock()
	if !votesOpen {
		return false
	}
	ballot, ok := m.projection.Lookup(reaction.MessageID)
	if !ok || ballot.Eligible {
		return false
	}
	if err := m.platform.RemoveReaction(ctx, reaction.MessageID, reaction.Marker, reaction.UserID); err != nil {
		m.logger.Warn("reaction on locked ballot not removed",
			"event", "contest_reaction_remove_failed",
			"module", application.ModuleName,
			"layer", "application",
			"ballot_id", reaction.MessageID,
			"user_id", reaction.UserID,
			"error", err.Error(),
		)
		return false
	}
	return true
}
