package commands

import (
	"fmt"
	"strings"
	"time"

	"photocontest/contexts/community-experience/photo-contest/domain/entities"
)

// FormatDuration renders minutes the way contest notices show them:
// "6h", "1h30", "45 min".
func FormatDuration(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh%02d", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%d min", m)
	}
}

func mention(userID string) string {
	if strings.TrimSpace(userID) == "" {
		return "The author"
	}
	return fmt.Sprintf("<@%s>", userID)
}

func roleMentions(roles []string) string {
	parts := make([]string, 0, len(roles))
	for _, role := range roles {
		if role = strings.TrimSpace(role); role != "" {
			parts = append(parts, fmt.Sprintf("<@&%s>", role))
		}
	}
	return strings.Join(parts, " ")
}

func withRoles(roles []string, text string) string {
	if pinged := roleMentions(roles); pinged != "" {
		return pinged + " " + text
	}
	return text
}

func postingOpenedNotice() string {
	return "📸 Submissions are open! **1 photo per person** and **1 image per message**."
}

func rejectionNotice(reason RejectReason, authorID string) string {
	who := mention(authorID)
	switch reason {
	case RejectVotesInProgress:
		return fmt.Sprintf("❌ %s, voting is in progress. New posts are not allowed.", who)
	case RejectNoImage:
		return fmt.Sprintf("🚫 %s, only **posts with a photo** are allowed.", who)
	case RejectMultipleImages:
		return fmt.Sprintf("🚫 %s, **1 image per message** and **1 photo per person**.", who)
	case RejectDuplicateSlot:
		return fmt.Sprintf("🚫 %s, you already posted **1 photo**. Delete your first post to replace it.", who)
	case RejectOutsideContest:
		return fmt.Sprintf("🚫 %s, no contest is running. Posts without a photo are removed.", who)
	default:
		return fmt.Sprintf("🚫 %s, this post was removed.", who)
	}
}

func galleryTitle(round int, at time.Time) string {
	return fmt.Sprintf("Vote gallery - Round %d - %s", round, at.Format("2006-01-02 15:04"))
}

func galleryHeader(roles []string, marker string) string {
	return fmt.Sprintf("🗳️ **Vote gallery - Round 1**\n%s\nReact with %s **in this thread** only.",
		withRoles(roles, "**time to vote!**"), marker)
}

func galleryOpenedNotice(roles []string, galleryID string) string {
	return withRoles(roles, fmt.Sprintf("🔔 **Vote thread open**: <#%s>", galleryID))
}

func tieBreakNotice(roles []string, marker string, minutes int, deadline time.Time) string {
	return fmt.Sprintf(
		"⚖️ **Tie! Round 2 is open for %s** (until %s UTC).\n%s\nOnly the messages below accept %s votes.",
		FormatDuration(minutes),
		deadline.UTC().Format("15:04"),
		withRoles(roles, "**vote again here** on the finalists."),
		marker,
	)
}

func tieBreakChannelNotice(roles []string, galleryID string) string {
	return withRoles(roles, fmt.Sprintf("Vote again **in the thread**!\n🔗 <#%s>", galleryID))
}

func ballotTitle(round int, index int) string {
	if round > entities.RoundOne {
		return fmt.Sprintf("Finalist #%d - Round %d", index, round)
	}
	return fmt.Sprintf("Photo #%d", index)
}

// announcementText renders the final word on a round for the results channel.
func announcementText(announcement entities.Announcement, linkFor func(entities.Winner) string) string {
	if announcement.NoVotes {
		if announcement.Round > entities.RoundOne {
			return "😕 No votes were counted during the second round."
		}
		return "😕 No votes were counted."
	}
	if len(announcement.Winners) == 1 && !announcement.TieFinal {
		winner := announcement.Winners[0]
		return fmt.Sprintf("🏅 **Winner (Round %d)!**\n%s wins with **%d** votes!\n\n🔗 %s",
			announcement.Round, mention(winner.OwnerID), announcement.DisplayVotes, linkFor(winner))
	}

	lines := make([]string, 0, len(announcement.Winners)+1)
	lines = append(lines, fmt.Sprintf("🏁 **End of Round %d - persisting tie: joint winners**", announcement.Round))
	for _, winner := range announcement.Winners {
		lines = append(lines, fmt.Sprintf("- %s - **%d** votes - %s",
			mention(winner.OwnerID), announcement.DisplayVotes, linkFor(winner)))
	}
	return strings.Join(lines, "\n")
}
