package tally

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photocontest/contexts/community-experience/photo-contest/domain/entities"
)

type stubReactions struct {
	counts map[string]int
	fail   map[string]bool
	calls  int
}

func (s *stubReactions) FetchReactionCount(_ context.Context, surfaceID string, _ string) (int, error) {
	s.calls++
	if s.fail[surfaceID] {
		return 0, errors.New("rate limited")
	}
	return s.counts[surfaceID], nil
}

func ballots(ids ...string) []entities.Ballot {
	items := make([]entities.Ballot, 0, len(ids))
	for i, id := range ids {
		items = append(items, entities.Ballot{BallotID: id, SubmissionID: "sub-" + id, Round: entities.RoundOne, Index: i + 1, Eligible: true})
	}
	return items
}

func TestTallyReturnsTiedLeaders(t *testing.T) {
	reactions := &stubReactions{counts: map[string]int{"b1": 5, "b2": 5, "b3": 3}}
	result := Engine{Reactions: reactions, Marker: "👍"}.Tally(context.Background(), ballots("b1", "b2", "b3"))

	assert.Equal(t, 5, result.MaxVotes)
	assert.Equal(t, 4, result.DisplayMaxVotes())
	require.Len(t, result.Leaders, 2)
	assert.Equal(t, "b1", result.Leaders[0].BallotID)
	assert.Equal(t, "b2", result.Leaders[1].BallotID)
	assert.Len(t, result.Counts, 3)
}

func TestTallySingleLeader(t *testing.T) {
	reactions := &stubReactions{counts: map[string]int{"b1": 2, "b2": 7}}
	result := Engine{Reactions: reactions}.Tally(context.Background(), ballots("b1", "b2"))

	require.Len(t, result.Leaders, 1)
	assert.Equal(t, "sub-b2", result.Leaders[0].SubmissionID)
}

func TestTallyAllZeroHasNoLeaders(t *testing.T) {
	reactions := &stubReactions{counts: map[string]int{}}
	result := Engine{Reactions: reactions}.Tally(context.Background(), ballots("b1", "b2"))

	assert.Zero(t, result.MaxVotes)
	assert.Empty(t, result.Leaders)
	assert.False(t, result.Empty())
	assert.Equal(t, 0, result.DisplayMaxVotes())
}

func TestTallyEmptyBallotSet(t *testing.T) {
	reactions := &stubReactions{}
	result := Engine{Reactions: reactions}.Tally(context.Background(), nil)

	assert.True(t, result.Empty())
	assert.Empty(t, result.Leaders)
	assert.Zero(t, reactions.calls)
}

func TestTallyFetchFailureCountsZero(t *testing.T) {
	reactions := &stubReactions{
		counts: map[string]int{"b1": 9, "b2": 4},
		fail:   map[string]bool{"b1": true},
	}
	result := Engine{Reactions: reactions}.Tally(context.Background(), ballots("b1", "b2"))

	assert.Equal(t, 0, result.Counts[0].Votes)
	assert.Equal(t, 4, result.MaxVotes)
	require.Len(t, result.Leaders, 1)
	assert.Equal(t, "b2", result.Leaders[0].BallotID)
}

func TestDisplayVotesNeverNegative(t *testing.T) {
	assert.Equal(t, 0, entities.DisplayVotes(0))
	assert.Equal(t, 0, entities.DisplayVotes(1))
	assert.Equal(t, 2, entities.DisplayVotes(3))
}
