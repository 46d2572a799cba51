package tiebreak

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"photocontest/contexts/community-experience/photo-contest/adapters/memory"
	"photocontest/contexts/community-experience/photo-contest/application/ballots"
	"photocontest/contexts/community-experience/photo-contest/application/tally"
	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	domainerrors "photocontest/contexts/community-experience/photo-contest/domain/errors"
	"photocontest/contexts/community-experience/photo-contest/ports"
)

const marker = "👍"

type fixture struct {
	platform    *memory.Platform
	projection  *ballots.Projection
	timers      *memory.Timers
	clock       *memory.Clock
	scheduler   *Scheduler
	roundOne    []entities.Ballot
	mu          sync.Mutex
	resolutions []Resolution
}

func newFixture(t *testing.T, timers ports.TimerFactory) *fixture {
	t.Helper()
	f := &fixture{
		platform: memory.NewPlatform(),
		clock:    memory.NewClock(time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)),
	}
	if manual, ok := timers.(*memory.Timers); ok {
		f.timers = manual
	}
	f.projection = ballots.New(ballots.Config{Publisher: f.platform, Clock: f.clock, Marker: marker})
	f.scheduler = New(Config{
		Projection: f.projection,
		Tally:      tally.Engine{Reactions: f.platform, Marker: marker},
		Platform:   f.platform,
		Timers:     timers,
		Clock:      f.clock,
		OnResolved: func(_ context.Context, resolution Resolution) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.resolutions = append(f.resolutions, resolution)
		},
	})

	var subs []entities.Submission
	for _, id := range []string{"m1", "m2", "m3"} {
		sub := entities.Submission{
			SubmissionID: id,
			OwnerID:      "owner-" + id,
			Media:        entities.MediaRef{URL: "https://cdn.example/" + id + ".jpg", Kind: "image"},
		}
		subs = append(subs, sub)
	}
	roundOne, err := f.projection.PublishRound(context.Background(), entities.RoundOne, "gallery-1", subs)
	require.NoError(t, err)
	f.roundOne = roundOne
	return f
}

func (f *fixture) resolved() []Resolution {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Resolution(nil), f.resolutions...)
}

func (f *fixture) tiedLeaders() []entities.Ballot {
	return []entities.Ballot{f.roundOne[0], f.roundOne[2]}
}

func TestArmPublishesFinalistsAndLocksRoundOne(t *testing.T) {
	f := newFixture(t, memory.NewTimers())

	finalists, err := f.scheduler.Arm(context.Background(), "gallery-1", f.tiedLeaders(), 6*time.Hour)
	require.NoError(t, err)
	require.Len(t, finalists, 2)
	assert.Equal(t, "m1", finalists[0].SubmissionID)
	assert.Equal(t, "m3", finalists[1].SubmissionID)
	assert.Equal(t, StateArmed, f.scheduler.State())

	deadline, ok := f.scheduler.Deadline()
	require.True(t, ok)
	assert.Equal(t, f.clock.Now().Add(6*time.Hour), deadline)

	pending := f.timers.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 6*time.Hour, pending[0].Delay)

	assert.Empty(t, f.projection.EligibleBallots(entities.RoundOne))
	assert.Len(t, f.platform.Cleared(), 3)
	edits := f.platform.Edits(f.roundOne[0].BallotID)
	require.Len(t, edits, 1)
	assert.Equal(t, "Photo #1 "+LockedBadge, edits[0].Title)
	assert.Equal(t, "https://cdn.example/m1.jpg", edits[0].MediaURL)
	assert.Equal(t, "owner-m1", edits[0].Footer)

	unvoted := f.platform.Edits(f.roundOne[1].BallotID)
	require.Len(t, unvoted, 1)
	assert.Equal(t, "https://cdn.example/m2.jpg", unvoted[0].MediaURL)
}

func TestArmTwiceFailsWithAlreadyArmed(t *testing.T) {
	f := newFixture(t, memory.NewTimers())
	_, err := f.scheduler.Arm(context.Background(), "gallery-1", f.tiedLeaders(), time.Hour)
	require.NoError(t, err)

	_, err = f.scheduler.Arm(context.Background(), "gallery-1", f.tiedLeaders(), time.Hour)
	require.ErrorIs(t, err, domainerrors.ErrAlreadyArmed)
	assert.Len(t, f.timers.All(), 1)
}

func TestConcurrentArmArmsOnce(t *testing.T) {
	for range 20 {
		f := newFixture(t, memory.NewTimers())

		start := make(chan struct{})
		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := f.scheduler.Arm(context.Background(), "gallery-1", f.tiedLeaders(), time.Hour)
				errs <- err
			}()
		}
		close(start)
		wg.Wait()
		close(errs)

		var armed, rejected int
		for err := range errs {
			switch {
			case err == nil:
				armed++
			case errors.Is(err, domainerrors.ErrAlreadyArmed):
				rejected++
			default:
				t.Fatalf("unexpected arm error: %v", err)
			}
		}
		assert.Equal(t, 1, armed)
		assert.Equal(t, 1, rejected)
		assert.Len(t, f.projection.Ballots(entities.RoundTwo), 2)
		assert.Len(t, f.timers.All(), 1)
		assert.Len(t, f.platform.Edits(f.roundOne[0].BallotID), 1)
		assert.Equal(t, StateArmed, f.scheduler.State())
	}
}

func TestArmUsesBallotSnapshotForFinalists(t *testing.T) {
	f := newFixture(t, memory.NewTimers())
	leaders := f.tiedLeaders()
	leaders[0].SubmissionID = "gone"

	finalists, err := f.scheduler.Arm(context.Background(), "gallery-1", leaders, time.Hour)
	require.NoError(t, err)
	require.Len(t, finalists, 2)
	assert.Equal(t, "m1", finalists[0].SubmissionID)

	snapshot, ok := f.projection.SubmissionFor(finalists[0].BallotID)
	require.True(t, ok)
	assert.Equal(t, "owner-m1", snapshot.OwnerID)
}

func TestArmRejectsNonPositiveDuration(t *testing.T) {
	f := newFixture(t, memory.NewTimers())
	_, err := f.scheduler.Arm(context.Background(), "gallery-1", f.tiedLeaders(), 0)
	require.ErrorIs(t, err, domainerrors.ErrInvalidTieDuration)
	assert.Equal(t, StateInactive, f.scheduler.State())
}

func TestDeadlineResolvesOnceFromRoundTwoCountsOnly(t *testing.T) {
	f := newFixture(t, memory.NewTimers())
	f.platform.AddVotes(f.roundOne[1].BallotID, 40)

	finalists, err := f.scheduler.Arm(context.Background(), "gallery-1", f.tiedLeaders(), time.Hour)
	require.NoError(t, err)
	f.platform.AddVotes(finalists[1].BallotID, 3)

	assert.Equal(t, 1, f.timers.FireAll())
	assert.Zero(t, f.timers.FireAll())

	resolutions := f.resolved()
	require.Len(t, resolutions, 1)
	assert.Equal(t, entities.TriggerDeadline, resolutions[0].Trigger)
	require.Len(t, resolutions[0].Leaders, 1)
	assert.Equal(t, "m3", resolutions[0].Leaders[0].SubmissionID)
	assert.False(t, resolutions[0].TieFinal)
	assert.Equal(t, StateInactive, f.scheduler.State())
	assert.Empty(t, f.projection.EligibleBallots(entities.RoundTwo))
}

func TestManualCloseCancelsTimer(t *testing.T) {
	f := newFixture(t, memory.NewTimers())
	_, err := f.scheduler.Arm(context.Background(), "gallery-1", f.tiedLeaders(), time.Hour)
	require.NoError(t, err)
	timer := f.timers.Pending()[0]

	resolution, err := f.scheduler.ResolveNow(context.Background(), entities.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, entities.TriggerManual, resolution.Trigger)
	assert.Empty(t, f.timers.Pending())

	timer.FireStale()
	assert.Len(t, f.resolved(), 1)

	_, err = f.scheduler.ResolveNow(context.Background(), entities.TriggerManual)
	require.ErrorIs(t, err, domainerrors.ErrNotArmed)
}

func TestStillTiedRoundTwoIsFinal(t *testing.T) {
	f := newFixture(t, memory.NewTimers())
	finalists, err := f.scheduler.Arm(context.Background(), "gallery-1", f.tiedLeaders(), time.Hour)
	require.NoError(t, err)
	f.platform.AddVotes(finalists[0].BallotID, 2)
	f.platform.AddVotes(finalists[1].BallotID, 2)

	resolution, err := f.scheduler.ResolveNow(context.Background(), entities.TriggerManual)
	require.NoError(t, err)
	assert.True(t, resolution.TieFinal)
	assert.Len(t, resolution.Leaders, 2)
	assert.Equal(t, 2, resolution.Result.DisplayMaxVotes())
}

func TestArmProceedsWithPublishedFinalistsOnly(t *testing.T) {
	f := newFixture(t, memory.NewTimers())
	f.platform.FailPublishFor("https://cdn.example/m1.jpg")

	finalists, err := f.scheduler.Arm(context.Background(), "gallery-1", f.tiedLeaders(), time.Hour)
	require.NoError(t, err)
	require.Len(t, finalists, 1)
	assert.Equal(t, "m3", finalists[0].SubmissionID)
	assert.Equal(t, StateArmed, f.scheduler.State())
}

func TestArmWithNoPublishableFinalistStaysInactive(t *testing.T) {
	f := newFixture(t, memory.NewTimers())
	f.platform.FailPublishFor("https://cdn.example/m1.jpg")
	f.platform.FailPublishFor("https://cdn.example/m3.jpg")

	_, err := f.scheduler.Arm(context.Background(), "gallery-1", f.tiedLeaders(), time.Hour)
	require.ErrorIs(t, err, domainerrors.ErrExternalCapability)
	assert.Equal(t, StateInactive, f.scheduler.State())
	assert.Empty(t, f.timers.All())
}

func TestAbortDisarmsPendingTimer(t *testing.T) {
	f := newFixture(t, memory.NewTimers())
	_, err := f.scheduler.Arm(context.Background(), "gallery-1", f.tiedLeaders(), time.Hour)
	require.NoError(t, err)
	timer := f.timers.All()[0]

	f.scheduler.Abort()
	timer.FireStale()

	assert.Empty(t, f.resolved())
	assert.Equal(t, StateInactive, f.scheduler.State())
	_, ok := f.scheduler.Deadline()
	assert.False(t, ok)
}

type runtimeTimers struct{}

func (runtimeTimers) AfterFunc(d time.Duration, fn func()) ports.Timer {
	return time.AfterFunc(d, fn)
}

func TestConcurrentManualCloseAndDeadlineAnnounceOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	for range 20 {
		f := newFixture(t, runtimeTimers{})
		_, err := f.scheduler.Arm(context.Background(), "gallery-1", f.tiedLeaders(), time.Millisecond)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var manualWins atomic.Int32
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.scheduler.ResolveNow(context.Background(), entities.TriggerManual); err == nil {
				manualWins.Add(1)
			}
		}()
		wg.Wait()

		require.Eventually(t, func() bool {
			return f.scheduler.State() == StateInactive && len(f.resolved()) >= 1
		}, time.Second, time.Millisecond)
		time.Sleep(5 * time.Millisecond)
		assert.Len(t, f.resolved(), 1)
		assert.LessOrEqual(t, manualWins.Load(), int32(1))
	}
}
