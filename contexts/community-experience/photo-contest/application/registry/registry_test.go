package registry

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	domainerrors "photocontest/contexts/community-experience/photo-contest/domain/errors"
)

func submission(id string) entities.Submission {
	return entities.Submission{
		SubmissionID: id,
		Media:        entities.MediaRef{URL: "https://cdn.example/" + id + ".jpg", Kind: "image"},
	}
}

func TestRecordSubmissionRejectsSecondSlot(t *testing.T) {
	reg := New(nil)

	require.NoError(t, reg.RecordSubmission("user-a", submission("msg-1")))
	err := reg.RecordSubmission("user-a", submission("msg-2"))
	require.ErrorIs(t, err, domainerrors.ErrDuplicateSlot)

	assert.True(t, reg.HasSlot("user-a"))
	assert.Equal(t, 1, reg.Count())
	live := reg.Live()
	require.Len(t, live, 1)
	assert.Equal(t, "msg-1", live[0].SubmissionID)
}

func TestRecordSubmissionReplayIsAccepted(t *testing.T) {
	reg := New(nil)
	require.NoError(t, reg.RecordSubmission("user-a", submission("msg-1")))
	require.NoError(t, reg.RecordSubmission("user-a", submission("msg-1")))
	assert.Len(t, reg.Live(), 1)
}

func TestRecordSubmissionValidatesInput(t *testing.T) {
	reg := New(nil)
	assert.ErrorIs(t, reg.RecordSubmission("", submission("msg-1")), domainerrors.ErrInvalidSubmission)
	assert.ErrorIs(t, reg.RecordSubmission("user-a", submission(" ")), domainerrors.ErrInvalidSubmission)

	require.NoError(t, reg.RecordSubmission("user-a", submission("msg-1")))
	assert.ErrorIs(t, reg.RecordSubmission("user-b", submission("msg-1")), domainerrors.ErrInvalidSubmission)
}

func TestReleaseByMessageUnknownIsNoop(t *testing.T) {
	reg := New(nil)
	require.NoError(t, reg.RecordSubmission("user-a", submission("msg-1")))

	_, released := reg.ReleaseByMessage("msg-404")
	assert.False(t, released)
	_, released = reg.ReleaseByMessage("msg-404")
	assert.False(t, released)

	assert.True(t, reg.HasSlot("user-a"))
	assert.Equal(t, 1, reg.Count())
}

func TestReleaseFreesSlotFully(t *testing.T) {
	reg := New(nil)
	require.NoError(t, reg.RecordSubmission("user-a", submission("msg-1")))

	released, ok := reg.ReleaseByMessage("msg-1")
	require.True(t, ok)
	assert.Equal(t, "user-a", released.OwnerID)
	assert.False(t, reg.HasSlot("user-a"))

	require.NoError(t, reg.RecordSubmission("user-a", submission("msg-3")))
	got, ok := reg.Lookup("msg-3")
	require.True(t, ok)
	assert.Equal(t, "user-a", got.OwnerID)
	_, ok = reg.Lookup("msg-1")
	assert.False(t, ok)
}

func TestLivePreservesAcceptanceOrder(t *testing.T) {
	reg := New(nil)
	require.NoError(t, reg.RecordSubmission("user-a", submission("msg-1")))
	require.NoError(t, reg.RecordSubmission("user-b", submission("msg-2")))
	require.NoError(t, reg.RecordSubmission("user-c", submission("msg-3")))
	reg.ReleaseByMessage("msg-2")
	require.NoError(t, reg.RecordSubmission("user-b", submission("msg-4")))

	var ids []string
	for _, item := range reg.Live() {
		ids = append(ids, item.SubmissionID)
	}
	assert.Equal(t, []string{"msg-1", "msg-3", "msg-4"}, ids)
}

func TestResetAllClearsState(t *testing.T) {
	reg := New(nil)
	require.NoError(t, reg.RecordSubmission("user-a", submission("msg-1")))
	reg.ResetAll()
	assert.False(t, reg.HasSlot("user-a"))
	assert.Empty(t, reg.Live())
	require.NoError(t, reg.RecordSubmission("user-a", submission("msg-2")))
}

func TestAtMostOneSlotPerOwnerUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	reg := New(nil)
	owners := []string{"u1", "u2", "u3"}
	var posted []string

	for step := range 500 {
		if rng.Intn(3) == 0 && len(posted) > 0 {
			reg.ReleaseByMessage(posted[rng.Intn(len(posted))])
		} else {
			id := fmt.Sprintf("msg-%d", step)
			posted = append(posted, id)
			_ = reg.RecordSubmission(owners[rng.Intn(len(owners))], submission(id))
		}

		seen := map[string]int{}
		for _, item := range reg.Live() {
			seen[item.OwnerID]++
		}
		for owner, n := range seen {
			require.LessOrEqualf(t, n, 1, "owner %s holds %d slots at step %d", owner, n, step)
		}
	}
}

func TestConcurrentRecordsGrantOneSlot(t *testing.T) {
	reg := New(nil)
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0

	for i := range 32 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := reg.RecordSubmission("user-a", submission(fmt.Sprintf("msg-%d", i))); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, reg.Count())
}
