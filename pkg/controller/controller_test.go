package controller

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
	"github.com/jdziat/questionnaire-autoanswer/pkg/ledger"
	"github.com/jdziat/questionnaire-autoanswer/pkg/reconcile"
	"github.com/jdziat/questionnaire-autoanswer/pkg/store"
)

func ptr(s string) *string { return &s }

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func setup(t *testing.T, n int) (*Controller, *store.Store, *ledger.Ledger) {
	t.Helper()
	inputs := make([]core.QuestionInput, n)
	for i := range inputs {
		inputs[i] = core.QuestionInput{Question: "question"}
	}
	s := store.New(inputs)
	l := ledger.New()
	r := reconcile.New(s, l)
	return New(s, l, r, func() time.Time { return epoch }), s, l
}

func status(t *testing.T, s *store.Store, idx int) core.ProcessingStatus {
	t.Helper()
	r, ok := s.Get(idx)
	require.True(t, ok)
	return r.ProcessingStatus
}

func startBatch(t *testing.T, c *Controller, jobID string, indices ...int) *core.Job {
	t.Helper()
	_, err := c.BeginBatch(indices)
	require.NoError(t, err)
	job, err := c.Accept(core.JobHandle{JobID: jobID, Kind: core.JobBatch})
	require.NoError(t, err)
	return job
}

// ---------------------------------------------------------------------------
// Triggering
// ---------------------------------------------------------------------------

func TestBeginBatch_MarksTargetsProcessing(t *testing.T) {
	c, s, _ := setup(t, 4)

	job, err := c.BeginBatch([]int{2, 0, 3})
	require.NoError(t, err)

	assert.Equal(t, core.JobBatch, job.Kind)
	assert.Equal(t, core.LifecycleTriggering, job.Lifecycle)
	assert.Empty(t, job.ID, "job ID is assigned only once the runner accepts")
	assert.Equal(t, []int{0, 2, 3}, job.TargetIndices)
	assert.Equal(t, epoch, job.TriggeredAt)

	assert.Equal(t, core.ProcessingActive, status(t, s, 0))
	assert.Equal(t, core.ProcessingIdle, status(t, s, 1))
	assert.Equal(t, core.ProcessingActive, status(t, s, 2))
	assert.Equal(t, core.ProcessingActive, status(t, s, 3))
}

func TestAccept_BindsJobID(t *testing.T) {
	c, _, _ := setup(t, 2)
	_, err := c.BeginBatch([]int{0, 1})
	require.NoError(t, err)

	job, err := c.Accept(core.JobHandle{JobID: "run-1", Kind: core.JobBatch})
	require.NoError(t, err)
	assert.Equal(t, "run-1", job.ID)
	assert.Equal(t, core.LifecycleQueued, job.Lifecycle)
	require.NotNil(t, job.AcceptedAt)

	_, err = c.Accept(core.JobHandle{JobID: "run-2"})
	assert.ErrorIs(t, err, core.ErrJobNotActive)
}

func TestAbort_RollsBackOptimisticMarks(t *testing.T) {
	c, s, _ := setup(t, 3)
	rec, _ := s.Get(1)
	rec.ProcessingStatus = core.ProcessingCompleted

	_, err := c.BeginBatch([]int{0, 1})
	require.NoError(t, err)

	cause := errors.New("runner unavailable")
	terr := c.Abort(cause)
	require.NotNil(t, terr)
	assert.ErrorIs(t, terr, cause)
	assert.Equal(t, core.JobBatch, terr.Kind)
	assert.Equal(t, []int{0, 1}, terr.Indices)

	assert.Equal(t, core.ProcessingIdle, status(t, s, 0))
	assert.Equal(t, core.ProcessingCompleted, status(t, s, 1))
	assert.Nil(t, c.Active())

	_, err = c.BeginSingle(2)
	assert.NoError(t, err, "slot is free after abort")
}

func TestBeginSingle_UnknownIndex(t *testing.T) {
	c, _, _ := setup(t, 1)
	_, err := c.BeginSingle(5)
	assert.ErrorIs(t, err, core.ErrUnknownQuestion)
	assert.Nil(t, c.Active())
}

// ---------------------------------------------------------------------------
// Mutual exclusion
// ---------------------------------------------------------------------------

func TestSingleRejectedWhileBatchActive(t *testing.T) {
	c, s, _ := setup(t, 3)
	startBatch(t, c, "batch-1", 0, 2)

	_, err := c.BeginSingle(1)
	require.Error(t, err)
	assert.True(t, core.IsConflict(err))

	var ce *core.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.JobSingle, ce.Requested)
	assert.Equal(t, core.JobBatch, ce.Active)
	assert.Equal(t, "batch-1", ce.ActiveJobID)

	assert.Equal(t, core.ProcessingIdle, status(t, s, 1), "rejected trigger leaves the record untouched")
}

func TestBatchRejectedWhileSingleTriggering(t *testing.T) {
	c, _, _ := setup(t, 3)
	_, err := c.BeginSingle(1)
	require.NoError(t, err)

	_, err = c.BeginBatch([]int{0, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting")
}

func TestNeverTwoActiveJobs(t *testing.T) {
	c, _, _ := setup(t, 4)
	type step struct {
		batch bool
		index int
	}
	steps := []step{{true, 0}, {false, 1}, {false, 2}, {true, 0}, {false, 3}}
	for i, st := range steps {
		var err error
		if st.batch {
			_, err = c.BeginBatch([]int{0, 1, 2, 3})
		} else {
			_, err = c.BeginSingle(st.index)
		}
		if i == 0 {
			require.NoError(t, err)
			_, err = c.Accept(core.JobHandle{JobID: "first"})
			require.NoError(t, err)
			continue
		}
		assert.True(t, core.IsConflict(err), "step %d", i)
		assert.Equal(t, "first", c.Active().ID)
	}
}

// ---------------------------------------------------------------------------
// Feed handling
// ---------------------------------------------------------------------------

func TestObserve_TracksLifecycle(t *testing.T) {
	c, _, _ := setup(t, 1)
	startBatch(t, c, "job-1", 0)

	assert.True(t, c.Observe("job-1", core.LifecycleExecuting))
	assert.Equal(t, core.LifecycleExecuting, c.Active().Lifecycle)
	assert.True(t, c.Observe("job-1", core.LifecycleWaiting))
	assert.False(t, c.Observe("job-1", core.LifecycleCompleted), "terminal states come through Finalize")
	assert.False(t, c.Observe("other", core.LifecycleExecuting))
	assert.Equal(t, core.LifecycleWaiting, c.Active().Lifecycle)
}

func TestProgress_OnlyForActiveJob(t *testing.T) {
	c, s, _ := setup(t, 2)
	startBatch(t, c, "job-1", 0, 1)

	_, ok := c.Progress("stale", core.AnswerResult{OriginalIndex: 0, Answer: ptr("Nope")})
	assert.False(t, ok)

	out, ok := c.Progress("job-1", core.AnswerResult{OriginalIndex: 0, Answer: ptr("Yes")})
	require.True(t, ok)
	assert.Len(t, out.Writes, 1)
	assert.Equal(t, core.LifecycleExecuting, c.Active().Lifecycle)
	assert.Equal(t, core.ProcessingCompleted, status(t, s, 0))
	assert.Equal(t, core.ProcessingActive, status(t, s, 1))
}

func TestFinalize_FreesSlotAndLedger(t *testing.T) {
	c, s, l := setup(t, 3)
	startBatch(t, c, "job-1", 0, 1, 2)

	_, ok := c.Progress("job-1", core.AnswerResult{OriginalIndex: 0, Answer: ptr("Yes")})
	require.True(t, ok)
	assert.Equal(t, 1, l.JobLen("job-1"))

	job, out, ok := c.Finalize("job-1", []core.AnswerResult{{OriginalIndex: 1, Answer: ptr("No")}})
	require.True(t, ok)
	assert.Equal(t, core.LifecycleCompleted, job.Lifecycle)
	require.NotNil(t, job.FinishedAt)
	assert.Len(t, out.Writes, 1)

	for i := 0; i < 3; i++ {
		assert.Equal(t, core.ProcessingCompleted, status(t, s, i))
	}
	assert.Nil(t, c.Active())
	assert.Equal(t, 0, l.Len())

	// A stale partial after the terminal is dropped.
	_, ok = c.Progress("job-1", core.AnswerResult{OriginalIndex: 1, Answer: ptr("Maybe")})
	assert.False(t, ok)
	rec, _ := s.Get(1)
	assert.Equal(t, "No", *rec.Answer)
}

func TestCancelOrFail_ReleasesSpinners(t *testing.T) {
	c, s, _ := setup(t, 3)
	startBatch(t, c, "job-1", 0, 1, 2)
	_, ok := c.Progress("job-1", core.AnswerResult{OriginalIndex: 1, Answer: ptr("Yes")})
	require.True(t, ok)

	job, released, ok := c.CancelOrFail("job-1", false, "runner crashed")
	require.True(t, ok)
	assert.Equal(t, core.LifecycleFailed, job.Lifecycle)
	assert.Equal(t, "runner crashed", job.Reason)
	assert.Equal(t, []int{0, 2}, released)

	for i := 0; i < 3; i++ {
		assert.Equal(t, core.ProcessingCompleted, status(t, s, i))
	}
	rec, _ := s.Get(0)
	assert.False(t, rec.FailedToGenerate, "failure does not mark records as failed to generate")
	assert.Nil(t, rec.Answer)
	assert.Nil(t, c.Active())
}

func TestCancelOrFail_Canceled(t *testing.T) {
	c, _, _ := setup(t, 1)
	_, err := c.BeginSingle(0)
	require.NoError(t, err)
	_, err = c.Accept(core.JobHandle{JobID: "single-1", Kind: core.JobSingle})
	require.NoError(t, err)

	_, _, ok := c.CancelOrFail("other", true, "")
	assert.False(t, ok)

	job, released, ok := c.CancelOrFail("single-1", true, "user canceled")
	require.True(t, ok)
	assert.Equal(t, core.LifecycleCanceled, job.Lifecycle)
	assert.Equal(t, []int{0}, released)
}

func TestStale(t *testing.T) {
	c, _, _ := setup(t, 1)

	_, stale := c.Stale(epoch.Add(time.Hour), time.Minute)
	assert.False(t, stale, "no active job")

	startBatch(t, c, "job-1", 0)

	_, stale = c.Stale(epoch.Add(30*time.Second), time.Minute)
	assert.False(t, stale)

	_, stale = c.Stale(epoch.Add(time.Hour), 0)
	assert.False(t, stale, "zero timeout waits indefinitely")

	job, stale := c.Stale(epoch.Add(2*time.Minute), time.Minute)
	assert.True(t, stale)
	assert.Equal(t, "job-1", job.ID)
}
