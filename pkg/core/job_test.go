package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLifecycle_IsTerminal(t *testing.T) {
	assert.False(t, LifecycleTriggering.IsTerminal())
	assert.False(t, LifecycleQueued.IsTerminal())
	assert.False(t, LifecycleExecuting.IsTerminal())
	assert.False(t, LifecycleWaiting.IsTerminal())
	assert.True(t, LifecycleCompleted.IsTerminal())
	assert.True(t, LifecycleFailed.IsTerminal())
	assert.True(t, LifecycleCanceled.IsTerminal())
}

func TestJob_TargetsAndClone(t *testing.T) {
	job := &Job{Kind: JobBatch, ID: "job-1", TargetIndices: []int{0, 2, 4}}

	assert.True(t, job.Targets(2))
	assert.False(t, job.Targets(3))

	c := job.Clone()
	c.TargetIndices[0] = 99
	assert.Equal(t, 0, job.TargetIndices[0], "clone must not share targets")

	var nilJob *Job
	assert.Nil(t, nilJob.Clone())
}

func TestQuestionRecord_HasAnswer(t *testing.T) {
	blank := "   "
	text := "We encrypt data at rest."

	assert.False(t, (&QuestionRecord{}).HasAnswer())
	assert.False(t, (&QuestionRecord{Answer: &blank}).HasAnswer())
	assert.True(t, (&QuestionRecord{Answer: &text}).HasAnswer())
}

func TestQuestionRecord_CloneIsDeep(t *testing.T) {
	text := "Yes"
	rec := &QuestionRecord{
		OriginalIndex: 3,
		Answer:        &text,
		Sources:       []SourceRef{{SourceType: "policy", Name: "Access Control"}},
	}

	c := rec.Clone()
	*c.Answer = "No"
	c.Sources[0].Name = "changed"

	assert.Equal(t, "Yes", *rec.Answer)
	assert.Equal(t, "Access Control", rec.Sources[0].Name)
}

func TestSourcesEqual(t *testing.T) {
	a := []SourceRef{{SourceType: "policy", SourceID: "p1"}}
	b := []SourceRef{{SourceType: "policy", SourceID: "p1"}}
	c := []SourceRef{{SourceType: "policy", SourceID: "p2"}}

	assert.True(t, SourcesEqual(a, b))
	assert.False(t, SourcesEqual(a, c))
	assert.False(t, SourcesEqual(a, nil))
	assert.True(t, SourcesEqual(nil, []SourceRef{}))
}
