package core

import "time"

// JobKind distinguishes batch jobs from single-question jobs.
type JobKind string

const (
	JobBatch  JobKind = "batch"
	JobSingle JobKind = "single"
)

// Lifecycle represents the current state of a job.
type Lifecycle string

const (
	LifecycleTriggering Lifecycle = "triggering"
	LifecycleQueued     Lifecycle = "queued"
	LifecycleExecuting  Lifecycle = "executing"
	LifecycleWaiting    Lifecycle = "waiting"
	LifecycleCompleted  Lifecycle = "completed"
	LifecycleFailed     Lifecycle = "failed"
	LifecycleCanceled   Lifecycle = "canceled"
)

// IsTerminal reports whether the lifecycle is completed, failed or canceled.
func (l Lifecycle) IsTerminal() bool {
	switch l {
	case LifecycleCompleted, LifecycleFailed, LifecycleCanceled:
		return true
	}
	return false
}

// Job is one external unit of answer-generation work.
type Job struct {
	Kind          JobKind
	ID            string // assigned by the runner once triggered
	TargetIndices []int
	Lifecycle     Lifecycle
	Reason        string
	TriggeredAt   time.Time
	AcceptedAt    *time.Time
	FinishedAt    *time.Time
}

// Targets reports whether index is one of the job's targets.
func (j *Job) Targets(index int) bool {
	for _, i := range j.TargetIndices {
		if i == index {
			return true
		}
	}
	return false
}

// Clone returns a copy safe to hand to callers.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.TargetIndices = append([]int(nil), j.TargetIndices...)
	return &c
}

// Question is what a runner receives for each targeted record.
type Question struct {
	OriginalIndex int    `json:"originalIndex"`
	RecordID      string `json:"recordId"`
	Text          string `json:"question"`
}

// JobHandle identifies a job accepted by a runner.
type JobHandle struct {
	JobID string
	Kind  JobKind
}
