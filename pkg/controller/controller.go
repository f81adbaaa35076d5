// Package controller owns the single active-job slot: which job, if any, is
// running, and the lifecycle of that job.
//
//	idle -> triggering -> {queued|executing|waiting} -> {completed|failed|canceled} -> idle
//
// At most one job (batch or single) occupies the slot at any instant. Starting
// a job is a suspension point, so triggering is split into Begin (reserve the
// slot and mark targets processing) and Accept or Abort (bind the runner's job
// ID, or roll back). A Controller is not safe for concurrent use.
package controller

import (
	"sort"
	"time"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
	"github.com/jdziat/questionnaire-autoanswer/pkg/ledger"
	"github.com/jdziat/questionnaire-autoanswer/pkg/reconcile"
	"github.com/jdziat/questionnaire-autoanswer/pkg/store"
)

// Controller is the job slot state machine.
type Controller struct {
	store      *store.Store
	ledger     *ledger.Ledger
	reconciler *reconcile.Reconciler
	now        func() time.Time

	active *core.Job
	// previous processing status of each target, restored on Abort
	previous map[int]core.ProcessingStatus
}

// New creates a Controller. now defaults to time.Now when nil.
func New(s *store.Store, l *ledger.Ledger, r *reconcile.Reconciler, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{store: s, ledger: l, reconciler: r, now: now}
}

// Active returns a copy of the job occupying the slot, or nil.
func (c *Controller) Active() *core.Job {
	return c.active.Clone()
}

// IsActiveTarget reports whether index is targeted by the job in the slot.
func (c *Controller) IsActiveTarget(index int) bool {
	return c.active != nil && c.active.Targets(index)
}

// ActiveKind returns the kind of the job in the slot and whether there is one.
func (c *Controller) ActiveKind() (core.JobKind, bool) {
	if c.active == nil {
		return "", false
	}
	return c.active.Kind, true
}

func (c *Controller) conflict(requested core.JobKind) error {
	return &core.ConflictError{
		Requested:   requested,
		Active:      c.active.Kind,
		ActiveJobID: c.active.ID,
	}
}

// BeginBatch reserves the slot for a batch job over indices.
func (c *Controller) BeginBatch(indices []int) (*core.Job, error) {
	if c.active != nil {
		return nil, c.conflict(core.JobBatch)
	}
	targets := append([]int(nil), indices...)
	sort.Ints(targets)
	return c.begin(core.JobBatch, targets), nil
}

// BeginSingle reserves the slot for a single-question job. Any occupied slot
// is a conflict; callers route single-vs-single requests to the queue first.
func (c *Controller) BeginSingle(index int) (*core.Job, error) {
	if c.active != nil {
		return nil, c.conflict(core.JobSingle)
	}
	if _, ok := c.store.Get(index); !ok {
		return nil, core.ErrUnknownQuestion
	}
	return c.begin(core.JobSingle, []int{index}), nil
}

func (c *Controller) begin(kind core.JobKind, targets []int) *core.Job {
	c.active = &core.Job{
		Kind:          kind,
		TargetIndices: targets,
		Lifecycle:     core.LifecycleTriggering,
		TriggeredAt:   c.now(),
	}
	c.previous = make(map[int]core.ProcessingStatus, len(targets))
	for _, idx := range targets {
		if prev, ok := c.store.SetProcessing(idx, core.ProcessingActive); ok {
			c.previous[idx] = prev
		}
	}
	return c.active.Clone()
}

// Accept binds the runner-assigned job ID to the triggering job.
func (c *Controller) Accept(handle core.JobHandle) (*core.Job, error) {
	if c.active == nil || c.active.Lifecycle != core.LifecycleTriggering {
		return nil, core.ErrJobNotActive
	}
	now := c.now()
	c.active.ID = handle.JobID
	c.active.Lifecycle = core.LifecycleQueued
	c.active.AcceptedAt = &now
	c.previous = nil
	return c.active.Clone(), nil
}

// Abort rolls back a triggering job whose start was refused and frees the
// slot.
func (c *Controller) Abort(cause error) *core.TriggerError {
	if c.active == nil || c.active.Lifecycle != core.LifecycleTriggering {
		return &core.TriggerError{Err: cause}
	}
	job := c.active
	for idx, prev := range c.previous {
		rec, ok := c.store.Get(idx)
		if ok && rec.ProcessingStatus == core.ProcessingActive {
			rec.ProcessingStatus = prev
		}
	}
	c.active = nil
	c.previous = nil
	return &core.TriggerError{Kind: job.Kind, Indices: job.TargetIndices, Err: cause}
}

func (c *Controller) owns(jobID string) bool {
	return c.active != nil && c.active.ID != "" && c.active.ID == jobID
}

// Observe records a non-terminal lifecycle reported by the feed.
func (c *Controller) Observe(jobID string, lifecycle core.Lifecycle) bool {
	if !c.owns(jobID) || lifecycle.IsTerminal() || lifecycle == core.LifecycleTriggering {
		return false
	}
	c.active.Lifecycle = lifecycle
	return true
}

// Progress applies a partial result for the active job. Events for any other
// job are discarded, which is what keeps a stale partial from overriding a
// finished job's terminal output.
func (c *Controller) Progress(jobID string, res core.AnswerResult) (reconcile.Outcome, bool) {
	if !c.owns(jobID) {
		return reconcile.Outcome{}, false
	}
	if c.active.Lifecycle == core.LifecycleQueued || c.active.Lifecycle == core.LifecycleWaiting {
		c.active.Lifecycle = core.LifecycleExecuting
	}
	return c.reconciler.ApplyProgress(c.active, res), true
}

// Finalize applies the terminal output of the active job, frees the slot and
// drops the job's ledger entries. It returns the finished job.
func (c *Controller) Finalize(jobID string, results []core.AnswerResult) (*core.Job, reconcile.Outcome, bool) {
	if !c.owns(jobID) {
		return nil, reconcile.Outcome{}, false
	}
	out := c.reconciler.ApplyOutput(c.active, results)
	job := c.finish(core.LifecycleCompleted, "")
	return job, out, true
}

// CancelOrFail releases a job that the feed reported as failed or canceled.
// Every target still processing is downgraded to completed without a content
// change. It returns the finished job and the released indices.
func (c *Controller) CancelOrFail(jobID string, canceled bool, reason string) (*core.Job, []int, bool) {
	if !c.owns(jobID) {
		return nil, nil, false
	}
	var released []int
	for _, idx := range c.active.TargetIndices {
		rec, ok := c.store.Get(idx)
		if ok && rec.ProcessingStatus == core.ProcessingActive {
			rec.ProcessingStatus = core.ProcessingCompleted
			released = append(released, idx)
		}
	}
	lifecycle := core.LifecycleFailed
	if canceled {
		lifecycle = core.LifecycleCanceled
	}
	return c.finish(lifecycle, reason), released, true
}

func (c *Controller) finish(lifecycle core.Lifecycle, reason string) *core.Job {
	now := c.now()
	job := c.active
	job.Lifecycle = lifecycle
	job.Reason = reason
	job.FinishedAt = &now
	c.ledger.DiscardJob(job.ID)
	c.active = nil
	return job
}

// Stale reports whether the active job has been accepted for longer than
// timeout without reaching a terminal state.
func (c *Controller) Stale(now time.Time, timeout time.Duration) (*core.Job, bool) {
	if c.active == nil || c.active.AcceptedAt == nil || timeout <= 0 {
		return nil, false
	}
	if now.Sub(*c.active.AcceptedAt) < timeout {
		return nil, false
	}
	return c.active.Clone(), true
}
