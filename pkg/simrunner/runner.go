// Package simrunner provides an in-process core.JobRunner.
//
// Tests script a job's feed event by event with Emit and its helpers. The CLI
// installs a Generator so every started job answers its questions on its own
// after a configurable delay.
package simrunner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
)

// Runner errors
var (
	ErrUnknownJob   = errors.New("simrunner: unknown job")
	ErrFeedFull     = errors.New("simrunner: feed buffer full")
	ErrRunnerClosed = errors.New("simrunner: runner closed")
)

// Generator produces an answer for one question. A nil answer means the job
// found nothing.
type Generator func(q core.Question) (*string, []core.SourceRef)

// Start records one accepted start call.
type Start struct {
	Handle    core.JobHandle
	Questions []core.Question
}

type job struct {
	handle    core.JobHandle
	questions []core.Question
	events    chan core.FeedEvent
}

// Runner is an in-process job runner. It is safe for concurrent use.
type Runner struct {
	config *Config

	mu       sync.Mutex
	jobs     map[string]*job
	starts   []Start
	failNext []error
	closed   bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	cfg := NewConfig()
	for _, opt := range opts {
		opt.ApplyRunner(cfg)
	}
	return &Runner{
		config: cfg,
		jobs:   make(map[string]*job),
		done:   make(chan struct{}),
	}
}

// FailNextStart makes the next start call return err.
func (r *Runner) FailNextStart(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = append(r.failNext, err)
}

// StartBatch implements core.JobRunner.
func (r *Runner) StartBatch(ctx context.Context, questions []core.Question) (core.JobHandle, error) {
	return r.start(ctx, core.JobBatch, questions)
}

// StartSingle implements core.JobRunner.
func (r *Runner) StartSingle(ctx context.Context, question core.Question) (core.JobHandle, error) {
	return r.start(ctx, core.JobSingle, []core.Question{question})
}

func (r *Runner) start(ctx context.Context, kind core.JobKind, questions []core.Question) (core.JobHandle, error) {
	if err := ctx.Err(); err != nil {
		return core.JobHandle{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return core.JobHandle{}, ErrRunnerClosed
	}
	if len(r.failNext) > 0 {
		err := r.failNext[0]
		r.failNext = r.failNext[1:]
		return core.JobHandle{}, err
	}

	j := &job{
		handle:    core.JobHandle{JobID: uuid.New().String(), Kind: kind},
		questions: append([]core.Question(nil), questions...),
		events:    make(chan core.FeedEvent, r.config.Buffer),
	}
	r.jobs[j.handle.JobID] = j
	r.starts = append(r.starts, Start{Handle: j.handle, Questions: j.questions})
	r.config.Logger.Debug("job started", "job_id", j.handle.JobID, "kind", kind, "questions", len(questions))

	if r.config.Generator != nil {
		r.wg.Add(1)
		go r.generate(j)
	}
	return j.handle, nil
}

// Subscribe implements core.JobRunner.
func (r *Runner) Subscribe(ctx context.Context, handle core.JobHandle) (core.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	j, ok := r.jobs[handle.JobID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, handle.JobID)
	}
	return newSubscription(j.events, r.done), nil
}

// Starts returns every accepted start call in order.
func (r *Runner) Starts() []Start {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Start(nil), r.starts...)
}

// LastStart returns the most recent accepted start call.
func (r *Runner) LastStart() (Start, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.starts) == 0 {
		return Start{}, false
	}
	return r.starts[len(r.starts)-1], true
}

// Emit queues a feed event for a job.
func (r *Runner) Emit(jobID string, ev core.FeedEvent) error {
	r.mu.Lock()
	j, ok := r.jobs[jobID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	select {
	case j.events <- ev:
		return nil
	default:
		return ErrFeedFull
	}
}

// EmitStatus queues a lifecycle update.
func (r *Runner) EmitStatus(jobID string, lifecycle core.Lifecycle) error {
	return r.Emit(jobID, &core.StatusEvent{Lifecycle: lifecycle})
}

// EmitProgress queues a partial result.
func (r *Runner) EmitProgress(jobID string, index int, answer *string, sources ...core.SourceRef) error {
	return r.Emit(jobID, &core.ProgressEvent{AnswerResult: core.AnswerResult{
		OriginalIndex: index,
		Answer:        answer,
		Sources:       sources,
	}})
}

// Complete queues the terminal output.
func (r *Runner) Complete(jobID string, answers ...core.AnswerResult) error {
	return r.Emit(jobID, &core.OutputEvent{Answers: answers})
}

// Fail queues a terminal failure.
func (r *Runner) Fail(jobID, reason string) error {
	return r.Emit(jobID, &core.FailureEvent{Reason: reason})
}

// Cancel queues a terminal cancellation.
func (r *Runner) Cancel(jobID, reason string) error {
	return r.Emit(jobID, &core.FailureEvent{Canceled: true, Reason: reason})
}

// Close stops generator goroutines and ends every open subscription.
func (r *Runner) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()
	r.wg.Wait()
	return nil
}

func (r *Runner) generate(j *job) {
	defer r.wg.Done()
	send := func(ev core.FeedEvent) bool {
		select {
		case j.events <- ev:
			return true
		case <-r.done:
			return false
		}
	}
	wait := func() bool {
		if r.config.Delay <= 0 {
			return true
		}
		select {
		case <-time.After(r.config.Delay):
			return true
		case <-r.done:
			return false
		}
	}

	if !send(&core.StatusEvent{Lifecycle: core.LifecycleExecuting}) {
		return
	}
	results := make([]core.AnswerResult, 0, len(j.questions))
	for _, q := range j.questions {
		if !wait() {
			return
		}
		answer, sources := r.config.Generator(q)
		res := core.AnswerResult{OriginalIndex: q.OriginalIndex, Answer: answer, Sources: sources}
		results = append(results, res)
		if !send(&core.ProgressEvent{AnswerResult: res}) {
			return
		}
	}
	send(&core.OutputEvent{Answers: results})
}
