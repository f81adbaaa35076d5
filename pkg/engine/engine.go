// Package engine orchestrates answer generation for one questionnaire.
//
// An Engine owns the question store and every piece of state derived from it:
// the dedup ledger, the active-job slot, the single-question queue and the
// write-through to durable storage. All of that state is mutated under one
// mutex, so each trigger, feed event and storage result is applied as one
// atomic step. Starting a job, subscribing to its feed and writing to storage
// are the only calls made without the lock.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jdziat/questionnaire-autoanswer/pkg/controller"
	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
	"github.com/jdziat/questionnaire-autoanswer/pkg/ledger"
	"github.com/jdziat/questionnaire-autoanswer/pkg/persist"
	"github.com/jdziat/questionnaire-autoanswer/pkg/queue"
	"github.com/jdziat/questionnaire-autoanswer/pkg/reconcile"
	"github.com/jdziat/questionnaire-autoanswer/pkg/security"
	"github.com/jdziat/questionnaire-autoanswer/pkg/store"
)

// ReasonTimedOut is the failure reason recorded for jobs the watchdog gives
// up on.
const ReasonTimedOut = "timed out"

// Engine is the answer-generation orchestrator. It is safe for concurrent use.
type Engine struct {
	runner core.JobRunner
	config *Config
	writer *persist.Writer

	mu         sync.Mutex
	store      *store.Store
	ledger     *ledger.Ledger
	controller *controller.Controller
	queue      *queue.Queue
	subs       map[string]core.Subscription
	closed     bool

	eventsMu  sync.RWMutex
	eventSubs []chan core.Event

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an Engine over the given question set. Each question's position
// in questions becomes its permanent index.
func New(runner core.JobRunner, storage core.Storage, questions []core.QuestionInput, opts ...Option) *Engine {
	cfg := NewConfig()
	for _, opt := range opts {
		opt.ApplyEngine(cfg)
	}

	s := store.New(questions)
	l := ledger.New()
	r := reconcile.New(s, l,
		reconcile.WithQuestionnaireID(cfg.QuestionnaireID),
		reconcile.WithLogger(cfg.Logger),
	)
	c := controller.New(s, l, r, cfg.Now)

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		runner:     runner,
		config:     cfg,
		store:      s,
		ledger:     l,
		controller: c,
		queue:      queue.New(s, c.IsActiveTarget),
		subs:       make(map[string]core.Subscription),
		baseCtx:    ctx,
		cancel:     cancel,
	}
	e.writer = persist.New(storage,
		persist.WithWindow(cfg.CoalesceWindow),
		persist.WithRetry(cfg.WriteRetry),
		persist.WithLogger(cfg.Logger),
		persist.OnResult(e.onWriteResult),
	)
	return e
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

// TriggerBatch starts one job for every question that has no answer. It
// returns a *core.ConflictError while any job is active and
// core.ErrNoUnansweredQuestions when there is nothing to do.
func (e *Engine) TriggerBatch(ctx context.Context) (*core.Job, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, core.ErrEngineClosed
	}
	indices := e.store.Unanswered()
	if len(indices) == 0 {
		e.mu.Unlock()
		return nil, core.ErrNoUnansweredQuestions
	}
	job, err := e.controller.BeginBatch(indices)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	questions := e.store.Questions(job.TargetIndices)
	e.emitRecordsLocked(job.TargetIndices)
	e.mu.Unlock()

	accepted, err := e.launch(ctx, job, questions)
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// TriggerSingle requests an answer for one question. While another single
// job runs the request waits in the queue; while a batch job runs it is
// rejected with a *core.ConflictError. Requests for questions that are
// already answered, queued or running are no-ops.
func (e *Engine) TriggerSingle(ctx context.Context, index int) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return core.ErrEngineClosed
	}
	if _, ok := e.store.Get(index); !ok {
		e.mu.Unlock()
		return core.ErrUnknownQuestion
	}
	if active := e.controller.Active(); active != nil && active.Kind == core.JobBatch {
		e.mu.Unlock()
		return &core.ConflictError{Requested: core.JobSingle, Active: core.JobBatch, ActiveJobID: active.ID}
	}
	if e.queue.Enqueue(index) {
		e.config.Logger.Debug("single question queued", "index", index, "pending", e.queue.Len())
	} else {
		e.config.Logger.Debug("single question request ignored",
			"index", index, "reason", e.ignoredReasonLocked(index))
	}
	e.mu.Unlock()

	return e.drainQueue(ctx)
}

func (e *Engine) ignoredReasonLocked(index int) string {
	switch {
	case e.controller.IsActiveTarget(index):
		return "running"
	case e.queue.Contains(index):
		return "already queued"
	default:
		return "already answered"
	}
}

// drainQueue starts the next queued single job while the slot is free. A
// refused start is reported and the next queued question is tried.
func (e *Engine) drainQueue(ctx context.Context) error {
	var errs []error
	for {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			break
		}
		if _, active := e.controller.ActiveKind(); active {
			e.mu.Unlock()
			break
		}
		index, ok := e.queue.Advance()
		if !ok {
			e.mu.Unlock()
			break
		}
		job, err := e.controller.BeginSingle(index)
		if err != nil {
			e.mu.Unlock()
			errs = append(errs, err)
			continue
		}
		questions := e.store.Questions(job.TargetIndices)
		e.emitRecordLocked(index)
		e.mu.Unlock()

		if _, err := e.launch(ctx, job, questions); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// launch asks the runner to start a job reserved in the controller and
// subscribes to its feed.
func (e *Engine) launch(ctx context.Context, job *core.Job, questions []core.Question) (*core.Job, error) {
	var handle core.JobHandle
	var err error
	if job.Kind == core.JobBatch {
		handle, err = e.runner.StartBatch(ctx, questions)
	} else if len(questions) == 1 {
		handle, err = e.runner.StartSingle(ctx, questions[0])
	} else {
		err = core.ErrUnknownQuestion
	}

	var sub core.Subscription
	if err == nil {
		sub, err = e.runner.Subscribe(ctx, handle)
		if err != nil {
			err = fmt.Errorf("subscribe to job %s: %w", handle.JobID, err)
		}
	}

	e.mu.Lock()
	if err == nil && e.closed {
		err = core.ErrEngineClosed
		_ = sub.Close()
	}
	if err != nil {
		terr := e.controller.Abort(err)
		e.emitRecordsLocked(job.TargetIndices)
		e.mu.Unlock()
		e.config.Logger.Warn("job runner refused to start job",
			"kind", job.Kind, "targets", len(job.TargetIndices), "error", err)
		e.warn("", warningIndex(job), core.MsgGenerateFailed)
		return nil, terr
	}

	accepted, err := e.controller.Accept(handle)
	if err != nil {
		e.mu.Unlock()
		_ = sub.Close()
		return nil, err
	}
	e.subs[accepted.ID] = sub
	e.journalLocked(accepted)
	e.wg.Add(1)
	e.mu.Unlock()

	e.config.Logger.Info("job started", "job_id", accepted.ID, "kind", accepted.Kind, "targets", len(accepted.TargetIndices))
	e.emit(&core.JobTriggered{Job: accepted.Clone(), Timestamp: e.config.Now()})
	go e.consume(accepted.ID, sub)
	return accepted, nil
}

func warningIndex(job *core.Job) int {
	if job.Kind == core.JobSingle && len(job.TargetIndices) == 1 {
		return job.TargetIndices[0]
	}
	return -1
}

func (e *Engine) consume(jobID string, sub core.Subscription) {
	defer e.wg.Done()
	for ev := range sub.Events() {
		if err := e.Deliver(jobID, ev); err != nil && !errors.Is(err, core.ErrJobNotActive) {
			e.config.Logger.Debug("feed event not applied", "job_id", jobID, "error", err)
		}
	}
}

// EditManually records a user-typed answer and writes it synchronously.
// Manual answers are never overwritten by generated ones. An empty text
// deletes the answer.
func (e *Engine) EditManually(ctx context.Context, index int, text string) error {
	if strings.TrimSpace(text) == "" {
		return e.DeleteAnswer(ctx, index)
	}
	if err := security.ValidateAnswer(text); err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return core.ErrEngineClosed
	}
	rec, ok := e.store.SetManual(index, text)
	if !ok {
		e.mu.Unlock()
		return core.ErrUnknownQuestion
	}
	e.queue.Remove(index)
	w := e.writeFor(rec)
	e.emitRecordLocked(index)
	e.mu.Unlock()

	return e.writeNow(ctx, w)
}

// DeleteAnswer clears a question's answer and writes the cleared record
// synchronously.
func (e *Engine) DeleteAnswer(ctx context.Context, index int) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return core.ErrEngineClosed
	}
	rec, ok := e.store.Clear(index)
	if !ok {
		e.mu.Unlock()
		return core.ErrUnknownQuestion
	}
	w := e.writeFor(rec)
	e.emitRecordLocked(index)
	e.mu.Unlock()

	return e.writeNow(ctx, w)
}

func (e *Engine) writeFor(rec *core.QuestionRecord) core.AnswerWrite {
	return core.AnswerWrite{
		QuestionnaireID: e.config.QuestionnaireID,
		RecordID:        rec.RecordID,
		OriginalIndex:   rec.OriginalIndex,
		Answer:          core.CopyAnswer(rec.Answer),
		Sources:         core.CopySources(rec.Sources),
		Status:          rec.RecordStatus,
	}
}

func (e *Engine) writeNow(ctx context.Context, w core.AnswerWrite) error {
	err := e.writer.WriteNow(ctx, w)

	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.store.Get(w.OriginalIndex)
	if err != nil {
		e.warn("", w.OriginalIndex, core.MsgSaveFailed)
		return err
	}
	if ok && matches(rec, w) {
		rec.Unsaved = false
	}
	e.emit(&core.AnswerSaved{RecordID: w.RecordID, OriginalIndex: w.OriginalIndex, Timestamp: e.config.Now()})
	return nil
}

// matches reports whether the record still holds what w wrote.
func matches(rec *core.QuestionRecord, w core.AnswerWrite) bool {
	if rec.RecordID != w.RecordID || rec.RecordStatus != w.Status {
		return false
	}
	if (rec.Answer == nil) != (w.Answer == nil) {
		return false
	}
	if rec.Answer != nil && *rec.Answer != *w.Answer {
		return false
	}
	return core.SourcesEqual(rec.Sources, w.Sources)
}

// onWriteResult runs on the writer's flush goroutine for every queued write.
func (e *Engine) onWriteResult(w core.AnswerWrite, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.store.Get(w.OriginalIndex)
	current := ok && matches(rec, w)
	if err == nil {
		if current {
			rec.Unsaved = false
		}
		e.emit(&core.AnswerSaved{RecordID: w.RecordID, OriginalIndex: w.OriginalIndex, Timestamp: e.config.Now()})
		return
	}

	// Forgetting the key lets a redelivery of the same event write again.
	if w.Key != "" {
		e.ledger.Forget(w.Key)
	}
	e.warn(w.JobID, w.OriginalIndex, core.MsgSaveFailed)
}

// RetryUnsaved queues a write for every record whose last change was never
// confirmed by storage. It returns the number of writes queued.
func (e *Engine) RetryUnsaved() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0
	}
	n := 0
	for _, idx := range e.store.Unsaved() {
		rec, _ := e.store.Get(idx)
		if err := e.writer.Enqueue(e.writeFor(rec)); err != nil {
			e.config.Logger.Error("failed to queue answer write", "record_id", rec.RecordID, "error", err)
			continue
		}
		n++
	}
	return n
}

// ---------------------------------------------------------------------------
// Feed
// ---------------------------------------------------------------------------

// Deliver applies one feed event for jobID. Runners with a push feed are
// consumed automatically; poll-based transports call Deliver directly.
// Events for a job that is not the active job return core.ErrJobNotActive
// and change nothing.
func (e *Engine) Deliver(jobID string, ev core.FeedEvent) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return core.ErrEngineClosed
	}

	var finished *core.Job
	applied := false
	switch ev := ev.(type) {
	case *core.StatusEvent:
		if applied = e.controller.Observe(jobID, ev.Lifecycle); applied {
			e.journalLocked(e.controller.Active())
		}
	case *core.ProgressEvent:
		var out reconcile.Outcome
		if out, applied = e.controller.Progress(jobID, ev.AnswerResult); applied {
			e.applyOutcomeLocked(jobID, out)
		}
	case *core.OutputEvent:
		var out reconcile.Outcome
		if finished, out, applied = e.controller.Finalize(jobID, ev.Answers); applied {
			e.applyOutcomeLocked(jobID, out)
		}
	case *core.FailureEvent:
		var released []int
		reason := security.SanitizeErrorMessage(ev.Reason)
		if finished, released, applied = e.controller.CancelOrFail(jobID, ev.Canceled, reason); applied {
			e.emitRecordsLocked(released)
			e.config.Logger.Warn("job ended without output",
				"job_id", jobID, "canceled", ev.Canceled, "reason", reason)
			e.emit(&core.Warning{
				JobID:     jobID,
				Index:     warningIndex(finished),
				Message:   core.MsgGenerateFailed,
				Reason:    reason,
				Timestamp: e.config.Now(),
			})
		}
	default:
		e.mu.Unlock()
		return fmt.Errorf("autoanswer: unsupported feed event %T", ev)
	}

	if !applied {
		e.mu.Unlock()
		e.config.Logger.Debug("discarding feed event for inactive job", "job_id", jobID)
		return core.ErrJobNotActive
	}

	var sub core.Subscription
	if finished != nil {
		sub = e.subs[jobID]
		delete(e.subs, jobID)
		e.journalLocked(finished)
	}
	e.mu.Unlock()

	if finished == nil {
		return nil
	}
	if sub != nil {
		_ = sub.Close()
	}
	e.config.Logger.Info("job finished", "job_id", jobID, "lifecycle", finished.Lifecycle)
	e.emit(&core.JobFinished{Job: finished, Timestamp: e.config.Now()})

	if err := e.drainQueue(e.baseCtx); err != nil {
		e.config.Logger.Warn("failed to start queued question", "error", err)
	}
	return nil
}

func (e *Engine) applyOutcomeLocked(jobID string, out reconcile.Outcome) {
	for _, w := range out.Writes {
		if err := e.writer.Enqueue(w); err != nil {
			e.ledger.Forget(w.Key)
			e.config.Logger.Error("failed to queue answer write", "record_id", w.RecordID, "error", err)
		}
	}
	e.emitRecordsLocked(out.Changed)
	for _, idx := range out.Failed {
		e.warn(jobID, idx, core.MsgGenerateFailed)
	}
	if out.Duplicates > 0 {
		e.config.Logger.Debug("dropped duplicate progress", "job_id", jobID, "count", out.Duplicates)
	}
}

func (e *Engine) journalLocked(job *core.Job) {
	if job == nil || job.ID == "" {
		return
	}
	targets, _ := json.Marshal(job.TargetIndices)
	rec := &core.JobRecord{
		ID:              job.ID,
		QuestionnaireID: e.config.QuestionnaireID,
		Kind:            job.Kind,
		Lifecycle:       job.Lifecycle,
		TargetCount:     len(job.TargetIndices),
		Targets:         targets,
		Reason:          job.Reason,
		TriggeredAt:     job.TriggeredAt,
		AcceptedAt:      job.AcceptedAt,
		FinishedAt:      job.FinishedAt,
	}
	if err := e.writer.EnqueueJob(rec); err != nil {
		e.config.Logger.Debug("job journal row dropped", "job_id", job.ID, "error", err)
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Snapshot returns copies of every record in question order.
func (e *Engine) Snapshot() []core.QuestionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Snapshot()
}

// Record returns a copy of one record.
func (e *Engine) Record(index int) (core.QuestionRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.store.Get(index)
	if !ok {
		return core.QuestionRecord{}, false
	}
	return rec.Clone(), true
}

// ActiveJob returns a copy of the job occupying the slot, or nil.
func (e *Engine) ActiveJob() *core.Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controller.Active()
}

// QueueState returns the queued single-question indices in FIFO order.
func (e *Engine) QueueState() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Pending()
}

// QuestionnaireID returns the configured questionnaire ID.
func (e *Engine) QuestionnaireID() string {
	return e.config.QuestionnaireID
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Flush writes every queued answer now.
func (e *Engine) Flush(ctx context.Context) error {
	return e.writer.Flush(ctx)
}

// Close stops consuming feeds, closes every subscription and flushes queued
// writes. Jobs still running in the runner are left alone.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	subs := make([]core.Subscription, 0, len(e.subs))
	for id, sub := range e.subs {
		subs = append(subs, sub)
		delete(e.subs, id)
	}
	e.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	e.cancel()
	e.wg.Wait()
	return e.writer.Close(ctx)
}
