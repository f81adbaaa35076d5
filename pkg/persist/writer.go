// Package persist writes accepted answers to durable storage.
//
// Writes are coalesced: everything enqueued within the window is flushed as
// one batch, and writes for the same record collapse to the last value.
// Flushes run serially with one write in flight. A failed write is logged and
// reported through the result callback; it never blocks the writes behind it.
package persist

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
)

// ErrWriterClosed is returned when enqueueing on a closed Writer.
var ErrWriterClosed = errors.New("autoanswer: writer closed")

// Writer is a serialized, coalescing write-through queue in front of a
// core.Storage.
type Writer struct {
	storage core.Storage
	journal core.JobJournal
	config  *Config

	mu      sync.Mutex
	pending map[string]core.AnswerWrite
	order   []string
	jobs    map[string]*core.JobRecord
	jobIDs  []string
	timer   *time.Timer
	armed   bool
	closed  bool

	// flushMu serializes flushes and synchronous writes.
	flushMu sync.Mutex
}

// New creates a Writer. Job journal rows are written only when s also
// implements core.JobJournal.
func New(s core.Storage, opts ...Option) *Writer {
	cfg := NewConfig()
	for _, opt := range opts {
		opt.ApplyWriter(cfg)
	}
	w := &Writer{
		storage: s,
		config:  cfg,
		pending: make(map[string]core.AnswerWrite),
		jobs:    make(map[string]*core.JobRecord),
	}
	if j, ok := s.(core.JobJournal); ok {
		w.journal = j
	}
	return w
}

// Enqueue queues an answer write. A later write for the same record replaces
// an earlier one that has not been flushed yet.
func (w *Writer) Enqueue(write core.AnswerWrite) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if _, ok := w.pending[write.RecordID]; !ok {
		w.order = append(w.order, write.RecordID)
	}
	w.pending[write.RecordID] = write
	w.armLocked()
	return nil
}

// EnqueueJob queues a job journal row. It is a no-op when the storage keeps
// no journal.
func (w *Writer) EnqueueJob(rec *core.JobRecord) error {
	if w.journal == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if _, ok := w.jobs[rec.ID]; !ok {
		w.jobIDs = append(w.jobIDs, rec.ID)
	}
	w.jobs[rec.ID] = rec
	w.armLocked()
	return nil
}

func (w *Writer) armLocked() {
	if w.armed {
		return
	}
	w.armed = true
	w.timer = time.AfterFunc(w.config.Window, func() {
		if err := w.Flush(context.Background()); err != nil {
			w.config.Logger.Debug("coalesced flush finished with errors", "error", err)
		}
	})
}

// Pending returns the number of queued writes.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order) + len(w.jobIDs)
}

func (w *Writer) take() ([]core.AnswerWrite, []*core.JobRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.armed = false

	writes := make([]core.AnswerWrite, 0, len(w.order))
	for _, id := range w.order {
		writes = append(writes, w.pending[id])
	}
	jobs := make([]*core.JobRecord, 0, len(w.jobIDs))
	for _, id := range w.jobIDs {
		jobs = append(jobs, w.jobs[id])
	}
	w.pending = make(map[string]core.AnswerWrite)
	w.order = nil
	w.jobs = make(map[string]*core.JobRecord)
	w.jobIDs = nil
	return writes, jobs
}

// Flush writes everything queued so far, one write at a time. It returns the
// joined errors of the writes that failed after retries.
func (w *Writer) Flush(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	writes, jobs := w.take()
	var errs []error
	for _, write := range writes {
		err := w.write(ctx, write)
		if err != nil {
			errs = append(errs, err)
		}
		if w.config.OnResult != nil {
			w.config.OnResult(write, err)
		}
	}
	for _, rec := range jobs {
		err := retryWithBackoff(ctx, w.config.Retry, func() error {
			return w.journal.SaveJob(ctx, rec)
		})
		if err != nil {
			w.config.Logger.Error("failed to save job", "job_id", rec.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteNow writes immediately, bypassing the coalescing window. Any queued
// write for the same record is dropped. It waits for an in-progress flush.
func (w *Writer) WriteNow(ctx context.Context, write core.AnswerWrite) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	if _, ok := w.pending[write.RecordID]; ok {
		delete(w.pending, write.RecordID)
		for i, id := range w.order {
			if id == write.RecordID {
				w.order = append(w.order[:i], w.order[i+1:]...)
				break
			}
		}
	}
	w.mu.Unlock()

	return w.write(ctx, write)
}

func (w *Writer) write(ctx context.Context, write core.AnswerWrite) error {
	err := retryWithBackoff(ctx, w.config.Retry, func() error {
		return w.storage.UpsertAnswer(ctx, write)
	})
	if err == nil {
		return nil
	}
	w.config.Logger.Error("failed to save answer",
		"record_id", write.RecordID,
		"index", write.OriginalIndex,
		"job_id", write.JobID,
		"error", err)
	return &core.WriteError{RecordID: write.RecordID, Err: err}
}

// Close flushes queued writes and rejects new ones.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return w.Flush(ctx)
}
