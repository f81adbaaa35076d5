// Package reconcile merges a job's progress feed into the question store.
//
// Partial progress events may arrive any number of times with the same or
// different content; the terminal output arrives once and is authoritative.
// Every applied event is recorded in the dedup ledger under
// jobID:index:fingerprint so redeliveries are dropped. Records whose
// provenance is manual are never overwritten.
package reconcile

import (
	"log/slog"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
	"github.com/jdziat/questionnaire-autoanswer/pkg/ledger"
	"github.com/jdziat/questionnaire-autoanswer/pkg/store"
)

// Outcome describes what one reconciliation pass changed.
type Outcome struct {
	// Writes are durable writes for accepted answer changes.
	Writes []core.AnswerWrite
	// Changed lists indices whose visible state changed, in application order.
	Changed []int
	// Failed lists indices the job attempted and found no answer for.
	Failed []int
	// Duplicates counts events dropped by the ledger.
	Duplicates int
	// Ignored counts events for indices the job does not target.
	Ignored int
}

func (o *Outcome) markChanged(index int) {
	for _, i := range o.Changed {
		if i == index {
			return
		}
	}
	o.Changed = append(o.Changed, index)
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithQuestionnaireID stamps durable writes with the questionnaire ID.
func WithQuestionnaireID(id string) Option {
	return func(r *Reconciler) { r.questionnaireID = id }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// Reconciler applies feed results to a store under dedup rules. It is not
// safe for concurrent use.
type Reconciler struct {
	store           *store.Store
	ledger          *ledger.Ledger
	questionnaireID string
	logger          *slog.Logger
}

// New creates a Reconciler over the given store and ledger.
func New(s *store.Store, l *ledger.Ledger, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  s,
		ledger: l,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ApplyProgress applies one partial progress result for job.
func (r *Reconciler) ApplyProgress(job *core.Job, res core.AnswerResult) Outcome {
	var out Outcome
	r.apply(job, res, &out)
	return out
}

// ApplyOutput applies a job's terminal output. Targets the output does not
// cover but that are still processing are released without a content change.
func (r *Reconciler) ApplyOutput(job *core.Job, results []core.AnswerResult) Outcome {
	var out Outcome
	for _, res := range results {
		r.apply(job, res, &out)
	}
	for _, idx := range job.TargetIndices {
		rec, ok := r.store.Get(idx)
		if !ok || rec.ProcessingStatus != core.ProcessingActive {
			continue
		}
		rec.ProcessingStatus = core.ProcessingCompleted
		out.markChanged(idx)
	}
	return out
}

func (r *Reconciler) apply(job *core.Job, res core.AnswerResult, out *Outcome) {
	idx := res.OriginalIndex
	if !job.Targets(idx) {
		r.logger.Debug("ignoring result for untargeted question", "job_id", job.ID, "index", idx)
		out.Ignored++
		return
	}
	rec, ok := r.store.Get(idx)
	if !ok {
		out.Ignored++
		return
	}

	key := ledger.Key(job.ID, idx, ledger.Fingerprint(res.Answer, res.Sources))
	if r.ledger.Contains(key) {
		r.logger.Debug("dropping duplicate progress event", "job_id", job.ID, "index", idx)
		out.Duplicates++
		return
	}
	r.ledger.Add(job.ID, key)

	if rec.ProcessingStatus != core.ProcessingCompleted {
		rec.ProcessingStatus = core.ProcessingCompleted
		out.markChanged(idx)
	}

	// Manual answers win over both partial and terminal results.
	if rec.RecordStatus == core.RecordManual {
		return
	}

	if !core.HasText(res.Answer) {
		if !rec.HasAnswer() {
			if !rec.FailedToGenerate {
				rec.FailedToGenerate = true
				out.markChanged(idx)
			}
			out.Failed = append(out.Failed, idx)
		}
		return
	}

	differs := !rec.HasAnswer() || *rec.Answer != *res.Answer || !core.SourcesEqual(rec.Sources, res.Sources)
	if !differs && !rec.Unsaved {
		return
	}
	if differs {
		rec.Answer = core.CopyAnswer(res.Answer)
		rec.Sources = core.CopySources(res.Sources)
	}
	rec.RecordStatus = core.RecordGenerated
	rec.FailedToGenerate = false
	rec.Unsaved = true
	out.markChanged(idx)
	out.Writes = append(out.Writes, core.AnswerWrite{
		QuestionnaireID: r.questionnaireID,
		RecordID:        rec.RecordID,
		OriginalIndex:   idx,
		Answer:          core.CopyAnswer(rec.Answer),
		Sources:         core.CopySources(rec.Sources),
		Status:          core.RecordGenerated,
		JobID:           job.ID,
		Key:             key,
	})
}
