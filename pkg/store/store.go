// Package store holds the in-memory, ordered collection of question records
// that is the single source of truth for UI and persistence decisions.
//
// A Store is not safe for concurrent use. The engine serializes every access
// under its own lock.
package store

import (
	"github.com/google/uuid"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
)

// Store is an ordered collection of question records keyed by original index.
type Store struct {
	records []*core.QuestionRecord
}

// New builds a store from the initial question set. Each input's position
// becomes its permanent OriginalIndex. Inputs without a record ID get a
// generated UUID.
func New(inputs []core.QuestionInput) *Store {
	s := &Store{records: make([]*core.QuestionRecord, 0, len(inputs))}
	for i, in := range inputs {
		id := in.RecordID
		if id == "" {
			id = uuid.New().String()
		}
		status := in.Status
		if status == "" {
			status = core.RecordUntouched
		}
		if !core.HasText(in.Answer) && status == core.RecordManual {
			status = core.RecordUntouched
		}
		s.records = append(s.records, &core.QuestionRecord{
			OriginalIndex:    i,
			RecordID:         id,
			QuestionText:     in.Question,
			Answer:           core.CopyAnswer(in.Answer),
			Sources:          core.CopySources(in.Sources),
			RecordStatus:     status,
			ProcessingStatus: core.ProcessingIdle,
		})
	}
	return s
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Get returns the live record for index. Callers must not retain it outside
// the engine lock.
func (s *Store) Get(index int) (*core.QuestionRecord, bool) {
	if index < 0 || index >= len(s.records) {
		return nil, false
	}
	return s.records[index], true
}

// Snapshot returns deep copies of all records in original order.
func (s *Store) Snapshot() []core.QuestionRecord {
	out := make([]core.QuestionRecord, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Unanswered returns the indices of records with no answer, in order.
func (s *Store) Unanswered() []int {
	var out []int
	for _, r := range s.records {
		if !r.HasAnswer() {
			out = append(out, r.OriginalIndex)
		}
	}
	return out
}

// Unsaved returns the indices of records whose last change has no confirmed
// durable write.
func (s *Store) Unsaved() []int {
	var out []int
	for _, r := range s.records {
		if r.Unsaved {
			out = append(out, r.OriginalIndex)
		}
	}
	return out
}

// Questions returns the runner-facing view of the given indices. Unknown
// indices are skipped.
func (s *Store) Questions(indices []int) []core.Question {
	out := make([]core.Question, 0, len(indices))
	for _, i := range indices {
		if r, ok := s.Get(i); ok {
			out = append(out, r.Question())
		}
	}
	return out
}

// SetProcessing sets the processing status of a record and returns its
// previous value.
func (s *Store) SetProcessing(index int, status core.ProcessingStatus) (core.ProcessingStatus, bool) {
	r, ok := s.Get(index)
	if !ok {
		return "", false
	}
	prev := r.ProcessingStatus
	r.ProcessingStatus = status
	return prev, true
}

// SetManual records a user-typed answer. It never touches the processing
// status; an in-flight job still owns that.
func (s *Store) SetManual(index int, text string) (*core.QuestionRecord, bool) {
	r, ok := s.Get(index)
	if !ok {
		return nil, false
	}
	r.Answer = &text
	r.Sources = nil
	r.RecordStatus = core.RecordManual
	r.FailedToGenerate = false
	r.Unsaved = true
	return r, true
}

// Clear removes a record's answer and resets its provenance.
func (s *Store) Clear(index int) (*core.QuestionRecord, bool) {
	r, ok := s.Get(index)
	if !ok {
		return nil, false
	}
	r.Answer = nil
	r.Sources = nil
	r.RecordStatus = core.RecordUntouched
	r.FailedToGenerate = false
	r.Unsaved = true
	return r, true
}
