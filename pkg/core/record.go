package core

import "strings"

// RecordStatus is the provenance of a record's current answer.
type RecordStatus string

const (
	RecordUntouched RecordStatus = "untouched"
	RecordGenerated RecordStatus = "generated"
	RecordManual    RecordStatus = "manual"
)

// ProcessingStatus is the UI-visible progress flag of a record.
type ProcessingStatus string

const (
	ProcessingIdle      ProcessingStatus = "idle"
	ProcessingActive    ProcessingStatus = "processing"
	ProcessingCompleted ProcessingStatus = "completed"
)

// SourceRef is an evidence citation attached to a generated answer.
type SourceRef struct {
	SourceType string  `json:"sourceType" yaml:"type"`
	SourceID   string  `json:"sourceId,omitempty" yaml:"id,omitempty"`
	Name       string  `json:"name,omitempty" yaml:"name,omitempty"`
	Score      float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// QuestionInput seeds one record when a questionnaire session is created.
type QuestionInput struct {
	RecordID string       `json:"id" yaml:"id"`
	Question string       `json:"question" yaml:"question"`
	Answer   *string      `json:"answer,omitempty" yaml:"answer,omitempty"`
	Sources  []SourceRef  `json:"sources,omitempty" yaml:"sources,omitempty"`
	Status   RecordStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// QuestionRecord is the in-memory state of one questionnaire question.
type QuestionRecord struct {
	OriginalIndex    int
	RecordID         string
	QuestionText     string
	Answer           *string
	Sources          []SourceRef
	RecordStatus     RecordStatus
	ProcessingStatus ProcessingStatus
	FailedToGenerate bool

	// Unsaved is set while an accepted change has no confirmed durable write.
	Unsaved bool
}

// HasAnswer reports whether the record carries a non-blank answer.
func (r *QuestionRecord) HasAnswer() bool {
	return HasText(r.Answer)
}

// Clone returns a deep copy of the record.
func (r *QuestionRecord) Clone() QuestionRecord {
	c := *r
	c.Answer = CopyAnswer(r.Answer)
	c.Sources = CopySources(r.Sources)
	return c
}

// Question returns the runner-facing view of the record.
func (r *QuestionRecord) Question() Question {
	return Question{
		OriginalIndex: r.OriginalIndex,
		RecordID:      r.RecordID,
		Text:          r.QuestionText,
	}
}

// HasText reports whether s points at a non-blank string.
func HasText(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// CopyAnswer returns a copy of the pointed-to answer, or nil.
func CopyAnswer(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// CopySources returns a copy of the slice, preserving nil.
func CopySources(src []SourceRef) []SourceRef {
	if src == nil {
		return nil
	}
	out := make([]SourceRef, len(src))
	copy(out, src)
	return out
}

// SourcesEqual compares two citation lists element by element.
func SourcesEqual(a, b []SourceRef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
