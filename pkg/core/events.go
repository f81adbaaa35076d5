package core

import "time"

// Event is the interface for all engine notices.
type Event interface {
	eventMarker()
}

// JobTriggered is emitted when a runner accepts a job.
type JobTriggered struct {
	Job       *Job
	Timestamp time.Time
}

func (*JobTriggered) eventMarker() {}

// JobFinished is emitted when a job reaches a terminal lifecycle.
type JobFinished struct {
	Job       *Job
	Timestamp time.Time
}

func (*JobFinished) eventMarker() {}

// RecordChanged is emitted when a record's answer or status changes.
type RecordChanged struct {
	Record    QuestionRecord
	Timestamp time.Time
}

func (*RecordChanged) eventMarker() {}

// AnswerSaved is emitted when a durable write for a record succeeds.
type AnswerSaved struct {
	RecordID      string
	OriginalIndex int
	Timestamp     time.Time
}

func (*AnswerSaved) eventMarker() {}

// Warning is a one-time, user-visible problem report. Index is -1 when the
// warning concerns a whole job. Reason carries the runner's failure reason
// when a job failed or was canceled.
type Warning struct {
	JobID     string
	Index     int
	Message   string
	Reason    string
	Timestamp time.Time
}

func (*Warning) eventMarker() {}

// User-visible warning texts.
const (
	MsgGenerateFailed = "could not generate an answer for this question"
	MsgSaveFailed     = "failed to save answer"
)
