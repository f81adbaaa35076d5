package core

import (
	"context"
	"time"
)

// AnswerWrite is one durable answer upsert.
type AnswerWrite struct {
	QuestionnaireID string
	RecordID        string
	OriginalIndex   int
	Answer          *string
	Sources         []SourceRef
	Status          RecordStatus
	JobID           string // empty for manual writes
	Key             string // dedup key that produced the write, empty for manual writes
}

// Storage is the durable answer store.
type Storage interface {
	UpsertAnswer(ctx context.Context, w AnswerWrite) error
}

// JobJournal is an optional Storage extension that records job lifecycles.
type JobJournal interface {
	SaveJob(ctx context.Context, rec *JobRecord) error
}

// AnswerRecord is the durable row for one question's answer.
type AnswerRecord struct {
	RecordID        string       `gorm:"primaryKey;size:255"`
	QuestionnaireID string       `gorm:"index;size:255"`
	OriginalIndex   int          `gorm:"default:0"`
	Answer          *string      `gorm:"type:text"`
	Sources         []byte       `gorm:"type:bytes"` // JSON-encoded []SourceRef
	Status          RecordStatus `gorm:"size:20;default:'untouched'"`
	JobID           string       `gorm:"size:255"`
	CreatedAt       time.Time    `gorm:"autoCreateTime"`
	UpdatedAt       time.Time    `gorm:"autoUpdateTime"`
}

// TableName pins the answers table name.
func (AnswerRecord) TableName() string { return "autoanswer_answers" }

// JobRecord is the durable journal row for one job.
type JobRecord struct {
	ID              string    `gorm:"primaryKey;size:255"`
	QuestionnaireID string    `gorm:"index;size:255"`
	Kind            JobKind   `gorm:"size:20;not null"`
	Lifecycle       Lifecycle `gorm:"index;size:20"`
	TargetCount     int       `gorm:"default:0"`
	Targets         []byte    `gorm:"type:bytes"` // JSON-encoded []int
	Reason          string    `gorm:"type:text"`
	TriggeredAt     time.Time
	AcceptedAt      *time.Time
	FinishedAt      *time.Time
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// TableName pins the job journal table name.
func (JobRecord) TableName() string { return "autoanswer_jobs" }
