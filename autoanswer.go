// Package autoanswer orchestrates asynchronous answer generation for
// security questionnaires.
//
// This is the main package users should import. It re-exports the public
// types from the internal pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	// Open storage
//	db, _ := gorm.Open(sqlite.Open("answers.db"), &gorm.Config{})
//	store := autoanswer.NewGormStorage(db)
//	store.Migrate(ctx)
//
//	// Build an engine over the questionnaire
//	eng := autoanswer.New(runner, store, questions,
//	    autoanswer.WithQuestionnaireID("vendor-review-2026"),
//	)
//	defer eng.Close(ctx)
//
//	// Generate answers for every unanswered question
//	job, err := eng.TriggerBatch(ctx)
package autoanswer

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
	"github.com/jdziat/questionnaire-autoanswer/pkg/engine"
	"github.com/jdziat/questionnaire-autoanswer/pkg/persist"
	"github.com/jdziat/questionnaire-autoanswer/pkg/schedule"
	"github.com/jdziat/questionnaire-autoanswer/pkg/security"
	"github.com/jdziat/questionnaire-autoanswer/pkg/storage"
)

// Type aliases
type (
	// Engine is the answer-generation orchestrator.
	Engine = engine.Engine

	// Option configures an Engine.
	Option = engine.Option

	// Config holds engine configuration.
	Config = engine.Config

	// QuestionInput is one question as loaded from the questionnaire.
	QuestionInput = core.QuestionInput

	// QuestionRecord is the in-memory state of one question.
	QuestionRecord = core.QuestionRecord

	// SourceRef cites a document an answer was drawn from.
	SourceRef = core.SourceRef

	// RecordStatus says where a record's answer came from.
	RecordStatus = core.RecordStatus

	// ProcessingStatus drives the per-question spinner.
	ProcessingStatus = core.ProcessingStatus

	// Job is one external unit of answer-generation work.
	Job = core.Job

	// JobKind distinguishes batch jobs from single-question jobs.
	JobKind = core.JobKind

	// Lifecycle is a job's lifecycle state.
	Lifecycle = core.Lifecycle

	// JobHandle identifies a job accepted by a runner.
	JobHandle = core.JobHandle

	// Question is what a runner receives for each targeted record.
	Question = core.Question

	// JobRunner starts jobs and exposes their feeds.
	JobRunner = core.JobRunner

	// Subscription is a cancelable handle on one job's feed.
	Subscription = core.Subscription

	// FeedEvent is any event a runner emits for a job.
	FeedEvent = core.FeedEvent

	// AnswerResult is one question's generated answer.
	AnswerResult = core.AnswerResult

	// StatusEvent reports a non-terminal lifecycle change.
	StatusEvent = core.StatusEvent

	// ProgressEvent is a partial per-question update.
	ProgressEvent = core.ProgressEvent

	// OutputEvent is the authoritative terminal result of a job.
	OutputEvent = core.OutputEvent

	// FailureEvent reports a failed or canceled job.
	FailureEvent = core.FailureEvent

	// Event is the interface for all engine notices.
	Event = core.Event

	// JobTriggered is emitted when a runner accepts a job.
	JobTriggered = core.JobTriggered

	// JobFinished is emitted when a job reaches a terminal lifecycle.
	JobFinished = core.JobFinished

	// RecordChanged is emitted when a record changes.
	RecordChanged = core.RecordChanged

	// AnswerSaved is emitted when a durable write succeeds.
	AnswerSaved = core.AnswerSaved

	// Warning is a user-visible problem report.
	Warning = core.Warning

	// Storage is the durable answer store.
	Storage = core.Storage

	// JobJournal is an optional Storage extension that records jobs.
	JobJournal = core.JobJournal

	// AnswerWrite is one durable answer upsert.
	AnswerWrite = core.AnswerWrite

	// AnswerRecord is the durable row for one answer.
	AnswerRecord = core.AnswerRecord

	// JobRecord is the durable journal row for one job.
	JobRecord = core.JobRecord

	// ConflictError is returned when a trigger would break batch/single exclusion.
	ConflictError = core.ConflictError

	// TriggerError indicates the runner refused to start a job.
	TriggerError = core.TriggerError

	// WriteError indicates a durable write failed.
	WriteError = core.WriteError

	// NoRetryError indicates a storage error that should not be retried.
	NoRetryError = core.NoRetryError

	// RetryAfterError indicates a storage error that should be retried after a delay.
	RetryAfterError = core.RetryAfterError

	// RetryConfig controls durable write retries.
	RetryConfig = persist.RetryConfig

	// Schedule decides when the watchdog runs next.
	Schedule = schedule.Schedule

	// GormStorage implements Storage and JobJournal using GORM.
	GormStorage = storage.GormStorage

	// PoolConfig holds database connection pool settings.
	PoolConfig = storage.PoolConfig

	// PoolOption configures the connection pool.
	PoolOption = storage.PoolOption
)

// Record status constants
const (
	RecordUntouched = core.RecordUntouched
	RecordGenerated = core.RecordGenerated
	RecordManual    = core.RecordManual
)

// Processing status constants
const (
	ProcessingIdle      = core.ProcessingIdle
	ProcessingActive    = core.ProcessingActive
	ProcessingCompleted = core.ProcessingCompleted
)

// Job kind and lifecycle constants
const (
	JobBatch  = core.JobBatch
	JobSingle = core.JobSingle

	LifecycleTriggering = core.LifecycleTriggering
	LifecycleQueued     = core.LifecycleQueued
	LifecycleExecuting  = core.LifecycleExecuting
	LifecycleWaiting    = core.LifecycleWaiting
	LifecycleCompleted  = core.LifecycleCompleted
	LifecycleFailed     = core.LifecycleFailed
	LifecycleCanceled   = core.LifecycleCanceled
)

// Warning messages
const (
	MsgGenerateFailed = core.MsgGenerateFailed
	MsgSaveFailed     = core.MsgSaveFailed
)

// Security limits
const (
	MaxRecordIDLength     = security.MaxRecordIDLength
	MaxAnswerLength       = security.MaxAnswerLength
	MaxErrorMessageLength = security.MaxErrorMessageLength
	MaxWriteAttempts      = security.MaxWriteAttempts
	MaxCoalesceWindow     = security.MaxCoalesceWindow
)

// ReasonTimedOut is the failure reason for jobs failed by the watchdog.
const ReasonTimedOut = engine.ReasonTimedOut

// Error variables
var (
	ErrUnknownQuestion       = core.ErrUnknownQuestion
	ErrNoUnansweredQuestions = core.ErrNoUnansweredQuestions
	ErrEngineClosed          = core.ErrEngineClosed
	ErrAnswerTooLong         = core.ErrAnswerTooLong
	ErrInvalidRecordID       = core.ErrInvalidRecordID
	ErrJobNotActive          = core.ErrJobNotActive
)

// New creates an Engine over the given questions.
func New(runner JobRunner, s Storage, questions []QuestionInput, opts ...Option) *Engine {
	return engine.New(runner, s, questions, opts...)
}

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return storage.NewGormStorage(db)
}

// NewGormStorageWithPool creates GORM-backed storage and configures its pool.
func NewGormStorageWithPool(db *gorm.DB, opts ...PoolOption) (*GormStorage, error) {
	return storage.NewGormStorageWithPool(db, opts...)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	return core.IsConflict(err)
}

// NoRetry wraps a storage error to indicate it should not be retried.
func NoRetry(err error) error {
	return core.NoRetry(err)
}

// RetryAfter wraps a storage error to indicate it should be retried after a delay.
func RetryAfter(d time.Duration, err error) error {
	return core.RetryAfter(d, err)
}

// DefaultRetryConfig returns the default write retry settings.
func DefaultRetryConfig() RetryConfig {
	return persist.DefaultRetryConfig()
}

// ValidateRecordID validates a durable record ID.
func ValidateRecordID(id string) error {
	return security.ValidateRecordID(id)
}

// ValidateAnswer checks an answer against the size limit.
func ValidateAnswer(answer string) error {
	return security.ValidateAnswer(answer)
}

// SanitizeErrorMessage strips control characters and truncates failure reasons.
func SanitizeErrorMessage(msg string) string {
	return security.SanitizeErrorMessage(msg)
}

// Engine option functions

// WithQuestionnaireID sets the questionnaire every write belongs to.
func WithQuestionnaireID(id string) Option {
	return engine.WithQuestionnaireID(id)
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return engine.WithLogger(l)
}

// WithCoalesceWindow sets how long generated writes wait to be coalesced.
func WithCoalesceWindow(d time.Duration) Option {
	return engine.WithCoalesceWindow(d)
}

// WithWriteRetry sets the durable write retry policy.
func WithWriteRetry(cfg RetryConfig) Option {
	return engine.WithWriteRetry(cfg)
}

// WithJobTimeout fails jobs that run longer than d. Zero disables it.
func WithJobTimeout(d time.Duration) Option {
	return engine.WithJobTimeout(d)
}

// WithWatchdogSchedule sets how often stuck jobs are checked for.
func WithWatchdogSchedule(s Schedule) Option {
	return engine.WithWatchdogSchedule(s)
}

// WithEventBuffer sets the buffer size of notice channels.
func WithEventBuffer(n int) Option {
	return engine.WithEventBuffer(n)
}

// Schedule functions

// Every creates a schedule that runs at fixed intervals.
func Every(d time.Duration) Schedule {
	return schedule.Every(d)
}

// Cron creates a schedule from a cron expression.
func Cron(expr string) (Schedule, error) {
	return schedule.Cron(expr)
}

// ParseSchedule accepts a Go duration ("30s") or a cron expression.
func ParseSchedule(spec string) (Schedule, error) {
	return schedule.Parse(spec)
}

// Pool presets

// DefaultPoolConfig returns the default connection pool settings.
func DefaultPoolConfig() PoolConfig {
	return storage.DefaultPoolConfig()
}

// SQLitePoolConfig returns pool settings for SQLite.
func SQLitePoolConfig() PoolConfig {
	return storage.SQLitePoolConfig()
}

// WithPoolConfig applies a complete pool configuration.
func WithPoolConfig(cfg PoolConfig) PoolOption {
	return storage.WithPoolConfig(cfg)
}
