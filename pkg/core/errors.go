package core

import (
	"errors"
	"fmt"
	"time"
)

// Validation and state errors
var (
	ErrUnknownQuestion       = errors.New("autoanswer: unknown question index")
	ErrNoUnansweredQuestions = errors.New("autoanswer: no unanswered questions")
	ErrEngineClosed          = errors.New("autoanswer: engine closed")
	ErrAnswerTooLong         = errors.New("autoanswer: answer exceeds size limit")
	ErrInvalidRecordID       = errors.New("autoanswer: invalid record id")
	ErrJobNotActive          = errors.New("autoanswer: job is not the active job")
)

// ConflictError is returned when a trigger would violate batch/single
// mutual exclusion.
type ConflictError struct {
	Requested   JobKind
	Active      JobKind
	ActiveJobID string
}

func (e *ConflictError) Error() string {
	if e.ActiveJobID == "" {
		return fmt.Sprintf("autoanswer: cannot start %s job while a %s job is starting", e.Requested, e.Active)
	}
	return fmt.Sprintf("autoanswer: cannot start %s job while %s job %s is active", e.Requested, e.Active, e.ActiveJobID)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// TriggerError indicates the job runner refused to start a job.
type TriggerError struct {
	Kind    JobKind
	Indices []int
	Err     error
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("autoanswer: failed to trigger %s job: %v", e.Kind, e.Err)
}

func (e *TriggerError) Unwrap() error {
	return e.Err
}

// WriteError indicates a durable write could not be completed.
type WriteError struct {
	RecordID string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("autoanswer: failed to save answer for record %s: %v", e.RecordID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// NoRetryError indicates a storage error that should not be retried.
type NoRetryError struct {
	Err error
}

func (e *NoRetryError) Error() string {
	return fmt.Sprintf("no retry: %v", e.Err)
}

func (e *NoRetryError) Unwrap() error {
	return e.Err
}

// NoRetry wraps an error to indicate it should not be retried.
func NoRetry(err error) error {
	return &NoRetryError{Err: err}
}

// RetryAfterError indicates a storage error that should be retried after a delay.
type RetryAfterError struct {
	Err   error
	Delay time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("retry after %v: %v", e.Delay, e.Err)
}

func (e *RetryAfterError) Unwrap() error {
	return e.Err
}

// RetryAfter wraps an error to indicate it should be retried after a delay.
func RetryAfter(d time.Duration, err error) error {
	return &RetryAfterError{Err: err, Delay: d}
}
