// Package core provides the fundamental types and interfaces for the
// questionnaire auto-answer engine.
//
// This package contains:
//   - QuestionRecord and Job data models
//   - Feed events emitted by a job runner and notices emitted by the engine
//   - Collaborator interfaces (JobRunner, Subscription, Storage, JobJournal)
//   - GORM row models used by durable storage
//   - Error types for triggering, reconciliation and persistence
//
// Most users should import the root package
// github.com/jdziat/questionnaire-autoanswer instead of this package directly.
package core
