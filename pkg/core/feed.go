package core

import "context"

// FeedEvent is the interface for all events a job runner emits for a job.
type FeedEvent interface {
	feedMarker()
}

// AnswerResult is one question's generated answer as reported by a runner.
type AnswerResult struct {
	OriginalIndex int         `json:"originalIndex"`
	Answer        *string     `json:"answer"`
	Sources       []SourceRef `json:"sources,omitempty"`
}

// StatusEvent reports a non-terminal lifecycle change (queued, executing, waiting).
type StatusEvent struct {
	Lifecycle Lifecycle
}

func (*StatusEvent) feedMarker() {}

// ProgressEvent is a partial per-question update. It may be delivered more
// than once with the same or different content.
type ProgressEvent struct {
	AnswerResult
}

func (*ProgressEvent) feedMarker() {}

// OutputEvent is the authoritative terminal result of a job.
type OutputEvent struct {
	Answers []AnswerResult
}

func (*OutputEvent) feedMarker() {}

// FailureEvent reports that a job failed or was canceled.
type FailureEvent struct {
	Canceled bool
	Reason   string
}

func (*FailureEvent) feedMarker() {}

// Subscription is an explicit, cancelable handle on one job's progress feed.
// The Events channel is closed once the subscription is closed.
type Subscription interface {
	Events() <-chan FeedEvent
	Close() error
}

// JobRunner starts answer-generation jobs and exposes their progress feeds.
type JobRunner interface {
	StartBatch(ctx context.Context, questions []Question) (JobHandle, error)
	StartSingle(ctx context.Context, question Question) (JobHandle, error)
	Subscribe(ctx context.Context, handle JobHandle) (Subscription, error)
}
