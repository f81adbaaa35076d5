package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotices_ImplementEvent(t *testing.T) {
	events := []Event{
		&JobTriggered{Job: &Job{ID: "j"}, Timestamp: time.Now()},
		&JobFinished{Job: &Job{ID: "j"}, Timestamp: time.Now()},
		&RecordChanged{Record: QuestionRecord{OriginalIndex: 1}},
		&AnswerSaved{RecordID: "r"},
		&Warning{Index: -1, Message: MsgSaveFailed},
	}
	for _, e := range events {
		assert.NotNil(t, e)
	}
}

func TestFeedEvents_ImplementFeedEvent(t *testing.T) {
	answer := "Yes"
	events := []FeedEvent{
		&StatusEvent{Lifecycle: LifecycleExecuting},
		&ProgressEvent{AnswerResult{OriginalIndex: 2, Answer: &answer}},
		&OutputEvent{Answers: []AnswerResult{{OriginalIndex: 2, Answer: &answer}}},
		&FailureEvent{Reason: "boom"},
	}
	for _, e := range events {
		assert.NotNil(t, e)
	}

	p := &ProgressEvent{AnswerResult{OriginalIndex: 7}}
	assert.Equal(t, 7, p.OriginalIndex)
}
