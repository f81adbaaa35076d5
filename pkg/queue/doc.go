// Package queue provides the FIFO of pending single-question requests.
//
// Single-question jobs run one at a time. When a user asks for another
// question while one is running, the index waits here and is triggered once
// the active single job reaches a terminal state.
//
// Most users should import the root package
// github.com/jdziat/questionnaire-autoanswer which drives the queue through
// the engine.
package queue
