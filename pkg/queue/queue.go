package queue

import (
	"github.com/jdziat/questionnaire-autoanswer/pkg/store"
)

// Queue is an ordered set of question indices waiting for a single job. It is
// not safe for concurrent use.
type Queue struct {
	store    *store.Store
	isActive func(index int) bool
	pending  []int
}

// New creates a Queue over s. isActive reports whether an index is the
// target of the running single job; nil means nothing is ever active.
func New(s *store.Store, isActive func(index int) bool) *Queue {
	if isActive == nil {
		isActive = func(int) bool { return false }
	}
	return &Queue{store: s, isActive: isActive}
}

// Enqueue appends index unless it is already queued, is the active single
// target, already has an answer, or is unknown. It reports whether index was
// added.
func (q *Queue) Enqueue(index int) bool {
	rec, ok := q.store.Get(index)
	if !ok || rec.HasAnswer() {
		return false
	}
	if q.Contains(index) || q.isActive(index) {
		return false
	}
	q.pending = append(q.pending, index)
	return true
}

// Advance pops the next index that still needs an answer. Indices answered
// while they waited (for example by a manual edit) are dropped. It returns
// false once the queue is exhausted.
func (q *Queue) Advance() (int, bool) {
	for len(q.pending) > 0 {
		index := q.pending[0]
		q.pending = q.pending[1:]
		rec, ok := q.store.Get(index)
		if !ok || rec.HasAnswer() {
			continue
		}
		return index, true
	}
	return 0, false
}

// Contains reports whether index is waiting.
func (q *Queue) Contains(index int) bool {
	for _, i := range q.pending {
		if i == index {
			return true
		}
	}
	return false
}

// Remove drops index from the queue and reports whether it was present.
func (q *Queue) Remove(index int) bool {
	for i, v := range q.pending {
		if v == index {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns a copy of the waiting indices in FIFO order.
func (q *Queue) Pending() []int {
	return append([]int(nil), q.pending...)
}

// Len returns the number of waiting indices.
func (q *Queue) Len() int {
	return len(q.pending)
}

// Clear drops every waiting index and returns how many were dropped.
func (q *Queue) Clear() int {
	n := len(q.pending)
	q.pending = nil
	return n
}
