package engine

import (
	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
)

// Events returns a channel of engine notices. Slow consumers miss notices
// rather than block the engine.
func (e *Engine) Events() <-chan core.Event {
	ch := make(chan core.Event, e.config.EventBuffer)
	e.eventsMu.Lock()
	e.eventSubs = append(e.eventSubs, ch)
	e.eventsMu.Unlock()
	return ch
}

// Unsubscribe removes a notice channel returned by Events.
func (e *Engine) Unsubscribe(ch <-chan core.Event) {
	e.eventsMu.Lock()
	defer e.eventsMu.Unlock()
	for i, sub := range e.eventSubs {
		if sub == ch {
			e.eventSubs = append(e.eventSubs[:i], e.eventSubs[i+1:]...)
			return
		}
	}
}

func (e *Engine) emit(ev core.Event) {
	e.eventsMu.RLock()
	subs := make([]chan core.Event, len(e.eventSubs))
	copy(subs, e.eventSubs)
	e.eventsMu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (e *Engine) emitRecordLocked(index int) {
	rec, ok := e.store.Get(index)
	if !ok {
		return
	}
	e.emit(&core.RecordChanged{Record: rec.Clone(), Timestamp: e.config.Now()})
}

func (e *Engine) emitRecordsLocked(indices []int) {
	for _, idx := range indices {
		e.emitRecordLocked(idx)
	}
}

func (e *Engine) warn(jobID string, index int, msg string) {
	e.emit(&core.Warning{JobID: jobID, Index: index, Message: msg, Timestamp: e.config.Now()})
}
