package simrunner

import (
	"sync"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
)

// subscription forwards a job's feed until it is closed or the runner stops.
type subscription struct {
	out  chan core.FeedEvent
	stop chan struct{}
	once sync.Once
}

func newSubscription(in <-chan core.FeedEvent, runnerDone <-chan struct{}) *subscription {
	s := &subscription{
		out:  make(chan core.FeedEvent),
		stop: make(chan struct{}),
	}
	go s.forward(in, runnerDone)
	return s
}

func (s *subscription) forward(in <-chan core.FeedEvent, runnerDone <-chan struct{}) {
	defer close(s.out)
	for {
		select {
		case ev := <-in:
			select {
			case s.out <- ev:
			case <-s.stop:
				return
			case <-runnerDone:
				return
			}
		case <-s.stop:
			return
		case <-runnerDone:
			return
		}
	}
}

func (s *subscription) Events() <-chan core.FeedEvent {
	return s.out
}

func (s *subscription) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
