package completion

import (
	"context"
	"sync"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func str(s string) ldvalue.OptionalString { return ldvalue.NewOptionalString(s) }

var absent = ldvalue.OptionalString{}

func statusPage(status string) Signal {
	return Signal{Status: str(status), Output: str(""), Summary: str("")}
}

func statusLessPage(output string) Signal {
	return Signal{Output: str(output)}
}

// scriptedSource returns each step once, in order, then keeps returning the last one.
type scriptedSource struct {
	steps []step
	reads int
	lock  sync.Mutex
}

type step struct {
	signal Signal
	err    error
}

func newScriptedSource(signals ...Signal) *scriptedSource {
	s := &scriptedSource{}
	for _, sig := range signals {
		s.steps = append(s.steps, step{signal: sig})
	}
	return s
}

func (s *scriptedSource) thenError(err error) *scriptedSource {
	s.steps = append(s.steps, step{err: err})
	return s
}

func (s *scriptedSource) Snapshot(ctx context.Context) (Signal, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	i := s.reads
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.reads++
	return s.steps[i].signal, s.steps[i].err
}

func (s *scriptedSource) readCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.reads
}
