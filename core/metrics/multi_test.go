package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordSink struct {
	runs  int
	loads int
	err   error
}

func (r *recordSink) RecordScenarioRun(ScenarioRun) error {
	r.runs++
	return r.err
}

func (r *recordSink) RecordResourceLoad([]ResourceLoad) error {
	r.loads++
	return r.err
}

type runOnly struct{ runs int }

func (r *runOnly) RecordScenarioRun(ScenarioRun) error {
	r.runs++
	return nil
}

func TestMultiSinkForwards(t *testing.T) {
	s1 := &recordSink{}
	s2 := &runOnly{}
	m := NewMultiSink(s1, s2)
	assert.NoError(t, m.RecordScenarioRun(ScenarioRun{Scenario: "plan"}))
	assert.NoError(t, m.RecordResourceLoad(nil))
	assert.Equal(t, 1, s1.runs)
	assert.Equal(t, 1, s1.loads)
	assert.Equal(t, 1, s2.runs)
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	m := NewMultiSink(&recordSink{err: boom}, &recordSink{})
	err := m.RecordScenarioRun(ScenarioRun{})
	assert.ErrorIs(t, err, boom)
}

type eventSink struct {
	runOnly
	events []TaskEvent
}

func (e *eventSink) RecordTaskEvent(ev TaskEvent) error {
	e.events = append(e.events, ev)
	return nil
}

func TestMultiSinkTaskEvents(t *testing.T) {
	es := &eventSink{}
	m := NewMultiSink(es, &runOnly{})
	assert.NoError(t, m.RecordTaskEvent(TaskEvent{Task: "a", Kind: "task_scheduled"}))
	assert.Len(t, es.events, 1)
	assert.Equal(t, "a", es.events[0].Task)
}
