package scheduler

import (
	"time"

	"github.com/kilianp07/slotplan/core/model"
)

// Result collects the outcome of all scheduled scenarios.
type Result struct {
	Scenarios []*ScenarioResult
}

// OK reports whether every scenario succeeded.
func (r *Result) OK() bool {
	for _, s := range r.Scenarios {
		if !s.OK {
			return false
		}
	}
	return len(r.Scenarios) > 0
}

// Scenario returns the result of the named scenario or nil.
func (r *Result) Scenario(name string) *ScenarioResult {
	for _, s := range r.Scenarios {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// ScenarioResult is the outcome of one scenario run.
type ScenarioResult struct {
	Index int
	Name  string
	RunID string

	// OK is set when no loop was found, every task was scheduled and no
	// error was reported.
	OK  bool
	Err error

	Unscheduled int
	Errors      int
	Warnings    int
	Duration    time.Duration

	sc *scenario
}

// Project returns the scheduled project.
func (r *ScenarioResult) Project() *model.Project { return r.sc.project }

// Tasks returns the task states in declaration order.
func (r *ScenarioResult) Tasks() []*TaskScenario { return r.sc.tasks }

// Task returns the state of a task or nil.
func (r *ScenarioResult) Task(id model.TaskID) *TaskScenario { return r.sc.task(id) }

// TaskByKey returns the state of the task with the given full id or nil.
func (r *ScenarioResult) TaskByKey(key string) *TaskScenario {
	t, ok := r.sc.project.TaskByKey(key)
	if !ok {
		return nil
	}
	return r.sc.task(t.ID)
}

// Resources returns the resource states in declaration order.
func (r *ScenarioResult) Resources() []*ResourceScenario { return r.sc.resources }

// Resource returns the state of a resource or nil.
func (r *ScenarioResult) Resource(id model.ResourceID) *ResourceScenario { return r.sc.resource(id) }

// ResourceByKey returns the state of the resource with the given full id or
// nil.
func (r *ScenarioResult) ResourceByKey(key string) *ResourceScenario {
	res, ok := r.sc.project.ResourceByKey(key)
	if !ok {
		return nil
	}
	return r.sc.resource(res.ID)
}

// Span returns the earliest start and the latest end of all scheduled tasks.
func (r *ScenarioResult) Span() (start, end time.Time) {
	for _, t := range r.sc.tasks {
		if !t.scheduled {
			continue
		}
		if start.IsZero() || t.start.Before(start) {
			start = t.start
		}
		if t.end.After(end) {
			end = t.end
		}
	}
	return start, end
}
