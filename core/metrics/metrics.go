package metrics

import "time"

// ScenarioRun summarizes one scheduled scenario.
type ScenarioRun struct {
	RunID       string
	Project     string
	Scenario    string
	OK          bool
	Tasks       int
	Scheduled   int
	Runaway     int
	Unscheduled int
	Errors      int
	Warnings    int
	// Start and End span all scheduled tasks.
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Time     time.Time
}

// MetricsSink records scheduling runs for observability purposes.
type MetricsSink interface {
	RecordScenarioRun(run ScenarioRun) error
}

// ResourceLoad is the utilization of one resource after a run. Work values
// are in slots.
type ResourceLoad struct {
	RunID        string
	Scenario     string
	Resource     string
	Allocated    float64
	Free         float64
	Vacation     float64
	Cost         float64
	Criticalness float64
	Time         time.Time
}

// ResourceLoadRecorder is implemented by sinks able to record resource
// utilization.
type ResourceLoadRecorder interface {
	RecordResourceLoad(loads []ResourceLoad) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordScenarioRun(ScenarioRun) error     { return nil }
func (NopSink) RecordResourceLoad([]ResourceLoad) error { return nil }

// TaskEvent is a progress event of a single task.
type TaskEvent struct {
	RunID    string
	Scenario string
	Task     string
	// Kind is task_scheduled or task_runaway.
	Kind  string
	Start time.Time
	End   time.Time
	Time  time.Time
}

// TaskEventRecorder is implemented by sinks able to record task progress.
type TaskEventRecorder interface {
	RecordTaskEvent(ev TaskEvent) error
}

func (NopSink) RecordTaskEvent(TaskEvent) error { return nil }
