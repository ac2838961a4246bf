package scheduler

import "time"

// EventKind identifies a scheduler progress event.
type EventKind int

const (
	EventScenarioStarted EventKind = iota
	EventTaskScheduled
	EventTaskRunaway
	EventScenarioDone
)

func (k EventKind) String() string {
	switch k {
	case EventScenarioStarted:
		return "scenario_started"
	case EventTaskScheduled:
		return "task_scheduled"
	case EventTaskRunaway:
		return "task_runaway"
	case EventScenarioDone:
		return "scenario_done"
	default:
		return "unknown"
	}
}

// Event reports scheduling progress. Task, Start and End are set for task
// events, OK for EventScenarioDone.
type Event struct {
	Kind     EventKind
	RunID    string
	Scenario string
	Task     string
	Start    time.Time
	End      time.Time
	OK       bool
}

// EventPublisher receives progress events. Publish must not block.
type EventPublisher interface {
	Publish(Event)
}
