package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/slotplan/core/logger"
	"github.com/kilianp07/slotplan/core/message"
	"github.com/kilianp07/slotplan/core/metrics"
	"github.com/kilianp07/slotplan/core/model"
)

// monday is the start of all test projects.
var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func at(day, hour int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
}

func newTestProject(t *testing.T, days int) *model.Project {
	t.Helper()
	p, err := model.NewProject("test", monday, monday.AddDate(0, 0, days), time.Hour)
	require.NoError(t, err)
	return p
}

func addTask(t *testing.T, p *model.Project, id string, parent model.TaskID) *model.Task {
	t.Helper()
	task, err := p.AddTask(id, id, parent)
	require.NoError(t, err)
	return task
}

func addResource(t *testing.T, p *model.Project, id string, parent model.ResourceID) *model.Resource {
	t.Helper()
	r, err := p.AddResource(id, id, parent)
	require.NoError(t, err)
	return r
}

func effortTask(t *testing.T, p *model.Project, id string, effort time.Duration, res ...model.ResourceID) *model.Task {
	t.Helper()
	task := addTask(t, p, id, model.NoTask)
	spec := task.Spec(0)
	spec.Effort = effort
	spec.Allocations = []model.Allocation{{Candidates: res}}
	return task
}

func dependsOn(task *model.Task, target string) {
	spec := task.Spec(0)
	spec.Depends = append(spec.Depends, model.Dependency{Target: target, OnEnd: true})
}

func runScenario(t *testing.T, p *model.Project, opts ...Option) (*ScenarioResult, *message.Collector) {
	t.Helper()
	c := &message.Collector{}
	res, err := New(p, append([]Option{WithSink(c)}, opts...)...).ScheduleScenario(context.Background(), 0)
	require.NoError(t, err)
	return res, c
}

// preparedScenario runs the preparation steps up to the dependency
// resolution but does not propagate any date.
func preparedScenario(t *testing.T, p *model.Project) (*scenario, *message.Collector) {
	t.Helper()
	c := &message.Collector{}
	sc := newScenario(p, 0, "test-run", c, logger.Nop{}, nil)
	sc.buildWorkingTime()
	for _, r := range sc.resources {
		r.used = r.res.Leaf()
		r.PrepareScheduling()
	}
	for _, ts := range sc.tasks {
		ts.PrepareScheduling()
	}
	for _, ts := range sc.tasks {
		ts.Xref()
	}
	return sc, c
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingPublisher) Publish(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingPublisher) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

type recordingSink struct {
	runs  []metrics.ScenarioRun
	loads []metrics.ResourceLoad
}

func (r *recordingSink) RecordScenarioRun(run metrics.ScenarioRun) error {
	r.runs = append(r.runs, run)
	return nil
}

func (r *recordingSink) RecordResourceLoad(loads []metrics.ResourceLoad) error {
	r.loads = append(r.loads, loads...)
	return nil
}
