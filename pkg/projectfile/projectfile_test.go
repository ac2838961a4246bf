package projectfile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/slotplan/core/model"
	"github.com/kilianp07/slotplan/core/scheduler"
)

func TestLoadDemo(t *testing.T) {
	p, err := Load("testdata/demo.yaml")
	require.NoError(t, err)

	assert.Equal(t, "demo", p.Name)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, []model.Scenario{{Name: "plan", Enabled: true}, {Name: "fast", Enabled: true}}, p.Scenarios)
	require.Len(t, p.Vacations, 1)
	assert.True(t, p.WorkingHours.OnShift(time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)))
	assert.False(t, p.WorkingHours.OnShift(time.Date(2025, 3, 3, 17, 0, 0, 0, time.UTC)))

	dev, ok := p.ResourceByKey("dev")
	require.True(t, ok)
	ops, _ := p.ResourceByKey("ops")
	team, _ := p.ResourceByKey("team")
	assert.Equal(t, team.ID, dev.Parent)
	assert.Equal(t, 400.0, team.Spec(0).Rate)
	require.Len(t, dev.Spec(0).Limits, 1)
	assert.Equal(t, model.LimitSpec{Name: "dailymax", Value: 6 * time.Hour, Resource: model.NoResource}, dev.Spec(0).Limits[0])
	assert.Equal(t, 0.5, ops.Spec(0).Efficiency)
	assert.Equal(t, 1.0, ops.Spec(1).Efficiency)
	require.Len(t, ops.Spec(1).Vacations, 1)
	require.Len(t, ops.Spec(0).Shifts, 1)
	assert.Equal(t, "night", ops.Spec(0).Shifts[0].Shift.Key)
	assert.True(t, ops.Spec(0).Shifts[0].Shift.Replace)

	spec, ok := p.TaskByKey("proj.spec")
	require.True(t, ok)
	assert.Equal(t, "Specification", spec.Name)
	assert.Equal(t, 600, spec.Spec(0).Priority)
	assert.Equal(t, 600, spec.Spec(1).Priority)
	assert.Equal(t, 16*time.Hour, spec.Spec(0).Effort)
	require.NotNil(t, spec.Source)
	assert.Equal(t, "testdata/demo.yaml", spec.Source.File)
	assert.Equal(t, 46, spec.Source.Line)

	impl, _ := p.TaskByKey("proj.impl")
	assert.Equal(t, 24*time.Hour, impl.Spec(1).Effort)
	assert.InDelta(t, 260.714/52*8, impl.Spec(0).Effort.Hours(), 1e-6)
	require.Len(t, impl.Spec(0).Allocations, 1)
	alloc := impl.Spec(0).Allocations[0]
	assert.Equal(t, []model.ResourceID{dev.ID, ops.ID}, alloc.Candidates)
	assert.Equal(t, model.SelectOrder, alloc.Selection)
	assert.True(t, alloc.Persistent)
	require.Len(t, impl.Spec(1).Depends, 1)
	assert.Equal(t, "!spec", impl.Spec(1).Depends[0].Target)
	assert.True(t, impl.Spec(1).Depends[0].OnEnd)

	review, _ := p.TaskByKey("proj.review")
	assert.Equal(t, 4*time.Hour, review.Spec(0).Length)
	assert.Equal(t, 8*time.Hour, review.Spec(0).Depends[0].GapLength)
	require.Len(t, review.Spec(0).Alerts, 1)
	assert.Equal(t, model.Compare{Attr: "end", Op: ">", Value: "2025-03-28"}, review.Spec(0).Alerts[0].Cond)

	release, _ := p.TaskByKey("release")
	assert.True(t, release.Spec(0).Milestone)
	assert.Equal(t, model.DefaultPriority, release.Spec(0).Priority)
}

func TestLoadedProjectSchedules(t *testing.T) {
	p, err := Load("testdata/demo.yaml")
	require.NoError(t, err)
	res, err := scheduler.New(p).Schedule(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Scenarios, 2)
	assert.True(t, res.OK())

	plan, fast := res.Scenario("plan"), res.Scenario("fast")
	assert.Equal(t, time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC), plan.TaskByKey("proj.spec").Start())
	assert.True(t, fast.TaskByKey("release").End().Before(plan.TaskByKey("release").End()))
}

func TestParseJSON(t *testing.T) {
	doc := `{
  "project": {"name": "j", "start": "2025-03-03", "end": "2025-03-10"},
  "resources": [{"id": "dev"}],
  "tasks": [{"id": "a", "effort": "4h", "allocate": ["dev"]}]
}`
	p, err := Parse([]byte(doc), "j.json")
	require.NoError(t, err)
	a, ok := p.TaskByKey("a")
	require.True(t, ok)
	assert.Equal(t, 4*time.Hour, a.Spec(0).Effort)
	assert.Equal(t, "a", a.Name)
}

func TestParseReportsAllErrors(t *testing.T) {
	doc := `project:
  start: 2025-03-03
  end: 2025-03-10
resources:
  - id: dev
tasks:
  - id: a
    effort: 3 parsecs
  - id: b
    allocate: [nobody]
  - id: c
    scenarios:
      other: {effort: 1d}
  - id: d
    depends:
      - {task: a, on: middle}
`
	_, err := Parse([]byte(doc), "bad.yaml")
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "bad.yaml:7: task a: effort")
	assert.Contains(t, msg, "bad.yaml:9: b: unknown resource nobody")
	assert.Contains(t, msg, "unknown scenario other")
	assert.Contains(t, msg, "bad.yaml:16: dependency a")
}

func TestParseProjectErrors(t *testing.T) {
	tests := map[string]string{
		"missing start": "project: {end: 2025-03-10}",
		"bad timezone":  "project: {start: 2025-03-03, end: 2025-03-10, timezone: Mars/Olympus}",
		"end first":     "project: {start: 2025-03-10, end: 2025-03-03}",
		"bad hours":     "project: {start: 2025-03-03, end: 2025-03-10, working_hours: {mon: [\"12:00-09:00\"]}}",
		"not yaml":      "project: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), "p.yaml")
			assert.Error(t, err)
		})
	}
}

func TestTimezone(t *testing.T) {
	doc := `project: {start: 2025-03-03, end: 2025-03-10, timezone: Europe/Paris}
tasks:
  - {id: a, start: "2025-03-04 09:00", duration: 1h}
`
	p, err := Parse([]byte(doc), "tz.yaml")
	require.NoError(t, err)
	a, _ := p.TaskByKey("a")
	assert.Equal(t, time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC), a.Spec(0).Start.UTC())
	assert.Equal(t, time.Date(2025, 3, 2, 23, 0, 0, 0, time.UTC), p.Start.UTC())
}

func TestLoneDateSetsDirection(t *testing.T) {
	doc := `project: {start: 2025-03-03, end: 2025-03-10}
scenarios: [{name: plan}, {name: fast}]
resources: [{id: dev}]
tasks:
  - {id: late, effort: 2h, allocate: [dev], end: "2025-03-04 12:00"}
  - {id: pinned, effort: 2h, allocate: [dev], end: "2025-03-05 12:00", scheduling: asap}
  - id: group
    scheduling: alap
    children:
      - {id: first, duration: 1h, start: "2025-03-06 09:00"}
`
	p, err := Parse([]byte(doc), "dir.yaml")
	require.NoError(t, err)

	late, _ := p.TaskByKey("late")
	assert.False(t, late.Spec(0).Forward)
	assert.False(t, late.Spec(1).Forward)
	pinned, _ := p.TaskByKey("pinned")
	assert.True(t, pinned.Spec(0).Forward)
	first, _ := p.TaskByKey("group.first")
	assert.True(t, first.Spec(0).Forward)
	assert.True(t, first.Spec(1).Forward)

	res, err := scheduler.New(p).ScheduleScenario(context.Background(), 0)
	require.NoError(t, err)
	tl := res.TaskByKey("late")
	assert.True(t, tl.Scheduled())
	assert.Equal(t, time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), tl.Start())
	assert.Equal(t, time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC), tl.End())
	assert.False(t, res.TaskByKey("pinned").Scheduled())
}
