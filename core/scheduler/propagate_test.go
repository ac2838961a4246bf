package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/slotplan/core/model"
	"github.com/kilianp07/slotplan/core/scoreboard"
)

func TestCanInheritDate(t *testing.T) {
	tests := []struct {
		name       string
		build      func(t *testing.T, p *model.Project) *model.Task
		start, end bool
	}{
		{
			name: "forward effort task",
			build: func(t *testing.T, p *model.Project) *model.Task {
				r := addResource(t, p, "r", model.NoResource)
				return effortTask(t, p, "a", 2*time.Hour, r.ID)
			},
			start: true,
		},
		{
			name: "backward duration task",
			build: func(t *testing.T, p *model.Project) *model.Task {
				a := addTask(t, p, "a", model.NoTask)
				a.Spec(0).Duration = 2 * time.Hour
				a.Spec(0).Forward = false
				return a
			},
			end: true,
		},
		{
			name: "container",
			build: func(t *testing.T, p *model.Project) *model.Task {
				c := addTask(t, p, "c", model.NoTask)
				addTask(t, p, "x", c.ID).Spec(0).Duration = time.Hour
				return c
			},
			start: true,
			end:   true,
		},
		{
			name: "leaf without duration",
			build: func(t *testing.T, p *model.Project) *model.Task {
				r := addResource(t, p, "r", model.NoResource)
				a := addTask(t, p, "a", model.NoTask)
				a.Spec(0).Allocations = []model.Allocation{{Candidates: []model.ResourceID{r.ID}}}
				return a
			},
			start: true,
			end:   true,
		},
		{
			name: "given start",
			build: func(t *testing.T, p *model.Project) *model.Task {
				a := addTask(t, p, "a", model.NoTask)
				a.Spec(0).Duration = time.Hour
				a.Spec(0).Start = at(1, 9)
				return a
			},
		},
		{
			name: "start dependency",
			build: func(t *testing.T, p *model.Project) *model.Task {
				addTask(t, p, "pre", model.NoTask).Spec(0).Duration = time.Hour
				a := addTask(t, p, "a", model.NoTask)
				a.Spec(0).Duration = time.Hour
				dependsOn(a, "pre")
				return a
			},
		},
		{
			name: "booking fixes the start",
			build: func(t *testing.T, p *model.Project) *model.Task {
				r := addResource(t, p, "r", model.NoResource)
				a := addTask(t, p, "a", model.NoTask)
				a.Spec(0).Bookings = []*model.Booking{
					model.NewBooking(r.ID, a.ID, scoreboard.Interval{Start: at(0, 9), End: at(0, 11)}),
				}
				return a
			},
			end: true,
		},
		{
			name: "booking without slots",
			build: func(t *testing.T, p *model.Project) *model.Task {
				r := addResource(t, p, "r", model.NoResource)
				a := addTask(t, p, "a", model.NoTask)
				a.Spec(0).Bookings = []*model.Booking{model.NewBooking(r.ID, a.ID)}
				return a
			},
			start: true,
		},
		{
			name: "booking without slots after a start dependency",
			build: func(t *testing.T, p *model.Project) *model.Task {
				r := addResource(t, p, "r", model.NoResource)
				addTask(t, p, "pre", model.NoTask).Spec(0).Duration = time.Hour
				a := addTask(t, p, "a", model.NoTask)
				a.Spec(0).Bookings = []*model.Booking{model.NewBooking(r.ID, a.ID)}
				dependsOn(a, "pre")
				return a
			},
			end: true,
		},
		{
			name: "booking without slots and a given end",
			build: func(t *testing.T, p *model.Project) *model.Task {
				r := addResource(t, p, "r", model.NoResource)
				a := addTask(t, p, "a", model.NoTask)
				a.Spec(0).End = at(1, 17)
				a.Spec(0).Bookings = []*model.Booking{model.NewBooking(r.ID, a.ID)}
				return a
			},
			start: true,
		},
		{
			name: "partly booked effort task",
			build: func(t *testing.T, p *model.Project) *model.Task {
				r := addResource(t, p, "r", model.NoResource)
				a := effortTask(t, p, "a", 4*time.Hour, r.ID)
				a.Spec(0).Bookings = []*model.Booking{
					model.NewBooking(r.ID, a.ID, scoreboard.Interval{Start: at(0, 9), End: at(0, 11)}),
				}
				return a
			},
		},
		{
			name: "unbooked effort task with a booking",
			build: func(t *testing.T, p *model.Project) *model.Task {
				r := addResource(t, p, "r", model.NoResource)
				a := effortTask(t, p, "a", 4*time.Hour, r.ID)
				a.Spec(0).Bookings = []*model.Booking{model.NewBooking(r.ID, a.ID)}
				return a
			},
			start: true,
		},
		{
			name: "end successor on backward task",
			build: func(t *testing.T, p *model.Project) *model.Task {
				a := addTask(t, p, "a", model.NoTask)
				a.Spec(0).Duration = time.Hour
				a.Spec(0).Forward = false
				a.Spec(0).Precedes = []model.Dependency{{Target: "post"}}
				addTask(t, p, "post", model.NoTask).Spec(0).Duration = time.Hour
				return a
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProject(t, 14)
			task := tt.build(t, p)
			sc, _ := preparedScenario(t, p)
			ts := sc.tasks[task.ID]
			assert.Equal(t, tt.start, ts.CanInheritDate(false), "start")
			assert.Equal(t, tt.end, ts.CanInheritDate(true), "end")
		})
	}
}

func TestPropagateDateOnce(t *testing.T) {
	p := newTestProject(t, 14)
	a := addTask(t, p, "a", model.NoTask)
	a.Spec(0).Duration = 2 * time.Hour
	a.Spec(0).Start = at(1, 9)
	b := addTask(t, p, "b", model.NoTask)
	b.Spec(0).Duration = time.Hour
	b.Spec(0).Depends = []model.Dependency{{Target: "a", OnEnd: false, GapDuration: time.Hour}}
	sc, _ := preparedScenario(t, p)
	ta, tb := sc.tasks[a.ID], sc.tasks[b.ID]

	ta.PropagateInitialValues()
	assert.Equal(t, at(1, 9), ta.Start())
	assert.Equal(t, at(1, 10), tb.Start())

	ta.PropagateDate(at(2, 9), false)
	ta.PropagateInitialValues()
	assert.Equal(t, at(1, 9), ta.Start())
	assert.Equal(t, at(1, 10), tb.Start())
}

func TestDurationTaskWaitsForWalk(t *testing.T) {
	p := newTestProject(t, 14)
	r := addResource(t, p, "r", model.NoResource)
	a := effortTask(t, p, "a", 2*time.Hour, r.ID)
	a.Spec(0).End = at(3, 18)
	sc, _ := preparedScenario(t, p)
	ta := sc.tasks[a.ID]

	ta.PropagateInitialValues()
	assert.Equal(t, p.Start, ta.Start())
	assert.Equal(t, at(3, 18), ta.End())
	assert.False(t, ta.Scheduled())
}

func TestPropagateContainerStart(t *testing.T) {
	p := newTestProject(t, 14)
	c := addTask(t, p, "c", model.NoTask)
	a := addTask(t, p, "a", c.ID)
	a.Spec(0).Start = at(1, 9)
	a.Spec(0).Duration = 2 * time.Hour
	b := addTask(t, p, "b", model.NoTask)
	b.Spec(0).Duration = time.Hour
	b.Spec(0).Depends = []model.Dependency{{Target: "c", OnEnd: false}}

	res, msgs := runScenario(t, p)
	require.True(t, res.OK, "messages: %v", msgs.Messages())
	assert.Equal(t, at(1, 9), res.Task(c.ID).Start())
	assert.Equal(t, at(1, 11), res.Task(c.ID).End())
	tb := res.Task(b.ID)
	assert.True(t, tb.Scheduled())
	assert.Equal(t, at(1, 9), tb.Start())
	assert.Equal(t, at(1, 10), tb.End())
}

func TestPropagateContainerEndToBackwardTask(t *testing.T) {
	p := newTestProject(t, 14)
	c := addTask(t, p, "c", model.NoTask)
	a := addTask(t, p, "a", c.ID)
	a.Spec(0).Start = at(1, 9)
	a.Spec(0).Duration = 2 * time.Hour
	x := addTask(t, p, "x", model.NoTask)
	x.Spec(0).Duration = time.Hour
	x.Spec(0).Forward = false
	x.Spec(0).Precedes = []model.Dependency{{Target: "c", OnEnd: true}}

	res, msgs := runScenario(t, p)
	require.True(t, res.OK, "messages: %v", msgs.Messages())
	tx := res.Task(x.ID)
	assert.True(t, tx.Scheduled())
	assert.Equal(t, at(1, 10), tx.Start())
	assert.Equal(t, at(1, 11), tx.End())
}

func TestDurationTaskDirectionChecked(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T, p *model.Project, r model.ResourceID) *model.Task
	}{
		{
			name: "asap with an end",
			build: func(t *testing.T, p *model.Project, r model.ResourceID) *model.Task {
				a := effortTask(t, p, "a", 2*time.Hour, r)
				a.Spec(0).End = at(3, 18)
				return a
			},
		},
		{
			name: "alap with a start",
			build: func(t *testing.T, p *model.Project, r model.ResourceID) *model.Task {
				a := effortTask(t, p, "a", 2*time.Hour, r)
				a.Spec(0).Forward = false
				a.Spec(0).Start = at(1, 9)
				return a
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProject(t, 14)
			r := addResource(t, p, "r", model.NoResource)
			a := tt.build(t, p, r.ID)

			res, c := runScenario(t, p)
			assert.False(t, res.OK)
			assert.Len(t, c.ByID(msgDirection), 1)
			assert.False(t, res.Task(a.ID).Scheduled())
			assert.Equal(t, 0.0, res.Resource(r.ID).EffectiveWork(p.Frame(), model.NoTask))
		})
	}
}

func TestPropagateGapLength(t *testing.T) {
	p := newTestProject(t, 14)
	a := addTask(t, p, "a", model.NoTask)
	a.Spec(0).Start = at(0, 16)
	a.Spec(0).Duration = time.Hour
	b := addTask(t, p, "b", model.NoTask)
	b.Spec(0).Duration = time.Hour
	b.Spec(0).Depends = []model.Dependency{{Target: "a", OnEnd: true, GapLength: 2 * time.Hour}}

	res, c := runScenario(t, p)
	require.True(t, res.OK, "messages: %v", c.Messages())
	// a ends at 17:00; two working hours later is Tuesday 10:00.
	assert.Equal(t, at(0, 17), res.Task(a.ID).End())
	assert.Equal(t, at(1, 10), res.Task(b.ID).Start())
}

func TestBackwardScheduling(t *testing.T) {
	p := newTestProject(t, 14)
	dev := addResource(t, p, "dev", model.NoResource)
	a := effortTask(t, p, "a", 2*time.Hour, dev.ID)
	a.Spec(0).Forward = false
	a.Spec(0).End = at(1, 12)

	res, c := runScenario(t, p)
	require.True(t, res.OK, "messages: %v", c.Messages())
	assert.Equal(t, at(1, 10), res.Task(a.ID).Start())
	assert.Equal(t, at(1, 12), res.Task(a.ID).End())
}

func TestScheduleSlotAdjacency(t *testing.T) {
	p := newTestProject(t, 14)
	a := addTask(t, p, "a", model.NoTask)
	a.Spec(0).Duration = 3 * time.Hour
	a.Spec(0).Start = at(0, 9)
	sc, _ := preparedScenario(t, p)
	ts := sc.tasks[a.ID]

	assert.ErrorIs(t, ts.ScheduleSlot(at(0, 10)), ErrNonAdjacentSlot)
	require.NoError(t, ts.ScheduleSlot(at(0, 9)))
	assert.ErrorIs(t, ts.ScheduleSlot(at(0, 9)), ErrNonAdjacentSlot)
	require.NoError(t, ts.ScheduleSlot(at(0, 10)))
	require.NoError(t, ts.ScheduleSlot(at(0, 11)))
	assert.True(t, ts.Scheduled())
	assert.Equal(t, at(0, 12), ts.End())
}

func TestWeakDependencyReported(t *testing.T) {
	p := newTestProject(t, 14)
	pre := addTask(t, p, "pre", model.NoTask)
	pre.Spec(0).Start = at(1, 9)
	pre.Spec(0).Duration = 2 * time.Hour
	a := addTask(t, p, "a", model.NoTask)
	a.Spec(0).End = at(0, 12)
	a.Spec(0).Duration = time.Hour
	dependsOn(a, "pre")

	_, c := runScenario(t, p)
	assert.NotEmpty(t, c.ByID(msgWeakStartDep))
}

func TestXrefReportsInvalidDependencies(t *testing.T) {
	p := newTestProject(t, 14)
	parent := addTask(t, p, "parent", model.NoTask)
	child := addTask(t, p, "child", parent.ID)
	child.Spec(0).Duration = time.Hour
	child.Spec(0).Depends = []model.Dependency{
		{Target: "missing", OnEnd: true},
		{Target: "parent", OnEnd: true},
	}
	parent.Spec(0).Depends = []model.Dependency{{Target: "parent.child", OnEnd: true}}
	self := addTask(t, p, "self", model.NoTask)
	self.Spec(0).Duration = time.Hour
	self.Spec(0).Depends = []model.Dependency{{Target: "self", OnEnd: true}}
	dup := addTask(t, p, "dup", model.NoTask)
	dup.Spec(0).Duration = time.Hour
	dup.Spec(0).Depends = []model.Dependency{{Target: "self", OnEnd: true}, {Target: "self", OnEnd: true}}

	_, c := preparedScenario(t, p)
	assert.Len(t, c.ByID(msgUnknownDep), 1)
	assert.Len(t, c.ByID(msgParentDep), 1)
	assert.Len(t, c.ByID(msgChildDep), 1)
	assert.Len(t, c.ByID(msgSelfDep), 1)
	assert.Len(t, c.ByID(msgDuplicateDep), 1)
}

func TestCheckForLoopsThroughContainer(t *testing.T) {
	p := newTestProject(t, 14)
	c := addTask(t, p, "c", model.NoTask)
	inner := addTask(t, p, "inner", c.ID)
	inner.Spec(0).Duration = time.Hour
	after := addTask(t, p, "after", model.NoTask)
	after.Spec(0).Duration = time.Hour
	dependsOn(after, "c")
	inner.Spec(0).Depends = []model.Dependency{{Target: "after", OnEnd: true}}

	sc, _ := preparedScenario(t, p)
	var cycle []loopNode
	for _, ts := range sc.tasks {
		if ts.task.Parent == model.NoTask {
			if cycle = ts.CheckForLoops(nil, false, true, true); cycle != nil {
				break
			}
		}
	}
	require.NotEmpty(t, cycle)
	assert.Equal(t, cycle[0], cycle[len(cycle)-1])
}
