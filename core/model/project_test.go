package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func newProject(t *testing.T) *Project {
	t.Helper()
	p, err := NewProject("test", start, start.AddDate(0, 1, 0), time.Hour)
	require.NoError(t, err)
	return p
}

func TestNewProjectValidation(t *testing.T) {
	_, err := NewProject("x", start, start, time.Hour)
	assert.Error(t, err)
	_, err = NewProject("x", start, start.Add(time.Hour), 0)
	assert.Error(t, err)
	_, err = NewProject("x", start.Add(time.Minute), start.Add(48*time.Hour), time.Hour)
	assert.Error(t, err)

	p := newProject(t)
	assert.Equal(t, 31*24, p.Slots())
	assert.NoError(t, p.Validate())
	p.DailyWorkingHours = 0
	assert.Error(t, p.Validate())
}

func TestTaskTreeAndKeys(t *testing.T) {
	p := newProject(t)
	root, err := p.AddTask("root", "Root", NoTask)
	require.NoError(t, err)
	root.Specs[0].Priority = 800
	root.Specs[0].Forward = false
	a, err := p.AddTask("a", "A", root.ID)
	require.NoError(t, err)
	b, err := p.AddTask("b", "B", root.ID)
	require.NoError(t, err)

	assert.Equal(t, "root.a", a.Key)
	assert.Equal(t, "a", a.LocalID())
	assert.True(t, root.Container())
	assert.True(t, a.Leaf())
	assert.Equal(t, []TaskID{a.ID, b.ID}, root.Children)
	assert.Equal(t, 2, a.Seq())
	// inherited at declaration
	assert.Equal(t, 800, a.Spec(0).Priority)
	assert.False(t, a.Spec(0).Forward)

	_, err = p.AddTask("a", "dup", root.ID)
	assert.Error(t, err)
	_, err = p.AddTask("x.y", "bad", NoTask)
	assert.Error(t, err)

	got, ok := p.ResolveTaskRef(a, "!b")
	require.True(t, ok)
	assert.Equal(t, b.ID, got.ID)
	got, ok = p.ResolveTaskRef(a, "root.b")
	require.True(t, ok)
	assert.Equal(t, b.ID, got.ID)
	got, ok = p.ResolveTaskRef(a, "!!root")
	require.True(t, ok)
	assert.Equal(t, root.ID, got.ID)
	_, ok = p.ResolveTaskRef(a, "!!!root")
	assert.False(t, ok)
}

func TestScenarioSpecsAreIndependent(t *testing.T) {
	p := newProject(t)
	task, err := p.AddTask("t", "T", NoTask)
	require.NoError(t, err)
	task.Specs[0].Effort = 4 * time.Hour
	task.Specs[0].Depends = []Dependency{{Target: "x", OnEnd: true}}
	r, err := p.AddResource("r", "R", NoResource)
	require.NoError(t, err)

	idx, err := p.AddScenario("delayed", true)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	require.Len(t, task.Specs, 2)
	require.Len(t, r.Specs, 2)
	task.Specs[1].Depends[0].Target = "y"
	assert.Equal(t, "x", task.Specs[0].Depends[0].Target)
	assert.Equal(t, 4*time.Hour, task.Specs[1].Effort)

	_, err = p.AddScenario("delayed", true)
	assert.Error(t, err)
}

func TestResourcesAndShifts(t *testing.T) {
	p := newProject(t)
	team, err := p.AddResource("team", "Team", NoResource)
	require.NoError(t, err)
	dev, err := p.AddResource("dev", "Dev", team.ID)
	require.NoError(t, err)
	assert.True(t, team.Group())
	assert.True(t, dev.Leaf())
	assert.Equal(t, 1.0, dev.Spec(0).Efficiency)
	_, err = p.AddResource("dev", "again", NoResource)
	assert.Error(t, err)

	s, err := p.AddShift("night", "Night")
	require.NoError(t, err)
	got, ok := p.Shift("night")
	require.True(t, ok)
	assert.Same(t, s, got)

	a := ShiftAssignment{Shift: s, Interval: p.Frame()}
	found, ok := ShiftAt([]ShiftAssignment{a}, start.Add(time.Hour))
	assert.True(t, ok)
	assert.Same(t, s, found.Shift)
	_, ok = ShiftAt([]ShiftAssignment{a}, start.AddDate(1, 0, 0))
	assert.False(t, ok)
}

func TestUnitConversion(t *testing.T) {
	p := newProject(t)
	assert.InDelta(t, 1.0, p.SlotsToDays(8), 1e-9)
	assert.InDelta(t, 0.5, p.DurationToDays(4*time.Hour), 1e-9)
	assert.Equal(t, 16*time.Hour, p.WorkingDaysToDuration(2))
}

func TestIsWorkingTime(t *testing.T) {
	p := newProject(t)
	monday10 := start.Add(10 * time.Hour)
	assert.True(t, p.IsWorkingTime(monday10))
	assert.False(t, p.IsWorkingTime(start.Add(12*time.Hour)))
	p.Vacations = append(p.Vacations, p.Frame())
	assert.False(t, p.IsWorkingTime(monday10))
}

func TestSelectionMode(t *testing.T) {
	m, err := ParseSelectionMode("")
	require.NoError(t, err)
	assert.Equal(t, SelectMinAllocated, m)
	m, err = ParseSelectionMode("maxloaded")
	require.NoError(t, err)
	assert.Equal(t, SelectMaxLoaded, m)
	assert.Equal(t, "maxloaded", m.String())
	_, err = ParseSelectionMode("fastest")
	assert.Error(t, err)
}

type view struct {
	start, end time.Time
	crit       float64
}

func (v view) Start() time.Time          { return v.start }
func (v view) End() time.Time            { return v.end }
func (v view) Criticalness() float64     { return v.crit }
func (v view) PathCriticalness() float64 { return v.crit * 2 }
func (v view) EffortDone() float64       { return 3 }
func (v view) Scheduled() bool           { return true }

func TestCompare(t *testing.T) {
	v := view{start: start, end: start.AddDate(0, 0, 5), crit: 1.5}
	cases := []struct {
		c    Compare
		want bool
		err  bool
	}{
		{Compare{"end", ">", "2025-03-07"}, true, false},
		{Compare{"end", "<=", "2025-03-07"}, false, false},
		{Compare{"start", "==", "2025-03-03T00:00:00Z"}, true, false},
		{Compare{"criticalness", ">=", "1.5"}, true, false},
		{Compare{"pathcriticalness", "<", "3"}, false, false},
		{Compare{"effortdone", "!=", "3"}, false, false},
		{Compare{"cost", ">", "1"}, false, true},
		{Compare{"end", "~", "2025-03-07"}, false, true},
		{Compare{"end", ">", "tomorrow"}, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.c.String(), func(t *testing.T) {
			got, err := tc.c.Holds(v)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
