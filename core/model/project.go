// Package model holds the declared project graph: tasks, resources, shifts
// and their per scenario specifications. It is populated once (by the
// project file loader or programmatically) and treated as read-only
// topology by the scheduler, which keeps all computed values separately.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/slotplan/core/calendar"
	"github.com/kilianp07/slotplan/core/scoreboard"
)

// Scenario is a named variant of the project with its own specs.
type Scenario struct {
	Name    string
	Enabled bool
}

// Project owns the task and resource arenas and the project wide settings.
type Project struct {
	Name        string
	Start       time.Time
	End         time.Time
	Granularity time.Duration

	WeekStartsMonday  bool
	DailyWorkingHours float64
	YearlyWorkingDays float64

	// WorkingHours is the global calendar used for length based durations
	// and as default for resources.
	WorkingHours *calendar.WorkingHours
	// Vacations are global non working intervals.
	Vacations []scoreboard.Interval
	Scenarios []Scenario
	Cache     *calendar.Cache

	tasks     []*Task
	resources []*Resource
	shifts    map[string]*Shift
	taskIdx   map[string]TaskID
	resIdx    map[string]ResourceID
}

// NewProject creates a project spanning [start, end) with one enabled
// scenario named "plan".
func NewProject(name string, start, end time.Time, granularity time.Duration) (*Project, error) {
	if granularity <= 0 {
		return nil, errors.New("granularity must be positive")
	}
	if !end.After(start) {
		return nil, fmt.Errorf("project end %s must be after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	if start.Truncate(granularity) != start {
		return nil, fmt.Errorf("project start must be aligned to the granularity %s", granularity)
	}
	cache := calendar.NewCache()
	p := &Project{
		Name:              name,
		Start:             start,
		End:               end,
		Granularity:       granularity,
		WeekStartsMonday:  true,
		DailyWorkingHours: 8,
		YearlyWorkingDays: 260.714,
		Scenarios:         []Scenario{{Name: "plan", Enabled: true}},
		Cache:             cache,
		shifts:            make(map[string]*Shift),
		taskIdx:           make(map[string]TaskID),
		resIdx:            make(map[string]ResourceID),
	}
	p.WorkingHours = p.NewWorkingHours()
	return p, nil
}

// Frame returns [Start, End).
func (p *Project) Frame() scoreboard.Interval {
	return scoreboard.Interval{Start: p.Start, End: p.End}
}

// Slots returns the number of scheduling slots in the frame.
func (p *Project) Slots() int {
	n := int(p.End.Sub(p.Start) / p.Granularity)
	if p.End.Sub(p.Start)%p.Granularity != 0 {
		n++
	}
	return n
}

// NewWorkingHours returns the default working hours bound to the project
// frame and cache.
func (p *Project) NewWorkingHours() *calendar.WorkingHours {
	return calendar.New(p.Start, p.End, p.Granularity, p.Cache)
}

// AddScenario appends a scenario. Existing tasks and resources get a copy of
// their first scenario spec.
func (p *Project) AddScenario(name string, enabled bool) (int, error) {
	if _, ok := p.ScenarioIndex(name); ok {
		return 0, fmt.Errorf("scenario %s already defined", name)
	}
	p.Scenarios = append(p.Scenarios, Scenario{Name: name, Enabled: enabled})
	for _, t := range p.tasks {
		t.Specs = append(t.Specs, t.Specs[0].Clone())
	}
	for _, r := range p.resources {
		r.Specs = append(r.Specs, r.Specs[0].Clone())
	}
	return len(p.Scenarios) - 1, nil
}

// ScenarioIndex looks up a scenario by name.
func (p *Project) ScenarioIndex(name string) (int, bool) {
	for i, s := range p.Scenarios {
		if s.Name == name {
			return i, true
		}
	}
	return 0, false
}

// AddTask creates a task. id is local to the parent; the full key is the
// dot separated path of ids.
func (p *Project) AddTask(id, name string, parent TaskID) (*Task, error) {
	if id == "" || strings.ContainsAny(id, ".!") {
		return nil, fmt.Errorf("invalid task id %q", id)
	}
	key := id
	var pt *Task
	if parent != NoTask {
		pt = p.Task(parent)
		if pt == nil {
			return nil, fmt.Errorf("unknown parent task %d", parent)
		}
		key = pt.Key + "." + id
	}
	if _, ok := p.taskIdx[key]; ok {
		return nil, fmt.Errorf("task %s already defined", key)
	}
	t := &Task{ID: TaskID(len(p.tasks)), Key: key, Name: name, Parent: parent}
	for sc := range p.Scenarios {
		spec := DefaultTaskSpec()
		if pt != nil {
			spec.inheritFrom(pt.Specs[sc])
		}
		t.Specs = append(t.Specs, spec)
	}
	if pt != nil {
		pt.Children = append(pt.Children, t.ID)
	}
	p.tasks = append(p.tasks, t)
	p.taskIdx[key] = t.ID
	return t, nil
}

// AddResource creates a resource, optionally as member of a group.
func (p *Project) AddResource(id, name string, parent ResourceID) (*Resource, error) {
	if id == "" {
		return nil, errors.New("empty resource id")
	}
	if _, ok := p.resIdx[id]; ok {
		return nil, fmt.Errorf("resource %s already defined", id)
	}
	var pr *Resource
	if parent != NoResource {
		pr = p.Resource(parent)
		if pr == nil {
			return nil, fmt.Errorf("unknown parent resource %d", parent)
		}
	}
	r := &Resource{ID: ResourceID(len(p.resources)), Key: id, Name: name, Parent: parent}
	for range p.Scenarios {
		r.Specs = append(r.Specs, DefaultResourceSpec())
	}
	if pr != nil {
		pr.Children = append(pr.Children, r.ID)
	}
	p.resources = append(p.resources, r)
	p.resIdx[id] = r.ID
	return r, nil
}

// AddShift registers a named shift with default working hours.
func (p *Project) AddShift(id, name string) (*Shift, error) {
	if _, ok := p.shifts[id]; ok {
		return nil, fmt.Errorf("shift %s already defined", id)
	}
	s := &Shift{Key: id, Name: name, WorkingHours: p.NewWorkingHours()}
	p.shifts[id] = s
	return s, nil
}

// Shift returns the shift with the given id.
func (p *Project) Shift(id string) (*Shift, bool) {
	s, ok := p.shifts[id]
	return s, ok
}

// Task returns the task with the given id or nil.
func (p *Project) Task(id TaskID) *Task {
	if id < 0 || int(id) >= len(p.tasks) {
		return nil
	}
	return p.tasks[id]
}

// Resource returns the resource with the given id or nil.
func (p *Project) Resource(id ResourceID) *Resource {
	if id < 0 || int(id) >= len(p.resources) {
		return nil
	}
	return p.resources[id]
}

// Tasks returns all tasks in declaration order.
func (p *Project) Tasks() []*Task { return p.tasks }

// Resources returns all resources in declaration order.
func (p *Project) Resources() []*Resource { return p.resources }

// TaskByKey looks up a task by its full key.
func (p *Project) TaskByKey(key string) (*Task, bool) {
	id, ok := p.taskIdx[key]
	if !ok {
		return nil, false
	}
	return p.tasks[id], true
}

// ResourceByKey looks up a resource by id.
func (p *Project) ResourceByKey(key string) (*Resource, bool) {
	id, ok := p.resIdx[key]
	if !ok {
		return nil, false
	}
	return p.resources[id], true
}

// ResolveTaskRef resolves a dependency reference relative to from. Absolute
// references are full keys; every leading '!' moves one level up starting
// at from's parent, so "!b" names a sibling of from.
func (p *Project) ResolveTaskRef(from *Task, ref string) (*Task, bool) {
	if !strings.HasPrefix(ref, "!") {
		return p.TaskByKey(ref)
	}
	scope := from
	for strings.HasPrefix(ref, "!") {
		ref = ref[1:]
		if scope == nil {
			return nil, false
		}
		scope = p.Task(scope.Parent)
	}
	if scope == nil {
		return p.TaskByKey(ref)
	}
	return p.TaskByKey(scope.Key + "." + ref)
}

// IsWorkingTime reports whether the slot starting at t is global working
// time: on shift in the project working hours and not a global vacation.
func (p *Project) IsWorkingTime(t time.Time) bool {
	if !p.WorkingHours.OnShift(t) {
		return false
	}
	for _, v := range p.Vacations {
		if v.Contains(t) {
			return false
		}
	}
	return true
}

// SlotsToDays converts a number of slots into working days.
func (p *Project) SlotsToDays(slots float64) float64 {
	return slots * p.Granularity.Hours() / p.DailyWorkingHours
}

// DurationToDays converts working time into working days.
func (p *Project) DurationToDays(d time.Duration) float64 {
	return d.Hours() / p.DailyWorkingHours
}

// WorkingDaysToDuration converts working days into working time.
func (p *Project) WorkingDaysToDuration(days float64) time.Duration {
	return time.Duration(days * p.DailyWorkingHours * float64(time.Hour))
}

// Validate checks the project wide settings.
func (p *Project) Validate() error {
	if p.DailyWorkingHours <= 0 || p.DailyWorkingHours > 24 {
		return fmt.Errorf("dailyworkinghours must be in (0, 24], got %v", p.DailyWorkingHours)
	}
	if p.YearlyWorkingDays <= 0 || p.YearlyWorkingDays > 366 {
		return fmt.Errorf("yearlyworkingdays must be in (0, 366], got %v", p.YearlyWorkingDays)
	}
	if len(p.Scenarios) == 0 {
		return errors.New("no scenario defined")
	}
	for _, v := range p.Vacations {
		if v.Empty() {
			return fmt.Errorf("empty vacation interval %s", v)
		}
	}
	return nil
}
