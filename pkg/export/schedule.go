package export

import (
	"time"

	"github.com/kilianp07/slotplan/core/model"
	"github.com/kilianp07/slotplan/core/scheduler"
	"github.com/kilianp07/slotplan/core/scoreboard"
)

// Schedule is the serializable outcome of one scenario run.
type Schedule struct {
	Project     string     `json:"project"`
	Scenario    string     `json:"scenario"`
	RunID       string     `json:"run_id"`
	OK          bool       `json:"ok"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	Unscheduled int        `json:"unscheduled"`
	Errors      int        `json:"errors"`
	Warnings    int        `json:"warnings"`
	Tasks       []Task     `json:"tasks"`
	Resources   []Resource `json:"resources"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// Task is the scheduled state of one task. Effort values are in working days.
type Task struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Parent           string     `json:"parent,omitempty"`
	Container        bool       `json:"container,omitempty"`
	Milestone        bool       `json:"milestone,omitempty"`
	Scheduled        bool       `json:"scheduled"`
	Runaway          bool       `json:"runaway,omitempty"`
	Start            *time.Time `json:"start,omitempty"`
	End              *time.Time `json:"end,omitempty"`
	EffortDone       float64    `json:"effort_done"`
	Criticalness     float64    `json:"criticalness"`
	PathCriticalness float64    `json:"path_criticalness"`
	Resources        []string   `json:"resources,omitempty"`
}

// Resource summarizes the load of one resource. Work values are in working
// days, cost in the rate unit.
type Resource struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Parent       string    `json:"parent,omitempty"`
	Allocated    float64   `json:"allocated"`
	Free         float64   `json:"free"`
	Cost         float64   `json:"cost"`
	Criticalness float64   `json:"criticalness"`
	Bookings     []Booking `json:"bookings,omitempty"`
}

// Booking is a contiguous block of a resource booked for a task.
type Booking struct {
	Task  string    `json:"task"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// FromResult converts a scenario result.
func FromResult(res *scheduler.ScenarioResult) Schedule {
	p := res.Project()
	s := Schedule{
		Project:     p.Name,
		Scenario:    res.Name,
		RunID:       res.RunID,
		OK:          res.OK,
		Unscheduled: res.Unscheduled,
		Errors:      res.Errors,
		Warnings:    res.Warnings,
		GeneratedAt: time.Now().UTC(),
	}
	if start, end := res.Span(); !start.IsZero() {
		s.Start, s.End = timePtr(start), timePtr(end)
	}
	for _, ts := range res.Tasks() {
		t := ts.Task()
		et := Task{
			ID:               t.Key,
			Name:             t.Name,
			Container:        t.Container(),
			Milestone:        ts.Milestone(),
			Scheduled:        ts.Scheduled(),
			Runaway:          ts.Runaway(),
			Start:            timePtr(ts.Start()),
			End:              timePtr(ts.End()),
			EffortDone:       p.SlotsToDays(ts.EffortDone()),
			Criticalness:     ts.Criticalness(),
			PathCriticalness: ts.PathCriticalness(),
		}
		if parent := p.Task(t.Parent); parent != nil {
			et.Parent = parent.Key
		}
		for _, id := range ts.AssignedResources() {
			et.Resources = append(et.Resources, p.Resource(id).Key)
		}
		s.Tasks = append(s.Tasks, et)
	}
	frame := p.Frame()
	for _, rs := range res.Resources() {
		r := rs.Resource()
		er := Resource{
			ID:           r.Key,
			Name:         r.Name,
			Allocated:    p.SlotsToDays(rs.AllocatedTime(frame, model.NoTask)),
			Free:         p.SlotsToDays(rs.EffectiveFreeTime(frame)),
			Cost:         rs.Cost(frame, model.NoTask),
			Criticalness: rs.Criticalness(),
		}
		if parent := p.Resource(r.Parent); parent != nil {
			er.Parent = parent.Key
		}
		if r.Leaf() {
			for _, bk := range rs.Bookings() {
				er.Bookings = append(er.Bookings, bookings(p, bk)...)
			}
		}
		s.Resources = append(s.Resources, er)
	}
	return s
}

// FromResults converts every scenario of res.
func FromResults(res *scheduler.Result) []Schedule {
	out := make([]Schedule, 0, len(res.Scenarios))
	for _, sr := range res.Scenarios {
		out = append(out, FromResult(sr))
	}
	return out
}

func bookings(p *model.Project, bk *model.Booking) []Booking {
	key := p.Task(bk.Task).Key
	out := make([]Booking, 0, len(bk.Intervals))
	for _, iv := range bk.Intervals {
		out = append(out, booking(key, iv))
	}
	return out
}

func booking(task string, iv scoreboard.Interval) Booking {
	return Booking{Task: task, Start: iv.Start, End: iv.End}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
