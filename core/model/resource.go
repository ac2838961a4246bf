package model

import (
	"time"

	"github.com/kilianp07/slotplan/core/calendar"
	"github.com/kilianp07/slotplan/core/message"
	"github.com/kilianp07/slotplan/core/scoreboard"
)

// ResourceID indexes the resource arena of a Project.
type ResourceID int

// NoResource is the parent of top-level resources.
const NoResource ResourceID = -1

// Resource is a person, machine or group of them.
type Resource struct {
	ID       ResourceID
	Key      string
	Name     string
	Parent   ResourceID
	Children []ResourceID
	Source   *message.SourceLocation

	Specs []*ResourceSpec
}

// Group reports whether the resource has members.
func (r *Resource) Group() bool { return len(r.Children) > 0 }

// Leaf reports whether the resource has no members.
func (r *Resource) Leaf() bool { return len(r.Children) == 0 }

// Spec returns the declared values for scenario sc.
func (r *Resource) Spec(sc int) *ResourceSpec { return r.Specs[sc] }

func (r *Resource) String() string { return r.Key }

// ResourceSpec holds the provided attributes of a resource for one scenario.
type ResourceSpec struct {
	Efficiency float64
	// Rate is the cost per working day.
	Rate float64
	// WorkingHours overrides the inherited calendar when set.
	WorkingHours *calendar.WorkingHours
	Vacations    []scoreboard.Interval
	Shifts       []ShiftAssignment
	Limits       []LimitSpec
}

// DefaultResourceSpec returns the values of an undeclared resource.
func DefaultResourceSpec() *ResourceSpec {
	return &ResourceSpec{Efficiency: 1}
}

// Clone returns a copy. Working hours are cloned so that later mutation of
// one scenario does not leak into another.
func (s *ResourceSpec) Clone() *ResourceSpec {
	c := *s
	if s.WorkingHours != nil {
		c.WorkingHours = s.WorkingHours.Clone()
	}
	c.Vacations = append([]scoreboard.Interval(nil), s.Vacations...)
	c.Shifts = append([]ShiftAssignment(nil), s.Shifts...)
	c.Limits = append([]LimitSpec(nil), s.Limits...)
	return &c
}

// Shift is a named alternative calendar that can be assigned to resources
// and tasks for a time interval.
type Shift struct {
	Key          string
	Name         string
	WorkingHours *calendar.WorkingHours
	Vacations    []scoreboard.Interval
	// Replace makes on-shift slots ignore global vacations.
	Replace bool
}

// ShiftAssignment applies Shift during Interval.
type ShiftAssignment struct {
	Shift    *Shift
	Interval scoreboard.Interval
}

// Covers reports whether t lies inside the assignment.
func (a ShiftAssignment) Covers(t time.Time) bool { return a.Interval.Contains(t) }

// ShiftAt returns the first assignment covering t.
func ShiftAt(assignments []ShiftAssignment, t time.Time) (ShiftAssignment, bool) {
	for _, a := range assignments {
		if a.Covers(t) {
			return a, true
		}
	}
	return ShiftAssignment{}, false
}
