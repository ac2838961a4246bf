package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/slotplan/core/message"
	"github.com/kilianp07/slotplan/core/scoreboard"
)

// TaskID indexes the task arena of a Project.
type TaskID int

// NoTask is the parent of top-level tasks.
const NoTask TaskID = -1

// DefaultPriority is used for tasks that do not declare one.
const DefaultPriority = 500

// Task is a node of the work breakdown structure.
type Task struct {
	ID       TaskID
	Key      string
	Name     string
	Parent   TaskID
	Children []TaskID
	Source   *message.SourceLocation

	// Specs holds the declared values per scenario.
	Specs []*TaskSpec
}

// Container reports whether the task has children.
func (t *Task) Container() bool { return len(t.Children) > 0 }

// Leaf reports whether the task has no children.
func (t *Task) Leaf() bool { return len(t.Children) == 0 }

// Seq is the 1-based declaration order.
func (t *Task) Seq() int { return int(t.ID) + 1 }

// Spec returns the declared values for scenario sc.
func (t *Task) Spec(sc int) *TaskSpec { return t.Specs[sc] }

// LocalID is the last component of the key.
func (t *Task) LocalID() string {
	if i := strings.LastIndexByte(t.Key, '.'); i >= 0 {
		return t.Key[i+1:]
	}
	return t.Key
}

func (t *Task) String() string { return t.Key }

// TaskSpec holds the provided attributes of a task for one scenario. Zero
// values mean "not provided".
type TaskSpec struct {
	Start time.Time
	End   time.Time

	// Effort is resource time, Length is working time and Duration is
	// calendar time. At most one of them may be set.
	Effort   time.Duration
	Length   time.Duration
	Duration time.Duration

	Milestone bool
	// Scheduled marks start and end as final.
	Scheduled bool
	// Forward selects ASAP scheduling; false means ALAP.
	Forward  bool
	Priority int

	Allocations []Allocation
	Depends     []Dependency
	Precedes    []Dependency
	Bookings    []*Booking
	Limits      []LimitSpec
	Shifts      []ShiftAssignment

	MinStart time.Time
	MaxStart time.Time
	MinEnd   time.Time
	MaxEnd   time.Time

	// ChargeRate is the revenue per booked working day used by turnover.
	ChargeRate float64
	Alerts     []Alert
}

// DefaultTaskSpec returns the values of an undeclared task.
func DefaultTaskSpec() *TaskSpec {
	return &TaskSpec{Forward: true, Priority: DefaultPriority}
}

// HasDurationSpec reports whether effort, length, duration or milestone is
// set.
func (s *TaskSpec) HasDurationSpec() bool {
	return s.Effort > 0 || s.Length > 0 || s.Duration > 0 || s.Milestone
}

// Clone returns a deep copy.
func (s *TaskSpec) Clone() *TaskSpec {
	c := *s
	c.Allocations = make([]Allocation, len(s.Allocations))
	for i, a := range s.Allocations {
		c.Allocations[i] = a
		c.Allocations[i].Candidates = append([]ResourceID(nil), a.Candidates...)
	}
	c.Depends = append([]Dependency(nil), s.Depends...)
	c.Precedes = append([]Dependency(nil), s.Precedes...)
	c.Bookings = make([]*Booking, len(s.Bookings))
	for i, b := range s.Bookings {
		c.Bookings[i] = b.Clone()
	}
	c.Limits = append([]LimitSpec(nil), s.Limits...)
	c.Shifts = append([]ShiftAssignment(nil), s.Shifts...)
	c.Alerts = append([]Alert(nil), s.Alerts...)
	return &c
}

// inheritFrom copies the attributes children take over from their parent
// at declaration time.
func (s *TaskSpec) inheritFrom(parent *TaskSpec) {
	s.Forward = parent.Forward
	s.Priority = parent.Priority
	s.ChargeRate = parent.ChargeRate
	s.Shifts = append([]ShiftAssignment(nil), parent.Shifts...)
}

// SelectionMode orders the candidates of an allocation.
type SelectionMode int

const (
	SelectMinAllocated SelectionMode = iota
	SelectOrder
	SelectMinLoaded
	SelectMaxLoaded
	SelectRandom
)

var selectionNames = map[SelectionMode]string{
	SelectMinAllocated: "minallocated",
	SelectOrder:        "order",
	SelectMinLoaded:    "minloaded",
	SelectMaxLoaded:    "maxloaded",
	SelectRandom:       "random",
}

func (m SelectionMode) String() string {
	if s, ok := selectionNames[m]; ok {
		return s
	}
	return fmt.Sprintf("selection(%d)", int(m))
}

// ParseSelectionMode maps a mode name to its value. An empty name is the
// default minallocated.
func ParseSelectionMode(s string) (SelectionMode, error) {
	if s == "" {
		return SelectMinAllocated, nil
	}
	for m, name := range selectionNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown selection mode %q", s)
}

// Allocation requests one resource out of Candidates for every booked slot.
type Allocation struct {
	Candidates []ResourceID
	// Mandatory allocations must all be available before any is booked.
	Mandatory bool
	// Persistent allocations stick to the first resource that got booked.
	Persistent bool
	Selection  SelectionMode
}

// Dependency is a declared edge from the owning task to Target.
type Dependency struct {
	// Target is a full task key or a '!' prefixed relative key.
	Target string
	// OnEnd attaches to the end of Target instead of its start.
	OnEnd       bool
	GapDuration time.Duration
	GapLength   time.Duration
	Source      *message.SourceLocation
}

// Booking is declared completed work of a resource on a task.
type Booking struct {
	Resource  ResourceID
	Task      TaskID
	Intervals []scoreboard.Interval
	// Overtime 1 allows off-shift slots, 2 also vacation slots.
	Overtime int
	// Sloppy 1 tolerates off-hour violations, 2 also vacations and
	// conflicts, all silently.
	Sloppy int
	Source *message.SourceLocation
}

// NewBooking returns a booking over ivs.
func NewBooking(resource ResourceID, task TaskID, ivs ...scoreboard.Interval) *Booking {
	return &Booking{Resource: resource, Task: task, Intervals: ivs}
}

// Extend appends an interval.
func (b *Booking) Extend(iv scoreboard.Interval) { b.Intervals = append(b.Intervals, iv) }

// Clone returns a deep copy.
func (b *Booking) Clone() *Booking {
	c := *b
	c.Intervals = append([]scoreboard.Interval(nil), b.Intervals...)
	return &c
}

// LimitSpec declares a limit on a task or resource.
type LimitSpec struct {
	Name  string
	Value time.Duration
	// Interval defaults to the project frame.
	Interval *scoreboard.Interval
	// Resource restricts a task limit to one resource.
	Resource ResourceID
}
