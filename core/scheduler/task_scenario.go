package scheduler

import (
	"math/rand"
	"sort"
	"time"

	"github.com/kilianp07/slotplan/core/limits"
	"github.com/kilianp07/slotplan/core/message"
	"github.com/kilianp07/slotplan/core/model"
)

// TaskState is the position of a task in the scheduling life cycle.
type TaskState int

const (
	Unprepared TaskState = iota
	Prepared
	Ready
	Scheduling
	Scheduled
	PostChecked
)

func (s TaskState) String() string {
	switch s {
	case Prepared:
		return "prepared"
	case Ready:
		return "ready"
	case Scheduling:
		return "scheduling"
	case Scheduled:
		return "scheduled"
	case PostChecked:
		return "postchecked"
	default:
		return "unprepared"
	}
}

// edge links one end of a task to an end of another task.
type edge struct {
	task        model.TaskID
	onEnd       bool
	gapDuration time.Duration
	gapLength   time.Duration
}

// TaskScenario is the scheduling state of one task in one scenario.
type TaskScenario struct {
	sc   *scenario
	task *model.Task
	spec *model.TaskSpec

	state     TaskState
	runaway   bool
	specError bool

	start     time.Time
	end       time.Time
	scheduled bool
	milestone bool

	effortSlots   int
	lengthSlots   int
	durationSlots int

	doneEffort   float64
	doneLength   int
	doneDuration int
	lastSlot     time.Time
	walkDone     bool

	tentativeStart time.Time
	tentativeEnd   time.Time

	startPreds []edge
	startSuccs []edge
	endPreds   []edge
	endSuccs   []edge

	// Dates each end was last propagated with.
	propagatedStart time.Time
	propagatedEnd   time.Time

	limits      *limits.Limits
	mandatories []int
	locked      map[int]model.ResourceID
	assigned    map[model.ResourceID]struct{}
	rng         *rand.Rand

	criticalness float64
	pathCrit     [2]float64
	pathCritDone [2]bool
	pathCritBusy [2]bool
	deadEnd      [2][2]bool
}

func newTaskScenario(sc *scenario, t *model.Task) *TaskScenario {
	return &TaskScenario{sc: sc, task: t, spec: t.Spec(sc.idx)}
}

// Task returns the declared task.
func (t *TaskScenario) Task() *model.Task { return t.task }

// State returns the life cycle position.
func (t *TaskScenario) State() TaskState { return t.state }

// Start returns the scheduled start or the zero time.
func (t *TaskScenario) Start() time.Time { return t.start }

// End returns the scheduled end or the zero time.
func (t *TaskScenario) End() time.Time { return t.end }

// Scheduled reports whether both dates are final.
func (t *TaskScenario) Scheduled() bool { return t.scheduled }

// Runaway reports whether scheduling hit the project boundary.
func (t *TaskScenario) Runaway() bool { return t.runaway }

// Milestone reports whether the task is, or was promoted to, a milestone.
func (t *TaskScenario) Milestone() bool { return t.milestone }

// Criticalness estimates the resource contention of the task.
func (t *TaskScenario) Criticalness() float64 { return t.criticalness }

// PathCriticalness is the criticalness of the most critical path starting
// at this task.
func (t *TaskScenario) PathCriticalness() float64 { return t.pathCrit[0] }

// EffortDone is the booked effort in slots.
func (t *TaskScenario) EffortDone() float64 { return t.doneEffort }

// AssignedResources returns the ids of the booked resources in id order.
func (t *TaskScenario) AssignedResources() []model.ResourceID {
	out := make([]model.ResourceID, 0, len(t.assigned))
	for id := range t.assigned {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t *TaskScenario) parent() *TaskScenario { return t.sc.task(t.task.Parent) }

func (t *TaskScenario) children() []*TaskScenario {
	out := make([]*TaskScenario, len(t.task.Children))
	for i, id := range t.task.Children {
		out[i] = t.sc.task(id)
	}
	return out
}

func (t *TaskScenario) container() bool { return t.task.Container() }

func (t *TaskScenario) forward() bool { return t.spec.Forward }

// hasDurationSpec treats a promoted milestone like a declared one.
func (t *TaskScenario) hasDurationSpec() bool {
	return t.effortSlots > 0 || t.lengthSlots > 0 || t.durationSlots > 0 || t.milestone
}

func (t *TaskScenario) date(atEnd bool) time.Time {
	if atEnd {
		return t.end
	}
	return t.start
}

func (t *TaskScenario) setDate(atEnd bool, d time.Time) {
	if atEnd {
		t.end = d
	} else {
		t.start = d
	}
}

func (t *TaskScenario) errorf(id, property, format string, args ...any) {
	t.sc.report(message.Error, id, t.task.Source, property, format, args...)
}

func (t *TaskScenario) warnf(id, property, format string, args ...any) {
	t.sc.report(message.Warning, id, t.task.Source, property, format, args...)
}

// declaredDeps returns the depends or precedes declarations of the task
// and all its ancestors together with the declaring task.
func (t *TaskScenario) declaredDeps(precedes bool) []declaredDep {
	var out []declaredDep
	for a := t; a != nil; a = a.parent() {
		list := a.spec.Depends
		if precedes {
			list = a.spec.Precedes
		}
		for _, d := range list {
			out = append(out, declaredDep{Dependency: d, owner: a, inherited: a != t})
		}
	}
	return out
}

type declaredDep struct {
	model.Dependency
	owner     *TaskScenario
	inherited bool
}

// PrepareScheduling resets all transient values and registers the declared
// bookings.
func (t *TaskScenario) PrepareScheduling() {
	t.state = Prepared
	t.runaway = false
	t.specError = false
	t.start = t.spec.Start
	t.end = t.spec.End
	t.scheduled = false
	t.milestone = t.spec.Milestone
	t.effortSlots = t.sc.slots(t.spec.Effort)
	t.lengthSlots = t.sc.slots(t.spec.Length)
	t.durationSlots = t.sc.slots(t.spec.Duration)
	t.doneEffort, t.doneLength, t.doneDuration = 0, 0, 0
	t.lastSlot = time.Time{}
	t.walkDone = false
	t.tentativeStart, t.tentativeEnd = time.Time{}, time.Time{}
	t.startPreds, t.startSuccs, t.endPreds, t.endSuccs = nil, nil, nil, nil
	t.propagatedStart, t.propagatedEnd = time.Time{}, time.Time{}
	t.locked = make(map[int]model.ResourceID)
	t.assigned = make(map[model.ResourceID]struct{})
	t.rng = rand.New(rand.NewSource(int64(t.task.Seq())))
	t.criticalness = 0
	t.pathCrit = [2]float64{}
	t.pathCritDone = [2]bool{}
	t.pathCritBusy = [2]bool{}
	t.deadEnd = [2][2]bool{}

	if t.milestone && t.spec.Scheduled {
		t.backfillMilestone()
	}

	t.limits = nil
	for a := t; a != nil; a = a.parent() {
		for _, ls := range a.spec.Limits {
			if t.limits == nil {
				t.limits = limits.New(t.sc.limitsCfg)
			}
			if err := t.limits.SetLimit(ls.Name, t.sc.slots(ls.Value), ls.Interval, int(ls.Resource)); err != nil {
				t.errorf(msgInvalidLimit, "limits", "task %s: %v", t.task.Key, err)
			}
		}
	}

	t.mandatories = t.mandatories[:0]
	for i, a := range t.spec.Allocations {
		if a.Mandatory {
			t.mandatories = append(t.mandatories, i)
		}
		if t.effortSlots > 0 && t.task.Leaf() {
			var leaves []*ResourceScenario
			for _, c := range a.Candidates {
				leaves = append(leaves, t.sc.leaves(c)...)
			}
			for _, l := range leaves {
				l.allocatedEffort += float64(t.effortSlots) / float64(len(leaves))
			}
		}
	}

	t.bookBookings()
	t.markMilestone()

	if t.spec.Scheduled && !t.start.IsZero() && !t.end.IsZero() {
		t.markScheduled()
	}
}

func (t *TaskScenario) backfillMilestone() {
	if t.start.IsZero() && !t.end.IsZero() {
		t.start = t.end
	} else if t.end.IsZero() && !t.start.IsZero() {
		t.end = t.start
	}
}

// bookBookings registers the declared bookings. The first booked slot
// becomes the start unless one was provided and effort tasks whose effort
// is fully booked are complete.
func (t *TaskScenario) bookBookings() {
	if len(t.spec.Bookings) == 0 {
		return
	}
	if !t.forward() {
		t.errorf(msgBookingInvalid, "booking", "task %s: bookings require forward scheduling", t.task.Key)
		t.specError = true
		return
	}
	var first, last time.Time
	for _, bk := range t.spec.Bookings {
		r := t.sc.resource(bk.Resource)
		if r == nil || !r.res.Leaf() {
			t.sc.report(message.Error, msgBookingInvalid, bk.Source, "booking", "task %s: bookings need a leaf resource", t.task.Key)
			continue
		}
		for _, iv := range bk.Intervals {
			t.sc.fill(iv, func(idx int) {
				if !r.BookBooking(idx, bk) {
					return
				}
				date := t.sc.idxToDate(idx)
				if first.IsZero() || date.Before(first) {
					first = date
				}
				if date.After(last) {
					last = date
				}
				t.doneEffort += r.Efficiency()
				t.assigned[r.res.ID] = struct{}{}
				if t.limits != nil {
					t.limits.Inc(date, int(r.res.ID))
				}
			})
		}
	}
	if first.IsZero() {
		return
	}
	if t.start.IsZero() {
		t.start = first
	}
	t.lastSlot = last
	t.tentativeEnd = last.Add(t.sc.gran)
	if t.effortSlots > 0 && t.doneEffort >= float64(t.effortSlots) && t.end.IsZero() {
		t.end = t.tentativeEnd
		t.markScheduled()
	}
}

// markMilestone promotes a leaf without any duration information to a
// milestone unless both of its ends are fixed.
func (t *TaskScenario) markMilestone() {
	if t.container() || t.hasDurationSpec() || len(t.spec.Bookings) > 0 || len(t.spec.Allocations) > 0 {
		return
	}
	hasStart := !t.start.IsZero() || len(t.declaredDeps(false)) > 0
	hasEnd := !t.end.IsZero() || len(t.declaredDeps(true)) > 0
	if hasStart && hasEnd {
		return
	}
	t.milestone = true
	t.backfillMilestone()
}

// PreScheduleCheck reports contradicting declarations. Tasks that fail
// never become ready.
func (t *TaskScenario) PreScheduleCheck() bool {
	s := t.spec
	n := 0
	for _, d := range []time.Duration{s.Effort, s.Length, s.Duration} {
		if d > 0 {
			n++
		}
	}
	ok := true
	fail := func(id, property, format string, args ...any) {
		t.errorf(id, property, format, args...)
		ok = false
	}
	if n > 1 {
		fail(msgMultipleDuration, "effort", "task %s may only have one of effort, length or duration", t.task.Key)
	}
	if t.container() {
		if n > 0 || s.Milestone {
			fail(msgContainerSpec, "effort", "container task %s must not have a duration", t.task.Key)
		}
		if len(s.Allocations) > 0 {
			fail(msgContainerSpec, "allocate", "container task %s must not have allocations", t.task.Key)
		}
		if len(s.Bookings) > 0 {
			fail(msgContainerSpec, "booking", "container task %s must not have bookings", t.task.Key)
		}
	} else {
		if t.milestone && n > 0 {
			fail(msgMilestoneSpec, "milestone", "milestone %s must not have a duration", t.task.Key)
		}
		if t.milestone && len(s.Allocations) > 0 {
			fail(msgMilestoneSpec, "allocate", "milestone %s must not have allocations", t.task.Key)
		}
		if !s.Scheduled && !s.Start.IsZero() && !s.End.IsZero() && n > 0 {
			fail(msgOverspecified, "start", "task %s has a start, an end and a duration", t.task.Key)
		}
		// The walk computes the end of asap tasks and the start of alap ones.
		if !s.Scheduled && n > 0 && s.Forward && s.Start.IsZero() && !s.End.IsZero() {
			fail(msgDirection, "end", "task %s has an end and a duration but is scheduled asap", t.task.Key)
		}
		if !s.Scheduled && n > 0 && !s.Forward && !s.Start.IsZero() && s.End.IsZero() {
			fail(msgDirection, "start", "task %s has a start and a duration but is scheduled alap", t.task.Key)
		}
		if s.Effort > 0 && len(s.Allocations) == 0 {
			fail(msgEffortNoAlloc, "effort", "task %s has an effort but no allocations", t.task.Key)
		}
	}
	for _, d := range []time.Time{s.Start, s.End} {
		if !d.IsZero() && !t.sc.inFrame(d) {
			fail(msgDateOutside, "start", "task %s has a date %s outside of the project", t.task.Key, d.Format(time.RFC3339))
		}
	}
	if !ok {
		t.specError = true
	}
	return ok
}

// markScheduled finalizes the dates.
func (t *TaskScenario) markScheduled() {
	if t.scheduled {
		return
	}
	t.scheduled = true
	t.state = Scheduled
	t.sc.log.Debugw("task scheduled", map[string]any{
		"task":     t.task.Key,
		"scenario": t.sc.name,
		"start":    t.start,
		"end":      t.end,
	})
	t.sc.publish(Event{Kind: EventTaskScheduled, Task: t.task.Key, Start: t.start, End: t.end})
}

// FinishScheduling gives containers the union of their children's
// resources.
func (t *TaskScenario) FinishScheduling() {
	if !t.container() {
		return
	}
	for _, c := range t.children() {
		c.FinishScheduling()
		for id := range c.assigned {
			t.assigned[id] = struct{}{}
		}
		t.doneEffort += c.doneEffort
	}
}
