package scheduler

import (
	"time"

	"github.com/kilianp07/slotplan/core/message"
)

// PropagateInitialValues pushes the known dates into the dependency graph.
// Top-level tasks that may inherit a date take the project boundaries.
func (t *TaskScenario) PropagateInitialValues() {
	if !t.start.IsZero() {
		t.PropagateDate(t.start, false)
	} else if t.task.Parent < 0 && t.CanInheritDate(false) {
		t.PropagateDate(t.sc.project.Start, false)
	}
	if !t.end.IsZero() {
		t.PropagateDate(t.end, true)
	} else if t.task.Parent < 0 && t.CanInheritDate(true) {
		t.PropagateDate(t.sc.project.End, true)
	}
}

// PropagateDate sets the start (atEnd false) or end of the task and passes
// it on to dependent tasks, children and the parent. A leaf end propagates
// once per run. A container end propagates again whenever its bound moves.
func (t *TaskScenario) PropagateDate(date time.Time, atEnd bool) {
	prev := &t.propagatedStart
	if atEnd {
		prev = &t.propagatedEnd
	}
	if !prev.IsZero() && (t.task.Leaf() || prev.Equal(date)) {
		return
	}
	*prev = date

	if t.task.Leaf() {
		t.setDate(atEnd, date)
		if t.milestone {
			if t.date(!atEnd).IsZero() {
				t.PropagateDate(date, !atEnd)
			}
			t.markScheduled()
		} else if !t.start.IsZero() && !t.end.IsZero() && t.datesFinal() {
			t.markScheduled()
		}
	}

	for _, e := range t.edges(atEnd, true) {
		t.sc.task(e.task).propagateDateToDep(e.onEnd)
	}
	for _, e := range t.edges(atEnd, false) {
		t.sc.task(e.task).propagateDateToDep(e.onEnd)
	}

	for _, c := range t.children() {
		if c.CanInheritDate(atEnd) {
			c.PropagateDate(date, atEnd)
		}
	}

	if p := t.parent(); p != nil {
		p.scheduleContainer()
	}
}

// datesFinal reports whether a known start and end complete the leaf.
// Tasks with a duration wait for their slot walk and fixed tasks with
// allocations for their bookings.
func (t *TaskScenario) datesFinal() bool {
	if t.hasDurationSpec() {
		return t.walkDone
	}
	return len(t.spec.Allocations) == 0
}

// propagateDateToDep derives the given end of a dependent task once all of
// its constraints for that end are known.
func (t *TaskScenario) propagateDateToDep(atEnd bool) {
	if t.scheduled || t.container() || !t.date(atEnd).IsZero() {
		return
	}
	// The scheduling walk computes this end.
	if t.hasDurationSpec() && t.forward() == atEnd {
		return
	}
	var (
		d  time.Time
		ok bool
	)
	if atEnd {
		d, ok = t.LatestEnd()
	} else {
		d, ok = t.EarliestStart()
	}
	if ok {
		t.PropagateDate(d, atEnd)
	}
}

// EarliestStart is the earliest start allowed by the start predecessors,
// their gaps and the nearest ancestor with a start. It reports false when a
// predecessor date is still unknown or nothing constrains the start.
func (t *TaskScenario) EarliestStart() (time.Time, bool) {
	var res time.Time
	for _, e := range t.startPreds {
		p := t.sc.task(e.task)
		d := p.date(e.onEnd)
		if d.IsZero() {
			return time.Time{}, false
		}
		byDuration := d.Add(e.gapDuration)
		if e.gapLength > 0 {
			if byLength := t.sc.addWorkingLength(d, t.sc.slots(e.gapLength)); byLength.After(byDuration) {
				byDuration = byLength
			}
		}
		if byDuration.After(res) {
			res = byDuration
		}
	}
	for a := t.parent(); a != nil; a = a.parent() {
		if !a.start.IsZero() {
			if a.start.After(res) {
				res = a.start
			}
			break
		}
	}
	if res.IsZero() {
		return time.Time{}, false
	}
	res = t.sc.alignUp(res)
	if !t.end.IsZero() && res.After(t.end) {
		t.sc.report(message.Error, msgWeakStartDep, t.task.Source, "depends",
			"task %s has start dependencies that push its start %s past its end %s",
			t.task.Key, res.Format(time.RFC3339), t.end.Format(time.RFC3339))
		return time.Time{}, false
	}
	return t.clamp(res), true
}

// LatestEnd is the latest end allowed by the end successors, their gaps and
// the nearest ancestor with an end.
func (t *TaskScenario) LatestEnd() (time.Time, bool) {
	var res time.Time
	for _, e := range t.endSuccs {
		s := t.sc.task(e.task)
		d := s.date(e.onEnd)
		if d.IsZero() {
			return time.Time{}, false
		}
		byDuration := d.Add(-e.gapDuration)
		if e.gapLength > 0 {
			if byLength := t.sc.subWorkingLength(d, t.sc.slots(e.gapLength)); byLength.Before(byDuration) {
				byDuration = byLength
			}
		}
		if res.IsZero() || byDuration.Before(res) {
			res = byDuration
		}
	}
	for a := t.parent(); a != nil; a = a.parent() {
		if !a.end.IsZero() {
			if res.IsZero() || a.end.Before(res) {
				res = a.end
			}
			break
		}
	}
	if res.IsZero() {
		return time.Time{}, false
	}
	res = t.sc.alignDown(res)
	if !t.start.IsZero() && res.Before(t.start) {
		t.sc.report(message.Error, msgWeakEndDep, t.task.Source, "precedes",
			"task %s has end dependencies that pull its end %s before its start %s",
			t.task.Key, res.Format(time.RFC3339), t.start.Format(time.RFC3339))
		return time.Time{}, false
	}
	return t.clamp(res), true
}

func (t *TaskScenario) clamp(d time.Time) time.Time {
	if d.Before(t.sc.project.Start) {
		return t.sc.project.Start
	}
	if d.After(t.sc.project.End) {
		return t.sc.project.End
	}
	return d
}

// hasDependencies reports whether the given end is constrained by another
// task: start predecessors for the start, end successors for the end.
func (t *TaskScenario) hasDependencies(atEnd bool) bool {
	if atEnd {
		return len(t.endSuccs) > 0
	}
	return len(t.startPreds) > 0
}

// CanInheritDate reports whether the given end may be taken from the parent
// or the project frame.
func (t *TaskScenario) CanInheritDate(atEnd bool) bool {
	if !t.date(atEnd).IsZero() || t.hasDependencies(atEnd) {
		return false
	}
	if t.container() {
		return true
	}
	anchor := atEnd != t.forward()
	if t.hasDurationSpec() {
		return anchor
	}
	if len(t.spec.Bookings) == 0 {
		return true
	}
	if anchor {
		return true
	}
	return !t.date(!atEnd).IsZero() || t.hasDependencies(!atEnd)
}

// ReadyForScheduling reports whether the slot walk can start: the anchor
// end is known and either a duration is given or the other end is known.
func (t *TaskScenario) ReadyForScheduling() bool {
	if t.scheduled || t.runaway || t.specError || t.container() {
		return false
	}
	anchor, other := t.start, t.end
	if !t.forward() {
		anchor, other = t.end, t.start
	}
	ready := !anchor.IsZero() && (t.hasDurationSpec() || !other.IsZero())
	if ready && t.state == Prepared {
		t.state = Ready
	}
	return ready
}

// scheduleContainer sets the bounds of a container once all of its children
// are scheduled and propagates the dates that changed.
func (t *TaskScenario) scheduleContainer() {
	if t.scheduled || t.task.Leaf() {
		return
	}
	var start, end time.Time
	for _, c := range t.children() {
		if !c.scheduled {
			return
		}
		if !c.start.IsZero() && (start.IsZero() || c.start.Before(start)) {
			start = c.start
		}
		if c.end.After(end) {
			end = c.end
		}
	}
	startChanged := !start.IsZero() && (t.start.IsZero() || start.Before(t.start))
	endChanged := !end.IsZero() && (t.end.IsZero() || end.After(t.end))
	if startChanged {
		t.start = start
	}
	if endChanged {
		t.end = end
	}
	t.markScheduled()
	if startChanged {
		t.PropagateDate(t.start, false)
	}
	if endChanged {
		t.PropagateDate(t.end, true)
	}
	if p := t.parent(); p != nil {
		p.scheduleContainer()
	}
}
