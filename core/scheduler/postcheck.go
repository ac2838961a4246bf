package scheduler

import (
	"time"

	"github.com/kilianp07/slotplan/core/message"
)

const dateFmt = time.RFC3339

// PostScheduleCheck validates the finished schedule of the task and its
// children. Children are checked first; a failing child stops the check.
// Unscheduled tasks are reported by the orchestrator.
func (t *TaskScenario) PostScheduleCheck() bool {
	for _, c := range t.children() {
		if !c.PostScheduleCheck() {
			return false
		}
	}
	if !t.scheduled {
		return false
	}
	key := t.task.Key
	frame := t.sc.project.Frame()
	if t.start.IsZero() {
		t.warnf(msgNoStart, "start", "task %s has no start", key)
		return false
	}
	if t.end.IsZero() {
		t.warnf(msgNoEnd, "end", "task %s has no end", key)
		return false
	}
	if t.start.Before(frame.Start) || t.start.After(frame.End) {
		t.warnf(msgOutsideProject, "start", "start %s of task %s is outside of the project", t.start.Format(dateFmt), key)
	}
	if t.end.Before(frame.Start) || t.end.After(frame.End) {
		t.warnf(msgOutsideProject, "end", "end %s of task %s is outside of the project", t.end.Format(dateFmt), key)
	}
	t.checkBounds()
	if t.start.After(t.end) {
		t.warnf(msgStartAfterEnd, "start", "task %s starts %s after it ends %s", key, t.start.Format(dateFmt), t.end.Format(dateFmt))
	}
	if p := t.parent(); p != nil && p.scheduled {
		if t.start.Before(p.start) {
			t.warnf(msgOutsideParent, "start", "task %s starts %s before its parent %s", key, t.start.Format(dateFmt), p.start.Format(dateFmt))
		}
		if t.end.After(p.end) {
			t.warnf(msgOutsideParent, "end", "task %s ends %s after its parent %s", key, t.end.Format(dateFmt), p.end.Format(dateFmt))
		}
	}
	t.checkDependencies()
	if t.milestone && !t.start.Equal(t.end) {
		t.warnf(msgMilestoneLength, "milestone", "milestone %s must start and end at the same time", key)
	}
	t.checkAlerts()
	t.state = PostChecked
	return true
}

func (t *TaskScenario) checkBounds() {
	s := t.spec
	check := func(violated bool, property, format string, d time.Time) {
		if violated {
			t.warnf(msgBoundViolated, property, format, t.task.Key, d.Format(dateFmt))
		}
	}
	check(!s.MinStart.IsZero() && t.start.Before(s.MinStart), "minstart", "task %s starts before its minimum start %s", s.MinStart)
	check(!s.MaxStart.IsZero() && t.start.After(s.MaxStart), "maxstart", "task %s starts after its maximum start %s", s.MaxStart)
	check(!s.MinEnd.IsZero() && t.end.Before(s.MinEnd), "minend", "task %s ends before its minimum end %s", s.MinEnd)
	check(!s.MaxEnd.IsZero() && t.end.After(s.MaxEnd), "maxend", "task %s ends after its maximum end %s", s.MaxEnd)
}

// checkDependencies verifies start predecessors and end successors
// including their gaps. Unscheduled peers are skipped.
func (t *TaskScenario) checkDependencies() {
	for _, e := range t.startPreds {
		p := t.sc.task(e.task)
		if d := p.date(e.onEnd); !d.IsZero() {
			t.checkGap(p, d, t.start, e, "depends")
		}
	}
	for _, e := range t.endSuccs {
		s := t.sc.task(e.task)
		if d := s.date(e.onEnd); !d.IsZero() && s.scheduled {
			t.checkGap(s, t.end, d, e, "precedes")
		}
	}
}

func (t *TaskScenario) checkGap(other *TaskScenario, before, after time.Time, e edge, property string) {
	if after.Before(before.Add(e.gapDuration)) {
		t.warnf(msgDepViolated, property, "task %s and %s violate a dependency: %s must not be before %s",
			t.task.Key, other.task.Key, after.Format(dateFmt), before.Add(e.gapDuration).Format(dateFmt))
		return
	}
	if n := t.sc.slots(e.gapLength); n > 0 && t.sc.workingSlotsBetween(before, after) < n {
		t.warnf(msgDepViolated, property, "task %s and %s violate a gap length of %s", t.task.Key, other.task.Key, e.gapLength)
	}
}

func (t *TaskScenario) checkAlerts() {
	for _, a := range t.spec.Alerts {
		if a.Cond == nil {
			continue
		}
		holds, err := a.Cond.Holds(t)
		if err != nil {
			t.warnf(msgAlertInvalid, "alert", "task %s: %v", t.task.Key, err)
			continue
		}
		if !holds {
			continue
		}
		sev := message.Warning
		if a.Fail {
			sev = message.Error
		}
		t.sc.report(sev, msgAlert, t.task.Source, "alert", "task %s: %s", t.task.Key, a.Message)
	}
}
