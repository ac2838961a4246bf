package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/slotplan/core/limits"
	"github.com/kilianp07/slotplan/core/model"
)

// Schedule walks the task slot by slot from its anchor end until it is
// scheduled. Leaving the project frame makes the task a runaway.
func (t *TaskScenario) Schedule() bool {
	t.state = Scheduling
	gran := t.sc.gran
	for !t.scheduled {
		var slot time.Time
		if t.forward() {
			if t.lastSlot.IsZero() {
				slot = t.start
			} else {
				slot = t.lastSlot.Add(gran)
			}
			if slot.Before(t.sc.project.Start) || slot.Add(gran).After(t.sc.project.End) {
				t.markRunaway()
				return false
			}
		} else {
			if t.lastSlot.IsZero() {
				slot = t.end.Add(-gran)
			} else {
				slot = t.lastSlot.Add(-gran)
			}
			if slot.Before(t.sc.project.Start) || slot.Add(gran).After(t.sc.project.End) {
				t.markRunaway()
				return false
			}
		}
		if err := t.ScheduleSlot(slot); err != nil {
			t.sc.log.Errorf("task %s: %v", t.task.Key, err)
			return false
		}
	}
	return true
}

func (t *TaskScenario) markRunaway() {
	t.runaway = true
	dir := "end"
	if !t.forward() {
		dir = "start"
	}
	t.warnf(msgRunaway, "", "task %s does not fit into the project time frame, it runs past the project %s", t.task.Key, dir)
	t.sc.publish(Event{Kind: EventTaskRunaway, Task: t.task.Key, Start: t.start, End: t.end})
}

// ScheduleSlot processes one slot. Slots must be strictly contiguous with
// the previously processed one in scheduling direction.
func (t *TaskScenario) ScheduleSlot(slot time.Time) error {
	gran := t.sc.gran
	var want time.Time
	switch {
	case !t.lastSlot.IsZero() && t.forward():
		want = t.lastSlot.Add(gran)
	case !t.lastSlot.IsZero():
		want = t.lastSlot.Add(-gran)
	case t.forward():
		want = t.start
	default:
		want = t.end.Add(-gran)
	}
	if !slot.Equal(want) {
		return fmt.Errorf("%w: got %s, want %s", ErrNonAdjacentSlot, slot.Format(time.RFC3339), want.Format(time.RFC3339))
	}
	t.lastSlot = slot

	switch {
	case t.milestone:
		if t.forward() {
			t.PropagateDate(t.start, true)
		} else {
			t.PropagateDate(t.end, false)
		}
		t.markScheduled()
	case t.effortSlots > 0:
		t.bookResources(slot)
		if t.doneEffort >= float64(t.effortSlots) {
			t.walkDone = true
			if t.forward() {
				t.PropagateDate(t.tentativeEnd, true)
			} else {
				t.PropagateDate(t.tentativeStart, false)
			}
		}
	case t.lengthSlots > 0 || t.durationSlots > 0:
		if len(t.spec.Allocations) > 0 {
			t.bookResources(slot)
		}
		t.doneDuration++
		if t.sc.isWorkingTime(slot) {
			t.doneLength++
		}
		if (t.durationSlots > 0 && t.doneDuration >= t.durationSlots) ||
			(t.lengthSlots > 0 && t.doneLength >= t.lengthSlots) {
			t.walkDone = true
			if t.forward() {
				t.PropagateDate(slot.Add(gran), true)
			} else {
				t.PropagateDate(slot, false)
			}
		}
	default:
		// Fixed start and end: book every slot in between.
		if t.forward() && !slot.Before(t.end) || !t.forward() && slot.Before(t.start) {
			t.completeFixed()
			return nil
		}
		t.bookResources(slot)
		if t.forward() && !slot.Add(gran).Before(t.end) || !t.forward() && !slot.After(t.start) {
			t.completeFixed()
		}
	}
	return nil
}

func (t *TaskScenario) completeFixed() {
	t.markScheduled()
	if p := t.parent(); p != nil {
		p.scheduleContainer()
	}
}

// bookResources books the allocations of the task for one slot. It returns
// whether at least one resource was booked.
func (t *TaskScenario) bookResources(slot time.Time) bool {
	if t.limits != nil && !t.limits.OK(&slot, true, limits.AnyResource) {
		return false
	}
	if a, ok := model.ShiftAt(t.spec.Shifts, slot); ok {
		if !a.Shift.WorkingHours.OnShift(slot) {
			return false
		}
		for _, v := range a.Shift.Vacations {
			if v.Contains(slot) {
				return false
			}
		}
	}
	idx := t.sc.dateToIdx(slot)
	for _, ai := range t.mandatories {
		if !t.anyAvailable(ai, idx, slot) {
			return false
		}
	}
	booked := false
	for ai, a := range t.spec.Allocations {
		if a.Persistent {
			if id, ok := t.locked[ai]; ok {
				if t.bookResource(t.sc.resource(id), idx, slot) {
					booked = true
				}
				continue
			}
		}
		for _, r := range t.candidates(a) {
			if t.bookResource(r, idx, slot) {
				booked = true
				if a.Persistent {
					t.locked[ai] = r.res.ID
				}
				break
			}
		}
	}
	return booked
}

func (t *TaskScenario) anyAvailable(ai, idx int, slot time.Time) bool {
	a := t.spec.Allocations[ai]
	if a.Persistent {
		if id, ok := t.locked[ai]; ok {
			return t.leafAvailable(t.sc.leaves(id), idx, slot)
		}
	}
	for _, c := range a.Candidates {
		if t.leafAvailable(t.sc.leaves(c), idx, slot) {
			return true
		}
	}
	return false
}

func (t *TaskScenario) leafAvailable(leaves []*ResourceScenario, idx int, slot time.Time) bool {
	for _, l := range leaves {
		if l.Available(idx) && (t.limits == nil || t.limits.OK(&slot, true, int(l.res.ID))) {
			return true
		}
	}
	return false
}

// bookResource books every available leaf of r for the slot until the
// effort is reached.
func (t *TaskScenario) bookResource(r *ResourceScenario, idx int, slot time.Time) bool {
	if r == nil {
		return false
	}
	booked := false
	for _, l := range t.sc.leaves(r.res.ID) {
		if t.effortSlots > 0 && t.doneEffort >= float64(t.effortSlots) {
			break
		}
		if t.limits != nil && !t.limits.OK(&slot, true, int(l.res.ID)) {
			continue
		}
		if !l.Book(idx, t.task.ID, false) {
			continue
		}
		if t.effortSlots > 0 && t.doneEffort == 0 {
			// Effort tasks start where work actually starts.
			if t.forward() && t.spec.Start.IsZero() {
				t.start = slot
			} else if !t.forward() && t.spec.End.IsZero() {
				t.end = slot.Add(t.sc.gran)
			}
		}
		if t.forward() {
			if end := slot.Add(t.sc.gran); end.After(t.tentativeEnd) {
				t.tentativeEnd = end
			}
		} else if t.tentativeStart.IsZero() || slot.Before(t.tentativeStart) {
			t.tentativeStart = slot
		}
		t.doneEffort += l.Efficiency()
		if t.limits != nil {
			t.limits.Inc(slot, int(l.res.ID))
		}
		t.assigned[l.res.ID] = struct{}{}
		booked = true
	}
	return booked
}

// candidates orders the resources of an allocation by its selection mode.
func (t *TaskScenario) candidates(a model.Allocation) []*ResourceScenario {
	out := make([]*ResourceScenario, 0, len(a.Candidates))
	for _, id := range a.Candidates {
		if r := t.sc.resource(id); r != nil {
			out = append(out, r)
		}
	}
	switch a.Selection {
	case model.SelectOrder:
	case model.SelectMinLoaded:
		sort.SliceStable(out, func(i, j int) bool { return out[i].load() < out[j].load() })
	case model.SelectMaxLoaded:
		sort.SliceStable(out, func(i, j int) bool { return out[i].load() > out[j].load() })
	case model.SelectRandom:
		t.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].groupCriticalness() < out[j].groupCriticalness() })
	}
	return out
}

// load is the booked work so far.
func (r *ResourceScenario) load() float64 {
	return float64(r.bookedSlots) * r.spec.Efficiency
}
