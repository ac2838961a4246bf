package scheduler

import (
	"github.com/kilianp07/slotplan/core/model"
	"github.com/kilianp07/slotplan/core/scoreboard"
)

type aggKind uint8

const (
	aggEffectiveWork aggKind = iota
	aggFreeWork
	aggFreeTime
	aggVacation
	aggAllocated
	aggCost
	aggTurnover
)

type aggKey struct {
	kind  aggKind
	start int
	end   int
	task  model.TaskID
}

func (r *ResourceScenario) clearCache() {
	if len(r.cache) > 0 {
		r.cache = make(map[aggKey]float64)
	}
}

// EffectiveWork is the work in slots booked within iv, weighted by
// efficiency. task restricts the sum to one task; model.NoTask counts all.
func (r *ResourceScenario) EffectiveWork(iv scoreboard.Interval, task model.TaskID) float64 {
	return r.aggregate(aggEffectiveWork, iv, task)
}

// EffectiveFreeWork is the bookable capacity within iv weighted by
// efficiency.
func (r *ResourceScenario) EffectiveFreeWork(iv scoreboard.Interval) float64 {
	return r.aggregate(aggFreeWork, iv, model.NoTask)
}

// EffectiveFreeTime is the number of bookable slots within iv.
func (r *ResourceScenario) EffectiveFreeTime(iv scoreboard.Interval) float64 {
	return r.aggregate(aggFreeTime, iv, model.NoTask)
}

// VacationSlots is the number of vacation slots within iv.
func (r *ResourceScenario) VacationSlots(iv scoreboard.Interval) float64 {
	return r.aggregate(aggVacation, iv, model.NoTask)
}

// AllocatedTime is the number of booked slots within iv regardless of
// efficiency.
func (r *ResourceScenario) AllocatedTime(iv scoreboard.Interval, task model.TaskID) float64 {
	return r.aggregate(aggAllocated, iv, task)
}

// Cost is the booked time within iv in working days times the rate.
func (r *ResourceScenario) Cost(iv scoreboard.Interval, task model.TaskID) float64 {
	return r.aggregate(aggCost, iv, task)
}

// Turnover is the booked time within iv in working days times the charge
// rate of the booked tasks.
func (r *ResourceScenario) Turnover(iv scoreboard.Interval, task model.TaskID) float64 {
	return r.aggregate(aggTurnover, iv, task)
}

func (r *ResourceScenario) aggregate(kind aggKind, iv scoreboard.Interval, task model.TaskID) float64 {
	clipped, ok := iv.Intersect(r.sc.project.Frame())
	if !ok {
		return 0
	}
	startIdx := r.sc.dateToIdx(clipped.Start)
	endIdx := r.sc.dateToIdx(r.sc.alignUp(clipped.End))
	key := aggKey{kind: kind, start: startIdx, end: endIdx, task: task}
	if v, ok := r.cache[key]; ok {
		return v
	}
	var v float64
	if r.res.Leaf() {
		v = r.scan(kind, startIdx, endIdx, task)
	} else {
		for _, id := range r.res.Children {
			v += r.sc.resource(id).aggregate(kind, iv, task)
		}
	}
	r.cache[key] = v
	return v
}

func (r *ResourceScenario) scan(kind aggKind, startIdx, endIdx int, task model.TaskID) float64 {
	bookedOnly := kind == aggEffectiveWork || kind == aggAllocated || kind == aggCost || kind == aggTurnover
	if bookedOnly {
		if r.firstBooked < 0 {
			return 0
		}
		startIdx = max(startIdx, r.firstBooked)
		endIdx = min(endIdx, r.lastBooked+1)
	}
	b := r.scoreboard()
	slotDays := r.sc.project.SlotsToDays(1)
	var v float64
	b.Each(startIdx, endIdx, func(idx int, s Slot) bool {
		switch kind {
		case aggFreeWork, aggFreeTime:
			if s.Kind == Free && r.limitsOK(b.IdxToDate(idx)) {
				if kind == aggFreeWork {
					v += r.spec.Efficiency
				} else {
					v++
				}
			}
		case aggVacation:
			if s.Kind == OnVacation {
				v++
			}
		default:
			if s.Kind != Booked || (task != model.NoTask && s.Task != task) {
				return true
			}
			switch kind {
			case aggEffectiveWork:
				v += r.spec.Efficiency
			case aggAllocated:
				v++
			case aggCost:
				v += slotDays * r.spec.Rate
			case aggTurnover:
				if t := r.sc.task(s.Task); t != nil {
					v += slotDays * t.spec.ChargeRate
				}
			}
		}
		return true
	})
	return v
}
