package scheduler

import (
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/slotplan/core/model"
)

// CalcCriticalness sets the task criticalness: the effort times the mean
// criticalness of all candidate resources. Milestones get priority / 500 so
// that important milestones pull their predecessors forward.
func (t *TaskScenario) CalcCriticalness() {
	t.criticalness = 0
	if t.milestone {
		t.criticalness = float64(t.spec.Priority) / model.DefaultPriority
		return
	}
	if t.effortSlots == 0 {
		return
	}
	var crit []float64
	for _, a := range t.spec.Allocations {
		for _, c := range a.Candidates {
			for _, l := range t.sc.leaves(c) {
				crit = append(crit, l.criticalness)
			}
		}
	}
	if len(crit) == 0 {
		return
	}
	t.criticalness = float64(t.effortSlots) * stat.Mean(crit, nil)
}

// CalcPathCriticalness returns the criticalness of the most critical chain
// of tasks reachable from the given end. The end variant follows the end
// successors of the task and its ancestors. The start variant also follows
// the start successors (leaves) or the children (containers) and adds the
// task's own criticalness.
func (t *TaskScenario) CalcPathCriticalness(atEnd bool) float64 {
	i := boolIdx(atEnd)
	if t.pathCritDone[i] {
		return t.pathCrit[i]
	}
	if t.pathCritBusy[i] {
		return 0
	}
	t.pathCritBusy[i] = true
	defer func() { t.pathCritBusy[i] = false }()

	var best float64
	if atEnd {
		for a := t; a != nil; a = a.parent() {
			for _, e := range a.endSuccs {
				best = max(best, t.sc.task(e.task).CalcPathCriticalness(e.onEnd))
			}
		}
	} else {
		if t.container() {
			for _, c := range t.children() {
				best = max(best, c.CalcPathCriticalness(false))
			}
		} else {
			for _, e := range t.startSuccs {
				best = max(best, t.sc.task(e.task).CalcPathCriticalness(e.onEnd))
			}
			best = max(best, t.CalcPathCriticalness(true))
		}
		best += t.criticalness
	}
	t.pathCrit[i] = best
	t.pathCritDone[i] = true
	return best
}

// groupCriticalness averages the criticalness of the leaves of a resource.
func (r *ResourceScenario) groupCriticalness() float64 {
	if r.res.Leaf() {
		return r.criticalness
	}
	leaves := r.sc.leaves(r.res.ID)
	if len(leaves) == 0 {
		return 0
	}
	crit := make([]float64, len(leaves))
	for i, l := range leaves {
		crit[i] = l.criticalness
	}
	return stat.Mean(crit, nil)
}
