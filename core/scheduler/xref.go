package scheduler

import "github.com/kilianp07/slotplan/core/message"

// Xref resolves the declared dependencies of the task and its ancestors
// into edges. Invalid declarations are reported and dropped.
func (t *TaskScenario) Xref() {
	for _, d := range t.declaredDeps(false) {
		target := t.resolveDep(d, "depends")
		if target == nil {
			continue
		}
		e := edge{task: target.task.ID, onEnd: d.OnEnd, gapDuration: d.GapDuration, gapLength: d.GapLength}
		if !addEdge(&t.startPreds, e) {
			if !d.inherited {
				t.errorf(msgDuplicateDep, "depends", "task %s depends on %s more than once", t.task.Key, target.task.Key)
			}
			continue
		}
		back := edge{task: t.task.ID, onEnd: false, gapDuration: d.GapDuration, gapLength: d.GapLength}
		if d.OnEnd {
			addEdge(&target.endSuccs, back)
		} else {
			addEdge(&target.startSuccs, back)
		}
	}
	for _, d := range t.declaredDeps(true) {
		target := t.resolveDep(d, "precedes")
		if target == nil {
			continue
		}
		e := edge{task: target.task.ID, onEnd: d.OnEnd, gapDuration: d.GapDuration, gapLength: d.GapLength}
		if !addEdge(&t.endSuccs, e) {
			if !d.inherited {
				t.errorf(msgDuplicateDep, "precedes", "task %s precedes %s more than once", t.task.Key, target.task.Key)
			}
			continue
		}
		back := edge{task: t.task.ID, onEnd: true, gapDuration: d.GapDuration, gapLength: d.GapLength}
		if d.OnEnd {
			addEdge(&target.endPreds, back)
		} else {
			addEdge(&target.startPreds, back)
		}
	}
}

func (t *TaskScenario) resolveDep(d declaredDep, property string) *TaskScenario {
	// Inherited declarations were already reported by their owner.
	report := func(id, format string, args ...any) {
		if !d.inherited {
			t.sc.report(message.Error, id, d.Source, property, format, args...)
		}
	}
	mt, ok := t.sc.project.ResolveTaskRef(d.owner.task, d.Target)
	if !ok {
		report(msgUnknownDep, "task %s: unknown dependency %s", t.task.Key, d.Target)
		return nil
	}
	target := t.sc.task(mt.ID)
	switch {
	case target == t:
		report(msgSelfDep, "task %s cannot depend on itself", t.task.Key)
	case t.isAncestor(target):
		report(msgParentDep, "task %s cannot depend on its parent %s", t.task.Key, target.task.Key)
	case target.isAncestor(t):
		report(msgChildDep, "task %s cannot depend on its child %s", t.task.Key, target.task.Key)
	default:
		return target
	}
	return nil
}

// isAncestor reports whether a is a parent, grandparent and so on of t.
func (t *TaskScenario) isAncestor(a *TaskScenario) bool {
	for p := t.parent(); p != nil; p = p.parent() {
		if p == a {
			return true
		}
	}
	return false
}

func addEdge(list *[]edge, e edge) bool {
	for _, x := range *list {
		if x.task == e.task && x.onEnd == e.onEnd {
			return false
		}
	}
	*list = append(*list, e)
	return true
}

func (t *TaskScenario) edges(atEnd, preds bool) []edge {
	switch {
	case atEnd && preds:
		return t.endPreds
	case atEnd:
		return t.endSuccs
	case preds:
		return t.startPreds
	default:
		return t.startSuccs
	}
}
