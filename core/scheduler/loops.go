package scheduler

import (
	"fmt"
	"strings"

	"github.com/kilianp07/slotplan/core/model"
)

// loopNode is one end of a task on a traversal path.
type loopNode struct {
	task  model.TaskID
	atEnd bool
}

func (n loopNode) format(sc *scenario) string {
	end := "start"
	if n.atEnd {
		end = "end"
	}
	return sc.task(n.task).task.Key + " (" + end + ")"
}

// LoopError describes a dependency cycle.
type LoopError struct {
	Path []string
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDependencyLoop, strings.Join(e.Path, " -> "))
}

func (e *LoopError) Unwrap() error { return ErrDependencyLoop }

// CheckForLoops follows the time ordering of task ends depth first and
// returns the first cycle found, or nil.
//
// In forward direction a start leads into the children of a container
// (entered from outside) or to the end of a leaf (entered from inside), an
// end leads up to the end of the parent (from inside), and both ends lead
// along their successor edges to other tasks (from outside). The backward
// direction mirrors this along predecessor edges. Every (end, entry) pair is
// explored once per pass.
func (t *TaskScenario) CheckForLoops(path []loopNode, atEnd, fromOutside, forward bool) []loopNode {
	node := loopNode{task: t.task.ID, atEnd: atEnd}
	for i, n := range path {
		if n == node {
			cycle := append([]loopNode(nil), path[i:]...)
			return append(cycle, node)
		}
	}
	e, o := boolIdx(atEnd), boolIdx(fromOutside)
	if t.deadEnd[e][o] {
		return nil
	}
	path = append(path, node)

	// The end that is reached first in traversal direction.
	entry := !forward
	if atEnd == entry {
		if t.container() {
			for _, c := range t.children() {
				if cycle := c.CheckForLoops(path, atEnd, true, forward); cycle != nil {
					return cycle
				}
			}
		} else if cycle := t.CheckForLoops(path, !atEnd, false, forward); cycle != nil {
			return cycle
		}
	} else if p := t.parent(); p != nil {
		if cycle := p.CheckForLoops(path, atEnd, false, forward); cycle != nil {
			return cycle
		}
	}
	for _, ed := range t.edges(atEnd, !forward) {
		if cycle := t.sc.task(ed.task).CheckForLoops(path, ed.onEnd, true, forward); cycle != nil {
			return cycle
		}
	}

	t.deadEnd[e][o] = true
	return nil
}

func (t *TaskScenario) resetLoopFlags() {
	t.deadEnd = [2][2]bool{}
}

func boolIdx(b bool) int {
	if b {
		return 1
	}
	return 0
}
