package model

import (
	"fmt"
	"strconv"
	"time"
)

// TaskView is the scheduled state of a task an alert is evaluated against.
type TaskView interface {
	Start() time.Time
	End() time.Time
	Criticalness() float64
	PathCriticalness() float64
	// EffortDone is the booked effort in slots.
	EffortDone() float64
	Scheduled() bool
}

// Condition is a predicate over a scheduled task.
type Condition interface {
	Holds(TaskView) (bool, error)
}

// ConditionFunc adapts a function to Condition.
type ConditionFunc func(TaskView) bool

// Holds calls f.
func (f ConditionFunc) Holds(v TaskView) (bool, error) { return f(v), nil }

// Alert is checked after scheduling. When Cond holds, Message is reported
// as an error if Fail is set and as a warning otherwise.
type Alert struct {
	Message string
	Fail    bool
	Cond    Condition
}

// Compare is a declarative Condition "Attr Op Value". Attr is one of start,
// end, criticalness, pathcriticalness or effortdone. Dates accept RFC 3339
// and YYYY-MM-DD.
type Compare struct {
	Attr  string
	Op    string
	Value string
}

// Holds evaluates the comparison.
func (c Compare) Holds(v TaskView) (bool, error) {
	switch c.Attr {
	case "start", "end":
		want, err := parseDate(c.Value)
		if err != nil {
			return false, err
		}
		got := v.Start()
		if c.Attr == "end" {
			got = v.End()
		}
		return compare(got.Compare(want), c.Op)
	case "criticalness", "pathcriticalness", "effortdone":
		want, err := strconv.ParseFloat(c.Value, 64)
		if err != nil {
			return false, fmt.Errorf("alert %s: %w", c.Attr, err)
		}
		var got float64
		switch c.Attr {
		case "criticalness":
			got = v.Criticalness()
		case "pathcriticalness":
			got = v.PathCriticalness()
		default:
			got = v.EffortDone()
		}
		cmp := 0
		if got < want {
			cmp = -1
		} else if got > want {
			cmp = 1
		}
		return compare(cmp, c.Op)
	}
	return false, fmt.Errorf("unknown alert attribute %q", c.Attr)
}

func (c Compare) String() string { return c.Attr + " " + c.Op + " " + c.Value }

func compare(cmp int, op string) (bool, error) {
	switch op {
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	case "==":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}
