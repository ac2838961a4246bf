package scoreboard

import (
	"fmt"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// NewInterval returns the interval [start, end). It fails when end is before start.
func NewInterval(start, end time.Time) (Interval, error) {
	if end.Before(start) {
		return Interval{}, fmt.Errorf("interval end %s before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// Duration returns the length of the interval.
func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// Empty reports whether the interval covers no time at all.
func (iv Interval) Empty() bool { return !iv.End.After(iv.Start) }

// Contains reports whether t lies inside the interval.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// ContainsInterval reports whether o lies completely inside iv.
func (iv Interval) ContainsInterval(o Interval) bool {
	return !o.Start.Before(iv.Start) && !o.End.After(iv.End)
}

// Overlaps reports whether both intervals share at least one instant.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

// Intersect returns the common part of both intervals. ok is false when
// they don't overlap.
func (iv Interval) Intersect(o Interval) (Interval, bool) {
	if !iv.Overlaps(o) {
		return Interval{}, false
	}
	res := iv
	if o.Start.After(res.Start) {
		res.Start = o.Start
	}
	if o.End.Before(res.End) {
		res.End = o.End
	}
	return res, true
}

func (iv Interval) String() string {
	return iv.Start.Format(time.RFC3339) + " - " + iv.End.Format(time.RFC3339)
}
