// Package scoreboard provides the fixed granularity time slot array every
// scheduling component is built on. A Scoreboard covers [start, end) with
// slots of equal length; slot i starts at start + i*granularity.
package scoreboard

import (
	"fmt"
	"time"
)

// Scoreboard is a time indexed array of values of type V.
type Scoreboard[V any] struct {
	start       time.Time
	granularity time.Duration
	slots       []V
}

// New creates a scoreboard spanning [start, end) filled with def.
func New[V any](start, end time.Time, granularity time.Duration, def V) (*Scoreboard[V], error) {
	if granularity <= 0 {
		return nil, fmt.Errorf("granularity must be positive, got %s", granularity)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("scoreboard end %s must be after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	size := int(end.Sub(start) / granularity)
	if end.Sub(start)%granularity != 0 {
		size++
	}
	sb := &Scoreboard[V]{start: start, granularity: granularity, slots: make([]V, size)}
	sb.Fill(def)
	return sb, nil
}

// Start returns the date of the first slot.
func (s *Scoreboard[V]) Start() time.Time { return s.start }

// End returns the end date of the last slot.
func (s *Scoreboard[V]) End() time.Time { return s.IdxToDate(len(s.slots)) }

// Granularity returns the slot length.
func (s *Scoreboard[V]) Granularity() time.Duration { return s.granularity }

// Size returns the number of slots.
func (s *Scoreboard[V]) Size() int { return len(s.slots) }

// IdxToDate converts a slot index into the start date of that slot.
func (s *Scoreboard[V]) IdxToDate(idx int) time.Time {
	return s.start.Add(time.Duration(idx) * s.granularity)
}

// DateToIdx converts a date into the index of the slot containing it. The
// division floors, so dates before the start yield negative indexes.
func (s *Scoreboard[V]) DateToIdx(t time.Time) int {
	d := t.Sub(s.start)
	idx := int(d / s.granularity)
	if d < 0 && d%s.granularity != 0 {
		idx--
	}
	return idx
}

// InRange reports whether idx addresses an existing slot.
func (s *Scoreboard[V]) InRange(idx int) bool { return idx >= 0 && idx < len(s.slots) }

// Get returns the value of slot idx. It panics when idx is out of range.
func (s *Scoreboard[V]) Get(idx int) V {
	s.check(idx)
	return s.slots[idx]
}

// Set stores v in slot idx. It panics when idx is out of range.
func (s *Scoreboard[V]) Set(idx int, v V) {
	s.check(idx)
	s.slots[idx] = v
}

// GetDate returns the value of the slot containing t.
func (s *Scoreboard[V]) GetDate(t time.Time) V { return s.Get(s.DateToIdx(t)) }

// SetDate stores v in the slot containing t.
func (s *Scoreboard[V]) SetDate(t time.Time, v V) { s.Set(s.DateToIdx(t), v) }

// Fill sets every slot to v.
func (s *Scoreboard[V]) Fill(v V) {
	for i := range s.slots {
		s.slots[i] = v
	}
}

// Each calls fn for every slot in [startIdx, endIdx). The indexes are
// clipped to the scoreboard. Iteration stops early when fn returns false.
func (s *Scoreboard[V]) Each(startIdx, endIdx int, fn func(idx int, v V) bool) {
	if startIdx < 0 {
		startIdx = 0
	}
	if endIdx > len(s.slots) {
		endIdx = len(s.slots)
	}
	for i := startIdx; i < endIdx; i++ {
		if !fn(i, s.slots[i]) {
			return
		}
	}
}

// Clone returns an independent copy of the scoreboard.
func (s *Scoreboard[V]) Clone() *Scoreboard[V] {
	c := &Scoreboard[V]{start: s.start, granularity: s.granularity, slots: make([]V, len(s.slots))}
	copy(c.slots, s.slots)
	return c
}

// CollectIntervals returns the maximal sub-intervals of iv whose slots all
// satisfy pred and that are at least minDuration long.
func (s *Scoreboard[V]) CollectIntervals(iv Interval, minDuration time.Duration, pred func(V) bool) []Interval {
	startIdx := s.DateToIdx(iv.Start)
	endIdx := s.DateToIdx(iv.End)
	if s.IdxToDate(endIdx).Before(iv.End) {
		endIdx++
	}
	if startIdx < 0 {
		startIdx = 0
	}
	if endIdx > len(s.slots) {
		endIdx = len(s.slots)
	}
	minSlots := int(minDuration / s.granularity)
	if minDuration%s.granularity != 0 {
		minSlots++
	}
	if minSlots < 1 {
		minSlots = 1
	}

	var res []Interval
	runStart := -1
	flush := func(runEnd int) {
		if runStart >= 0 && runEnd-runStart >= minSlots {
			res = append(res, Interval{Start: s.IdxToDate(runStart), End: s.IdxToDate(runEnd)})
		}
		runStart = -1
	}
	for i := startIdx; i < endIdx; i++ {
		if pred(s.slots[i]) {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		flush(i)
	}
	flush(endIdx)
	return res
}

func (s *Scoreboard[V]) check(idx int) {
	if idx < 0 || idx >= len(s.slots) {
		panic(fmt.Sprintf("scoreboard index %d out of range [0, %d)", idx, len(s.slots)))
	}
}
