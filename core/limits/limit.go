// Package limits implements named usage counters scoped to an interval and
// split into fixed periods, e.g. "at most 8 slots per day". The scheduler
// consults them before booking a slot and increments them afterwards.
package limits

import (
	"fmt"
	"time"

	"github.com/kilianp07/slotplan/core/scoreboard"
)

// AnyResource marks a limit that applies regardless of the booked resource.
const AnyResource = -1

// Limit counts usages per period within Interval.
type Limit struct {
	Name     string
	Interval scoreboard.Interval
	Period   time.Duration
	Value    int
	Upper    bool
	Resource int

	counts *scoreboard.Scoreboard[int]
	dirty  bool
}

func newLimit(name string, iv scoreboard.Interval, period time.Duration, value int, upper bool, resource int) (*Limit, error) {
	if value < 0 {
		return nil, fmt.Errorf("limit %s: value must not be negative", name)
	}
	counts, err := scoreboard.New(iv.Start, iv.End, period, 0)
	if err != nil {
		return nil, fmt.Errorf("limit %s: %w", name, err)
	}
	return &Limit{
		Name:     name,
		Interval: iv,
		Period:   period,
		Value:    value,
		Upper:    upper,
		Resource: resource,
		counts:   counts,
	}, nil
}

// Reset clears all period counters.
func (l *Limit) Reset() {
	if !l.dirty {
		return
	}
	l.counts.Fill(0)
	l.dirty = false
}

// Inc increments the counter of the period containing date when the limit
// covers date and applies to resource.
func (l *Limit) Inc(date time.Time, resource int) {
	if !l.Interval.Contains(date) || !l.appliesTo(resource) {
		return
	}
	idx := l.counts.DateToIdx(date)
	l.counts.Set(idx, l.counts.Get(idx)+1)
	l.dirty = true
}

// OK reports whether the limit is satisfied. Limits of the other polarity or
// scoped to a different resource are always satisfied. A nil date checks
// every period, otherwise only the period containing *date.
func (l *Limit) OK(date *time.Time, upper bool, resource int) bool {
	if l.Upper != upper || !l.appliesTo(resource) {
		return true
	}
	if date == nil {
		ok := true
		l.counts.Each(0, l.counts.Size(), func(_ int, c int) bool {
			ok = l.satisfied(c)
			return ok
		})
		return ok
	}
	if !l.Interval.Contains(*date) {
		return true
	}
	return l.satisfied(l.counts.GetDate(*date))
}

// Count returns the counter of the period containing date.
func (l *Limit) Count(date time.Time) int {
	if !l.Interval.Contains(date) {
		return 0
	}
	return l.counts.GetDate(date)
}

func (l *Limit) satisfied(count int) bool {
	if l.Upper {
		return count < l.Value
	}
	return count >= l.Value
}

func (l *Limit) appliesTo(resource int) bool {
	return l.Resource == AnyResource || l.Resource == resource
}

func (l *Limit) clone() *Limit {
	c := *l
	c.counts = l.counts.Clone()
	return &c
}
