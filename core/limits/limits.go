package limits

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/slotplan/core/scoreboard"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
)

// Settings carries the project parameters limits are anchored to.
type Settings struct {
	// Frame is the default interval for limits declared without one.
	Frame            scoreboard.Interval
	WeekStartsMonday bool
}

type key struct {
	name     string
	start    int64
	end      int64
	resource int
}

// Limits is a set of Limit values keyed by name, interval and resource.
type Limits struct {
	settings Settings
	limits   map[key]*Limit
}

// New returns an empty set.
func New(settings Settings) *Limits {
	return &Limits{settings: settings, limits: make(map[key]*Limit)}
}

// SetLimit creates or replaces the limit identified by name, interval and
// resource. name is one of dailymax, dailymin, weeklymax, weeklymin,
// monthlymax, monthlymin, maximum or minimum. value is a number of slots.
// A nil interval means the settings frame.
func (l *Limits) SetLimit(name string, value int, iv *scoreboard.Interval, resource int) error {
	period, upper, err := periodOf(name)
	if err != nil {
		return err
	}
	interval := l.settings.Frame
	if iv != nil {
		interval = *iv
	}
	if interval.Empty() {
		return fmt.Errorf("limit %s: empty interval", name)
	}
	switch name {
	case "dailymax", "dailymin":
		interval.Start = midnight(interval.Start)
	case "weeklymax", "weeklymin":
		interval.Start = beginOfWeek(interval.Start, l.settings.WeekStartsMonday)
	case "monthlymax", "monthlymin":
		interval.Start = beginOfMonth(interval.Start)
	default:
		period = interval.Duration()
	}
	lim, err := newLimit(name, interval, period, value, upper, resource)
	if err != nil {
		return err
	}
	k := key{name: name, start: interval.Start.UnixNano(), end: interval.End.UnixNano(), resource: resource}
	l.limits[k] = lim
	return nil
}

// Inc increments every limit covering date for resource.
func (l *Limits) Inc(date time.Time, resource int) {
	for _, lim := range l.limits {
		lim.Inc(date, resource)
	}
}

// OK is the logical AND of all contained limit checks.
func (l *Limits) OK(date *time.Time, upper bool, resource int) bool {
	for _, lim := range l.limits {
		if !lim.OK(date, upper, resource) {
			return false
		}
	}
	return true
}

// Reset clears the counters of all limits.
func (l *Limits) Reset() {
	for _, lim := range l.limits {
		lim.Reset()
	}
}

// Len returns the number of limits.
func (l *Limits) Len() int { return len(l.limits) }

// Copy returns a deep copy with independent counters.
func (l *Limits) Copy() *Limits {
	c := New(l.settings)
	for k, lim := range l.limits {
		c.limits[k] = lim.clone()
	}
	return c
}

// Each calls fn for every limit in a stable order.
func (l *Limits) Each(fn func(*Limit)) {
	keys := make([]key, 0, len(l.limits))
	for k := range l.limits {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		if keys[i].start != keys[j].start {
			return keys[i].start < keys[j].start
		}
		return keys[i].resource < keys[j].resource
	})
	for _, k := range keys {
		fn(l.limits[k])
	}
}

func periodOf(name string) (time.Duration, bool, error) {
	switch name {
	case "dailymax":
		return day, true, nil
	case "dailymin":
		return day, false, nil
	case "weeklymax":
		return week, true, nil
	case "weeklymin":
		return week, false, nil
	case "monthlymax":
		return month, true, nil
	case "monthlymin":
		return month, false, nil
	case "maximum":
		return 0, true, nil
	case "minimum":
		return 0, false, nil
	}
	return 0, false, fmt.Errorf("unknown limit type %q", name)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func beginOfWeek(t time.Time, mondayFirst bool) time.Time {
	t = midnight(t)
	offset := int(t.Weekday())
	if mondayFirst {
		offset = (offset + 6) % 7
	}
	return t.AddDate(0, 0, -offset)
}

func beginOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
