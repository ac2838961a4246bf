// Package calendar implements weekly working hour patterns. A WorkingHours
// value answers "is this instant on shift" through a lazily built boolean
// scoreboard which is shared between structurally identical patterns.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/slotplan/core/scoreboard"
)

const secondsPerDay = 24 * 60 * 60

// Span is a working period within one day in seconds since midnight,
// [From, To).
type Span struct {
	From int `json:"from" yaml:"from"`
	To   int `json:"to" yaml:"to"`
}

// HM builds a span from hour/minute pairs, e.g. HM(9, 0, 12, 30).
func HM(fromH, fromM, toH, toM int) Span {
	return Span{From: fromH*3600 + fromM*60, To: toH*3600 + toM*60}
}

// WorkingHours holds the working spans for every weekday (0 = Sunday).
type WorkingHours struct {
	days  [7][]Span
	loc   *time.Location
	start time.Time
	end   time.Time
	gran  time.Duration

	cache *Cache
	key   string
	board *scoreboard.Scoreboard[bool]
}

// New returns the default pattern, Monday to Friday 09:00-12:00 and
// 13:00-18:00 in UTC, for the scheduling frame [start, end).
func New(start, end time.Time, granularity time.Duration, cache *Cache) *WorkingHours {
	w := &WorkingHours{loc: time.UTC, start: start, end: end, gran: granularity, cache: cache}
	for d := time.Monday; d <= time.Friday; d++ {
		w.days[d] = []Span{HM(9, 0, 12, 0), HM(13, 0, 18, 0)}
	}
	return w
}

// SetWorkingHours replaces the spans of one weekday. Spans must be ordered,
// non-overlapping and lie within the day.
func (w *WorkingHours) SetWorkingHours(day time.Weekday, spans []Span) error {
	if day < time.Sunday || day > time.Saturday {
		return fmt.Errorf("invalid weekday %d", day)
	}
	prevEnd := -1
	for _, s := range spans {
		if s.From < 0 || s.To > secondsPerDay {
			return fmt.Errorf("%s: span %s outside of day", day, s)
		}
		if s.From >= s.To {
			return fmt.Errorf("%s: span %s start must be before end", day, s)
		}
		if s.From < prevEnd {
			return fmt.Errorf("%s: span %s overlaps or is out of order", day, s)
		}
		prevEnd = s.To
	}
	w.days[day] = append([]Span(nil), spans...)
	w.invalidate()
	return nil
}

// SetTimezone sets the location used to map instants to weekday and time of
// day. A nil location means UTC.
func (w *WorkingHours) SetTimezone(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	w.loc = loc
	w.invalidate()
}

// Timezone returns the configured location.
func (w *WorkingHours) Timezone() *time.Location { return w.loc }

// Days returns a copy of the spans of day.
func (w *WorkingHours) Days(day time.Weekday) []Span {
	return append([]Span(nil), w.days[day]...)
}

// OnShift reports whether t falls into a working span.
func (w *WorkingHours) OnShift(t time.Time) bool {
	if t.Before(w.start) || !t.Before(w.end) {
		return w.onShiftAt(t)
	}
	b := w.scoreboard()
	return b.Get(b.DateToIdx(t))
}

// OnShiftIdx is OnShift for a slot index of the scheduling frame.
func (w *WorkingHours) OnShiftIdx(idx int) bool {
	b := w.scoreboard()
	if !b.InRange(idx) {
		return w.onShiftAt(b.IdxToDate(idx))
	}
	return b.Get(idx)
}

// TimeOff reports whether no slot of iv is on shift.
func (w *WorkingHours) TimeOff(iv scoreboard.Interval) bool {
	for t := iv.Start; t.Before(iv.End); t = t.Add(w.gran) {
		if w.OnShift(t) {
			return false
		}
	}
	return true
}

// WeeklyWorkingTime sums the spans of all weekdays.
func (w *WorkingHours) WeeklyWorkingTime() time.Duration {
	var secs int
	for _, spans := range w.days {
		for _, s := range spans {
			secs += s.To - s.From
		}
	}
	return time.Duration(secs) * time.Second
}

// Equal reports whether both patterns produce identical scoreboards.
func (w *WorkingHours) Equal(o *WorkingHours) bool {
	return w.fingerprint() == o.fingerprint()
}

// Clone returns a copy that shares the derived scoreboard until one side is
// mutated.
func (w *WorkingHours) Clone() *WorkingHours {
	c := &WorkingHours{loc: w.loc, start: w.start, end: w.end, gran: w.gran, cache: w.cache}
	for d := range w.days {
		c.days[d] = append([]Span(nil), w.days[d]...)
	}
	if w.board != nil {
		c.board = w.board
		c.key = w.key
		if c.cache != nil {
			c.cache.retain(c.key)
		}
	}
	return c
}

// Release drops the reference on the shared scoreboard.
func (w *WorkingHours) Release() { w.invalidate() }

func (w *WorkingHours) invalidate() {
	if w.board == nil {
		return
	}
	if w.cache != nil {
		w.cache.release(w.key)
	}
	w.board = nil
	w.key = ""
}

func (w *WorkingHours) scoreboard() *scoreboard.Scoreboard[bool] {
	if w.board != nil {
		return w.board
	}
	key := w.fingerprint()
	if w.cache != nil {
		w.board = w.cache.acquire(key, w.build)
	} else {
		w.board = w.build()
	}
	w.key = key
	return w.board
}

func (w *WorkingHours) build() *scoreboard.Scoreboard[bool] {
	b, err := scoreboard.New(w.start, w.end, w.gran, false)
	if err != nil {
		panic(fmt.Sprintf("working hours frame: %v", err))
	}
	for i := 0; i < b.Size(); i++ {
		b.Set(i, w.onShiftAt(b.IdxToDate(i)))
	}
	return b
}

func (w *WorkingHours) onShiftAt(t time.Time) bool {
	lt := t.In(w.loc)
	secs := lt.Hour()*3600 + lt.Minute()*60 + lt.Second()
	for _, s := range w.days[lt.Weekday()] {
		if secs >= s.From && secs < s.To {
			return true
		}
	}
	return false
}

func (w *WorkingHours) fingerprint() string {
	var sb strings.Builder
	for d, spans := range w.days {
		fmt.Fprintf(&sb, "%d:", d)
		for _, s := range spans {
			fmt.Fprintf(&sb, "%d-%d,", s.From, s.To)
		}
		sb.WriteByte(';')
	}
	fmt.Fprintf(&sb, "%s|%d|%d|%d", w.loc.String(), w.start.UnixNano(), w.end.UnixNano(), int64(w.gran))
	return sb.String()
}

func (s Span) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", s.From/3600, s.From%3600/60, s.To/3600, s.To%3600/60)
}
