package projectfile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/slotplan/core/calendar"
	"github.com/kilianp07/slotplan/core/model"
	"github.com/kilianp07/slotplan/core/scoreboard"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseDate accepts RFC 3339, "YYYY-MM-DD hh:mm" and "YYYY-MM-DD". Dates
// without offset are read in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func parseOptionalDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return parseDate(s, loc)
}

func parseInterval(d IntervalDecl, loc *time.Location) (scoreboard.Interval, error) {
	start, err := parseDate(d.Start, loc)
	if err != nil {
		return scoreboard.Interval{}, err
	}
	end, err := parseDate(d.End, loc)
	if err != nil {
		return scoreboard.Interval{}, err
	}
	return scoreboard.NewInterval(start, end)
}

func parseIntervals(decls []IntervalDecl, loc *time.Location) ([]scoreboard.Interval, error) {
	out := make([]scoreboard.Interval, 0, len(decls))
	for _, d := range decls {
		iv, err := parseInterval(d, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, nil
}

// units lists the duration suffixes, longest first so that "min" wins over
// a Go duration ending in "m".
var units = []string{"min", "mo", "h", "d", "w", "y"}

// parseDuration reads a duration such as "3d", "1.5h", "2w" or any Go
// duration. Working time maps a day to the project's daily working hours
// and weeks, months and years to fractions of its yearly working days.
// Calendar time uses 24 hour days.
func parseDuration(s string, p *model.Project, calendarTime bool) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	for _, u := range units {
		num, ok := strings.CutSuffix(s, u)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			break
		}
		if v < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(v * float64(unitSize(u, p, calendarTime))), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func unitSize(unit string, p *model.Project, calendarTime bool) time.Duration {
	day := 24 * time.Hour
	if !calendarTime {
		day = p.WorkingDaysToDuration(1)
	}
	days := func(n float64) time.Duration { return time.Duration(n * float64(day)) }
	switch unit {
	case "min":
		return time.Minute
	case "h":
		return time.Hour
	case "d":
		return day
	case "w":
		if calendarTime {
			return days(7)
		}
		return days(p.YearlyWorkingDays / 52)
	case "mo":
		if calendarTime {
			return days(365.0 / 12)
		}
		return days(p.YearlyWorkingDays / 12)
	default:
		if calendarTime {
			return days(365)
		}
		return days(p.YearlyWorkingDays)
	}
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// parseDays reads "mon", "mon-fri" or "sat-sun" (wrapping ranges allowed).
func parseDays(key string) ([]time.Weekday, error) {
	from, to, isRange := strings.Cut(strings.ToLower(strings.TrimSpace(key)), "-")
	first, ok := weekdays[from]
	if !ok {
		return nil, fmt.Errorf("unknown weekday %q", from)
	}
	if !isRange {
		return []time.Weekday{first}, nil
	}
	last, ok := weekdays[to]
	if !ok {
		return nil, fmt.Errorf("unknown weekday %q", to)
	}
	var out []time.Weekday
	for d := first; ; d = (d + 1) % 7 {
		out = append(out, d)
		if d == last {
			break
		}
	}
	return out, nil
}

// parseSpan reads "09:00-12:30". "24:00" is accepted as end of day.
func parseSpan(s string) (calendar.Span, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return calendar.Span{}, fmt.Errorf("invalid span %q", s)
	}
	f, err := parseClock(from)
	if err != nil {
		return calendar.Span{}, err
	}
	t, err := parseClock(to)
	if err != nil {
		return calendar.Span{}, err
	}
	return calendar.Span{From: f, To: t}, nil
}

func parseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 24 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 || (hh == 24 && mm != 0) {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return hh*3600 + mm*60, nil
}

// applyWorkingHours overrides the days named in decl. An empty span list
// makes the day non working. Day ranges are applied before single days.
func applyWorkingHours(wh *calendar.WorkingHours, decl map[string][]string) error {
	keys := make([]string, 0, len(decl))
	for k := range decl {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := strings.Contains(keys[i], "-"), strings.Contains(keys[j], "-")
		if ri != rj {
			return ri
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		days, err := parseDays(k)
		if err != nil {
			return err
		}
		spans := make([]calendar.Span, 0, len(decl[k]))
		for _, s := range decl[k] {
			sp, err := parseSpan(s)
			if err != nil {
				return err
			}
			spans = append(spans, sp)
		}
		for _, d := range days {
			if err := wh.SetWorkingHours(d, spans); err != nil {
				return err
			}
		}
	}
	return nil
}
