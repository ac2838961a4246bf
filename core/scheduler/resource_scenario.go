package scheduler

import (
	"sort"
	"time"

	"github.com/kilianp07/slotplan/core/calendar"
	"github.com/kilianp07/slotplan/core/limits"
	"github.com/kilianp07/slotplan/core/message"
	"github.com/kilianp07/slotplan/core/model"
	"github.com/kilianp07/slotplan/core/scoreboard"
)

// ResourceScenario is the booking state of one resource in one scenario.
// Only leaf resources own a scoreboard; groups aggregate over members.
type ResourceScenario struct {
	sc   *scenario
	res  *model.Resource
	spec *model.ResourceSpec

	board  *scoreboard.Scoreboard[Slot]
	limits *limits.Limits

	duties  []model.TaskID
	dutySet map[model.TaskID]struct{}

	// Watermarks of booked slot indices, -1 when nothing is booked.
	firstBooked int
	lastBooked  int
	// bookedSlots counts bookings of this resource and all its members.
	bookedSlots int

	used            bool
	allocatedEffort float64
	criticalness    float64

	cache map[aggKey]float64
}

func newResourceScenario(sc *scenario, r *model.Resource) *ResourceScenario {
	return &ResourceScenario{
		sc:          sc,
		res:         r,
		spec:        r.Spec(sc.idx),
		dutySet:     make(map[model.TaskID]struct{}),
		firstBooked: -1,
		lastBooked:  -1,
		cache:       make(map[aggKey]float64),
	}
}

// Resource returns the declared resource.
func (r *ResourceScenario) Resource() *model.Resource { return r.res }

// Efficiency is the work produced per booked slot.
func (r *ResourceScenario) Efficiency() float64 { return r.spec.Efficiency }

// Criticalness is the ratio of requested effort to free capacity.
func (r *ResourceScenario) Criticalness() float64 { return r.criticalness }

// Duties lists the tasks this resource works on in booking order.
func (r *ResourceScenario) Duties() []model.TaskID {
	return append([]model.TaskID(nil), r.duties...)
}

func (r *ResourceScenario) parent() *ResourceScenario { return r.sc.resource(r.res.Parent) }

// PrepareScheduling resets the state of a previous run. Used leaves get
// their scoreboard right away, others on first use.
func (r *ResourceScenario) PrepareScheduling() {
	r.board = nil
	r.duties = nil
	r.dutySet = make(map[model.TaskID]struct{})
	r.firstBooked, r.lastBooked = -1, -1
	r.bookedSlots = 0
	r.allocatedEffort = 0
	r.criticalness = 0
	r.clearCache()

	// Limits of a resource count every booking of it and its members, so
	// they are not scoped to a resource id.
	r.limits = nil
	if len(r.spec.Limits) > 0 {
		r.limits = limits.New(r.sc.limitsCfg)
		for _, ls := range r.spec.Limits {
			if err := r.limits.SetLimit(ls.Name, r.sc.slots(ls.Value), ls.Interval, limits.AnyResource); err != nil {
				r.sc.report(message.Error, msgInvalidLimit, r.res.Source, "limits", "resource %s: %v", r.res.Key, err)
			}
		}
	}
	if r.used && r.res.Leaf() {
		r.InitScoreboard()
	}
}

// PreScheduleCheck validates the declared values.
func (r *ResourceScenario) PreScheduleCheck() bool {
	ok := true
	if r.spec.Efficiency < 0 {
		r.sc.report(message.Error, msgResourceSpec, r.res.Source, "efficiency", "resource %s has a negative efficiency", r.res.Key)
		ok = false
	}
	if r.spec.Rate < 0 {
		r.sc.report(message.Error, msgResourceSpec, r.res.Source, "rate", "resource %s has a negative rate", r.res.Key)
		ok = false
	}
	return ok
}

// workingHours returns the first calendar declared on the resource or its
// ancestors, falling back to the project calendar.
func (r *ResourceScenario) workingHours() *calendar.WorkingHours {
	for p := r; p != nil; p = p.parent() {
		if p.spec.WorkingHours != nil {
			return p.spec.WorkingHours
		}
	}
	return r.sc.project.WorkingHours
}

func (r *ResourceScenario) shifts() []model.ShiftAssignment {
	for p := r; p != nil; p = p.parent() {
		if len(p.spec.Shifts) > 0 {
			return p.spec.Shifts
		}
	}
	return nil
}

// InitScoreboard builds the slot states from working hours, shifts and
// vacations. Resource vacations always apply, global vacations only where
// no replacing shift overrides them, shift vacations last.
func (r *ResourceScenario) InitScoreboard() {
	board, err := scoreboard.New(r.sc.project.Start, r.sc.project.End, r.sc.gran, unavailable)
	if err != nil {
		panic(err)
	}
	wh := r.workingHours()
	shifts := r.shifts()
	for i := 0; i < board.Size(); i++ {
		date := board.IdxToDate(i)
		slot := Slot{Kind: OffShift, Task: model.NoTask}
		if a, ok := model.ShiftAt(shifts, date); ok {
			if a.Shift.WorkingHours.OnShift(date) {
				slot.Kind = Free
				slot.Override = a.Shift.Replace
			}
		} else if wh.OnShift(date) {
			slot.Kind = Free
		}
		board.Set(i, slot)
	}
	vacation := func(reason VacationReason, honorOverride bool) func(int) {
		return func(i int) {
			slot := board.Get(i)
			if honorOverride && slot.Override {
				return
			}
			if slot.Kind == OnVacation && reason != ShiftVacation {
				return
			}
			slot.Kind = OnVacation
			slot.Vacation = reason
			board.Set(i, slot)
		}
	}
	for p := r; p != nil; p = p.parent() {
		for _, v := range p.spec.Vacations {
			r.sc.fill(v, vacation(ResourceVacation, false))
		}
	}
	for _, v := range r.sc.project.Vacations {
		r.sc.fill(v, vacation(GlobalVacation, true))
	}
	for _, a := range shifts {
		for _, v := range a.Shift.Vacations {
			if iv, ok := v.Intersect(a.Interval); ok {
				r.sc.fill(iv, vacation(ShiftVacation, false))
			}
		}
	}
	r.board = board
}

func (r *ResourceScenario) scoreboard() *scoreboard.Scoreboard[Slot] {
	if r.board == nil && r.res.Leaf() {
		r.InitScoreboard()
	}
	return r.board
}

// SlotAt returns the slot at idx. Groups and out of range indices report
// Unavailable.
func (r *ResourceScenario) SlotAt(idx int) Slot {
	b := r.scoreboard()
	if b == nil || !b.InRange(idx) {
		return unavailable
	}
	return b.Get(idx)
}

func (r *ResourceScenario) limitsOK(date time.Time) bool {
	for p := r; p != nil; p = p.parent() {
		if p.limits != nil && !p.limits.OK(&date, true, int(r.res.ID)) {
			return false
		}
	}
	return true
}

// Available reports whether the leaf resource can be booked at idx.
func (r *ResourceScenario) Available(idx int) bool {
	b := r.scoreboard()
	if b == nil || !b.InRange(idx) || b.Get(idx).Kind != Free {
		return false
	}
	return r.limitsOK(b.IdxToDate(idx))
}

// Booked reports whether idx is assigned to a task.
func (r *ResourceScenario) Booked(idx int) bool {
	return r.SlotAt(idx).Kind == Booked
}

// Book assigns idx to task. Without force the slot must be available.
func (r *ResourceScenario) Book(idx int, task model.TaskID, force bool) bool {
	b := r.scoreboard()
	if b == nil || !b.InRange(idx) {
		return false
	}
	if !force && !r.Available(idx) {
		return false
	}
	b.Set(idx, Slot{Kind: Booked, Task: task})
	if _, ok := r.dutySet[task]; !ok {
		r.dutySet[task] = struct{}{}
		r.duties = append(r.duties, task)
	}
	date := b.IdxToDate(idx)
	for p := r; p != nil; p = p.parent() {
		p.bookedSlots++
		if p.limits != nil {
			p.limits.Inc(date, int(r.res.ID))
		}
		p.clearCache()
	}
	if r.firstBooked < 0 || idx < r.firstBooked {
		r.firstBooked = idx
	}
	if idx > r.lastBooked {
		r.lastBooked = idx
	}
	return true
}

// BookBooking registers one slot of a declared booking. Conflicts and
// off-duty slots are handled according to the booking's overtime and sloppy
// levels.
func (r *ResourceScenario) BookBooking(idx int, bk *model.Booking) bool {
	b := r.scoreboard()
	if b == nil || !b.InRange(idx) {
		return false
	}
	slot := b.Get(idx)
	date := b.IdxToDate(idx).Format(time.RFC3339)
	task := r.sc.task(bk.Task)
	switch slot.Kind {
	case Booked:
		if slot.Task == bk.Task {
			return false
		}
		if bk.Sloppy > 1 {
			return false
		}
		r.sc.report(message.Error, msgBookingConflict, bk.Source, "booking",
			"resource %s is already booked for task %s at %s, cannot book it for %s",
			r.res.Key, r.sc.task(slot.Task).task.Key, date, task.task.Key)
		return false
	case OffShift, Unavailable:
		if bk.Overtime < 1 {
			if bk.Sloppy == 0 {
				r.sc.report(message.Error, msgBookingOffShift, bk.Source, "booking",
					"resource %s is off duty at %s, booking for task %s rejected", r.res.Key, date, task.task.Key)
			}
			return false
		}
	case OnVacation:
		if bk.Overtime < 2 {
			if bk.Sloppy < 2 {
				r.sc.report(message.Error, msgBookingVacation, bk.Source, "booking",
					"resource %s is on vacation at %s, booking for task %s rejected", r.res.Key, date, task.task.Key)
			}
			return false
		}
	}
	return r.Book(idx, bk.Task, true)
}

// Bookings returns one booking per task with contiguous slots coalesced
// into intervals, ordered by first booked slot.
func (r *ResourceScenario) Bookings() []*model.Booking {
	b := r.scoreboard()
	if b == nil || r.firstBooked < 0 {
		return nil
	}
	var out []*model.Booking
	byTask := make(map[model.TaskID]*model.Booking)
	cur := model.NoTask
	var from int
	flush := func(end int) {
		if cur == model.NoTask {
			return
		}
		bk, ok := byTask[cur]
		if !ok {
			bk = model.NewBooking(r.res.ID, cur)
			byTask[cur] = bk
			out = append(out, bk)
		}
		bk.Extend(scoreboard.Interval{Start: b.IdxToDate(from), End: b.IdxToDate(end)})
	}
	b.Each(r.firstBooked, r.lastBooked+1, func(idx int, s Slot) bool {
		task := model.NoTask
		if s.Kind == Booked {
			task = s.Task
		}
		if task != cur {
			flush(idx)
			cur, from = task, idx
		}
		return true
	})
	flush(r.lastBooked + 1)
	return out
}

// CalcCriticalness sets the ratio of effort requested from this resource to
// its free slots. Unused resources are not critical.
func (r *ResourceScenario) CalcCriticalness() {
	r.criticalness = 0
	if !r.res.Leaf() || !r.used {
		return
	}
	free := r.EffectiveFreeTime(r.sc.project.Frame())
	if free <= 0 {
		if r.allocatedEffort > 0 {
			r.criticalness = 1
		}
		return
	}
	r.criticalness = r.allocatedEffort / free
}

// FinishScheduling gives groups the union of their members' duties.
func (r *ResourceScenario) FinishScheduling() {
	if r.res.Leaf() {
		return
	}
	set := make(map[model.TaskID]struct{})
	for _, id := range r.res.Children {
		c := r.sc.resource(id)
		c.FinishScheduling()
		for _, d := range c.duties {
			set[d] = struct{}{}
		}
	}
	r.duties = r.duties[:0]
	r.dutySet = set
	for d := range set {
		r.duties = append(r.duties, d)
	}
	sort.Slice(r.duties, func(i, j int) bool { return r.duties[i] < r.duties[j] })
}

// PostScheduleCheck reports lower limits that were not reached.
func (r *ResourceScenario) PostScheduleCheck() bool {
	if r.limits == nil {
		return true
	}
	ok := true
	r.limits.Each(func(l *limits.Limit) {
		if !l.OK(nil, false, int(r.res.ID)) {
			r.sc.report(message.Warning, msgMinimumLimit, r.res.Source, "limits",
				"resource %s does not reach the %s limit of %d slots", r.res.Key, l.Name, l.Value)
			ok = false
		}
	})
	return ok
}
