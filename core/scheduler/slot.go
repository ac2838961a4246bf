package scheduler

import "github.com/kilianp07/slotplan/core/model"

// SlotKind is the state of one resource scoreboard slot.
type SlotKind uint8

const (
	// Unavailable is the placeholder before the scoreboard is initialized.
	Unavailable SlotKind = iota
	Free
	Booked
	OffShift
	OnVacation
)

func (k SlotKind) String() string {
	switch k {
	case Free:
		return "free"
	case Booked:
		return "booked"
	case OffShift:
		return "offshift"
	case OnVacation:
		return "vacation"
	default:
		return "unavailable"
	}
}

// VacationReason tells which declaration made a slot a vacation.
type VacationReason uint8

const (
	NoVacation VacationReason = iota
	ResourceVacation
	GlobalVacation
	ShiftVacation
)

// Slot is one entry of a resource scoreboard.
type Slot struct {
	Kind SlotKind
	// Task is set for Booked slots.
	Task     model.TaskID
	Vacation VacationReason
	// Override marks on-shift time of a replacing shift that global
	// vacations must not take away.
	Override bool
}

var unavailable = Slot{Kind: Unavailable, Task: model.NoTask}
