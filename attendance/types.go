// Package attendance turns raw time-clock exports into per-employee daily
// attendance records: it pairs punches, measures worked time against the
// daily quota and hands shortfalls to the compensation cascade.
package attendance

import (
	"strings"
	"time"

	"github.com/warp/attendance-ledger/generic"
)

// =============================================================================
// PUNCHES
// =============================================================================

type Direction int

const (
	CheckIn Direction = iota + 1
	CheckOut
)

func (d Direction) String() string {
	switch d {
	case CheckIn:
		return "check-in"
	case CheckOut:
		return "check-out"
	default:
		return "unknown"
	}
}

// PunchEvent is one parsed row of a time-clock export.
type PunchEvent struct {
	EmployeeKey  string // fingerprint machine ID
	EmployeeName string
	At           time.Time
	Direction    Direction
}

// =============================================================================
// DAY ATTENDANCE
// =============================================================================

// Notes attached to a day. Stored with a "• " bullet each.
const (
	NoteAbsent          = "Absent"
	NoteMissingCheckOut = "Missing Check-Out"
	NoteMissingCheckIn  = "Missing Check-In"
	NoteCheckOutEarly   = "Check-Out before Check-In"
)

// DayAttendance is one employee's punches for one calendar day.
//
// INVARIANT: CheckIn holds the first check-in of the day and CheckOut the
// last check-out. The reconciler never produces a day with neither; absent
// days come from AbsentDay.
type DayAttendance struct {
	EmployeeKey  string
	EmployeeName string
	Date         generic.Date
	CheckIn      *time.Time
	CheckOut     *time.Time
	Notes        []string
	Worked       *generic.Millis
}

// AbsentDay builds the empty day used when the roster lists an employee
// with no punches for the date.
func AbsentDay(key, name string, date generic.Date) *DayAttendance {
	return &DayAttendance{EmployeeKey: key, EmployeeName: name, Date: date}
}

func (d *DayAttendance) apply(ev PunchEvent) {
	at := ev.At
	switch ev.Direction {
	case CheckIn:
		if d.CheckIn == nil {
			d.CheckIn = &at
		}
	case CheckOut:
		d.CheckOut = &at
	}
}

// WorkDayResult is the accountant's verdict on one day.
type WorkDayResult struct {
	EmployeeKey string
	Date        generic.Date
	Worked      *generic.Millis // nil when no duration could be measured
	Delta       *generic.Millis // nil when no quota applies or Worked is nil
	Notes       []string
}

// IsDeficit reports whether the day fell short of the quota.
func (r WorkDayResult) IsDeficit() bool {
	return r.Delta != nil && *r.Delta < 0
}

// FormatNotes renders notes as "• note" lines.
func FormatNotes(notes []string) string {
	if len(notes) == 0 {
		return ""
	}
	lines := make([]string, len(notes))
	for i, n := range notes {
		lines[i] = "• " + n
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// PERSISTED RECORD
// =============================================================================

// Record is the stored attendance row for one (employee, day).
type Record struct {
	ID           string             `db:"id" json:"id"`
	EmployeeID   generic.EmployeeID `db:"employee_id" json:"employee_id"`
	EmployeeName string             `db:"employee_name" json:"employee_name"`
	MachineID    string             `db:"machine_id" json:"machine_id"`
	Date         generic.Date       `db:"date" json:"date"`
	CheckIn      *time.Time         `db:"check_in" json:"check_in,omitempty"`
	CheckOut     *time.Time         `db:"check_out" json:"check_out,omitempty"`
	WorkHours    string             `db:"work_hours" json:"work_hours,omitempty"`
	Overtime     string             `db:"overtime" json:"overtime,omitempty"`
	Notes        string             `db:"notes" json:"notes,omitempty"`
	SheetID      string             `db:"sheet_id" json:"sheet_id,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
}
