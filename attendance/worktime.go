package attendance

import (
	"github.com/warp/attendance-ledger/generic"
)

// DefaultGraceStart is the earliest time a working day starts counting.
var DefaultGraceStart = generic.ClockTime{Hour: 7}

// Accountant measures worked time for a day and compares it with the quota.
type Accountant struct {
	// GraceStart is the earliest credited start. Arriving before it earns
	// nothing extra.
	GraceStart generic.ClockTime
	// Quota is the contracted day. Nil disables delta computation.
	Quota *generic.Millis
}

// NewAccountant builds an accountant with a grace boundary and optional quota.
func NewAccountant(grace generic.ClockTime, quota *generic.Millis) *Accountant {
	return &Accountant{GraceStart: grace, Quota: quota}
}

// Evaluate applies the work-time rules, in order:
//
//	no punches      -> "Absent"
//	check-in only   -> "Missing Check-Out"
//	check-out only  -> "Missing Check-In"
//	both            -> worked = check-out - max(check-in, grace boundary)
//	worked >= 24h   -> "Missing Check-Out", no duration
//
// With a quota, Delta = worked - quota. Evaluate also records the worked
// duration and notes on the day itself.
func (a *Accountant) Evaluate(day *DayAttendance) WorkDayResult {
	res := WorkDayResult{EmployeeKey: day.EmployeeKey, Date: day.Date}

	switch {
	case day.CheckIn == nil && day.CheckOut == nil:
		res.Notes = append(res.Notes, NoteAbsent)
	case day.CheckOut == nil:
		res.Notes = append(res.Notes, NoteMissingCheckOut)
	case day.CheckIn == nil:
		res.Notes = append(res.Notes, NoteMissingCheckIn)
	case day.CheckOut.Before(*day.CheckIn):
		res.Notes = append(res.Notes, NoteCheckOutEarly)
	default:
		start := *day.CheckIn
		grace := a.GraceStart.On(day.Date, day.CheckIn.Location())
		if grace.After(start) {
			start = grace
		}

		worked := generic.MillisBetween(start, *day.CheckOut)
		if worked >= generic.Day {
			res.Notes = append(res.Notes, NoteMissingCheckOut)
			break
		}
		if worked < 0 {
			// Checked in and out before the grace boundary.
			worked = 0
		}
		res.Worked = &worked

		if a.Quota != nil {
			delta := worked - *a.Quota
			res.Delta = &delta
		}
	}

	day.Worked = res.Worked
	day.Notes = append(day.Notes, res.Notes...)
	return res
}
