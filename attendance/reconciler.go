/*
reconciler.go - Punch export to per-employee daily attendance

PURPOSE:
  Reads a biometric time-clock export (CSV) and folds its punch rows into
  one DayAttendance per (employee, day) inside a target period.

INPUT FORMAT:
  Header row plus data rows. Four columns are located by header name,
  case-insensitively: employee name, fingerprint machine ID, punch time,
  punch state. Column order and extra columns don't matter.

    No.,Name,AC-No.,Time,State
    1,Sara Adel,17,10/03/2024 8:10 AM,C/In
    2,Sara Adel,17,10/03/2024 5:00 PM,C/Out

FOLDING RULES:
  - First check-in of the day wins; later check-ins are ignored.
  - Last check-out of the day wins; it replaces earlier ones.
  - Rows outside the period are dropped (debug log only).

DATA-QUALITY NOTES (sheet-level, never errors):
  - Row with a name but no machine ID
  - Unreadable punch time
  - Unknown punch state

HARD FAILURES:
  - Reader errors
  - Missing required header (ErrMissingColumn)

DETERMINISM:
  Output depends only on the input bytes and period. Reconciling the same
  export twice yields identical maps.

SEE ALSO:
  - dateparse.go: Punch time parser
  - worktime.go: Turns DayAttendance into worked time
  - sheet.go: Cross-references the roster and persists records
*/
package attendance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/warp/attendance-ledger/generic"
	"github.com/warp/attendance-ledger/logger"
)

// Columns names the export's header cells.
type Columns struct {
	Name      string
	MachineID string
	Time      string
	State     string
}

// DefaultColumns matches the stock time-clock export.
var DefaultColumns = Columns{Name: "Name", MachineID: "AC-No.", Time: "Time", State: "State"}

// Reconciler parses punch exports.
type Reconciler struct {
	Columns       Columns
	CheckInState  string
	CheckOutState string
	Location      *time.Location
	Log           *logger.Logger
}

// NewReconciler returns a reconciler with the stock columns and states.
func NewReconciler(loc *time.Location, log *logger.Logger) *Reconciler {
	return &Reconciler{
		Columns:       DefaultColumns,
		CheckInState:  "C/In",
		CheckOutState: "C/Out",
		Location:      loc,
		Log:           log,
	}
}

// MonthResult maps machine ID -> day -> attendance.
type MonthResult struct {
	Days  map[string]map[generic.Date]*DayAttendance
	Names map[string]string
	Notes []string
}

// DayResult maps machine ID -> attendance for one day.
type DayResult struct {
	Days  map[string]*DayAttendance
	Names map[string]string
	Notes []string
}

// ReconcileMonth folds an export into per-day attendance for a month.
func (r *Reconciler) ReconcileMonth(src io.Reader, year int, month time.Month) (*MonthResult, error) {
	s, err := r.scan(src, generic.MonthPeriod(year, month))
	if err != nil {
		return nil, err
	}
	return &MonthResult{Days: s.days, Names: s.names, Notes: s.notes}, nil
}

// ReconcileDay folds an export into attendance for one day.
func (r *Reconciler) ReconcileDay(src io.Reader, day generic.Date) (*DayResult, error) {
	s, err := r.scan(src, generic.DayPeriod(day))
	if err != nil {
		return nil, err
	}
	flat := make(map[string]*DayAttendance, len(s.days))
	for key, byDate := range s.days {
		if d, ok := byDate[day]; ok {
			flat[key] = d
		}
	}
	return &DayResult{Days: flat, Names: s.names, Notes: s.notes}, nil
}

// =============================================================================
// SCAN - Local accumulator for one reconciliation
// =============================================================================

type scan struct {
	days      map[string]map[generic.Date]*DayAttendance
	names     map[string]string
	notes     []string
	noteIndex map[string]bool
}

func (s *scan) note(text string) {
	if s.noteIndex[text] {
		return
	}
	s.noteIndex[text] = true
	s.notes = append(s.notes, text)
}

type columnIndex struct {
	name, machineID, time, state int
}

func (r *Reconciler) scan(src io.Reader, period generic.Period) (*scan, error) {
	log := logger.OrNop(r.Log)
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: export is empty", generic.ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read export header: %w", err)
	}
	cols, err := r.locate(header)
	if err != nil {
		return nil, err
	}

	s := &scan{
		days:      make(map[string]map[generic.Date]*DayAttendance),
		names:     make(map[string]string),
		noteIndex: make(map[string]bool),
	}

	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read export line %d: %w", line, err)
		}
		if blank(row) {
			continue
		}

		name := cell(row, cols.name)
		key := cell(row, cols.machineID)
		if key == "" {
			s.note(fmt.Sprintf("%q has records for attendance in the sheet, but doesn't have a fingerprint machine ID.", name))
			continue
		}
		if _, ok := s.names[key]; !ok {
			s.names[key] = name
		}

		rawTime := cell(row, cols.time)
		at, err := ParsePunchTime(rawTime, loc)
		if err != nil {
			s.note(fmt.Sprintf("Line %d: cannot read punch time %q for %q.", line, rawTime, name))
			continue
		}

		date := generic.DateOf(at)
		if !period.Contains(date) {
			log.Debug().Str("machine_id", key).Str("date", date.String()).Msg("punch outside sheet period")
			continue
		}

		var dir Direction
		switch state := cell(row, cols.state); {
		case strings.EqualFold(state, r.CheckInState):
			dir = CheckIn
		case strings.EqualFold(state, r.CheckOutState):
			dir = CheckOut
		default:
			s.note(fmt.Sprintf("Line %d: unknown punch state %q for %q.", line, state, name))
			continue
		}

		s.fold(PunchEvent{EmployeeKey: key, EmployeeName: s.names[key], At: at, Direction: dir}, date)
	}
	return s, nil
}

func (s *scan) fold(ev PunchEvent, date generic.Date) {
	byDate, ok := s.days[ev.EmployeeKey]
	if !ok {
		byDate = make(map[generic.Date]*DayAttendance)
		s.days[ev.EmployeeKey] = byDate
	}
	day, ok := byDate[date]
	if !ok {
		day = &DayAttendance{EmployeeKey: ev.EmployeeKey, EmployeeName: ev.EmployeeName, Date: date}
		byDate[date] = day
	}
	day.apply(ev)
}

func (r *Reconciler) locate(header []string) (columnIndex, error) {
	find := func(want string) int {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), strings.TrimSpace(want)) {
				return i
			}
		}
		return -1
	}
	cols := columnIndex{
		name:      find(r.Columns.Name),
		machineID: find(r.Columns.MachineID),
		time:      find(r.Columns.Time),
		state:     find(r.Columns.State),
	}
	var missing []string
	if cols.machineID < 0 {
		missing = append(missing, r.Columns.MachineID)
	}
	if cols.time < 0 {
		missing = append(missing, r.Columns.Time)
	}
	if cols.state < 0 {
		missing = append(missing, r.Columns.State)
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: %s", generic.ErrMissingColumn, strings.Join(missing, ", "))
	}
	return cols, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
