/*
sheet.go - End-to-end processing of one attendance sheet

PURPOSE:
  An attendance sheet names a punch export and a target period (one day
  or one month). Processing it loads the export, reconciles punches,
  cross-references the employee roster, evaluates each working day,
  runs the compensation cascade on deficits, and persists one Record per
  (employee, day).

MODES:
  Daily:   one record per roster employee with a machine ID. Employees
           with no punches that day get an "Absent" record.
  Monthly: one record per working day for every roster employee present
           in the export. Roster employees missing from the export get a
           sheet note instead of records.

UNITS OF WORK:
  Each employee is processed independently. A failure for one employee
  is logged, audited and collected into the report; the others still run.
  Failures before the employee loop (file, export format, roster,
  holidays) abort the sheet.

RESTARTS:
  A day that already has a Record is skipped. Re-running a sheet after a
  partial failure fills only the gaps, and the cascade never runs twice
  for the same (employee, day).

SEE ALSO:
  - reconciler.go: Punch folding
  - worktime.go: Worked time and quota delta
  - compensation/cascade.go: Deficit absorption
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-ledger/compensation"
	"github.com/warp/attendance-ledger/generic"
	"github.com/warp/attendance-ledger/logger"
)

// =============================================================================
// PORTS
// =============================================================================

// RosterEntry is the slice of an employee the sheet needs.
type RosterEntry struct {
	EmployeeID generic.EmployeeID `db:"id"`
	Name       string             `db:"name"`
	MachineID  string             `db:"machine_id"`
	Subsidiary string             `db:"subsidiary"`
}

// Roster lists active employees, at most generic.MaxSearchRows.
type Roster interface {
	RosterEntries(ctx context.Context) ([]RosterEntry, error)
}

// RecordStore persists attendance records.
type RecordStore interface {
	HasRecord(ctx context.Context, employeeID generic.EmployeeID, date generic.Date) (bool, error)
	SaveRecord(ctx context.Context, r Record) error
}

// FileLoader resolves a file reference to its content.
type FileLoader interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// Compensator absorbs a deficit. *compensation.Cascade implements it.
type Compensator interface {
	Apply(ctx context.Context, d compensation.Deficit) (compensation.Outcome, error)
}

// =============================================================================
// SHEET
// =============================================================================

type SheetMode string

const (
	SheetDaily   SheetMode = "daily"
	SheetMonthly SheetMode = "monthly"
)

// Sheet identifies one export and its period.
type Sheet struct {
	ID      string       `json:"id"`
	FileRef string       `json:"file"`
	Mode    SheetMode    `json:"mode"`
	Date    generic.Date `json:"date,omitempty"` // daily mode
	Year    int          `json:"year,omitempty"` // monthly mode
	Month   time.Month   `json:"month,omitempty"`
}

// SheetReport summarizes a processed sheet.
type SheetReport struct {
	SheetID     string    `json:"sheet_id"`
	Mode        SheetMode `json:"mode"`
	Period      string    `json:"period"`
	Notes       []string  `json:"notes"`
	Created     int       `json:"created"`
	Skipped     int       `json:"skipped"`
	Absent      int       `json:"absent"`
	Deficits    int       `json:"deficits"`
	Permissions int       `json:"permissions"`
	Failed      int       `json:"failed"`
	Errors      []string  `json:"errors,omitempty"`
}

// FormattedNotes renders the sheet notes as bullet lines.
func (r *SheetReport) FormattedNotes() string { return FormatNotes(r.Notes) }

// SheetProcessor runs sheets end to end.
type SheetProcessor struct {
	Reconciler *Reconciler
	Accountant *Accountant
	Cascade    Compensator // nil disables deficit absorption
	Roster     Roster
	Records    RecordStore
	Files      FileLoader
	Holidays   generic.HolidayCalendar
	Weekend    generic.Weekend
	Audit      generic.AuditLog
	// IgnoreSeconds forces the seconds field of stored durations to "00".
	IgnoreSeconds bool
	Log           *logger.Logger
}

// Process runs one sheet. The returned error joins every per-employee
// failure; the report is returned even when it is non-nil.
func (p *SheetProcessor) Process(ctx context.Context, sheet Sheet) (*SheetReport, error) {
	if sheet.ID == "" {
		sheet.ID = uuid.NewString()
	}
	log := logger.OrNop(p.Log).WithComponent("sheet").WithRunID(sheet.ID)
	report := &SheetReport{SheetID: sheet.ID, Mode: sheet.Mode}

	days, byEmployee, notes, err := p.load(ctx, sheet)
	if err != nil {
		return report, err
	}
	report.Notes = notes
	report.Period = fmt.Sprintf("%s..%s", days[0], days[len(days)-1])

	roster, err := p.Roster.RosterEntries(ctx)
	if err != nil {
		return report, fmt.Errorf("load roster: %w", err)
	}

	var errs []error
	for _, emp := range roster {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if emp.MachineID == "" {
			report.Notes = append(report.Notes, fmt.Sprintf("%q doesn't have a fingerprint machine ID.", emp.Name))
			continue
		}
		punches, present := byEmployee[emp.MachineID]
		if !present && sheet.Mode == SheetMonthly {
			report.Notes = append(report.Notes, fmt.Sprintf("%q doesn't have attendance records.", emp.Name))
			continue
		}

		if err := p.processEmployee(ctx, sheet, emp, days, punches, report); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, err.Error())
			errs = append(errs, err)
			log.Error().Err(err).Str("employee_id", emp.EmployeeID.String()).Msg("employee attendance failed")
			p.audit(ctx, generic.AuditEntry{
				RunID:      sheet.ID,
				Action:     generic.AuditEmployeeFailed,
				EmployeeID: emp.EmployeeID,
				Message:    err.Error(),
			})
		}
	}

	p.audit(ctx, generic.AuditEntry{
		RunID:   sheet.ID,
		Action:  generic.AuditSheetProcessed,
		Message: report.FormattedNotes(),
		Payload: map[string]any{
			"created":     report.Created,
			"skipped":     report.Skipped,
			"failed":      report.Failed,
			"permissions": report.Permissions,
		},
	})
	log.Info().
		Int("created", report.Created).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int("notes", len(report.Notes)).
		Msg("sheet processed")

	return report, errors.Join(errs...)
}

// load resolves the sheet's days and reconciled punches keyed by machine ID.
func (p *SheetProcessor) load(ctx context.Context, sheet Sheet) ([]generic.Date, map[string]map[generic.Date]*DayAttendance, []string, error) {
	var days []generic.Date
	switch sheet.Mode {
	case SheetDaily:
		if sheet.Date.IsZero() {
			return nil, nil, nil, fmt.Errorf("%w: daily sheet without a date", generic.ErrInvalidPeriod)
		}
		days = []generic.Date{sheet.Date}
	case SheetMonthly:
		if sheet.Year == 0 || sheet.Month < time.January || sheet.Month > time.December {
			return nil, nil, nil, fmt.Errorf("%w: monthly sheet needs year and month", generic.ErrInvalidPeriod)
		}
		wd, err := generic.WorkingDays(ctx, p.Holidays, sheet.Year, sheet.Month, p.Weekend)
		if err != nil {
			return nil, nil, nil, err
		}
		days = wd
	default:
		return nil, nil, nil, fmt.Errorf("%w: unknown sheet mode %q", generic.ErrInvalidPeriod, sheet.Mode)
	}
	if len(days) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: no working days in %d-%02d", generic.ErrInvalidPeriod, sheet.Year, sheet.Month)
	}

	f, err := p.Files.Open(ctx, sheet.FileRef)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open sheet file %q: %w", sheet.FileRef, err)
	}
	defer f.Close()

	if sheet.Mode == SheetDaily {
		res, err := p.Reconciler.ReconcileDay(f, sheet.Date)
		if err != nil {
			return nil, nil, nil, err
		}
		byEmployee := make(map[string]map[generic.Date]*DayAttendance, len(res.Days))
		for key, d := range res.Days {
			byEmployee[key] = map[generic.Date]*DayAttendance{sheet.Date: d}
		}
		return days, byEmployee, res.Notes, nil
	}

	res, err := p.Reconciler.ReconcileMonth(f, sheet.Year, sheet.Month)
	if err != nil {
		return nil, nil, nil, err
	}
	return days, res.Days, res.Notes, nil
}

func (p *SheetProcessor) processEmployee(ctx context.Context, sheet Sheet, emp RosterEntry, days []generic.Date, punches map[generic.Date]*DayAttendance, report *SheetReport) error {
	for _, date := range days {
		exists, err := p.Records.HasRecord(ctx, emp.EmployeeID, date)
		if err != nil {
			return fmt.Errorf("employee %s on %s: %w", emp.EmployeeID, date, err)
		}
		if exists {
			report.Skipped++
			continue
		}

		day, ok := punches[date]
		if !ok {
			day = AbsentDay(emp.MachineID, emp.Name, date)
			report.Absent++
		}
		result := p.Accountant.Evaluate(day)

		rec := Record{
			ID:           uuid.NewString(),
			EmployeeID:   emp.EmployeeID,
			EmployeeName: emp.Name,
			MachineID:    emp.MachineID,
			Date:         date,
			CheckIn:      day.CheckIn,
			CheckOut:     day.CheckOut,
			Notes:        FormatNotes(result.Notes),
			SheetID:      sheet.ID,
			CreatedAt:    time.Now().UTC(),
		}
		if result.Worked != nil {
			rec.WorkHours = result.Worked.Format(p.IgnoreSeconds)
		}

		if result.Delta != nil {
			overtime := *result.Delta
			if result.IsDeficit() && p.Cascade != nil {
				report.Deficits++
				out, err := p.Cascade.Apply(ctx, compensation.Deficit{
					EmployeeID: emp.EmployeeID,
					Subsidiary: emp.Subsidiary,
					Date:       date,
					Delta:      overtime,
				})
				if err != nil {
					return fmt.Errorf("employee %s on %s: %w", emp.EmployeeID, date, err)
				}
				if out.Permission != nil {
					report.Permissions++
					p.audit(ctx, generic.AuditEntry{
						RunID:      sheet.ID,
						Action:     generic.AuditPermissionGrant,
						EmployeeID: emp.EmployeeID,
						Message:    out.Permission.PeriodText,
						Payload: map[string]any{
							"date":              date.String(),
							"granted_minutes":   out.Permission.GrantedMinutes,
							"remaining_minutes": out.Permission.RemainingMinutes,
						},
					})
				}
				overtime = out.Residual
			}
			rec.Overtime = overtime.Format(p.IgnoreSeconds)
		}

		if err := p.Records.SaveRecord(ctx, rec); err != nil {
			return fmt.Errorf("employee %s on %s: save record: %w", emp.EmployeeID, date, err)
		}
		report.Created++
	}
	return nil
}

func (p *SheetProcessor) audit(ctx context.Context, e generic.AuditEntry) {
	if p.Audit == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if err := p.Audit.Append(ctx, e); err != nil {
		logger.OrNop(p.Log).Warn().Err(err).Msg("audit append failed")
	}
}
