/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry `validate` tags checked by factory.Validate before a
  handler touches the store. Failures map to 400 with per-field details.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/validate.go: Tag checking and messages
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-ledger/attendance"
	"github.com/warp/attendance-ledger/compensation"
	"github.com/warp/attendance-ledger/generic"
	"github.com/warp/attendance-ledger/timeoff"
)

// =============================================================================
// SHEETS
// =============================================================================

// ProcessSheetRequest names a stored export and the period to process.
type ProcessSheetRequest struct {
	File  string `json:"file" validate:"required"`
	Mode  string `json:"mode" validate:"required,oneof=daily monthly"`
	Date  string `json:"date,omitempty" validate:"required_if=Mode daily,omitempty,datetime=2006-01-02"`
	Year  int    `json:"year,omitempty" validate:"required_if=Mode monthly,omitempty,gte=2000,lte=2100"`
	Month int    `json:"month,omitempty" validate:"required_if=Mode monthly,omitempty,min=1,max=12"`
}

func (r ProcessSheetRequest) toSheet() attendance.Sheet {
	sheet := attendance.Sheet{
		FileRef: r.File,
		Mode:    attendance.SheetMode(r.Mode),
		Year:    r.Year,
		Month:   time.Month(r.Month),
	}
	if r.Date != "" {
		sheet.Date, _ = generic.ParseDate(r.Date)
	}
	return sheet
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeRequest creates or replaces an employee.
type EmployeeRequest struct {
	ID              string `json:"id" validate:"required"`
	Name            string `json:"name" validate:"required"`
	MachineID       string `json:"machine_id"`
	Subsidiary      string `json:"subsidiary" validate:"required"`
	Department      string `json:"department"`
	Supervisor      string `json:"supervisor"`
	JobTitle        string `json:"job_title"`
	HireDate        string `json:"hire_date" validate:"omitempty,datetime=2006-01-02"`
	BirthDate       string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	ExperienceYears int    `json:"experience_years" validate:"gte=0"`
	Inactive        bool   `json:"inactive"`
}

func (r EmployeeRequest) toEmployee() timeoff.Employee {
	emp := timeoff.Employee{
		ID:              generic.EmployeeID(r.ID),
		Name:            r.Name,
		MachineID:       r.MachineID,
		Subsidiary:      r.Subsidiary,
		Department:      r.Department,
		Supervisor:      r.Supervisor,
		JobTitle:        r.JobTitle,
		ExperienceYears: r.ExperienceYears,
		Inactive:        r.Inactive,
	}
	emp.HireDate, _ = generic.ParseDate(r.HireDate)
	emp.BirthDate, _ = generic.ParseDate(r.BirthDate)
	return emp
}

// =============================================================================
// COMPENSATION
// =============================================================================

// MissionRequest records authorized off-site work. From and To are local
// clock times on Date.
type MissionRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	From       string `json:"from" validate:"required,datetime=15:04"`
	To         string `json:"to" validate:"required,datetime=15:04"`
}

// PermissionSummaryDTO is a month of permission grants for one employee.
type PermissionSummaryDTO struct {
	EmployeeID     string                          `json:"employee_id"`
	Month          string                          `json:"month"`
	GrantedMinutes int                             `json:"granted_minutes"`
	GrantedText    string                          `json:"granted_text"`
	Permissions    []compensation.PermissionRecord `json:"permissions"`
}

// =============================================================================
// LEAVE
// =============================================================================

// AccrueRequest runs the yearly accrual. AsOf defaults to today.
type AccrueRequest struct {
	AsOf string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}

// ResetTransferredRequest expires carried-over days for a year.
type ResetTransferredRequest struct {
	Year int `json:"year" validate:"required,gte=2000,lte=2100"`
}

// BalanceFieldsDTO carries the six day counters.
type BalanceFieldsDTO struct {
	Annual      decimal.Decimal `json:"annual"`
	Casual      decimal.Decimal `json:"casual"`
	Sick        decimal.Decimal `json:"sick"`
	Transferred decimal.Decimal `json:"transferred"`
	Replacement decimal.Decimal `json:"replacement"`
	Unpaid      decimal.Decimal `json:"unpaid"`
}

// LeaveRequestDTO is a leave request as sent by the host workflow.
type LeaveRequestDTO struct {
	ID               string           `json:"id" validate:"required"`
	EmployeeID       string           `json:"employee_id" validate:"required"`
	BalanceID        string           `json:"balance_id"`
	LeaveType        int              `json:"leave_type" validate:"required,gt=0"`
	Days             decimal.Decimal  `json:"days"`
	Status           string           `json:"status" validate:"required,oneof=pending pending_deduct_balance approved rejected"`
	End              string           `json:"end" validate:"required,datetime=2006-01-02"`
	Carried          BalanceFieldsDTO `json:"carried"`
	InitialSnapshot  string           `json:"initial_snapshot"`
	TransferApplied  bool             `json:"transfer_applied"`
	CasualFromAnnual bool             `json:"casual_from_annual"`
}

func (r LeaveRequestDTO) toRequest() timeoff.Request {
	end, _ := generic.ParseDate(r.End)
	return timeoff.Request{
		ID:           r.ID,
		EmployeeID:   generic.EmployeeID(r.EmployeeID),
		BalanceID:    r.BalanceID,
		LeaveTypeRef: r.LeaveType,
		Days:         r.Days,
		Status:       timeoff.RequestStatus(r.Status),
		End:          end,
		Carried: timeoff.BalanceFields{
			Annual:      r.Carried.Annual,
			Casual:      r.Carried.Casual,
			Sick:        r.Carried.Sick,
			Transferred: r.Carried.Transferred,
			Replacement: r.Carried.Replacement,
			Unpaid:      r.Carried.Unpaid,
		},
		InitialSnapshot:  r.InitialSnapshot,
		TransferApplied:  r.TransferApplied,
		CasualFromAnnual: r.CasualFromAnnual,
	}
}

// SaveLeaveRequest reports a saved request and its status before the save.
type SaveLeaveRequest struct {
	Request        LeaveRequestDTO `json:"request"`
	PreviousStatus string          `json:"previous_status" validate:"omitempty,oneof=pending pending_deduct_balance approved rejected"`
}

// DeleteLeaveRequest reports a deleted request.
type DeleteLeaveRequest struct {
	Request LeaveRequestDTO `json:"request"`
}

// LeaveEventResponse is the ledger's answer to a request event.
type LeaveEventResponse struct {
	Changed bool             `json:"changed"`
	Balance *timeoff.Balance `json:"balance,omitempty"`
}

// LeaveTypeRequest maps a numeric leave type to its kind.
type LeaveTypeRequest struct {
	ID   int    `json:"id" validate:"required,gt=0"`
	Name string `json:"name" validate:"required"`
	Kind string `json:"kind" validate:"required,oneof=annual casual sick transferred replacement unpaid"`
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// HolidayRequest creates a company holiday.
type HolidayRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Name      string `json:"name" validate:"required"`
	Recurring bool   `json:"recurring"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
