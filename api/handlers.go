/*
handlers.go - HTTP API handlers for the attendance and leave engine

PURPOSE:
  Exposes sheet processing, attendance records, the compensation data and
  the leave ledger over REST. Handles HTTP request/response and JSON
  serialization, and delegates to the domain packages.

ENDPOINTS:
  Sheets:
    POST   /api/sheets                     Process a stored punch export
    POST   /api/sheets/upload              Upload an export and process it
    GET    /api/sheets/{id}                Stored sheet report and notes

  Attendance:
    GET    /api/attendance                 Records in [from, to]
    GET    /api/attendance/export          Month of records as CSV

  Employees:
    GET    /api/employees                  List employees
    POST   /api/employees                  Create or replace an employee
    GET    /api/employees/{id}             Get one employee
    DELETE /api/employees/{id}             Delete an employee
    GET    /api/employees/{id}/balances/{year}  Leave balance for a year
    GET    /api/employees/{id}/permissions      Permission grants in a month

  Compensation:
    POST   /api/missions                   Record a mission

  Leave:
    POST   /api/leave/accrue               Create the year's balances
    POST   /api/leave/reset-transferred    Expire carried-over days
    GET    /api/leave/balances             Balances for a year
    POST   /api/leave/requests/saved       Apply a request save to its balance
    POST   /api/leave/requests/deleted     Apply a request delete to its balance
    POST   /api/leave/types                Map a leave type to its kind

  Rules, holidays, audit:
    GET    /api/rules                      Leave rules for a year
    POST   /api/rules                      Create rules from JSON
    GET    /api/holidays                   List holidays
    POST   /api/holidays                   Create a holiday
    DELETE /api/holidays/{id}              Delete a holiday
    GET    /api/audit                      Batch diagnostics

ERROR HANDLING:
  Errors are returned as JSON with an HTTP status derived from the
  generic error sentinels:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (stale version, duplicate)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Background accrual and reset
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/attendance-ledger/attendance"
	"github.com/warp/attendance-ledger/compensation"
	"github.com/warp/attendance-ledger/config"
	"github.com/warp/attendance-ledger/factory"
	"github.com/warp/attendance-ledger/generic"
	"github.com/warp/attendance-ledger/logger"
	"github.com/warp/attendance-ledger/store/files"
	"github.com/warp/attendance-ledger/store/sqlite"
	"github.com/warp/attendance-ledger/timeoff"
)

// maxUploadBytes bounds a multipart punch export upload.
const maxUploadBytes = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Files    *files.Dir
	Sheets   *attendance.SheetProcessor
	Accrual  *timeoff.Accrual
	Reset    *timeoff.TransferReset
	Ledger   *timeoff.Ledger
	Rules    *factory.RuleFactory
	Location *time.Location
	Log      *logger.Logger
}

// NewHandler wires the domain components over one store and file directory.
func NewHandler(store *sqlite.Store, dir *files.Dir, cfg *config.Config, log *logger.Logger) (*Handler, error) {
	loc, err := cfg.Attendance.Location()
	if err != nil {
		return nil, err
	}
	grace, err := cfg.Attendance.Grace()
	if err != nil {
		return nil, err
	}
	quota, err := cfg.Attendance.Quota()
	if err != nil {
		return nil, err
	}
	weekend, err := cfg.Attendance.WeekendDays()
	if err != nil {
		return nil, err
	}
	resetMonth, resetDay, err := cfg.Leave.ResetMonthDay()
	if err != nil {
		return nil, err
	}

	reconciler := attendance.NewReconciler(loc, log)
	reconciler.Columns = attendance.Columns{
		Name:      cfg.Attendance.NameHeader,
		MachineID: cfg.Attendance.MachineIDHeader,
		Time:      cfg.Attendance.TimeHeader,
		State:     cfg.Attendance.StateHeader,
	}
	reconciler.CheckInState = cfg.Attendance.CheckInState
	reconciler.CheckOutState = cfg.Attendance.CheckOutState

	cascade := compensation.NewCascade(store, store, store, log)
	cascade.HoursPerMonth = cfg.Leave.PermissionHoursPerMonth

	ledger := timeoff.NewLedger(store, store, log)
	ledger.ResetMonth = resetMonth
	ledger.ResetDay = resetDay
	ledger.Audit = store

	return &Handler{
		Store: store,
		Files: dir,
		Sheets: &attendance.SheetProcessor{
			Reconciler:    reconciler,
			Accountant:    attendance.NewAccountant(grace, quota),
			Cascade:       cascade,
			Roster:        store,
			Records:       store,
			Files:         dir,
			Holidays:      store,
			Weekend:       weekend,
			Audit:         store,
			IgnoreSeconds: cfg.Attendance.IgnoreSeconds,
			Log:           log,
		},
		Accrual: &timeoff.Accrual{
			Employees:           store,
			Rules:               store,
			Balances:            store,
			Audit:               store,
			IncrementExperience: cfg.Leave.IncrementExperience,
			Log:                 log,
		},
		Reset:    &timeoff.TransferReset{Balances: store, Audit: store, Log: log},
		Ledger:   ledger,
		Rules:    factory.NewRuleFactory(),
		Location: loc,
		Log:      log,
	}, nil
}

// Health reports whether the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

// =============================================================================
// SHEET HANDLERS
// =============================================================================

// ProcessSheet runs a sheet over an export already in the file directory.
func (h *Handler) ProcessSheet(w http.ResponseWriter, r *http.Request) {
	var req ProcessSheetRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.runSheet(w, r, req)
}

// UploadSheet stores a multipart "file" and processes it. The period comes
// from the form fields mode, date, year and month.
func (h *Handler) UploadSheet(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}
	year, _ := strconv.Atoi(r.FormValue("year"))
	month, _ := strconv.Atoi(r.FormValue("month"))
	req := ProcessSheetRequest{
		File:  "upload",
		Mode:  r.FormValue("mode"),
		Date:  r.FormValue("date"),
		Year:  year,
		Month: month,
	}
	if err := factory.Validate(req); err != nil {
		writeDomainError(w, "Invalid sheet", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file", err)
		return
	}
	defer file.Close()

	ref, err := h.Files.Save(r.Context(), strings.ToLower(filepath.Ext(header.Filename)), file)
	if err != nil {
		h.serverError(w, "Failed to store upload", err)
		return
	}
	req.File = ref
	h.runSheet(w, r, req)
}

func (h *Handler) runSheet(w http.ResponseWriter, r *http.Request, req ProcessSheetRequest) {
	sheet := req.toSheet()
	sheet.ID = uuid.NewString()

	report, err := h.Sheets.Process(r.Context(), sheet)
	if err != nil && report.Failed == 0 {
		writeDomainError(w, "Failed to process sheet", err)
		return
	}
	if err := h.Store.SaveSheetReport(r.Context(), report); err != nil {
		h.serverError(w, "Failed to save sheet report", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"file":   req.File,
		"report": report,
	})
}

// GetSheet returns a stored sheet report.
func (h *Handler) GetSheet(w http.ResponseWriter, r *http.Request) {
	report, err := h.Store.SheetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get sheet", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// ListAttendance returns records dated in [from, to], optionally for one
// employee. Both bounds default to today.
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	today := generic.Today(h.Location)
	from, err := queryDate(r, "from", today)
	if err != nil {
		writeDomainError(w, "Invalid from", err)
		return
	}
	to, err := queryDate(r, "to", today)
	if err != nil {
		writeDomainError(w, "Invalid to", err)
		return
	}
	period, err := generic.NewPeriod(from, to)
	if err != nil {
		writeDomainError(w, "Invalid period", err)
		return
	}

	var records []attendance.Record
	if id := r.URL.Query().Get("employee_id"); id != "" {
		records, err = h.Store.EmployeeRecords(r.Context(), generic.EmployeeID(id), period)
	} else {
		records, err = h.Store.Records(r.Context(), period)
	}
	if err != nil {
		h.serverError(w, "Failed to list attendance", err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// ExportAttendance writes a month of records as CSV.
func (h *Handler) ExportAttendance(w http.ResponseWriter, r *http.Request) {
	year, month, err := queryMonth(r, generic.Today(h.Location))
	if err != nil {
		writeDomainError(w, "Invalid month", err)
		return
	}
	records, err := h.Store.Records(r.Context(), generic.MonthPeriod(year, month))
	if err != nil {
		h.serverError(w, "Failed to load attendance", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance-%d-%02d.csv"`, year, month))
	if err := attendance.WriteCSV(w, records, h.Location); err != nil {
		logger.OrNop(h.Log).Error().Err(err).Msg("attendance export failed mid-stream")
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		h.serverError(w, "Failed to list employees", err)
		return
	}
	if employees == nil {
		employees = []timeoff.Employee{}
	}
	writeJSON(w, http.StatusOK, employees)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), generic.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// SaveEmployee creates or replaces an employee.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req EmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	emp := req.toEmployee()
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		h.serverError(w, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, emp)
}

// DeleteEmployee removes an employee.
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteEmployee(r.Context(), generic.EmployeeID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete employee", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// GetBalance returns an employee's balance for a year.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	bal, err := h.Store.BalanceFor(r.Context(), generic.EmployeeID(chi.URLParam(r, "id")), year)
	if err != nil {
		writeDomainError(w, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

// GetPermissions returns an employee's permission grants in a month.
func (h *Handler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	id := generic.EmployeeID(chi.URLParam(r, "id"))
	year, month, err := queryMonth(r, generic.Today(h.Location))
	if err != nil {
		writeDomainError(w, "Invalid month", err)
		return
	}
	perms, err := h.Store.Permissions(r.Context(), id, generic.MonthPeriod(year, month))
	if err != nil {
		h.serverError(w, "Failed to list permissions", err)
		return
	}

	total := 0
	for _, p := range perms {
		if p.Status == compensation.PermissionApproved {
			total += p.GrantedMinutes
		}
	}
	if perms == nil {
		perms = []compensation.PermissionRecord{}
	}
	writeJSON(w, http.StatusOK, PermissionSummaryDTO{
		EmployeeID:     id.String(),
		Month:          fmt.Sprintf("%d-%02d", year, month),
		GrantedMinutes: total,
		GrantedText:    generic.MinutesToText(total),
		Permissions:    perms,
	})
}

// =============================================================================
// COMPENSATION HANDLERS
// =============================================================================

// CreateMission records a mission for one day.
func (h *Handler) CreateMission(w http.ResponseWriter, r *http.Request) {
	var req MissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeDomainError(w, "Invalid date", validationErr(err))
		return
	}
	from, err := generic.ParseClock(req.From)
	if err != nil {
		writeDomainError(w, "Invalid from", validationErr(err))
		return
	}
	to, err := generic.ParseClock(req.To)
	if err != nil {
		writeDomainError(w, "Invalid to", validationErr(err))
		return
	}

	m := compensation.Mission{
		ID:         uuid.NewString(),
		EmployeeID: generic.EmployeeID(req.EmployeeID),
		Date:       date,
		From:       from.On(date, h.Location),
		To:         to.On(date, h.Location),
	}
	if err := h.Store.SaveMission(r.Context(), m); err != nil {
		writeDomainError(w, "Failed to save mission", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// Accrue creates the balances of the as-of year.
func (h *Handler) Accrue(w http.ResponseWriter, r *http.Request) {
	var req AccrueRequest
	if !h.decode(w, r, &req) {
		return
	}
	asOf := generic.Today(h.Location)
	if req.AsOf != "" {
		asOf, _ = generic.ParseDate(req.AsOf)
	}

	report, err := h.Accrual.Run(r.Context(), asOf)
	if err != nil && report.Failed == 0 {
		writeDomainError(w, "Accrual failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ResetTransferred zeroes the transferred days of a year.
func (h *Handler) ResetTransferred(w http.ResponseWriter, r *http.Request) {
	var req ResetTransferredRequest
	if !h.decode(w, r, &req) {
		return
	}
	report, err := h.Reset.Run(r.Context(), req.Year)
	if err != nil && report.Failed == 0 {
		writeDomainError(w, "Reset failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListBalances returns every balance of a year.
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year", generic.Today(h.Location).Year)
	if err != nil {
		writeDomainError(w, "Invalid year", err)
		return
	}
	balances, err := h.Store.BalancesForYear(r.Context(), year)
	if err != nil {
		h.serverError(w, "Failed to list balances", err)
		return
	}
	if balances == nil {
		balances = []timeoff.Balance{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "balances": balances})
}

// LeaveRequestSaved applies a request save to its balance.
func (h *Handler) LeaveRequestSaved(w http.ResponseWriter, r *http.Request) {
	var req SaveLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	bal, err := h.Ledger.OnSave(r.Context(), req.Request.toRequest(), timeoff.RequestStatus(req.PreviousStatus))
	if err != nil {
		writeDomainError(w, "Failed to apply request", err)
		return
	}
	writeJSON(w, http.StatusOK, LeaveEventResponse{Changed: bal != nil, Balance: bal})
}

// LeaveRequestDeleted applies a request delete to its balance.
func (h *Handler) LeaveRequestDeleted(w http.ResponseWriter, r *http.Request) {
	var req DeleteLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	bal, err := h.Ledger.OnDelete(r.Context(), req.Request.toRequest())
	if err != nil {
		writeDomainError(w, "Failed to apply request", err)
		return
	}
	writeJSON(w, http.StatusOK, LeaveEventResponse{Changed: bal != nil, Balance: bal})
}

// SaveLeaveType maps a numeric leave type to its kind.
func (h *Handler) SaveLeaveType(w http.ResponseWriter, r *http.Request) {
	var req LeaveTypeRequest
	if !h.decode(w, r, &req) {
		return
	}
	kind, err := timeoff.ParseLeaveKind(req.Kind)
	if err != nil {
		writeDomainError(w, "Invalid kind", err)
		return
	}
	lt := sqlite.LeaveType{ID: req.ID, Name: req.Name, Kind: kind}
	if err := h.Store.SaveLeaveType(r.Context(), lt); err != nil {
		h.serverError(w, "Failed to save leave type", err)
		return
	}
	writeJSON(w, http.StatusCreated, lt)
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// ListRules returns the leave rules of a year.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year", generic.Today(h.Location).Year)
	if err != nil {
		writeDomainError(w, "Invalid year", err)
		return
	}
	rules, err := h.Store.Rules(r.Context(), year)
	if err != nil {
		h.serverError(w, "Failed to list rules", err)
		return
	}
	dtos := make([]factory.RuleJSON, 0, len(rules))
	for _, rule := range rules {
		dtos = append(dtos, h.Rules.ToJSON(rule))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": dtos})
}

// CreateRules stores one rule document or an array of them.
func (h *Handler) CreateRules(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var rules []timeoff.LeaveRule
	if trimmed := strings.TrimSpace(string(body)); strings.HasPrefix(trimmed, "[") {
		rules, err = h.Rules.ParseRules(trimmed)
	} else {
		var rule *timeoff.LeaveRule
		if rule, err = h.Rules.ParseRule(trimmed); err == nil {
			rules = []timeoff.LeaveRule{*rule}
		}
	}
	if err != nil {
		writeDomainError(w, "Invalid rule", validationErr(err))
		return
	}

	for _, rule := range rules {
		if err := h.Store.SaveRule(r.Context(), rule); err != nil {
			h.serverError(w, "Failed to save rule", err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "created", "count": len(rules)})
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns all holidays.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		h.serverError(w, "Failed to get holidays", err)
		return
	}
	if holidays == nil {
		holidays = []generic.Holiday{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"holidays": holidays})
}

// CreateHoliday creates a new holiday.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, _ := generic.ParseDate(req.Date)
	holiday := generic.Holiday{
		ID:        uuid.NewString(),
		Date:      date,
		Name:      req.Name,
		Recurring: req.Recurring,
	}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		writeDomainError(w, "Failed to create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, holiday)
}

// DeleteHoliday deletes a holiday.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete holiday", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// ListAudit returns diagnostics filtered by run, employee and action.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter generic.AuditFilter
	if v := q.Get("run_id"); v != "" {
		filter.RunID = &v
	}
	if v := q.Get("employee_id"); v != "" {
		id := generic.EmployeeID(v)
		filter.EmployeeID = &id
	}
	for _, a := range q["action"] {
		filter.Actions = append(filter.Actions, generic.AuditAction(a))
	}

	entries, err := h.Store.Query(r.Context(), filter)
	if err != nil {
		h.serverError(w, "Failed to query audit log", err)
		return
	}
	if entries == nil {
		entries = []generic.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into v and validates it. It writes the error
// response and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := factory.Validate(v); err != nil {
		writeDomainError(w, "Invalid request", err)
		return false
	}
	return true
}

func (h *Handler) serverError(w http.ResponseWriter, message string, err error) {
	logger.OrNop(h.Log).Error().Err(err).Msg(message)
	writeError(w, http.StatusInternalServerError, message, err)
}

// writeDomainError picks the status from the error's sentinel.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	var verr *factory.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Details: verr.Details})
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// validationErr marks a parse failure as client input.
func validationErr(err error) error {
	if errors.Is(err, generic.ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %v", generic.ErrValidation, err)
}

func queryDate(r *http.Request, name string, def generic.Date) (generic.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	d, err := generic.ParseDate(v)
	if err != nil {
		return generic.Date{}, validationErr(err)
	}
	return d, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, validationErr(fmt.Errorf("%s: %w", name, err))
	}
	return n, nil
}

// queryMonth reads year and month, defaulting to the month of today.
func queryMonth(r *http.Request, today generic.Date) (int, time.Month, error) {
	year, err := queryInt(r, "year", today.Year)
	if err != nil {
		return 0, 0, err
	}
	month, err := queryInt(r, "month", int(today.Month))
	if err != nil {
		return 0, 0, err
	}
	if month < 1 || month > 12 {
		return 0, 0, validationErr(fmt.Errorf("month %d out of range", month))
	}
	return year, time.Month(month), nil
}
