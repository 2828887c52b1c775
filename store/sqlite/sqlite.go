/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every record port of the attendance and leave engine using
  SQLite through sqlx. Struct fields map to columns by their `db` tags;
  dates are stored as ISO text and day counters as decimal text.

INTERFACES IMPLEMENTED:
  attendance.Roster, attendance.RecordStore:   employees, attendance_records
  compensation.MissionSource:                  missions
  compensation.PermissionStore, QuotaSource:   permissions, leave_rules
  timeoff.EmployeeSource, RuleSource:          employees, leave_rules
  timeoff.BalanceStore:                        leave_balances
  timeoff.KindResolver:                        leave_types
  generic.HolidayCalendar:                     holidays
  generic.AuditLog:                            audit_log

KEY TABLES:
  attendance_records: One row per (employee, day). UNIQUE(employee_id, date)
  leave_balances:     One row per (employee, year). UNIQUE(employee_id, year)
                      with a version column for optimistic locking
  permissions:        Append-only quota grants
  sheet_runs:         Processed sheets and their notes

SEARCH LIMIT:
  Listing queries return at most generic.MaxSearchRows rows.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single connection so that
  ":memory:" databases are shared by every call.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). NewWithDB skips migration so tests
  can drive a mocked connection.

SEE ALSO:
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/attendance-ledger/attendance"
	"github.com/warp/attendance-ledger/compensation"
	"github.com/warp/attendance-ledger/generic"
	"github.com/warp/attendance-ledger/timeoff"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sqlx.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewWithDB wraps an open connection without migrating it.
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		machine_id TEXT NOT NULL DEFAULT '',
		subsidiary TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		supervisor TEXT NOT NULL DEFAULT '',
		job_title TEXT NOT NULL DEFAULT '',
		hire_date TEXT,
		birth_date TEXT,
		experience_years INTEGER NOT NULL DEFAULT 0,
		inactive BOOLEAN NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_employees_machine_id ON employees(machine_id);

	CREATE TABLE IF NOT EXISTS attendance_records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		employee_name TEXT NOT NULL,
		machine_id TEXT NOT NULL,
		date TEXT NOT NULL,
		check_in TIMESTAMP,
		check_out TIMESTAMP,
		work_hours TEXT NOT NULL DEFAULT '',
		overtime TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		sheet_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		UNIQUE(employee_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance_records(date);

	CREATE TABLE IF NOT EXISTS sheet_runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		period TEXT NOT NULL,
		notes_json TEXT NOT NULL,
		created INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		permissions INTEGER NOT NULL,
		processed_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS missions (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		from_time TIMESTAMP NOT NULL,
		to_time TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_missions_employee_date ON missions(employee_id, date);

	CREATE TABLE IF NOT EXISTS permissions (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		subsidiary TEXT NOT NULL,
		year INTEGER NOT NULL,
		date TEXT NOT NULL,
		granted_minutes INTEGER NOT NULL,
		remaining_minutes INTEGER NOT NULL,
		period_text TEXT NOT NULL,
		status TEXT NOT NULL,
		memo TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_permissions_employee_date ON permissions(employee_id, date);

	CREATE TABLE IF NOT EXISTS leave_rules (
		subsidiary TEXT NOT NULL,
		year INTEGER NOT NULL,
		casual_days TEXT NOT NULL,
		sick_days TEXT NOT NULL,
		annual_normal TEXT NOT NULL,
		annual_experienced TEXT NOT NULL,
		annual_elderly TEXT NOT NULL,
		elderly_age INTEGER NOT NULL,
		experience_from_hire_date BOOLEAN NOT NULL,
		transfer_enabled BOOLEAN NOT NULL,
		probation_months INTEGER NOT NULL,
		permission_hours INTEGER NOT NULL,
		casual_as_annual BOOLEAN NOT NULL,
		PRIMARY KEY (subsidiary, year)
	);

	CREATE TABLE IF NOT EXISTS leave_balances (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		subsidiary TEXT NOT NULL,
		department TEXT NOT NULL,
		supervisor TEXT NOT NULL,
		job_title TEXT NOT NULL,
		annual TEXT NOT NULL,
		casual TEXT NOT NULL,
		sick TEXT NOT NULL,
		transferred TEXT NOT NULL,
		replacement TEXT NOT NULL,
		unpaid TEXT NOT NULL,
		standard_annual TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(employee_id, year)
	);

	CREATE INDEX IF NOT EXISTS idx_balances_year ON leave_balances(year);

	CREATE TABLE IF NOT EXISTS leave_types (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT 0,
		UNIQUE(date, name)
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		run_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		employee_id TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_run ON audit_log(run_id);
	CREATE INDEX IF NOT EXISTS idx_audit_employee ON audit_log(employee_id, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEES (attendance.Roster, timeoff.EmployeeSource)
// =============================================================================

const employeeColumns = `id, name, machine_id, subsidiary, department, supervisor, job_title,
	hire_date, birth_date, experience_years, inactive`

// SaveEmployee inserts or replaces an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp timeoff.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES (:id, :name, :machine_id, :subsidiary, :department, :supervisor, :job_title,
			:hire_date, :birth_date, :experience_years, :inactive)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			machine_id = excluded.machine_id,
			subsidiary = excluded.subsidiary,
			department = excluded.department,
			supervisor = excluded.supervisor,
			job_title = excluded.job_title,
			hire_date = excluded.hire_date,
			birth_date = excluded.birth_date,
			experience_years = excluded.experience_years,
			inactive = excluded.inactive
	`
	if _, err := s.db.NamedExecContext(ctx, query, emp); err != nil {
		return fmt.Errorf("save employee %s: %w", emp.ID, err)
	}
	return nil
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*timeoff.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var emp timeoff.Employee
	err := s.db.GetContext(ctx, &emp, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("employee %s: %w", id, generic.ErrEntityNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load employee %s: %w", id, err)
	}
	return &emp, nil
}

// ListEmployees returns employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]timeoff.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var employees []timeoff.Employee
	err := s.db.SelectContext(ctx, &employees,
		"SELECT "+employeeColumns+" FROM employees ORDER BY name LIMIT ?", generic.MaxSearchRows)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return employees, nil
}

// DeleteEmployee removes an employee.
func (s *Store) DeleteEmployee(ctx context.Context, id generic.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM employees WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete employee %s: %w", id, err)
	}
	return expectAffected(res, fmt.Sprintf("employee %s", id))
}

// RosterEntries lists active employees.
func (s *Store) RosterEntries(ctx context.Context) ([]attendance.RosterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []attendance.RosterEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, name, machine_id, subsidiary
		FROM employees
		WHERE inactive = 0
		ORDER BY id
		LIMIT ?`, generic.MaxSearchRows)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return entries, nil
}

// AccrualCandidates lists active employees with hire and birth dates.
func (s *Store) AccrualCandidates(ctx context.Context) ([]timeoff.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var employees []timeoff.Employee
	err := s.db.SelectContext(ctx, &employees, `
		SELECT `+employeeColumns+`
		FROM employees
		WHERE inactive = 0 AND hire_date IS NOT NULL AND birth_date IS NOT NULL
		ORDER BY id
		LIMIT ?`, generic.MaxSearchRows)
	if err != nil {
		return nil, fmt.Errorf("load accrual candidates: %w", err)
	}
	return employees, nil
}

// IncrementExperience adds one year of recorded experience.
func (s *Store) IncrementExperience(ctx context.Context, id generic.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE employees SET experience_years = experience_years + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("increment experience %s: %w", id, err)
	}
	return expectAffected(res, fmt.Sprintf("employee %s", id))
}

// =============================================================================
// ATTENDANCE RECORDS (attendance.RecordStore)
// =============================================================================

const recordColumns = `id, employee_id, employee_name, machine_id, date, check_in, check_out,
	work_hours, overtime, notes, sheet_id, created_at`

// HasRecord reports whether a record exists for the employee and day.
func (s *Store) HasRecord(ctx context.Context, employeeID generic.EmployeeID, date generic.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM attendance_records WHERE employee_id = ? AND date = ?", employeeID, date)
	if err != nil {
		return false, fmt.Errorf("check attendance %s on %s: %w", employeeID, date, err)
	}
	return n > 0, nil
}

// SaveRecord inserts a record. A second record for the same day fails
// with generic.ErrDuplicateRecord.
func (s *Store) SaveRecord(ctx context.Context, r attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO attendance_records (` + recordColumns + `)
		VALUES (:id, :employee_id, :employee_name, :machine_id, :date, :check_in, :check_out,
			:work_hours, :overtime, :notes, :sheet_id, :created_at)
	`
	if _, err := s.db.NamedExecContext(ctx, query, r); err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("attendance %s on %s: %w", r.EmployeeID, r.Date, generic.ErrDuplicateRecord)
		}
		return fmt.Errorf("save attendance %s on %s: %w", r.EmployeeID, r.Date, err)
	}
	return nil
}

// Records returns the records dated inside the period, ordered by date
// then employee. Exports read the whole period, so no row cap applies.
func (s *Store) Records(ctx context.Context, period generic.Period) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []attendance.Record
	err := s.db.SelectContext(ctx, &records, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE date BETWEEN ? AND ?
		ORDER BY date, employee_id`, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("load attendance for %s: %w", period, err)
	}
	return records, nil
}

// EmployeeRecords returns one employee's records inside the period.
func (s *Store) EmployeeRecords(ctx context.Context, employeeID generic.EmployeeID, period generic.Period) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []attendance.Record
	err := s.db.SelectContext(ctx, &records, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE employee_id = ? AND date BETWEEN ? AND ?
		ORDER BY date
		LIMIT ?`, employeeID, period.Start, period.End, generic.MaxSearchRows)
	if err != nil {
		return nil, fmt.Errorf("load attendance %s for %s: %w", employeeID, period, err)
	}
	return records, nil
}

// =============================================================================
// SHEET RUNS
// =============================================================================

type sheetRunRow struct {
	ID          string    `db:"id"`
	Mode        string    `db:"mode"`
	Period      string    `db:"period"`
	NotesJSON   string    `db:"notes_json"`
	Created     int       `db:"created"`
	Skipped     int       `db:"skipped"`
	Failed      int       `db:"failed"`
	Permissions int       `db:"permissions"`
	ProcessedAt time.Time `db:"processed_at"`
}

// SaveSheetReport stores a processed sheet and its notes. Re-running a
// sheet replaces its report.
func (s *Store) SaveSheetReport(ctx context.Context, r *attendance.SheetReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := json.Marshal(r.Notes)
	if err != nil {
		return fmt.Errorf("encode sheet notes: %w", err)
	}
	row := sheetRunRow{
		ID: r.SheetID, Mode: string(r.Mode), Period: r.Period, NotesJSON: string(notes),
		Created: r.Created, Skipped: r.Skipped, Failed: r.Failed, Permissions: r.Permissions,
		ProcessedAt: time.Now().UTC(),
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO sheet_runs
			(id, mode, period, notes_json, created, skipped, failed, permissions, processed_at)
		VALUES
			(:id, :mode, :period, :notes_json, :created, :skipped, :failed, :permissions, :processed_at)
	`, row)
	if err != nil {
		return fmt.Errorf("save sheet run %s: %w", r.SheetID, err)
	}
	return nil
}

// SheetReport loads a stored sheet run.
func (s *Store) SheetReport(ctx context.Context, id string) (*attendance.SheetReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row sheetRunRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM sheet_runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sheet run %s: %w", id, generic.ErrEntityNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load sheet run %s: %w", id, err)
	}

	report := &attendance.SheetReport{
		SheetID: row.ID, Mode: attendance.SheetMode(row.Mode), Period: row.Period,
		Created: row.Created, Skipped: row.Skipped, Failed: row.Failed, Permissions: row.Permissions,
	}
	if err := json.Unmarshal([]byte(row.NotesJSON), &report.Notes); err != nil {
		return nil, fmt.Errorf("decode sheet notes %s: %w", id, err)
	}
	return report, nil
}

// =============================================================================
// MISSIONS AND PERMISSIONS (compensation ports)
// =============================================================================

// SaveMission inserts or replaces a mission.
func (s *Store) SaveMission(ctx context.Context, m compensation.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO missions (id, employee_id, date, from_time, to_time)
		VALUES (:id, :employee_id, :date, :from_time, :to_time)
	`, m)
	if err != nil {
		return fmt.Errorf("save mission %s: %w", m.ID, err)
	}
	return nil
}

func (s *Store) MissionsOn(ctx context.Context, employeeID generic.EmployeeID, date generic.Date) ([]compensation.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var missions []compensation.Mission
	err := s.db.SelectContext(ctx, &missions, `
		SELECT id, employee_id, date, from_time, to_time
		FROM missions
		WHERE employee_id = ? AND date = ?
		ORDER BY from_time
		LIMIT ?`, employeeID, date, generic.MaxSearchRows)
	if err != nil {
		return nil, fmt.Errorf("load missions %s on %s: %w", employeeID, date, err)
	}
	return missions, nil
}

const permissionColumns = `id, employee_id, subsidiary, year, date, granted_minutes,
	remaining_minutes, period_text, status, memo, created_at`

func (s *Store) CreatePermission(ctx context.Context, p compensation.PermissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO permissions (`+permissionColumns+`)
		VALUES (:id, :employee_id, :subsidiary, :year, :date, :granted_minutes,
			:remaining_minutes, :period_text, :status, :memo, :created_at)
	`, p)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("permission %s: %w", p.ID, generic.ErrDuplicateRecord)
		}
		return fmt.Errorf("create permission for %s: %w", p.EmployeeID, err)
	}
	return nil
}

func (s *Store) ApprovedPermissions(ctx context.Context, employeeID generic.EmployeeID, period generic.Period) ([]compensation.PermissionRecord, error) {
	return s.permissions(ctx, employeeID, period, compensation.PermissionApproved)
}

// Permissions lists an employee's permissions of any status inside the period.
func (s *Store) Permissions(ctx context.Context, employeeID generic.EmployeeID, period generic.Period) ([]compensation.PermissionRecord, error) {
	return s.permissions(ctx, employeeID, period, "")
}

func (s *Store) permissions(ctx context.Context, employeeID generic.EmployeeID, period generic.Period, status compensation.PermissionStatus) ([]compensation.PermissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + permissionColumns + `
		FROM permissions
		WHERE employee_id = ? AND date BETWEEN ? AND ?`
	args := []any{employeeID, period.Start, period.End}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY date, created_at LIMIT ?"
	args = append(args, generic.MaxSearchRows)

	var perms []compensation.PermissionRecord
	if err := s.db.SelectContext(ctx, &perms, query, args...); err != nil {
		return nil, fmt.Errorf("load permissions %s for %s: %w", employeeID, period, err)
	}
	return perms, nil
}

// PermissionHours reads the monthly permission hours from the leave rule.
func (s *Store) PermissionHours(ctx context.Context, subsidiary string, year int) (int, bool, error) {
	rule, err := s.Rule(ctx, subsidiary, year)
	if errors.Is(err, generic.ErrRuleNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rule.PermissionHoursPerMonth, true, nil
}

// =============================================================================
// LEAVE RULES (timeoff.RuleSource)
// =============================================================================

const ruleColumns = `subsidiary, year, casual_days, sick_days, annual_normal, annual_experienced,
	annual_elderly, elderly_age, experience_from_hire_date, transfer_enabled,
	probation_months, permission_hours, casual_as_annual`

// SaveRule inserts or replaces a subsidiary's rule for a year.
func (s *Store) SaveRule(ctx context.Context, r timeoff.LeaveRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO leave_rules (`+ruleColumns+`)
		VALUES (:subsidiary, :year, :casual_days, :sick_days, :annual_normal, :annual_experienced,
			:annual_elderly, :elderly_age, :experience_from_hire_date, :transfer_enabled,
			:probation_months, :permission_hours, :casual_as_annual)
	`, r)
	if err != nil {
		return fmt.Errorf("save rule %s/%d: %w", r.Subsidiary, r.Year, err)
	}
	return nil
}

func (s *Store) Rule(ctx context.Context, subsidiary string, year int) (*timeoff.LeaveRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r timeoff.LeaveRule
	err := s.db.GetContext(ctx, &r,
		"SELECT "+ruleColumns+" FROM leave_rules WHERE subsidiary = ? AND year = ?", subsidiary, year)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.MissingRuleError{Subsidiary: subsidiary, Year: year}
	}
	if err != nil {
		return nil, fmt.Errorf("load rule %s/%d: %w", subsidiary, year, err)
	}
	return &r, nil
}

// Rules lists the rules for a year.
func (s *Store) Rules(ctx context.Context, year int) ([]timeoff.LeaveRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rules []timeoff.LeaveRule
	err := s.db.SelectContext(ctx, &rules,
		"SELECT "+ruleColumns+" FROM leave_rules WHERE year = ? ORDER BY subsidiary LIMIT ?",
		year, generic.MaxSearchRows)
	if err != nil {
		return nil, fmt.Errorf("list rules %d: %w", year, err)
	}
	return rules, nil
}

// =============================================================================
// LEAVE BALANCES (timeoff.BalanceStore)
// =============================================================================

const balanceColumns = `id, employee_id, year, subsidiary, department, supervisor, job_title,
	annual, casual, sick, transferred, replacement, unpaid, standard_annual,
	version, created_at, updated_at`

func (s *Store) BalanceFor(ctx context.Context, employeeID generic.EmployeeID, year int) (*timeoff.Balance, error) {
	return s.getBalance(ctx, "employee_id = ? AND year = ?", employeeID, year)
}

func (s *Store) Balance(ctx context.Context, id string) (*timeoff.Balance, error) {
	return s.getBalance(ctx, "id = ?", id)
}

func (s *Store) getBalance(ctx context.Context, where string, args ...any) (*timeoff.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b timeoff.Balance
	err := s.db.GetContext(ctx, &b, "SELECT "+balanceColumns+" FROM leave_balances WHERE "+where, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("balance %v: %w", args, generic.ErrEntityNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load balance %v: %w", args, err)
	}
	return &b, nil
}

func (s *Store) BalancesForYear(ctx context.Context, year int) ([]timeoff.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var balances []timeoff.Balance
	err := s.db.SelectContext(ctx, &balances,
		"SELECT "+balanceColumns+" FROM leave_balances WHERE year = ? ORDER BY employee_id LIMIT ?",
		year, generic.MaxSearchRows)
	if err != nil {
		return nil, fmt.Errorf("list balances %d: %w", year, err)
	}
	return balances, nil
}

func (s *Store) CreateBalance(ctx context.Context, b *timeoff.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.Version == 0 {
		b.Version = 1
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO leave_balances (`+balanceColumns+`)
		VALUES (:id, :employee_id, :year, :subsidiary, :department, :supervisor, :job_title,
			:annual, :casual, :sick, :transferred, :replacement, :unpaid, :standard_annual,
			:version, :created_at, :updated_at)
	`, b)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("balance %s/%d: %w", b.EmployeeID, b.Year, generic.ErrDuplicateRecord)
		}
		return fmt.Errorf("create balance %s/%d: %w", b.EmployeeID, b.Year, err)
	}
	return nil
}

// UpdateBalance saves the counters if b.Version is still current, then
// bumps b.Version.
func (s *Store) UpdateBalance(ctx context.Context, b *timeoff.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now().UTC()
	}
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE leave_balances SET
			annual = :annual,
			casual = :casual,
			sick = :sick,
			transferred = :transferred,
			replacement = :replacement,
			unpaid = :unpaid,
			standard_annual = :standard_annual,
			updated_at = :updated_at,
			version = version + 1
		WHERE id = :id AND version = :version
	`, b)
	if err != nil {
		return fmt.Errorf("update balance %s: %w", b.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update balance %s: %w", b.ID, err)
	}
	if n == 0 {
		var exists int
		if err := s.db.GetContext(ctx, &exists, "SELECT COUNT(*) FROM leave_balances WHERE id = ?", b.ID); err != nil {
			return fmt.Errorf("update balance %s: %w", b.ID, err)
		}
		if exists == 0 {
			return fmt.Errorf("balance %s: %w", b.ID, generic.ErrEntityNotFound)
		}
		return &generic.StaleVersionError{Record: "balance", ID: b.ID, Version: b.Version}
	}
	b.Version++
	return nil
}

// =============================================================================
// LEAVE TYPES (timeoff.KindResolver)
// =============================================================================

// LeaveType maps a numeric leave type to its canonical kind.
type LeaveType struct {
	ID   int               `db:"id" json:"id"`
	Name string            `db:"name" json:"name"`
	Kind timeoff.LeaveKind `db:"kind" json:"kind"`
}

func (s *Store) SaveLeaveType(ctx context.Context, lt LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.NamedExecContext(ctx,
		"INSERT OR REPLACE INTO leave_types (id, name, kind) VALUES (:id, :name, :kind)", lt)
	if err != nil {
		return fmt.Errorf("save leave type %d: %w", lt.ID, err)
	}
	return nil
}

func (s *Store) Kind(ctx context.Context, ref int) (timeoff.LeaveKind, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var name string
	err := s.db.GetContext(ctx, &name, "SELECT kind FROM leave_types WHERE id = ?", ref)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("leave type %d: %w", ref, generic.ErrUnknownLeaveType)
	}
	if err != nil {
		return "", fmt.Errorf("load leave type %d: %w", ref, err)
	}
	return timeoff.ParseLeaveKind(name)
}

// =============================================================================
// HOLIDAY CALENDAR IMPLEMENTATION
// =============================================================================

// SaveHoliday saves a holiday to the database.
func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO holidays (id, date, name, recurring)
		VALUES (:id, :date, :name, :recurring)
		ON CONFLICT(date, name) DO UPDATE SET
			recurring = excluded.recurring
	`, h)
	if err != nil {
		return fmt.Errorf("save holiday %s: %w", h.Name, err)
	}
	return nil
}

// DeleteHoliday deletes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete holiday %s: %w", id, err)
	}
	return expectAffected(res, fmt.Sprintf("holiday %s", id))
}

// ListHolidays returns all holidays (for admin UI).
func (s *Store) ListHolidays(ctx context.Context) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var holidays []generic.Holiday
	err := s.db.SelectContext(ctx, &holidays,
		"SELECT id, date, name, recurring FROM holidays ORDER BY date LIMIT ?", generic.MaxSearchRows)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}

// HolidaysIn returns the holidays inside the period, recurring ones moved
// onto each year the period spans.
func (s *Store) HolidaysIn(ctx context.Context, period generic.Period) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []generic.Holiday
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, date, name, recurring
		FROM holidays
		WHERE recurring = 1 OR date BETWEEN ? AND ?
		ORDER BY date`, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("load holidays for %s: %w", period, err)
	}

	var holidays []generic.Holiday
	for _, h := range rows {
		if !h.Recurring {
			holidays = append(holidays, h)
			continue
		}
		for y := period.Start.Year; y <= period.End.Year; y++ {
			d := generic.NewDate(y, h.Date.Month, h.Date.Day)
			if period.Contains(d) {
				h.Date = d
				holidays = append(holidays, h)
			}
		}
	}
	return holidays, nil
}

// =============================================================================
// AUDIT LOG (generic.AuditLog)
// =============================================================================

type auditRow struct {
	ID          string         `db:"id"`
	Timestamp   time.Time      `db:"timestamp"`
	RunID       string         `db:"run_id"`
	Action      string         `db:"action"`
	EmployeeID  string         `db:"employee_id"`
	Message     string         `db:"message"`
	PayloadJSON sql.NullString `db:"payload_json"`
}

func (s *Store) Append(ctx context.Context, e generic.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := auditRow{
		ID: e.ID, Timestamp: e.Timestamp, RunID: e.RunID, Action: string(e.Action),
		EmployeeID: e.EmployeeID.String(), Message: e.Message,
	}
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now().UTC()
	}
	if len(e.Payload) > 0 {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("encode audit payload: %w", err)
		}
		row.PayloadJSON = nullString(string(payload))
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, run_id, action, employee_id, message, payload_json)
		VALUES (:id, :timestamp, :run_id, :action, :employee_id, :message, :payload_json)
	`, row)
	if err != nil {
		return fmt.Errorf("append audit %s: %w", e.Action, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if f.EmployeeID != nil {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID.String())
	}
	if f.RunID != nil {
		where = append(where, "run_id = ?")
		args = append(args, *f.RunID)
	}
	if len(f.Actions) > 0 {
		where = append(where, "action IN (?)")
		actions := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			actions[i] = string(a)
		}
		args = append(args, actions)
	}
	if f.From != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, *f.To)
	}

	query := "SELECT id, timestamp, run_id, action, employee_id, message, payload_json FROM audit_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp, id LIMIT ?"
	args = append(args, generic.MaxSearchRows)

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build audit query: %w", err)
	}

	var rows []auditRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}

	entries := make([]generic.AuditEntry, 0, len(rows))
	for _, r := range rows {
		e := generic.AuditEntry{
			ID: r.ID, Timestamp: r.Timestamp, RunID: r.RunID, Action: generic.AuditAction(r.Action),
			EmployeeID: generic.EmployeeID(r.EmployeeID), Message: r.Message,
		}
		if r.PayloadJSON.Valid {
			if err := json.Unmarshal([]byte(r.PayloadJSON.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("decode audit payload %s: %w", r.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, generic.ErrEntityNotFound)
	}
	return nil
}
