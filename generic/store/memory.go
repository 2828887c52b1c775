// Package store provides an in-memory implementation of every record port,
// used by tests.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/attendance-ledger/attendance"
	"github.com/warp/attendance-ledger/compensation"
	"github.com/warp/attendance-ledger/generic"
	"github.com/warp/attendance-ledger/timeoff"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	employees   map[generic.EmployeeID]timeoff.Employee
	records     map[recordKey]attendance.Record
	missions    []compensation.Mission
	permissions []compensation.PermissionRecord
	rules       map[ruleKey]timeoff.LeaveRule
	balances    map[string]timeoff.Balance
	kinds       map[int]timeoff.LeaveKind
	holidays    []generic.Holiday
	audit       []generic.AuditEntry
}

type recordKey struct {
	EmployeeID generic.EmployeeID
	Date       generic.Date
}

type ruleKey struct {
	Subsidiary string
	Year       int
}

func NewMemory() *Memory {
	return &Memory{
		employees: make(map[generic.EmployeeID]timeoff.Employee),
		records:   make(map[recordKey]attendance.Record),
		rules:     make(map[ruleKey]timeoff.LeaveRule),
		balances:  make(map[string]timeoff.Balance),
		kinds:     make(map[int]timeoff.LeaveKind),
	}
}

// =============================================================================
// SEEDING
// =============================================================================

func (m *Memory) PutEmployee(e timeoff.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
}

func (m *Memory) Employee(id generic.EmployeeID) (timeoff.Employee, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	return e, ok
}

func (m *Memory) PutRule(r timeoff.LeaveRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[ruleKey{r.Subsidiary, r.Year}] = r
}

func (m *Memory) PutMission(ms compensation.Mission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missions = append(m.missions, ms)
}

func (m *Memory) PutKind(ref int, kind timeoff.LeaveKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds[ref] = kind
}

func (m *Memory) PutHoliday(h generic.Holiday) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays = append(m.holidays, h)
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// RosterEntries lists active employees ordered by ID.
func (m *Memory) RosterEntries(_ context.Context) ([]attendance.RosterEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]attendance.RosterEntry, 0, len(m.employees))
	for _, e := range m.employees {
		if e.Inactive {
			continue
		}
		out = append(out, attendance.RosterEntry{
			EmployeeID: e.ID,
			Name:       e.Name,
			MachineID:  e.MachineID,
			Subsidiary: e.Subsidiary,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return capRows(out), nil
}

func (m *Memory) HasRecord(_ context.Context, employeeID generic.EmployeeID, date generic.Date) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[recordKey{employeeID, date}]
	return ok, nil
}

func (m *Memory) SaveRecord(_ context.Context, r attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := recordKey{r.EmployeeID, r.Date}
	if _, ok := m.records[k]; ok {
		return fmt.Errorf("attendance %s on %s: %w", r.EmployeeID, r.Date, generic.ErrDuplicateRecord)
	}
	m.records[k] = r
	return nil
}

// Records returns the records dated inside period, ordered by date then employee.
func (m *Memory) Records(_ context.Context, period generic.Period) ([]attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []attendance.Record
	for _, r := range m.records {
		if period.Contains(r.Date) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out, nil
}

// =============================================================================
// COMPENSATION
// =============================================================================

func (m *Memory) MissionsOn(_ context.Context, employeeID generic.EmployeeID, date generic.Date) ([]compensation.Mission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []compensation.Mission
	for _, ms := range m.missions {
		if ms.EmployeeID == employeeID && ms.Date.Equal(date) {
			out = append(out, ms)
		}
	}
	return out, nil
}

func (m *Memory) ApprovedPermissions(_ context.Context, employeeID generic.EmployeeID, period generic.Period) ([]compensation.PermissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []compensation.PermissionRecord
	for _, p := range m.permissions {
		if p.EmployeeID == employeeID && p.Status == compensation.PermissionApproved && period.Contains(p.Date) {
			out = append(out, p)
		}
	}
	return capRows(out), nil
}

func (m *Memory) CreatePermission(_ context.Context, p compensation.PermissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permissions = append(m.permissions, p)
	return nil
}

// Permissions returns every stored permission, in insertion order.
func (m *Memory) Permissions() []compensation.PermissionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]compensation.PermissionRecord(nil), m.permissions...)
}

func (m *Memory) PermissionHours(_ context.Context, subsidiary string, year int) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[ruleKey{subsidiary, year}]
	if !ok {
		return 0, false, nil
	}
	return r.PermissionHoursPerMonth, true, nil
}

// =============================================================================
// LEAVE
// =============================================================================

func (m *Memory) AccrualCandidates(_ context.Context) ([]timeoff.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []timeoff.Employee
	for _, e := range m.employees {
		if e.Inactive || e.HireDate.IsZero() || e.BirthDate.IsZero() {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return capRows(out), nil
}

func (m *Memory) IncrementExperience(_ context.Context, id generic.EmployeeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[id]
	if !ok {
		return fmt.Errorf("employee %s: %w", id, generic.ErrEntityNotFound)
	}
	e.ExperienceYears++
	m.employees[id] = e
	return nil
}

func (m *Memory) Rule(_ context.Context, subsidiary string, year int) (*timeoff.LeaveRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[ruleKey{subsidiary, year}]
	if !ok {
		return nil, &generic.MissingRuleError{Subsidiary: subsidiary, Year: year}
	}
	return &r, nil
}

func (m *Memory) BalanceFor(_ context.Context, employeeID generic.EmployeeID, year int) (*timeoff.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.balances {
		if b.EmployeeID == employeeID && b.Year == year {
			return &b, nil
		}
	}
	return nil, fmt.Errorf("balance %s/%d: %w", employeeID, year, generic.ErrEntityNotFound)
}

func (m *Memory) Balance(_ context.Context, id string) (*timeoff.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.balances[id]
	if !ok {
		return nil, fmt.Errorf("balance %s: %w", id, generic.ErrEntityNotFound)
	}
	return &b, nil
}

func (m *Memory) BalancesForYear(_ context.Context, year int) ([]timeoff.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []timeoff.Balance
	for _, b := range m.balances {
		if b.Year == year {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return capRows(out), nil
}

func (m *Memory) CreateBalance(_ context.Context, b *timeoff.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.balances {
		if existing.EmployeeID == b.EmployeeID && existing.Year == b.Year {
			return fmt.Errorf("balance %s/%d: %w", b.EmployeeID, b.Year, generic.ErrDuplicateRecord)
		}
	}
	if b.Version == 0 {
		b.Version = 1
	}
	m.balances[b.ID] = *b
	return nil
}

func (m *Memory) UpdateBalance(_ context.Context, b *timeoff.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.balances[b.ID]
	if !ok {
		return fmt.Errorf("balance %s: %w", b.ID, generic.ErrEntityNotFound)
	}
	if current.Version != b.Version {
		return &generic.StaleVersionError{Record: "balance", ID: b.ID, Version: b.Version}
	}
	b.Version++
	m.balances[b.ID] = *b
	return nil
}

func (m *Memory) Kind(_ context.Context, ref int) (timeoff.LeaveKind, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.kinds[ref]
	if !ok {
		return "", fmt.Errorf("leave type %d: %w", ref, generic.ErrUnknownLeaveType)
	}
	return k, nil
}

// =============================================================================
// HOLIDAYS AND AUDIT
// =============================================================================

func (m *Memory) HolidaysIn(_ context.Context, period generic.Period) ([]generic.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []generic.Holiday
	for _, h := range m.holidays {
		d := h.Date
		if h.Recurring {
			d = generic.NewDate(period.Start.Year, h.Date.Month, h.Date.Day)
		}
		if period.Contains(d) {
			h.Date = d
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *Memory) Append(_ context.Context, e generic.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	m.audit = append(m.audit, e)
	return nil
}

func (m *Memory) Query(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []generic.AuditEntry
	for _, e := range m.audit {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func capRows[T any](rows []T) []T {
	if len(rows) > generic.MaxSearchRows {
		return rows[:generic.MaxSearchRows]
	}
	return rows
}
