package sqlite_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-ledger/attendance"
	"github.com/warp/attendance-ledger/compensation"
	"github.com/warp/attendance-ledger/generic"
	"github.com/warp/attendance-ledger/store/sqlite"
	"github.com/warp/attendance-ledger/timeoff"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func date(year int, month time.Month, day int) generic.Date {
	return generic.NewDate(year, month, day)
}

func employee(id, machineID string) timeoff.Employee {
	return timeoff.Employee{
		ID:         generic.EmployeeID(id),
		Name:       "Employee " + id,
		MachineID:  machineID,
		Subsidiary: "1",
		HireDate:   date(2015, time.April, 1),
		BirthDate:  date(1988, time.June, 9),
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestEmployees_RosterAndCandidates(t *testing.T) {
	// GIVEN: An active employee, an inactive one, and one without a birth date
	// WHEN: Listing the roster and accrual candidates
	// THEN: The roster excludes the inactive employee; candidates also
	//       exclude the one without a birth date

	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveEmployee(ctx, employee("e1", "101")))
	inactive := employee("e2", "102")
	inactive.Inactive = true
	require.NoError(t, store.SaveEmployee(ctx, inactive))
	noBirth := employee("e3", "")
	noBirth.BirthDate = generic.Date{}
	require.NoError(t, store.SaveEmployee(ctx, noBirth))

	roster, err := store.RosterEntries(ctx)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, generic.EmployeeID("e1"), roster[0].EmployeeID)
	assert.Equal(t, "101", roster[0].MachineID)
	assert.Equal(t, "", roster[1].MachineID)

	candidates, err := store.AccrualCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, date(2015, time.April, 1), candidates[0].HireDate)

	require.NoError(t, store.IncrementExperience(ctx, "e1"))
	got, err := store.GetEmployee(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.ExperienceYears)

	_, err = store.GetEmployee(ctx, "nobody")
	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// ATTENDANCE RECORDS
// =============================================================================

func TestRecords_OnePerEmployeeDay(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	in := time.Date(2024, time.March, 10, 7, 55, 0, 0, time.UTC)
	out := time.Date(2024, time.March, 10, 16, 40, 0, 0, time.UTC)
	rec := attendance.Record{
		ID: "r1", EmployeeID: "e1", EmployeeName: "Employee e1", MachineID: "101",
		Date: date(2024, time.March, 10), CheckIn: &in, CheckOut: &out,
		WorkHours: "08:40:00", Overtime: "00:10:00", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveRecord(ctx, rec))

	exists, err := store.HasRecord(ctx, "e1", date(2024, time.March, 10))
	require.NoError(t, err)
	assert.True(t, exists)

	rec.ID = "r2"
	err = store.SaveRecord(ctx, rec)
	assert.True(t, errors.Is(err, generic.ErrDuplicateRecord))

	records, err := store.Records(ctx, generic.MonthPeriod(2024, time.March))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].CheckIn)
	assert.True(t, in.Equal(*records[0].CheckIn))
	assert.Equal(t, "00:10:00", records[0].Overtime)
}

func TestRecords_AbsentDayHasNoPunches(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveRecord(ctx, attendance.Record{
		ID: "r1", EmployeeID: "e1", EmployeeName: "x", MachineID: "101",
		Date: date(2024, time.March, 11), Notes: "• Absent", CreatedAt: time.Now().UTC(),
	}))

	records, err := store.EmployeeRecords(ctx, "e1", generic.DayPeriod(date(2024, time.March, 11)))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].CheckIn)
	assert.Nil(t, records[0].CheckOut)
}

func TestSheetReport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	report := &attendance.SheetReport{
		SheetID: "s1", Mode: attendance.SheetMonthly, Period: "2024-03-01..2024-03-31",
		Notes: []string{`"Ali" doesn't have attendance records.`}, Created: 20,
	}
	require.NoError(t, store.SaveSheetReport(ctx, report))

	got, err := store.SheetReport(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, report.Notes, got.Notes)
	assert.Equal(t, 20, got.Created)
}

// =============================================================================
// COMPENSATION
// =============================================================================

func TestPermissions_ApprovedInMonth(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, p := range []compensation.PermissionRecord{
		{ID: "p1", EmployeeID: "e1", Date: date(2024, time.March, 4), GrantedMinutes: 30, Status: compensation.PermissionApproved},
		{ID: "p2", EmployeeID: "e1", Date: date(2024, time.March, 5), GrantedMinutes: 45, Status: compensation.PermissionPending},
		{ID: "p3", EmployeeID: "e1", Date: date(2024, time.April, 1), GrantedMinutes: 60, Status: compensation.PermissionApproved},
		{ID: "p4", EmployeeID: "e2", Date: date(2024, time.March, 4), GrantedMinutes: 60, Status: compensation.PermissionApproved},
	} {
		p.Year = 2024
		p.CreatedAt = time.Now().UTC()
		require.NoError(t, store.CreatePermission(ctx, p))
	}

	approved, err := store.ApprovedPermissions(ctx, "e1", generic.MonthPeriod(2024, time.March))
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "p1", approved[0].ID)

	all, err := store.Permissions(ctx, "e1", generic.MonthPeriod(2024, time.March))
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMissions_OnDay(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveMission(ctx, compensation.Mission{
		ID: "m1", EmployeeID: "e1", Date: date(2024, time.March, 10),
		From: time.Date(2024, time.March, 10, 10, 0, 0, 0, time.UTC),
		To:   time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC),
	}))

	missions, err := store.MissionsOn(ctx, "e1", date(2024, time.March, 10))
	require.NoError(t, err)
	require.Len(t, missions, 1)
	assert.Equal(t, 10, missions[0].From.Hour())

	none, err := store.MissionsOn(ctx, "e1", date(2024, time.March, 11))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPermissionHours_FromRule(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rule := timeoff.StandardRule("1", 2024)
	rule.PermissionHoursPerMonth = 3
	require.NoError(t, store.SaveRule(ctx, rule))

	hours, ok, err := store.PermissionHours(ctx, "1", 2024)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, hours)

	_, ok, err = store.PermissionHours(ctx, "2", 2024)
	require.NoError(t, err)
	assert.False(t, ok)
}

// =============================================================================
// LEAVE
// =============================================================================

func TestRules_MissingRule(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Rule(ctx, "7", 2025)
	assert.True(t, errors.Is(err, generic.ErrRuleNotFound))

	var missing *generic.MissingRuleError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "7", missing.Subsidiary)
}

func TestRules_RoundTripDecimals(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rule := timeoff.StandardRule("1", 2025)
	rule.AnnualNormal = decimal.RequireFromString("21.5")
	rule.CasualCountsAsAnnual = true
	require.NoError(t, store.SaveRule(ctx, rule))

	got, err := store.Rule(ctx, "1", 2025)
	require.NoError(t, err)
	assert.True(t, got.AnnualNormal.Equal(rule.AnnualNormal))
	assert.True(t, got.CasualCountsAsAnnual)
	assert.True(t, got.TransferEnabled)

	rules, err := store.Rules(ctx, 2025)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestBalances_UniquePerYearAndVersioned(t *testing.T) {
	// GIVEN: A stored balance
	// WHEN: A second balance for the same year is created, and a stale
	//       copy is saved after a fresh one
	// THEN: Duplicate and concurrent-modification errors

	ctx := context.Background()
	store := newTestStore(t)

	bal := &timeoff.Balance{
		ID: "b1", EmployeeID: "e1", Year: 2025, Subsidiary: "1",
		BalanceFields:  timeoff.BalanceFields{Annual: decimal.NewFromInt(21), Casual: decimal.NewFromInt(7)},
		StandardAnnual: decimal.NewFromInt(21),
	}
	require.NoError(t, store.CreateBalance(ctx, bal))
	assert.Equal(t, 1, bal.Version)

	dup := *bal
	dup.ID = "b2"
	err := store.CreateBalance(ctx, &dup)
	assert.True(t, errors.Is(err, generic.ErrDuplicateRecord))

	fresh, err := store.BalanceFor(ctx, "e1", 2025)
	require.NoError(t, err)
	stale, err := store.Balance(ctx, "b1")
	require.NoError(t, err)

	fresh.Annual = decimal.NewFromInt(16)
	require.NoError(t, store.UpdateBalance(ctx, fresh))
	assert.Equal(t, 2, fresh.Version)

	stale.Annual = decimal.NewFromInt(30)
	err = store.UpdateBalance(ctx, stale)
	assert.True(t, errors.Is(err, generic.ErrConcurrentModification))

	got, err := store.Balance(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(16).Equal(got.Annual))
	assert.True(t, decimal.NewFromInt(7).Equal(got.Casual))

	missing := &timeoff.Balance{ID: "nope", Version: 1}
	assert.True(t, generic.IsNotFound(store.UpdateBalance(ctx, missing)))
}

func TestLeaveTypes_Kind(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveLeaveType(ctx, sqlite.LeaveType{ID: 4, Name: "Casual Leave", Kind: timeoff.KindCasual}))

	kind, err := store.Kind(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, timeoff.KindCasual, kind)

	_, err = store.Kind(ctx, 5)
	assert.True(t, errors.Is(err, generic.ErrUnknownLeaveType))
}

// =============================================================================
// HOLIDAYS AND AUDIT
// =============================================================================

func TestHolidaysIn_ProjectsRecurring(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveHoliday(ctx, generic.Holiday{ID: "h1", Date: date(2020, time.April, 25), Name: "Sinai Liberation Day", Recurring: true}))
	require.NoError(t, store.SaveHoliday(ctx, generic.Holiday{ID: "h2", Date: date(2024, time.April, 10), Name: "Eid"}))
	require.NoError(t, store.SaveHoliday(ctx, generic.Holiday{ID: "h3", Date: date(2023, time.April, 21), Name: "Eid"}))

	holidays, err := store.HolidaysIn(ctx, generic.MonthPeriod(2024, time.April))
	require.NoError(t, err)
	require.Len(t, holidays, 2)

	dates := []generic.Date{holidays[0].Date, holidays[1].Date}
	assert.Contains(t, dates, date(2024, time.April, 25))
	assert.Contains(t, dates, date(2024, time.April, 10))

	days, err := generic.WorkingDays(ctx, store, 2024, time.April, generic.DefaultWeekend)
	require.NoError(t, err)
	assert.NotContains(t, days, date(2024, time.April, 10))
	assert.NotContains(t, days, date(2024, time.April, 25))
}

func TestAudit_AppendAndQuery(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	run := "run-1"
	require.NoError(t, store.Append(ctx, generic.AuditEntry{
		ID: "a1", RunID: run, Action: generic.AuditRuleMissing, EmployeeID: "e1",
		Message: `no leave rule for subsidiary "9" in 2025`,
	}))
	require.NoError(t, store.Append(ctx, generic.AuditEntry{
		ID: "a2", RunID: run, Action: generic.AuditSheetProcessed,
		Message: "done", Payload: map[string]any{"created": 3},
	}))
	require.NoError(t, store.Append(ctx, generic.AuditEntry{
		ID: "a3", RunID: "run-2", Action: generic.AuditRuleMissing, EmployeeID: "e2", Message: "x",
	}))

	entries, err := store.Query(ctx, generic.AuditFilter{
		RunID:   &run,
		Actions: []generic.AuditAction{generic.AuditRuleMissing, generic.AuditSheetProcessed},
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var processed generic.AuditEntry
	for _, e := range entries {
		if e.ID == "a2" {
			processed = e
		}
	}
	assert.EqualValues(t, 3, processed.Payload["created"])

	emp := generic.EmployeeID("e2")
	entries, err = store.Query(ctx, generic.AuditFilter{EmployeeID: &emp})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// =============================================================================
// FAILURE PROPAGATION (sqlmock)
// =============================================================================

func newMockStore(t *testing.T) (*sqlite.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlite.NewWithDB(sqlx.NewDb(db, "sqlite3")), mock
}

func TestHasRecord_PropagatesDriverError(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendance_records")).
		WillReturnError(errors.New("disk I/O error"))

	_, err := store.HasRecord(ctx, "e1", date(2024, time.March, 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.False(t, generic.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBalance_StaleVersion(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_balances SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM leave_balances WHERE id = ?")).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := store.UpdateBalance(ctx, &timeoff.Balance{ID: "b1", Version: 3})
	assert.True(t, errors.Is(err, generic.ErrConcurrentModification))

	var stale *generic.StaleVersionError
	require.True(t, errors.As(err, &stale))
	assert.Equal(t, 3, stale.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoster_PropagatesDriverError(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM employees")).
		WillReturnError(errors.New("database is locked"))

	_, err := store.RosterEntries(ctx)
	assert.ErrorContains(t, err, "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}
