package timeoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-ledger/generic"
	"github.com/warp/attendance-ledger/generic/store"
	"github.com/warp/attendance-ledger/timeoff"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func days(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func date(year int, month time.Month, day int) generic.Date {
	return generic.NewDate(year, month, day)
}

func newAccrual(mem *store.Memory) *timeoff.Accrual {
	return &timeoff.Accrual{
		Employees:           mem,
		Rules:               mem,
		Balances:            mem,
		Audit:               mem,
		IncrementExperience: true,
	}
}

func veteran() timeoff.Employee {
	return timeoff.Employee{
		ID:         "emp-1",
		Name:       "Mona Adel",
		MachineID:  "101",
		Subsidiary: "1",
		HireDate:   date(2013, time.January, 1),
		BirthDate:  date(1985, time.March, 3),
	}
}

// =============================================================================
// ENTITLEMENT
// =============================================================================

func TestAnnualEntitlement(t *testing.T) {
	asOf := date(2025, time.January, 1)
	rule := timeoff.StandardRule("1", 2025)
	rule.AnnualElderly = days(35)

	tests := []struct {
		name     string
		rule     func(r *timeoff.LeaveRule)
		employee timeoff.Employee
		want     decimal.Decimal
	}{
		{
			name: "on probation",
			employee: timeoff.Employee{
				HireDate:  date(2024, time.November, 15),
				BirthDate: date(1995, time.May, 1),
			},
			want: decimal.Zero,
		},
		{
			name: "normal",
			employee: timeoff.Employee{
				HireDate:  date(2020, time.February, 1),
				BirthDate: date(1995, time.May, 1),
			},
			want: days(21),
		},
		{
			name: "experienced by recorded years",
			employee: timeoff.Employee{
				HireDate:        date(2023, time.February, 1),
				BirthDate:       date(1980, time.May, 1),
				ExperienceYears: 12,
			},
			want: days(30),
		},
		{
			name: "recorded years ignored when measured from hire date",
			rule: func(r *timeoff.LeaveRule) { r.ExperienceBasedOnHireDate = true },
			employee: timeoff.Employee{
				HireDate:        date(2023, time.February, 1),
				BirthDate:       date(1980, time.May, 1),
				ExperienceYears: 12,
			},
			want: days(21),
		},
		{
			name: "eleven years since hire",
			rule: func(r *timeoff.LeaveRule) { r.ExperienceBasedOnHireDate = true },
			employee: timeoff.Employee{
				HireDate:  date(2014, time.January, 1),
				BirthDate: date(1985, time.May, 1),
			},
			want: days(30),
		},
		{
			name: "elderly overrides probation",
			employee: timeoff.Employee{
				HireDate:  date(2024, time.December, 1),
				BirthDate: date(1970, time.January, 1),
			},
			want: days(35),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rule
			if tt.rule != nil {
				tt.rule(&r)
			}
			got := timeoff.AnnualEntitlement(r, tt.employee, asOf)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

// =============================================================================
// ACCRUAL RUN
// =============================================================================

func TestAccrual_ExperiencedEmployeeWithCarryOver(t *testing.T) {
	// GIVEN: An employee hired 12 years ago under a hire-date rule,
	//        with 4 annual days left in 2024
	// WHEN: Accrual runs for 2025
	// THEN: 30 annual, 7 casual, 15 sick, 4 transferred, 0 replacement/unpaid

	ctx := context.Background()
	mem := store.NewMemory()
	emp := veteran()
	mem.PutEmployee(emp)
	rule := timeoff.StandardRule("1", 2025)
	rule.ExperienceBasedOnHireDate = true
	mem.PutRule(rule)
	require.NoError(t, mem.CreateBalance(ctx, &timeoff.Balance{
		ID: "bal-2024", EmployeeID: emp.ID, Year: 2024,
		BalanceFields: timeoff.BalanceFields{Annual: days(4)},
	}))

	report, err := newAccrual(mem).Run(ctx, date(2025, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	bal, err := mem.BalanceFor(ctx, emp.ID, 2025)
	require.NoError(t, err)
	assert.True(t, days(30).Equal(bal.Annual), "annual %s", bal.Annual)
	assert.True(t, days(30).Equal(bal.StandardAnnual))
	assert.True(t, days(7).Equal(bal.Casual))
	assert.True(t, days(15).Equal(bal.Sick))
	assert.True(t, days(4).Equal(bal.Transferred))
	assert.True(t, bal.Replacement.IsZero())
	assert.True(t, bal.Unpaid.IsZero())
	assert.Equal(t, "1", bal.Subsidiary)
}

func TestAccrual_NoPriorBalance_TransferredZero(t *testing.T) {
	// GIVEN: Carry-over enabled but no 2024 balance
	// WHEN: Accrual runs for 2025
	// THEN: Transferred is 0 and the gap is audited

	ctx := context.Background()
	mem := store.NewMemory()
	mem.PutEmployee(veteran())
	mem.PutRule(timeoff.StandardRule("1", 2025))

	_, err := newAccrual(mem).Run(ctx, date(2025, time.January, 1))
	require.NoError(t, err)

	bal, err := mem.BalanceFor(ctx, "emp-1", 2025)
	require.NoError(t, err)
	assert.True(t, bal.Transferred.IsZero())

	entries, err := mem.Query(ctx, generic.AuditFilter{Actions: []generic.AuditAction{generic.AuditBalanceAccrued}})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAccrual_NoTransferRule_IgnoresPriorBalance(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.PutEmployee(veteran())
	mem.PutRule(timeoff.NoTransferRule("1", 2025))
	require.NoError(t, mem.CreateBalance(ctx, &timeoff.Balance{
		ID: "bal-2024", EmployeeID: "emp-1", Year: 2024,
		BalanceFields: timeoff.BalanceFields{Annual: days(9)},
	}))

	_, err := newAccrual(mem).Run(ctx, date(2025, time.January, 1))
	require.NoError(t, err)

	bal, err := mem.BalanceFor(ctx, "emp-1", 2025)
	require.NoError(t, err)
	assert.True(t, bal.Transferred.IsZero())
}

func TestAccrual_MissingRule_SkipsAndAudits(t *testing.T) {
	// GIVEN: Two employees, only one subsidiary has a rule
	// WHEN: Accrual runs
	// THEN: One balance created, the other employee skipped with a diagnostic

	ctx := context.Background()
	mem := store.NewMemory()
	mem.PutEmployee(veteran())
	orphan := veteran()
	orphan.ID = "emp-2"
	orphan.Subsidiary = "9"
	mem.PutEmployee(orphan)
	mem.PutRule(timeoff.StandardRule("1", 2025))

	report, err := newAccrual(mem).Run(ctx, date(2025, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.MissingRule)

	_, err = mem.BalanceFor(ctx, "emp-2", 2025)
	assert.True(t, errors.Is(err, generic.ErrEntityNotFound))

	empID := generic.EmployeeID("emp-2")
	entries, err := mem.Query(ctx, generic.AuditFilter{
		EmployeeID: &empID,
		Actions:    []generic.AuditAction{generic.AuditRuleMissing},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, `"9"`)
}

func TestAccrual_SkipsIncompleteEmployees(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	noBirth := veteran()
	noBirth.BirthDate = generic.Date{}
	mem.PutEmployee(noBirth)
	mem.PutRule(timeoff.StandardRule("1", 2025))

	report, err := newAccrual(mem).Run(ctx, date(2025, time.January, 1))
	require.NoError(t, err)
	assert.Zero(t, report.Created)
}

func TestAccrual_RerunIsIdempotent(t *testing.T) {
	// GIVEN: Accrual already ran for 2025
	// WHEN: It runs again
	// THEN: No second balance, experience incremented once

	ctx := context.Background()
	mem := store.NewMemory()
	mem.PutEmployee(veteran())
	mem.PutRule(timeoff.StandardRule("1", 2025))
	accrual := newAccrual(mem)

	first, err := accrual.Run(ctx, date(2025, time.January, 1))
	require.NoError(t, err)
	second, err := accrual.Run(ctx, date(2025, time.January, 2))
	require.NoError(t, err)

	assert.Equal(t, 1, first.Created)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Skipped)

	balances, err := mem.BalancesForYear(ctx, 2025)
	require.NoError(t, err)
	assert.Len(t, balances, 1)

	emp, _ := mem.Employee("emp-1")
	assert.Equal(t, 1, emp.ExperienceYears)
}

func TestAccrual_IncrementDisabled(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.PutEmployee(veteran())
	mem.PutRule(timeoff.StandardRule("1", 2025))
	accrual := newAccrual(mem)
	accrual.IncrementExperience = false

	_, err := accrual.Run(ctx, date(2025, time.January, 1))
	require.NoError(t, err)

	emp, _ := mem.Employee("emp-1")
	assert.Zero(t, emp.ExperienceYears)
}

// =============================================================================
// TRANSFER RESET
// =============================================================================

func TestTransferReset_ZeroesYear(t *testing.T) {
	// GIVEN: Two 2025 balances with transferred days and one 2024 balance
	// WHEN: Transfer reset runs for 2025
	// THEN: Only the 2025 balances lose their transferred days

	ctx := context.Background()
	mem := store.NewMemory()
	for _, b := range []timeoff.Balance{
		{ID: "a", EmployeeID: "emp-1", Year: 2025, BalanceFields: timeoff.BalanceFields{Annual: days(10), Transferred: days(3)}},
		{ID: "b", EmployeeID: "emp-2", Year: 2025, BalanceFields: timeoff.BalanceFields{Transferred: days(6)}},
		{ID: "c", EmployeeID: "emp-1", Year: 2024, BalanceFields: timeoff.BalanceFields{Transferred: days(2)}},
	} {
		b := b
		require.NoError(t, mem.CreateBalance(ctx, &b))
	}

	report, err := (&timeoff.TransferReset{Balances: mem, Audit: mem}).Run(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Reset)

	a, _ := mem.Balance(ctx, "a")
	assert.True(t, a.Transferred.IsZero())
	assert.True(t, days(10).Equal(a.Annual))
	b, _ := mem.Balance(ctx, "b")
	assert.True(t, b.Transferred.IsZero())
	c, _ := mem.Balance(ctx, "c")
	assert.True(t, days(2).Equal(c.Transferred))
}
