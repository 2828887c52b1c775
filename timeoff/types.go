// Package timeoff keeps the yearly leave balance of each employee: it
// accrues entitlements from subsidiary rules, expires carried-over days,
// and restores or commits balances as leave requests move through their
// lifecycle.
package timeoff

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-ledger/generic"
)

// =============================================================================
// LEAVE KINDS AND BALANCE FIELDS
// =============================================================================

// LeaveKind is the canonical classification of a leave type.
type LeaveKind string

const (
	KindAnnual      LeaveKind = "annual"
	KindCasual      LeaveKind = "casual"
	KindSick        LeaveKind = "sick"
	KindTransferred LeaveKind = "transferred"
	KindReplacement LeaveKind = "replacement"
	KindUnpaid      LeaveKind = "unpaid"
)

// ParseLeaveKind matches a kind name case-insensitively.
func ParseLeaveKind(s string) (LeaveKind, error) {
	switch k := LeaveKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAnnual, KindCasual, KindSick, KindTransferred, KindReplacement, KindUnpaid:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", generic.ErrUnknownLeaveType, s)
}

// BalanceField identifies one of the six day counters on a balance.
// Storage column names are derived from it only inside the store.
type BalanceField int

const (
	FieldAnnual BalanceField = iota + 1
	FieldCasual
	FieldSick
	FieldTransferred
	FieldReplacement
	FieldUnpaid
)

// AllFields lists the counters in storage order.
var AllFields = []BalanceField{FieldAnnual, FieldCasual, FieldSick, FieldTransferred, FieldReplacement, FieldUnpaid}

func (f BalanceField) String() string {
	switch f {
	case FieldAnnual:
		return "annual"
	case FieldCasual:
		return "casual"
	case FieldSick:
		return "sick"
	case FieldTransferred:
		return "transferred"
	case FieldReplacement:
		return "replacement"
	case FieldUnpaid:
		return "unpaid"
	default:
		return "unknown"
	}
}

// BalanceFields holds the six day counters.
type BalanceFields struct {
	Annual      decimal.Decimal `db:"annual" json:"annual"`
	Casual      decimal.Decimal `db:"casual" json:"casual"`
	Sick        decimal.Decimal `db:"sick" json:"sick"`
	Transferred decimal.Decimal `db:"transferred" json:"transferred"`
	Replacement decimal.Decimal `db:"replacement" json:"replacement"`
	Unpaid      decimal.Decimal `db:"unpaid" json:"unpaid"`
}

// Get returns the counter for a field.
func (b *BalanceFields) Get(f BalanceField) decimal.Decimal {
	if p := b.ptr(f); p != nil {
		return *p
	}
	return decimal.Zero
}

// Set overwrites the counter for a field.
func (b *BalanceFields) Set(f BalanceField, v decimal.Decimal) {
	if p := b.ptr(f); p != nil {
		*p = v
	}
}

// Add adds delta to the counter for a field.
func (b *BalanceFields) Add(f BalanceField, delta decimal.Decimal) {
	b.Set(f, b.Get(f).Add(delta))
}

func (b *BalanceFields) ptr(f BalanceField) *decimal.Decimal {
	switch f {
	case FieldAnnual:
		return &b.Annual
	case FieldCasual:
		return &b.Casual
	case FieldSick:
		return &b.Sick
	case FieldTransferred:
		return &b.Transferred
	case FieldReplacement:
		return &b.Replacement
	case FieldUnpaid:
		return &b.Unpaid
	default:
		return nil
	}
}

// =============================================================================
// BALANCE
// =============================================================================

// Balance is the leave balance of one employee for one year.
//
// INVARIANT: at most one Balance per (EmployeeID, Year).
type Balance struct {
	ID         string             `db:"id" json:"id"`
	EmployeeID generic.EmployeeID `db:"employee_id" json:"employee_id"`
	Year       int                `db:"year" json:"year"`
	Subsidiary string             `db:"subsidiary" json:"subsidiary"`
	Department string             `db:"department" json:"department"`
	Supervisor string             `db:"supervisor" json:"supervisor"`
	JobTitle   string             `db:"job_title" json:"job_title"`
	BalanceFields
	// StandardAnnual is the entitlement granted at accrual. It caps the
	// annual counter when days are restored.
	StandardAnnual decimal.Decimal `db:"standard_annual" json:"standard_annual"`
	// Version increments on every update. A stale version fails the save.
	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// =============================================================================
// EMPLOYEE
// =============================================================================

// Employee is the roster entry the ledger reads.
type Employee struct {
	ID              generic.EmployeeID `db:"id" json:"id"`
	Name            string             `db:"name" json:"name"`
	MachineID       string             `db:"machine_id" json:"machine_id"`
	Subsidiary      string             `db:"subsidiary" json:"subsidiary"`
	Department      string             `db:"department" json:"department"`
	Supervisor      string             `db:"supervisor" json:"supervisor"`
	JobTitle        string             `db:"job_title" json:"job_title"`
	HireDate        generic.Date       `db:"hire_date" json:"hire_date"`
	BirthDate       generic.Date       `db:"birth_date" json:"birth_date"`
	ExperienceYears int                `db:"experience_years" json:"experience_years"`
	Inactive        bool               `db:"inactive" json:"inactive"`
}

// =============================================================================
// PORTS
// =============================================================================

// EmployeeSource lists accrual candidates: active employees with both a
// hire date and a birth date, at most generic.MaxSearchRows.
type EmployeeSource interface {
	AccrualCandidates(ctx context.Context) ([]Employee, error)
	IncrementExperience(ctx context.Context, id generic.EmployeeID) error
}

// RuleSource loads a subsidiary's rule. Missing rules return an error
// wrapping generic.ErrRuleNotFound.
type RuleSource interface {
	Rule(ctx context.Context, subsidiary string, year int) (*LeaveRule, error)
}

// BalanceStore persists balances.
type BalanceStore interface {
	// BalanceFor returns generic.ErrEntityNotFound when absent.
	BalanceFor(ctx context.Context, employeeID generic.EmployeeID, year int) (*Balance, error)
	Balance(ctx context.Context, id string) (*Balance, error)
	// BalancesForYear returns at most generic.MaxSearchRows balances.
	BalancesForYear(ctx context.Context, year int) ([]Balance, error)
	// CreateBalance returns generic.ErrDuplicateRecord if (employee, year) exists.
	CreateBalance(ctx context.Context, b *Balance) error
	// UpdateBalance saves b if b.Version is current and bumps it; otherwise
	// it returns an error wrapping generic.ErrConcurrentModification.
	UpdateBalance(ctx context.Context, b *Balance) error
}

// KindResolver classifies a numeric leave-type reference.
type KindResolver interface {
	Kind(ctx context.Context, ref int) (LeaveKind, error)
}
