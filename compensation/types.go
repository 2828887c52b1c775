// Package compensation absorbs daily work-time deficits into authorized
// absences: off-site missions first, then the monthly permission quota.
package compensation

import (
	"context"
	"time"

	"github.com/warp/attendance-ledger/generic"
)

// Mission is authorized off-site work for part of a day. Read-only here.
type Mission struct {
	ID         string             `db:"id" json:"id"`
	EmployeeID generic.EmployeeID `db:"employee_id" json:"employee_id"`
	Date       generic.Date       `db:"date" json:"date"`
	From       time.Time          `db:"from_time" json:"from"`
	To         time.Time          `db:"to_time" json:"to"`
}

type PermissionStatus string

const (
	PermissionPending  PermissionStatus = "pending"
	PermissionApproved PermissionStatus = "approved"
	PermissionRejected PermissionStatus = "rejected"
)

// SystemMemo marks permissions created by the cascade rather than a person.
const SystemMemo = "Created automatically by the attendance system to cover a work-hours shortfall."

// PermissionRecord is a grant against the monthly permission quota.
// Records are created once and never mutated.
type PermissionRecord struct {
	ID               string             `db:"id" json:"id"`
	EmployeeID       generic.EmployeeID `db:"employee_id" json:"employee_id"`
	Subsidiary       string             `db:"subsidiary" json:"subsidiary"`
	Year             int                `db:"year" json:"year"`
	Date             generic.Date       `db:"date" json:"date"`
	GrantedMinutes   int                `db:"granted_minutes" json:"granted_minutes"`
	RemainingMinutes int                `db:"remaining_minutes" json:"remaining_minutes"`
	PeriodText       string             `db:"period_text" json:"period_text"`
	Status           PermissionStatus   `db:"status" json:"status"`
	Memo             string             `db:"memo" json:"memo"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`
}

// =============================================================================
// PORTS
// =============================================================================

// MissionSource lists an employee's missions for a day.
type MissionSource interface {
	MissionsOn(ctx context.Context, employeeID generic.EmployeeID, date generic.Date) ([]Mission, error)
}

// PermissionStore reads and creates permission records.
type PermissionStore interface {
	// ApprovedPermissions returns approved grants dated inside the period,
	// at most generic.MaxSearchRows of them.
	ApprovedPermissions(ctx context.Context, employeeID generic.EmployeeID, period generic.Period) ([]PermissionRecord, error)
	CreatePermission(ctx context.Context, p PermissionRecord) error
}

// QuotaSource resolves a subsidiary's monthly permission hours. ok is false
// when the subsidiary has no rule for the year.
type QuotaSource interface {
	PermissionHours(ctx context.Context, subsidiary string, year int) (hours int, ok bool, err error)
}
