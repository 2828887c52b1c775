/*
cascade.go - Deficit compensation cascade

PURPOSE:
  A day under quota is not recorded as a shortfall straight away. The
  cascade first lets authorized absences soak it up, then reports what is
  left as the day's (negative) overtime.

STEPS:
  1. Missions on the day: delta += sum(from - to)
  2. Still negative: remaining = hoursPerMonth*60 - approved minutes this month
  3. remaining > 0: grant min(remaining, ceil(|delta|) minutes)
  4. grant > 0: create one approved PermissionRecord with the system memo
  5. Residual delta is returned for the attendance record

MISSION SIGN:
  Step 1 adds from - to exactly as recorded. A mission whose end follows
  its start therefore enlarges the deficit. Tests pin this behavior.

SINGLE INVOCATION:
  The month's remaining quota is read from existing approved records, and
  the cascade itself writes one. Running the same (employee, day) twice
  under-grants the second time. The sheet processor only evaluates days
  that have no attendance record yet.

EXAMPLE:
  out, err := cascade.Apply(ctx, compensation.Deficit{
      EmployeeID: "emp-7",
      Subsidiary: "1",
      Date:       generic.NewDate(2024, 3, 10),
      Delta:      -generic.Hour,
  })
  // remaining 90 min -> out.Permission.GrantedMinutes == 60, out.Residual == 0

SEE ALSO:
  - attendance/sheet.go: Calls Apply for each deficit day
  - store/sqlite/sqlite.go: permissions and missions tables
*/
package compensation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-ledger/generic"
	"github.com/warp/attendance-ledger/logger"
)

// DefaultHoursPerMonth is the monthly permission quota when no rule sets one.
const DefaultHoursPerMonth = 2

// Deficit is one day's shortfall.
type Deficit struct {
	EmployeeID generic.EmployeeID
	Subsidiary string
	Date       generic.Date
	Delta      generic.Millis // negative
}

// Outcome describes what the cascade absorbed.
type Outcome struct {
	// Residual is the delta left after missions and permissions.
	Residual generic.Millis
	// MissionAdjustment is the summed (from - to) of the day's missions.
	MissionAdjustment generic.Millis
	// RemainingMinutes is the month's permission quota before any grant.
	RemainingMinutes int
	// Permission is the grant created, if any.
	Permission *PermissionRecord
}

// Cascade wires the absence sources together.
type Cascade struct {
	Missions    MissionSource
	Permissions PermissionStore
	// Quotas overrides HoursPerMonth per subsidiary. Optional.
	Quotas        QuotaSource
	HoursPerMonth int
	Log           *logger.Logger
}

// NewCascade builds a cascade with the default monthly quota.
func NewCascade(missions MissionSource, permissions PermissionStore, quotas QuotaSource, log *logger.Logger) *Cascade {
	return &Cascade{
		Missions:      missions,
		Permissions:   permissions,
		Quotas:        quotas,
		HoursPerMonth: DefaultHoursPerMonth,
		Log:           log,
	}
}

// Apply runs the cascade for one (employee, day).
func (c *Cascade) Apply(ctx context.Context, d Deficit) (Outcome, error) {
	log := logger.OrNop(c.Log).WithEmployee(d.EmployeeID.String())
	out := Outcome{Residual: d.Delta}
	if d.Delta >= 0 {
		return out, nil
	}

	// 1. Missions
	if c.Missions != nil {
		missions, err := c.Missions.MissionsOn(ctx, d.EmployeeID, d.Date)
		if err != nil {
			return out, fmt.Errorf("load missions for %s on %s: %w", d.EmployeeID, d.Date, err)
		}
		for _, m := range missions {
			out.MissionAdjustment += generic.MillisBetween(m.To, m.From)
		}
		out.Residual += out.MissionAdjustment
	}
	if out.Residual >= 0 {
		return out, nil
	}

	// 2. Monthly permission quota
	capMinutes, err := c.monthlyCap(ctx, d)
	if err != nil {
		return out, err
	}
	month := generic.MonthPeriod(d.Date.Year, d.Date.Month)
	granted, err := c.Permissions.ApprovedPermissions(ctx, d.EmployeeID, month)
	if err != nil {
		return out, fmt.Errorf("load permissions for %s in %s: %w", d.EmployeeID, month, err)
	}
	used := 0
	for _, p := range granted {
		used += p.GrantedMinutes
	}
	remaining := capMinutes - used
	if remaining > capMinutes {
		remaining = capMinutes
	}
	out.RemainingMinutes = remaining
	if remaining <= 0 {
		return out, nil
	}

	// 3. Grant
	deficitMinutes := int(out.Residual.CeilMinutes())
	grant := -deficitMinutes
	if remaining+deficitMinutes < 0 {
		grant = remaining
		out.Residual += generic.MinutesOf(int64(remaining))
	} else {
		out.Residual = 0
	}

	// 4. Record
	p := PermissionRecord{
		ID:               uuid.NewString(),
		EmployeeID:       d.EmployeeID,
		Subsidiary:       d.Subsidiary,
		Year:             d.Date.Year,
		Date:             d.Date,
		GrantedMinutes:   grant,
		RemainingMinutes: remaining - grant,
		PeriodText:       generic.MinutesToText(grant),
		Status:           PermissionApproved,
		Memo:             SystemMemo,
		CreatedAt:        time.Now().UTC(),
	}
	if err := c.Permissions.CreatePermission(ctx, p); err != nil {
		return out, fmt.Errorf("create permission for %s on %s: %w", d.EmployeeID, d.Date, err)
	}
	out.Permission = &p

	log.Info().
		Str("date", d.Date.String()).
		Int("granted_minutes", grant).
		Int("remaining_minutes", p.RemainingMinutes).
		Str("residual", out.Residual.Format(false)).
		Msg("permission granted for deficit")
	return out, nil
}

func (c *Cascade) monthlyCap(ctx context.Context, d Deficit) (int, error) {
	hours := c.HoursPerMonth
	if c.Quotas != nil && d.Subsidiary != "" {
		h, ok, err := c.Quotas.PermissionHours(ctx, d.Subsidiary, d.Date.Year)
		if err != nil {
			return 0, fmt.Errorf("load permission quota for subsidiary %s: %w", d.Subsidiary, err)
		}
		if ok && h > 0 {
			hours = h
		}
	}
	return hours * 60, nil
}
