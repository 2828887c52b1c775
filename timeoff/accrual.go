/*
accrual.go - Yearly leave balance accrual and carry-over expiry

PURPOSE:
  Creates each active employee's balance for a new year from the
  subsidiary's LeaveRule, and later expires the days carried over from
  the previous year.

ENTITLEMENT:
  Tenure and age are measured with 30.4375-day months and 365.25-day
  years, floored. They are coarse on purpose and not calendar-exact.

    tenureMonths < probation                        -> 0
    experienced (see below)                         -> AnnualExperienced
    otherwise                                       -> AnnualNormal
    ageYears >= ElderlyAgeThreshold                 -> AnnualElderly (overrides)

  "Experienced" is tenureMonths/12 >= 10 when the rule measures from the
  hire date, or recorded experience years >= 10 otherwise.

CARRY-OVER:
  With TransferEnabled, last year's remaining annual days become this
  year's transferred days (0 when last year has no balance). Replacement
  and unpaid always start at 0.

RULE CACHE:
  Rules are looked up once per subsidiary per run, in a map local to
  Run. A missing rule is cached too, so its subsidiary is not re-queried.

IDEMPOTENCE:
  An employee who already has a balance for the year is skipped, so
  re-running a partially failed accrual only fills the gaps. Experience
  years are incremented only for employees whose balance was created in
  this run.

UNITS OF WORK:
  Each employee is independent. Missing rules are audited and skipped;
  store failures are collected and joined into the returned error.

SEE ALSO:
  - policies.go: LeaveRule
  - ledger.go: Request-driven balance changes
*/
package timeoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-ledger/generic"
	"github.com/warp/attendance-ledger/logger"
)

// =============================================================================
// ENTITLEMENT
// =============================================================================

// AnnualEntitlement computes an employee's annual days under a rule as of a day.
func AnnualEntitlement(rule LeaveRule, emp Employee, asOf generic.Date) decimal.Decimal {
	tenureMonths := generic.WholeMonthsBetween(emp.HireDate, asOf)
	ageYears := generic.WholeYearsBetween(emp.BirthDate, asOf)

	annual := decimal.Zero
	if tenureMonths >= rule.ProbationMonths {
		experienced := emp.ExperienceYears >= ExperiencedYears
		if rule.ExperienceBasedOnHireDate {
			experienced = tenureMonths/12 >= ExperiencedYears
		}
		annual = rule.AnnualNormal
		if experienced {
			annual = rule.AnnualExperienced
		}
	}

	if rule.ElderlyAgeThreshold > 0 && ageYears >= rule.ElderlyAgeThreshold {
		annual = rule.AnnualElderly
	}
	return annual
}

// =============================================================================
// ACCRUAL
// =============================================================================

// Accrual creates yearly balances.
type Accrual struct {
	Employees EmployeeSource
	Rules     RuleSource
	Balances  BalanceStore
	Audit     generic.AuditLog
	// IncrementExperience bumps recorded experience years after creation.
	IncrementExperience bool
	Log                 *logger.Logger
}

// AccrualReport summarizes one run.
type AccrualReport struct {
	RunID       string   `json:"run_id"`
	Year        int      `json:"year"`
	Created     int      `json:"created"`
	Skipped     int      `json:"skipped"`
	MissingRule int      `json:"missing_rule"`
	Failed      int      `json:"failed"`
	Errors      []string `json:"errors,omitempty"`
}

// ruleCache holds one run's rule lookups. A nil entry means "no rule".
type ruleCache map[string]*LeaveRule

func (c ruleCache) get(ctx context.Context, src RuleSource, subsidiary string, year int) (*LeaveRule, error) {
	if r, ok := c[subsidiary]; ok {
		return r, nil
	}
	r, err := src.Rule(ctx, subsidiary, year)
	if errors.Is(err, generic.ErrRuleNotFound) {
		c[subsidiary] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c[subsidiary] = r
	return r, nil
}

// Run accrues balances for asOf's year. The report is returned even when
// the joined error is non-nil.
func (a *Accrual) Run(ctx context.Context, asOf generic.Date) (*AccrualReport, error) {
	report := &AccrualReport{RunID: uuid.NewString(), Year: asOf.Year}
	log := logger.OrNop(a.Log).WithComponent("accrual").WithRunID(report.RunID)

	employees, err := a.Employees.AccrualCandidates(ctx)
	if err != nil {
		return report, fmt.Errorf("load employees: %w", err)
	}

	rules := ruleCache{}
	var errs []error
	for _, emp := range employees {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if emp.Inactive || emp.HireDate.IsZero() || emp.BirthDate.IsZero() {
			continue
		}

		created, err := a.accrueOne(ctx, rules, emp, asOf, report)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, err.Error())
			errs = append(errs, err)
			log.Error().Err(err).Str("employee_id", emp.ID.String()).Msg("accrual failed")
			a.audit(ctx, generic.AuditEntry{
				RunID: report.RunID, Action: generic.AuditEmployeeFailed,
				EmployeeID: emp.ID, Message: err.Error(),
			})
			continue
		}
		if created {
			report.Created++
		}
	}

	log.Info().
		Int("year", report.Year).
		Int("created", report.Created).
		Int("skipped", report.Skipped).
		Int("missing_rule", report.MissingRule).
		Int("failed", report.Failed).
		Msg("accrual finished")
	return report, errors.Join(errs...)
}

func (a *Accrual) accrueOne(ctx context.Context, rules ruleCache, emp Employee, asOf generic.Date, report *AccrualReport) (bool, error) {
	year := asOf.Year

	_, err := a.Balances.BalanceFor(ctx, emp.ID, year)
	switch {
	case err == nil:
		report.Skipped++
		return false, nil
	case !errors.Is(err, generic.ErrEntityNotFound):
		return false, fmt.Errorf("employee %s: load %d balance: %w", emp.ID, year, err)
	}

	rule, err := rules.get(ctx, a.Rules, emp.Subsidiary, year)
	if err != nil {
		return false, fmt.Errorf("employee %s: load rule: %w", emp.ID, err)
	}
	if rule == nil {
		report.MissingRule++
		missing := &generic.MissingRuleError{Subsidiary: emp.Subsidiary, Year: year}
		logger.OrNop(a.Log).Warn().Str("employee_id", emp.ID.String()).Msg(missing.Error())
		a.audit(ctx, generic.AuditEntry{
			RunID: report.RunID, Action: generic.AuditRuleMissing,
			EmployeeID: emp.ID, Message: missing.Error(),
		})
		return false, nil
	}

	annual := AnnualEntitlement(*rule, emp, asOf)

	transferred := decimal.Zero
	if rule.TransferEnabled {
		prev, err := a.Balances.BalanceFor(ctx, emp.ID, year-1)
		switch {
		case err == nil:
			transferred = prev.Annual
		case errors.Is(err, generic.ErrEntityNotFound):
			a.audit(ctx, generic.AuditEntry{
				RunID: report.RunID, Action: generic.AuditBalanceAccrued,
				EmployeeID: emp.ID,
				Message:    fmt.Sprintf("no %d balance to carry over; transferred set to 0", year-1),
			})
		default:
			return false, fmt.Errorf("employee %s: load %d balance: %w", emp.ID, year-1, err)
		}
	}

	now := time.Now().UTC()
	bal := &Balance{
		ID:         uuid.NewString(),
		EmployeeID: emp.ID,
		Year:       year,
		Subsidiary: emp.Subsidiary,
		Department: emp.Department,
		Supervisor: emp.Supervisor,
		JobTitle:   emp.JobTitle,
		BalanceFields: BalanceFields{
			Annual:      annual,
			Casual:      rule.CasualDays,
			Sick:        rule.SickDays,
			Transferred: transferred,
			Replacement: decimal.Zero,
			Unpaid:      decimal.Zero,
		},
		StandardAnnual: annual,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.Balances.CreateBalance(ctx, bal); err != nil {
		if errors.Is(err, generic.ErrDuplicateRecord) {
			report.Skipped++
			return false, nil
		}
		return false, fmt.Errorf("employee %s: create %d balance: %w", emp.ID, year, err)
	}

	if a.IncrementExperience {
		if err := a.Employees.IncrementExperience(ctx, emp.ID); err != nil {
			return true, fmt.Errorf("employee %s: increment experience: %w", emp.ID, err)
		}
	}
	return true, nil
}

func (a *Accrual) audit(ctx context.Context, e generic.AuditEntry) {
	auditAppend(ctx, a.Audit, a.Log, e)
}

// =============================================================================
// TRANSFER RESET
// =============================================================================

// TransferReset expires carried-over days by zeroing every balance's
// transferred counter for a year.
type TransferReset struct {
	Balances BalanceStore
	Audit    generic.AuditLog
	Log      *logger.Logger
}

// ResetReport summarizes one reset run.
type ResetReport struct {
	RunID  string   `json:"run_id"`
	Year   int      `json:"year"`
	Reset  int      `json:"reset"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// Run zeroes transferred days on each of the year's balances. Each save is
// independent; failures are joined into the returned error.
func (r *TransferReset) Run(ctx context.Context, year int) (*ResetReport, error) {
	report := &ResetReport{RunID: uuid.NewString(), Year: year}
	log := logger.OrNop(r.Log).WithComponent("transfer-reset").WithRunID(report.RunID)

	balances, err := r.Balances.BalancesForYear(ctx, year)
	if err != nil {
		return report, fmt.Errorf("load %d balances: %w", year, err)
	}

	var errs []error
	for i := range balances {
		b := &balances[i]
		b.Transferred = decimal.Zero
		b.UpdatedAt = time.Now().UTC()
		if err := r.Balances.UpdateBalance(ctx, b); err != nil {
			err = fmt.Errorf("balance %s: %w", b.ID, err)
			report.Failed++
			report.Errors = append(report.Errors, err.Error())
			errs = append(errs, err)
			auditAppend(ctx, r.Audit, r.Log, generic.AuditEntry{
				RunID: report.RunID, Action: generic.AuditEmployeeFailed,
				EmployeeID: b.EmployeeID, Message: err.Error(),
			})
			continue
		}
		report.Reset++
	}

	auditAppend(ctx, r.Audit, r.Log, generic.AuditEntry{
		RunID: report.RunID, Action: generic.AuditTransferReset,
		Message: fmt.Sprintf("transferred days reset on %d balances for %d", report.Reset, year),
	})
	log.Info().Int("year", year).Int("reset", report.Reset).Int("failed", report.Failed).Msg("transfer reset finished")
	return report, errors.Join(errs...)
}

func auditAppend(ctx context.Context, audit generic.AuditLog, log *logger.Logger, e generic.AuditEntry) {
	if audit == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if err := audit.Append(ctx, e); err != nil {
		logger.OrNop(log).Warn().Err(err).Msg("audit append failed")
	}
}
