/*
policies.go - Leave rules and ready-made presets

PURPOSE:
  A LeaveRule is a subsidiary's entitlement policy for one year. Accrual
  reads it once per subsidiary per run; the cascade reads its monthly
  permission hours.

AVAILABLE PRESETS:
  StandardRule:   21/30 annual, 7 casual, elderly at 50, 3-month probation
  NoTransferRule: StandardRule without carry-over

EXAMPLE:
  rule := timeoff.StandardRule("1", 2025)
  rule.PermissionHoursPerMonth = 4

SEE ALSO:
  - accrual.go: Entitlement computation
  - factory/rule.go: JSON-based rule creation
*/
package timeoff

import (
	"github.com/shopspring/decimal"
)

// ExperiencedYears is the tenure (or recorded experience) that earns the
// experienced entitlement.
const ExperiencedYears = 10

// LeaveRule is a subsidiary's entitlement policy for a year.
type LeaveRule struct {
	Subsidiary                string          `db:"subsidiary" json:"subsidiary"`
	Year                      int             `db:"year" json:"year"`
	CasualDays                decimal.Decimal `db:"casual_days" json:"casual_days"`
	SickDays                  decimal.Decimal `db:"sick_days" json:"sick_days"`
	AnnualNormal              decimal.Decimal `db:"annual_normal" json:"annual_normal"`
	AnnualExperienced         decimal.Decimal `db:"annual_experienced" json:"annual_experienced"`
	AnnualElderly             decimal.Decimal `db:"annual_elderly" json:"annual_elderly"`
	ElderlyAgeThreshold       int             `db:"elderly_age" json:"elderly_age"`
	ExperienceBasedOnHireDate bool            `db:"experience_from_hire_date" json:"experience_from_hire_date"`
	TransferEnabled           bool            `db:"transfer_enabled" json:"transfer_enabled"`
	ProbationMonths           int             `db:"probation_months" json:"probation_months"`
	PermissionHoursPerMonth   int             `db:"permission_hours" json:"permission_hours"`
	// CasualCountsAsAnnual means casual leave also draws on the annual
	// counter, so restoring casual days restores annual days too.
	CasualCountsAsAnnual bool `db:"casual_as_annual" json:"casual_as_annual"`
}

// StandardRule returns a typical rule with carry-over enabled.
func StandardRule(subsidiary string, year int) LeaveRule {
	return LeaveRule{
		Subsidiary:              subsidiary,
		Year:                    year,
		CasualDays:              decimal.NewFromInt(7),
		SickDays:                decimal.NewFromInt(15),
		AnnualNormal:            decimal.NewFromInt(21),
		AnnualExperienced:       decimal.NewFromInt(30),
		AnnualElderly:           decimal.NewFromInt(30),
		ElderlyAgeThreshold:     50,
		TransferEnabled:         true,
		ProbationMonths:         3,
		PermissionHoursPerMonth: 2,
	}
}

// NoTransferRule returns StandardRule without carry-over.
func NoTransferRule(subsidiary string, year int) LeaveRule {
	r := StandardRule(subsidiary, year)
	r.TransferEnabled = false
	return r
}
