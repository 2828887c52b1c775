/*
Package factory provides JSON to Go leave rule conversion.

PURPOSE:
  Converts JSON rule definitions into timeoff.LeaveRule values, so HR can
  configure a subsidiary's yearly entitlements without code changes. The
  same documents seed the leave_rules table from the CLI and are accepted
  by the rules endpoint.

JSON SCHEMA:
  {
    "subsidiary": "1",
    "year": 2025,
    "casual_days": 7,
    "sick_days": 15,
    "annual_normal": 21,
    "annual_experienced": 30,
    "annual_elderly": 30,
    "elderly_age": 50,
    "experience_from_hire_date": false,
    "transfer_enabled": true,
    "probation_months": 3,
    "permission_hours": 2,
    "casual_as_annual": false
  }

DEFAULTS:
  Omitted day counts and thresholds take the value from
  timeoff.StandardRule. Booleans default to false except transfer_enabled,
  which follows the preset when omitted.

USAGE:
  f := factory.NewRuleFactory()
  rule, err := f.ParseRule(jsonString)
  rules, err := f.ParseRules(jsonArray)

SEE ALSO:
  - timeoff/policies.go: LeaveRule and presets
  - cmd/attendctl: seed-rules command
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-ledger/timeoff"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of a leave rule.
type RuleJSON struct {
	Subsidiary              string   `json:"subsidiary" validate:"required"`
	Year                    int      `json:"year" validate:"required,gte=2000,lte=2100"`
	CasualDays              *float64 `json:"casual_days,omitempty" validate:"omitempty,gte=0"`
	SickDays                *float64 `json:"sick_days,omitempty" validate:"omitempty,gte=0"`
	AnnualNormal            *float64 `json:"annual_normal,omitempty" validate:"omitempty,gte=0"`
	AnnualExperienced       *float64 `json:"annual_experienced,omitempty" validate:"omitempty,gte=0"`
	AnnualElderly           *float64 `json:"annual_elderly,omitempty" validate:"omitempty,gte=0"`
	ElderlyAge              *int     `json:"elderly_age,omitempty" validate:"omitempty,gte=0,lte=120"`
	ExperienceFromHireDate  bool     `json:"experience_from_hire_date,omitempty"`
	TransferEnabled         *bool    `json:"transfer_enabled,omitempty"`
	ProbationMonths         *int     `json:"probation_months,omitempty" validate:"omitempty,gte=0,lte=36"`
	PermissionHoursPerMonth *int     `json:"permission_hours,omitempty" validate:"omitempty,gte=0,lte=744"`
	CasualAsAnnual          bool     `json:"casual_as_annual,omitempty"`
}

// =============================================================================
// FACTORY
// =============================================================================

type RuleFactory struct{}

func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParseRule parses and validates one rule document.
func (f *RuleFactory) ParseRule(jsonStr string) (*timeoff.LeaveRule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// ParseRules parses a JSON array of rule documents. The first invalid
// document fails the whole batch.
func (f *RuleFactory) ParseRules(jsonStr string) ([]timeoff.LeaveRule, error) {
	var docs []RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &docs); err != nil {
		return nil, fmt.Errorf("failed to parse rules JSON: %w", err)
	}
	rules := make([]timeoff.LeaveRule, 0, len(docs))
	for i, rj := range docs {
		r, err := f.FromJSON(rj)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, *r)
	}
	return rules, nil
}

// FromJSON validates rj and fills omitted values from timeoff.StandardRule.
func (f *RuleFactory) FromJSON(rj RuleJSON) (*timeoff.LeaveRule, error) {
	if err := Validate(rj); err != nil {
		return nil, err
	}

	r := timeoff.StandardRule(rj.Subsidiary, rj.Year)
	setDays(&r.CasualDays, rj.CasualDays)
	setDays(&r.SickDays, rj.SickDays)
	setDays(&r.AnnualNormal, rj.AnnualNormal)
	setDays(&r.AnnualExperienced, rj.AnnualExperienced)
	setDays(&r.AnnualElderly, rj.AnnualElderly)
	setInt(&r.ElderlyAgeThreshold, rj.ElderlyAge)
	setInt(&r.ProbationMonths, rj.ProbationMonths)
	setInt(&r.PermissionHoursPerMonth, rj.PermissionHoursPerMonth)
	if rj.TransferEnabled != nil {
		r.TransferEnabled = *rj.TransferEnabled
	}
	r.ExperienceBasedOnHireDate = rj.ExperienceFromHireDate
	r.CasualCountsAsAnnual = rj.CasualAsAnnual
	return &r, nil
}

// ToJSON converts a rule back to its JSON form with every value set.
func (f *RuleFactory) ToJSON(r timeoff.LeaveRule) RuleJSON {
	return RuleJSON{
		Subsidiary:              r.Subsidiary,
		Year:                    r.Year,
		CasualDays:              floatPtr(r.CasualDays),
		SickDays:                floatPtr(r.SickDays),
		AnnualNormal:            floatPtr(r.AnnualNormal),
		AnnualExperienced:       floatPtr(r.AnnualExperienced),
		AnnualElderly:           floatPtr(r.AnnualElderly),
		ElderlyAge:              &r.ElderlyAgeThreshold,
		ExperienceFromHireDate:  r.ExperienceBasedOnHireDate,
		TransferEnabled:         &r.TransferEnabled,
		ProbationMonths:         &r.ProbationMonths,
		PermissionHoursPerMonth: &r.PermissionHoursPerMonth,
		CasualAsAnnual:          r.CasualCountsAsAnnual,
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func setDays(dst *decimal.Decimal, v *float64) {
	if v != nil {
		*dst = decimal.NewFromFloat(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func floatPtr(d decimal.Decimal) *float64 {
	f, _ := d.Float64()
	return &f
}
