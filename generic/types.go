/*
Package generic provides the domain-agnostic building blocks of the
attendance and leave engine.

PURPOSE:
  Calendar days, periods, durations, identifiers, errors and audit
  plumbing shared by the attendance, compensation and timeoff packages.
  Nothing here knows about punches, permissions or leave rules.

KEY CONCEPTS IN THIS FILE (types.go):
  - Millis: A signed duration in integer milliseconds
  - EmployeeID: Type-safe employee identifier
  - MaxSearchRows: The row ceiling every record search respects

DESIGN PRINCIPLES:
  1. Integer arithmetic: durations never pass through floating point
  2. Precision: leave days use decimal.Decimal
  3. Type Safety: strong typing for IDs

USAGE:
  worked := generic.MillisBetween(checkIn, checkOut)
  fmt.Println(worked.Format(true)) // "08:50:00"

SEE ALSO:
  - time.go: Date, ClockTime, working days
  - period.go: Period ranges
  - errors.go: Sentinel errors
*/
package generic

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxSearchRows is the ceiling on rows returned by a single record search.
const MaxSearchRows = 999

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string

func (id EmployeeID) String() string { return string(id) }

// =============================================================================
// MILLIS - Signed duration in integer milliseconds
// =============================================================================

type Millis int64

const (
	Millisecond Millis = 1
	Second             = 1000 * Millisecond
	Minute             = 60 * Second
	Hour               = 60 * Minute
	Day                = 24 * Hour
)

// MillisBetween returns to - from.
func MillisBetween(from, to time.Time) Millis {
	return Millis(to.Sub(from).Milliseconds())
}

func MinutesOf(n int64) Millis { return Millis(n) * Minute }

func (m Millis) Abs() Millis {
	if m < 0 {
		return -m
	}
	return m
}

// CeilMinutes rounds the magnitude up to whole minutes and keeps the sign.
func (m Millis) CeilMinutes() int64 {
	whole := int64(math.Ceil(float64(m.Abs()) / float64(Minute)))
	if m < 0 {
		return -whole
	}
	return whole
}

func (m Millis) Duration() time.Duration { return time.Duration(m) * time.Millisecond }

// Format renders the duration as zero-padded HH:MM:SS. Negative values get a
// leading "-". With ignoreSeconds the seconds field is always "00".
func (m Millis) Format(ignoreSeconds bool) string {
	sign := ""
	if m < 0 {
		sign = "-"
	}
	total := int64(m.Abs() / Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if ignoreSeconds {
		seconds = 0
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, hours, minutes, seconds)
}

func (m Millis) String() string { return m.Format(false) }

// ParseHHMMSS parses "HH:MM:SS" (or "HH:MM"), with an optional leading "-".
func ParseHHMMSS(s string) (Millis, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	parts := strings.Split(strings.TrimPrefix(s, "-"), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("parse duration %q: want HH:MM:SS", s)
	}
	units := []Millis{Hour, Minute, Second}
	var total Millis
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("parse duration %q: bad field %q", s, p)
		}
		total += Millis(n) * units[i]
	}
	if neg {
		total = -total
	}
	return total, nil
}

// MinutesToText renders a period of minutes for people: "45 minutes",
// "1 hour", "2 hours & 15 minutes".
func MinutesToText(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d minutes", minutes)
	}
	hours := minutes / 60
	rest := minutes % 60
	text := fmt.Sprintf("%d hour", hours)
	if hours > 1 {
		text += "s"
	}
	if rest > 0 {
		text += fmt.Sprintf(" & %d minutes", rest)
	}
	return text
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

// MustParseDecimal parses s, returning zero on malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
