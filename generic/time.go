package generic

import (
	"context"
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// DATE - Civil calendar day (no clock, no zone)
// =============================================================================

// Date is a calendar day. Attendance and leave records are keyed by Date,
// never by an instant, so a punch at 23:59 local time stays on its own day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func Today(loc *time.Location) Date { return DateOf(time.Now().In(loc)) }

// ParseDate parses an ISO "2006-01-02" date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// In returns midnight of the day in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) utc() time.Time { return d.In(time.UTC) }

// Comparison
func (d Date) Before(o Date) bool        { return d.utc().Before(o.utc()) }
func (d Date) After(o Date) bool         { return d.utc().After(o.utc()) }
func (d Date) Equal(o Date) bool         { return d == o }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return DateOf(d.utc().AddDate(0, 0, n)) }
func (d Date) AddMonths(n int) Date { return DateOf(d.utc().AddDate(0, n, 0)) }

// Properties
func (d Date) Weekday() time.Weekday { return d.utc().Weekday() }
func (d Date) IsZero() bool          { return d.Year == 0 && d.Month == 0 && d.Day == 0 }
func (d Date) String() string        { return d.utc().Format(dateLayout) }

func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the date as ISO text.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan reads ISO text (or a driver time) back into a Date.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// =============================================================================
// CLOCK TIME - Time of day used for grace boundaries
// =============================================================================

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return ClockTime{}, fmt.Errorf("parse clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, fmt.Errorf("parse clock %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("parse clock %q: bad minute", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

// On places the clock time on a day in loc.
func (c ClockTime) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// =============================================================================
// HOLIDAY CALENDAR - Company holidays
// =============================================================================

// Holiday is a company-wide non-working day.
type Holiday struct {
	ID        string `db:"id" json:"id"`
	Date      Date   `db:"date" json:"date"`
	Name      string `db:"name" json:"name"`
	Recurring bool   `db:"recurring" json:"recurring"` // same month/day every year
}

// HolidayCalendar provides holiday lookup for the working-days generator.
type HolidayCalendar interface {
	// HolidaysIn returns the holidays falling inside the period, with
	// recurring holidays projected onto the period's years.
	HolidaysIn(ctx context.Context, period Period) ([]Holiday, error)
}

// NoHolidays is a calendar with no holidays.
type NoHolidays struct{}

func (NoHolidays) HolidaysIn(context.Context, Period) ([]Holiday, error) { return nil, nil }

// =============================================================================
// WEEKEND
// =============================================================================

// Weekend is the set of weekly rest days.
type Weekend []time.Weekday

// DefaultWeekend is Friday and Saturday.
var DefaultWeekend = Weekend{time.Friday, time.Saturday}

func (w Weekend) Contains(day time.Weekday) bool {
	for _, d := range w {
		if d == day {
			return true
		}
	}
	return false
}

// ParseWeekend converts day names ("friday", "Sat") into a Weekend.
func ParseWeekend(names []string) (Weekend, error) {
	w := make(Weekend, 0, len(names))
	for _, name := range names {
		n := strings.ToLower(strings.TrimSpace(name))
		if n == "" {
			continue
		}
		found := false
		for d := time.Sunday; d <= time.Saturday; d++ {
			full := strings.ToLower(d.String())
			if n == full || n == full[:3] {
				w = append(w, d)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
	}
	return w, nil
}

// WorkingDays expands a month into its ordered non-weekend, non-holiday days.
func WorkingDays(ctx context.Context, cal HolidayCalendar, year int, month time.Month, weekend Weekend) ([]Date, error) {
	period := MonthPeriod(year, month)
	if cal == nil {
		cal = NoHolidays{}
	}
	holidays, err := cal.HolidaysIn(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("load holidays for %s: %w", period, err)
	}
	off := make(map[Date]bool, len(holidays))
	for _, h := range holidays {
		off[h.Date] = true
	}

	var days []Date
	for _, d := range period.Days() {
		if weekend.Contains(d.Weekday()) || off[d] {
			continue
		}
		days = append(days, d)
	}
	return days, nil
}

// =============================================================================
// TENURE - Coarse year/month approximations
// =============================================================================

const (
	daysPerYear  = 365.25
	daysPerMonth = 30.4375
)

// WholeYearsBetween counts 365.25-day years from `from` to `to`, floored.
func WholeYearsBetween(from, to Date) int {
	return int(math.Floor(daysBetween(from, to) / daysPerYear))
}

// WholeMonthsBetween counts 30.4375-day months from `from` to `to`, floored.
func WholeMonthsBetween(from, to Date) int {
	return int(math.Floor(daysBetween(from, to) / daysPerMonth))
}

func daysBetween(from, to Date) float64 {
	return to.utc().Sub(from.utc()).Hours() / 24
}
