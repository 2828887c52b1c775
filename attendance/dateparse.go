package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var monthNames = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// ParsePunchTime reads a time-clock timestamp. Dates are day-first:
//
//	10/03/2024 8:10
//	10-Mar-24 08:10 PM
//	10/3/2024 17:00:45
//
// The date separator is "/" or "-", the month is numeric or a month name,
// and a two-digit year is taken as 20YY. Seconds are ignored.
func ParsePunchTime(raw string, loc *time.Location) (time.Time, error) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return time.Time{}, fmt.Errorf("punch time %q: want date and time", raw)
	}

	year, month, day, err := parsePunchDate(fields[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("punch time %q: %w", raw, err)
	}

	marker := ""
	if len(fields) > 2 {
		marker = strings.ToUpper(fields[2])
	}
	hour, minute, err := parsePunchClock(fields[1], marker)
	if err != nil {
		return time.Time{}, fmt.Errorf("punch time %q: %w", raw, err)
	}

	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, fmt.Errorf("punch time %q: no such day", raw)
	}
	return t, nil
}

func parsePunchDate(s string) (int, time.Month, int, error) {
	sep := "-"
	if strings.Contains(s, "/") {
		sep = "/"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("date %q: want day%smonth%syear", s, sep, sep)
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil || day < 1 || day > 31 {
		return 0, 0, 0, fmt.Errorf("date %q: bad day", s)
	}

	var month time.Month
	if n, err := strconv.Atoi(parts[1]); err == nil {
		month = time.Month(n)
	} else {
		name := strings.ToLower(parts[1])
		for i, m := range monthNames {
			if strings.HasPrefix(name, m) {
				month = time.Month(i + 1)
				break
			}
		}
	}
	if month < time.January || month > time.December {
		return 0, 0, 0, fmt.Errorf("date %q: bad month", s)
	}

	yearText := parts[2]
	if len(yearText) < 4 {
		yearText = "20" + yearText
	}
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("date %q: bad year", s)
	}
	return year, month, day, nil
}

func parsePunchClock(s, marker string) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("clock %q: want H:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("clock %q: bad hour", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock %q: bad minute", s)
	}

	switch marker {
	case "":
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 12 {
			hour += 12
		}
	default:
		return 0, 0, fmt.Errorf("clock %q: unknown marker %q", s, marker)
	}
	if hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("clock %q: bad hour", s)
	}
	return hour, minute, nil
}
