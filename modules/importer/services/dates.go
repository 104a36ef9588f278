package services

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

var (
	serialEpoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

	reDayMonthYear     = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
	reDayMonthNameYear = regexp.MustCompile(`^(\d{1,2})[\s/-]+([a-z]{3,})\.?[\s/-]+(\d{4})$`)
	reMonthNameYearDay = regexp.MustCompile(`^([a-z]{3,})[/-](\d{4})[/-](\d{1,2})$`)
	reYearMonthNameDay = regexp.MustCompile(`^(\d{4})[\s/-]+([a-z]{3,})[\s/-]+(\d{1,2})$`)
	reYearMonthDay     = regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})$`)
	reCompact          = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
	reShortYear        = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2})$`)
	reMonthNameDayYear = regexp.MustCompile(`^([a-z]{3,})\.?\s+(\d{1,2}),?\s+(\d{4})$`)
	reSerial           = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// ParseDate accepts the day-first, year-first, month-name and serial forms
// found in the import templates. Day-first wins over month-first when both fit.
func ParseDate(s string) (time.Time, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}

	if m := reDayMonthYear.FindStringSubmatch(v); m != nil {
		if t, ok := buildDate(m[3], m[2], m[1]); ok {
			return t, nil
		}
		// 12/25/2024
		if t, ok := buildDate(m[3], m[1], m[2]); ok {
			return t, nil
		}
	}
	if m := reDayMonthNameYear.FindStringSubmatch(v); m != nil {
		if t, ok := buildNamedDate(m[3], m[2], m[1]); ok {
			return t, nil
		}
	}
	if m := reMonthNameYearDay.FindStringSubmatch(v); m != nil {
		if t, ok := buildNamedDate(m[2], m[1], m[3]); ok {
			return t, nil
		}
	}
	if m := reYearMonthNameDay.FindStringSubmatch(v); m != nil {
		if t, ok := buildNamedDate(m[1], m[2], m[3]); ok {
			return t, nil
		}
	}
	if m := reYearMonthDay.FindStringSubmatch(v); m != nil {
		if t, ok := buildDate(m[1], m[2], m[3]); ok {
			return t, nil
		}
	}
	if m := reCompact.FindStringSubmatch(v); m != nil {
		if t, ok := buildDate(m[1], m[2], m[3]); ok {
			return t, nil
		}
	}
	if m := reShortYear.FindStringSubmatch(v); m != nil {
		yy, _ := strconv.Atoi(m[3])
		year := 1900 + yy
		if yy <= 50 {
			year = 2000 + yy
		}
		if t, ok := buildDate(strconv.Itoa(year), m[2], m[1]); ok {
			return t, nil
		}
	}
	if m := reMonthNameDayYear.FindStringSubmatch(v); m != nil {
		if t, ok := buildNamedDate(m[3], m[1], m[2]); ok {
			return t, nil
		}
	}
	if reSerial.MatchString(v) {
		serial, err := strconv.ParseFloat(v, 64)
		if err == nil && serial >= minDateSerial && serial <= maxDateSerial {
			if t, ok := DateFromSerial(serial); ok {
				return t, nil
			}
		}
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
		if d, ok := makeDate(t.Year(), t.Month(), t.Day()); ok {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// NormalizeDate returns s as YYYY-MM-DD, or false when it is not a date.
func NormalizeDate(s string) (string, bool) {
	t, err := ParseDate(s)
	if err != nil {
		return "", false
	}
	return FormatDate(t), true
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// DateFromSerial converts a spreadsheet serial day number. The spreadsheet
// counts a nonexistent 1900-02-29, hence the two-day offset.
func DateFromSerial(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, false
	}
	days := int(math.Floor(serial)) - 2
	t := serialEpoch.AddDate(0, 0, days)
	return makeDate(t.Year(), t.Month(), t.Day())
}

func buildDate(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, false
	}
	return makeDate(y, time.Month(m), d)
}

func buildNamedDate(year, month, day string) (time.Time, bool) {
	m, ok := monthNames[strings.TrimSuffix(month, ".")]
	if !ok {
		return time.Time{}, false
	}
	return buildDate(year, strconv.Itoa(int(m)), day)
}

// makeDate rejects overflowing days, years outside 1900-2100 and the
// January 1900 placeholders produced by empty serial cells.
func makeDate(year int, month time.Month, day int) (time.Time, bool) {
	if year < 1900 || year > 2100 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	if year == 1900 && month == time.January {
		return time.Time{}, false
	}
	return t, true
}
