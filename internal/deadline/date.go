package deadline

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidDate = errors.New("invalid date")
	ErrInvalidTime = errors.New("invalid time")
)

// Date is a civil calendar date without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

var reDate = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)

// ParseDate parses "D.M.YYYY" (day and month may be zero-padded).
func ParseDate(raw string) (Date, error) {
	m := reDate.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if year < 1 || month < 1 || month > 12 || day < 1 || day > daysIn(year, time.Month(month)) {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return Date{Year: year, Month: time.Month(month), Day: day}, nil
}

// Today returns the calendar date of now in now's location.
func Today(now time.Time) Date {
	y, m, d := now.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool { return d == Date{} }

// String renders the canonical storage form DD.MM.YYYY.
func (d Date) String() string {
	return fmt.Sprintf("%02d.%02d.%04d", d.Day, int(d.Month), d.Year)
}

func (d Date) t() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return Today(d.t().AddDate(0, 0, n))
}

// NextMonthClamped moves to the same day of the following month, clamped to
// that month's last day.
func (d Date) NextMonthClamped() Date {
	y, m := d.Year, d.Month+1
	if m > time.December {
		y, m = y+1, time.January
	}
	day := d.Day
	if last := daysIn(y, m); day > last {
		day = last
	}
	return Date{Year: y, Month: m, Day: day}
}

func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// DaysUntil returns the signed number of days from today to d.
func (d Date) DaysUntil(today Date) int {
	return int(d.t().Sub(today.t()).Hours() / 24)
}

// Weekday of the date.
func (d Date) Weekday() time.Weekday { return d.t().Weekday() }

// DaysIn reports the number of days in the given month.
func DaysIn(year int, month time.Month) int { return daysIn(year, month) }

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
