package timeutil

import (
	"fmt"
	"time"
)

func StartOfDay(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, value.Location())
}

func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// YearWeek is the week-bucket used for grouping reconciliation output.
type YearWeek struct {
	Year int
	Week int
}

// Label renders the bucket for display, e.g. "2026, week 35".
func (yw YearWeek) Label() string {
	return fmt.Sprintf("%d, week %d", yw.Year, yw.Week)
}

// WeekNumber computes the Danish (Monday-first, ISO-like) week number of the
// date. A high week number in January belongs to the previous year and a low
// week number in December to the next.
func WeekNumber(date time.Time) YearWeek {
	week := danishWeekNumber(date.Year(), int(date.Month()), date.Day())
	if date.Month() == time.January && week > 6 {
		return YearWeek{Year: date.Year() - 1, Week: week}
	}
	if date.Month() == time.December && week < 6 {
		return YearWeek{Year: date.Year() + 1, Week: week}
	}
	return YearWeek{Year: date.Year(), Week: week}
}

// danishWeekNumber derives the week from the Julian day number so the result
// does not depend on the process locale.
func danishWeekNumber(year, month, day int) int {
	a := (14 - month) / 12
	y := year + 4800 - a
	m := month + 12*a - 3
	jd := day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
	d4 := (((jd + 31741 - jd%7) % 146097) % 36524) % 1461
	l := d4 / 1460
	d1 := (d4-l)%365 + l
	return d1/7 + 1
}
