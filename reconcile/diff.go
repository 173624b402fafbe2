package reconcile

import (
	"fmt"
	"math"
	"sort"
	"time"

	"timesync/internal/timeutil"
	"timesync/timereg"
)

// Hour values this close to zero format as the empty string, matching a day
// with no registration at all.
const zeroEpsilon = 1e-9

// FormatHours renders an hour value at the 2-decimal granularity used for
// business equality. Equality of two sides is judged on these strings, not on
// raw floats, so sub-0.01h drift counts as a match.
func FormatHours(hours float64) string {
	if math.Abs(hours) < zeroEpsilon {
		return ""
	}
	return fmt.Sprintf("%.2f", hours)
}

// Difference is a (day, account) pair registered on both sides with unequal
// hours. Diff is signed: side B minus side A.
type Difference struct {
	Day     time.Time
	Account string
	Diff    float64
}

// Missing is a (day, account) pair registered on side A only.
type Missing struct {
	Day     time.Time
	Account string
	Hours   float64
}

// Result classifies every mismatching (day, account) pair of a diff run.
// Derived, consumed immediately, never persisted.
type Result struct {
	Differences []Difference
	Missing     []Missing
}

// Empty reports whether the diff found no mismatches at all.
func (r Result) Empty() bool {
	return len(r.Differences) == 0 && len(r.Missing) == 0
}

// Diff compares two aggregations day by day over [from, to] inclusive. Days
// absent from an aggregation contribute zero. Per day the account keys are the
// union of both sides, iterated in lexicographic order so output is
// reproducible. Pairs whose 2-decimal representations are equal are skipped;
// pairs where side B formats empty while side A does not are classified as
// missing (side A's raw hours); everything else is a difference of B minus A.
func Diff(aggA, aggB timereg.Aggregation, from, to time.Time) Result {
	var result Result

	for day := timereg.Day(from); !day.After(timereg.Day(to)); day = day.AddDate(0, 0, 1) {
		hoursA := aggA.Hours(day)
		hoursB := aggB.Hours(day)

		for _, account := range unionAccounts(hoursA, hoursB) {
			valueA := hoursA[account]
			valueB := hoursB[account]

			stringA := FormatHours(valueA)
			stringB := FormatHours(valueB)
			if stringA == stringB {
				continue
			}

			if stringB == "" {
				result.Missing = append(result.Missing, Missing{
					Day:     day,
					Account: account,
					Hours:   valueA,
				})
				continue
			}

			result.Differences = append(result.Differences, Difference{
				Day:     day,
				Account: account,
				Diff:    valueB - valueA,
			})
		}
	}

	return result
}

func unionAccounts(a, b map[string]float64) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for account := range a {
		seen[account] = struct{}{}
	}
	for account := range b {
		seen[account] = struct{}{}
	}

	accounts := make([]string, 0, len(seen))
	for account := range seen {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts
}

// WeekOf returns the display week-bucket for a diffed day.
func WeekOf(day time.Time) timeutil.YearWeek {
	return timeutil.WeekNumber(day)
}

// DifferencesByWeek groups differences by week-bucket for display, weeks in
// day order, entries within a week ordered by day then account.
func (r Result) DifferencesByWeek() []WeekDifferences {
	sorted := make([]Difference, len(r.Differences))
	copy(sorted, r.Differences)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Day.Equal(sorted[j].Day) {
			return sorted[i].Day.Before(sorted[j].Day)
		}
		return sorted[i].Account < sorted[j].Account
	})

	var weeks []WeekDifferences
	for _, diff := range sorted {
		week := WeekOf(diff.Day)
		if len(weeks) == 0 || weeks[len(weeks)-1].Week != week {
			weeks = append(weeks, WeekDifferences{Week: week})
		}
		last := &weeks[len(weeks)-1]
		last.Differences = append(last.Differences, diff)
	}
	return weeks
}

// WeekDifferences is the per-week slice of a grouped difference listing.
type WeekDifferences struct {
	Week        timeutil.YearWeek
	Differences []Difference
}

// MissingByWeek groups missing registrations into the week -> day -> account
// hierarchy used for selection, ordered by day and account throughout.
func (r Result) MissingByWeek() []WeekMissing {
	sorted := make([]Missing, len(r.Missing))
	copy(sorted, r.Missing)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Day.Equal(sorted[j].Day) {
			return sorted[i].Day.Before(sorted[j].Day)
		}
		return sorted[i].Account < sorted[j].Account
	})

	var weeks []WeekMissing
	for _, missing := range sorted {
		week := WeekOf(missing.Day)
		if len(weeks) == 0 || weeks[len(weeks)-1].Week != week {
			weeks = append(weeks, WeekMissing{Week: week})
		}
		weekGroup := &weeks[len(weeks)-1]

		if len(weekGroup.Days) == 0 || !weekGroup.Days[len(weekGroup.Days)-1].Day.Equal(missing.Day) {
			weekGroup.Days = append(weekGroup.Days, DayMissing{Day: missing.Day})
		}
		dayGroup := &weekGroup.Days[len(weekGroup.Days)-1]
		dayGroup.Entries = append(dayGroup.Entries, missing)
	}
	return weeks
}

// WeekMissing is one week of the missing-registration selection tree.
type WeekMissing struct {
	Week timeutil.YearWeek
	Days []DayMissing
}

// Hours sums every missing registration in the week.
func (w WeekMissing) Hours() float64 {
	total := 0.0
	for _, day := range w.Days {
		total += day.Hours()
	}
	return total
}

// DayMissing is one day of the missing-registration selection tree.
type DayMissing struct {
	Day     time.Time
	Entries []Missing
}

// Hours sums every missing registration on the day.
func (d DayMissing) Hours() float64 {
	total := 0.0
	for _, entry := range d.Entries {
		total += entry.Hours
	}
	return total
}
