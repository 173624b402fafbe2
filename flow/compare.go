package flow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"timesync/provider"
	"timesync/reconcile"
	"timesync/timereg"
)

// CompareRow is one (day, account) line of a compare report. Hours are the
// 2-decimal strings equality is judged on; a zero side renders empty.
type CompareRow struct {
	Day         time.Time
	Account     string
	SourceHours string
	TargetHours string
	Match       bool
}

// CompareReport is the day-ordered, account-ordered tabular result of a
// compare run.
type CompareReport struct {
	SourceName string
	TargetName string
	Rows       []CompareRow
}

// Compare fetches both sides for the inclusive range, aggregates them by day
// and invoice account, and emits one row per (day, account in the union of
// both sides). Days absent from both sides produce no rows.
func Compare(ctx context.Context, source, target provider.TimeProvider, registrant *timereg.Registrant, from, to time.Time) (CompareReport, error) {
	report := CompareReport{SourceName: source.Name(), TargetName: target.Name()}

	sourceEntries, err := source.FetchEntries(ctx, registrant, from, to)
	if err != nil {
		return report, fmt.Errorf("fetch %s entries: %w", source.Name(), err)
	}
	targetEntries, err := target.FetchEntries(ctx, registrant, from, to)
	if err != nil {
		return report, fmt.Errorf("fetch %s entries: %w", target.Name(), err)
	}

	byAccount := timereg.ByAccountIdentification(timereg.IdentInvoiceAccount)
	sourceAgg := timereg.Aggregate(sourceEntries, byAccount)
	targetAgg := timereg.Aggregate(targetEntries, byAccount)

	for day := timereg.Day(from); !day.After(timereg.Day(to)); day = day.AddDate(0, 0, 1) {
		sourceHours := sourceAgg.Hours(day)
		targetHours := targetAgg.Hours(day)

		accounts := make([]string, 0, len(sourceHours)+len(targetHours))
		seen := make(map[string]struct{})
		for account := range sourceHours {
			accounts = append(accounts, account)
			seen[account] = struct{}{}
		}
		for account := range targetHours {
			if _, ok := seen[account]; !ok {
				accounts = append(accounts, account)
			}
		}
		sort.Strings(accounts)

		for _, account := range accounts {
			sourceString := reconcile.FormatHours(sourceHours[account])
			targetString := reconcile.FormatHours(targetHours[account])
			report.Rows = append(report.Rows, CompareRow{
				Day:         day,
				Account:     account,
				SourceHours: sourceString,
				TargetHours: targetString,
				Match:       sourceString == targetString,
			})
		}
	}

	return report, nil
}
