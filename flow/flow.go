// Package flow composes the aggregation, diff and apportionment engines into
// the compare, sync and transfer operations. All operator interaction goes
// through the Prompter interface so the engines stay UI-free.
package flow

import (
	"context"
	"fmt"
	"time"

	"timesync/provider"
	"timesync/reconcile"
	"timesync/timereg"
)

// Prompter answers the decisions a flow cannot take on its own. A flow hands
// over fully computed structures; rendering and input handling belong to the
// implementation.
type Prompter interface {
	// Confirm asks a yes/no question and returns the answer.
	Confirm(question string, defaultYes bool) (bool, error)

	// ConfirmDifferences shows differing registrations grouped by week and
	// asks whether the transfer should continue regardless.
	ConfirmDifferences(weeks []reconcile.WeekDifferences, titles map[string]string) (bool, error)

	// SelectMissing lets the operator pick the missing registrations to
	// transfer from the week -> day -> account tree.
	SelectMissing(weeks []reconcile.WeekMissing, titles map[string]string) ([]reconcile.Missing, error)

	// ReviewPlan offers repeated per-account overrides of an allocation plan.
	// It returns false when the operator declines the transfer entirely.
	ReviewPlan(plan *reconcile.Plan) (bool, error)
}

// identity fetches a provider's logged-in identity and requires the given
// identification types to be present.
func identity(ctx context.Context, p provider.TimeProvider, required ...string) (map[string]string, error) {
	idents, err := p.LoggedInIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve %s identity: %w", p.Name(), err)
	}
	for _, key := range required {
		if idents[key] == "" {
			return nil, fmt.Errorf("%s identity: %w", p.Name(), &provider.MissingIdentificationError{Key: key})
		}
	}
	return idents, nil
}

// syncRange returns the inclusive date range the sync flow reconciles: from
// the first day of the month five days ago through the last day of the
// current month. The five day grace keeps the previous month in scope at the
// start of a new one.
func syncRange(now time.Time) (time.Time, time.Time) {
	today := timereg.Day(now)
	monthCut := today.AddDate(0, 0, -5)
	start := time.Date(monthCut.Year(), monthCut.Month(), 1, 0, 0, 0, 0, time.Local)
	firstOfNext := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.Local).AddDate(0, 1, 0)
	return start, firstOfNext.AddDate(0, 0, -1)
}
