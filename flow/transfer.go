package flow

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"timesync/cache"
	"timesync/provider"
	"timesync/reconcile"
	"timesync/timereg"
)

// TransferDeps wires a transfer run. Timer is the fetch-only personal timer
// service, Worklog the service the quantized entries are created in.
type TransferDeps struct {
	Timer    provider.TimeProvider
	Worklog  provider.TimeProvider
	Cache    *cache.Store
	Prompter Prompter
	Log      zerolog.Logger

	// Now defaults to time.Now; injectable for tests.
	Now func() time.Time
}

// Transfer moves the most recent unprocessed day of timer entries to the
// worklog service. Continuous timer fragments are apportioned to quarter
// hours, offered for per-account override, created, and the last-transfer
// date in the cache is advanced to the processed day.
func Transfer(ctx context.Context, deps TransferDeps) error {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}

	timerIdent, err := identity(ctx, deps.Timer, timereg.IdentTimerWorkspace)
	if err != nil {
		return err
	}
	worklogIdent, err := identity(ctx, deps.Worklog, timereg.IdentAtlassianID)
	if err != nil {
		return err
	}

	registrant := &timereg.Registrant{
		Identifications: map[string]string{
			timereg.IdentTimerWorkspace: timerIdent[timereg.IdentTimerWorkspace],
			timereg.IdentAtlassianID:    worklogIdent[timereg.IdentAtlassianID],
		},
	}

	var lastTransfer time.Time
	hasLast, err := deps.Cache.Get(cache.KeyLastTransferDate, &lastTransfer)
	if err != nil {
		return err
	}

	today := timereg.Day(now())
	from := today.AddDate(0, 0, -4)
	if hasLast {
		from = timereg.Day(lastTransfer).AddDate(0, 0, 1)
	}
	if from.After(now()) {
		deps.Log.Info().Msg("no unprocessed days to transfer")
		return nil
	}

	entries, err := deps.Timer.FetchEntries(ctx, registrant, from, today)
	if err != nil {
		return fmt.Errorf("fetch %s entries: %w", deps.Timer.Name(), err)
	}
	if len(entries) == 0 {
		deps.Log.Info().Msg("no timer entries to transfer")
		return nil
	}

	// With a recorded last transfer, work forward through the backlog one day
	// at a time; on a first run only the latest day is trustworthy.
	day := entries[0].DateExecuted
	for _, entry := range entries[1:] {
		if hasLast && entry.DateExecuted.Before(day) {
			day = entry.DateExecuted
		}
		if !hasLast && entry.DateExecuted.After(day) {
			day = entry.DateExecuted
		}
	}

	plan, err := buildDayPlan(day, entries)
	if err != nil {
		return err
	}

	proceed, err := deps.Prompter.ReviewPlan(&plan)
	if err != nil {
		return err
	}
	if !proceed {
		deps.Log.Info().Msg("transfer declined")
		return nil
	}

	created := 0
	for _, allocation := range sortedAllocations(plan) {
		if allocation.Key == "" || math.Abs(allocation.Hours) < 1e-9 {
			continue
		}
		entry := timereg.NewEntry(registrant, allocation.Hours, day, map[string]string{
			timereg.IdentIssueKey: allocation.Key,
		})
		if err := deps.Worklog.CreateEntry(ctx, entry); err != nil {
			return fmt.Errorf("create entry on %s for %s: %w", deps.Worklog.Name(), allocation.Key, err)
		}
		deps.Log.Info().
			Str("issue", allocation.Key).
			Float64("hours", allocation.Hours).
			Msg("transferred allocation")
		created++
	}

	if err := deps.Cache.Set(cache.KeyLastTransferDate, day); err != nil {
		return fmt.Errorf("advance last transfer date: %w", err)
	}

	deps.Log.Info().
		Time("day", day).
		Int("count", created).
		Float64("hours", plan.Total()).
		Msg("transfer complete")
	return nil
}

// buildDayPlan groups one day's timer entries by issue key in first-seen
// order (the apportionment tie-break) and quantizes them to quarter hours.
func buildDayPlan(day time.Time, entries []timereg.Entry) (reconcile.Plan, error) {
	type group struct {
		hours        float64
		descriptions []string
	}

	var order []string
	groups := make(map[string]*group)
	for _, entry := range entries {
		if !entry.DateExecuted.Equal(day) {
			continue
		}

		key, _ := entry.AccountIdentification(timereg.IdentIssueKey)
		grp, ok := groups[key]
		if !ok {
			grp = &group{}
			groups[key] = grp
			order = append(order, key)
		}
		grp.hours += entry.TimeUsed

		description, ok := entry.AccountIdentification(timereg.IdentSourceDescription)
		if !ok {
			return reconcile.Plan{}, &provider.MissingIdentificationError{Key: timereg.IdentSourceDescription}
		}
		if !contains(grp.descriptions, description) {
			grp.descriptions = append(grp.descriptions, description)
		}
	}

	shares := make([]reconcile.Share, 0, len(order))
	for _, key := range order {
		grp := groups[key]
		shares = append(shares, reconcile.Share{
			Key:         key,
			Hours:       grp.hours,
			Description: strings.Join(grp.descriptions, "; "),
		})
	}

	return reconcile.Apportion(day, shares), nil
}

func sortedAllocations(plan reconcile.Plan) []reconcile.Allocation {
	allocations := make([]reconcile.Allocation, len(plan.Allocations))
	copy(allocations, plan.Allocations)
	sort.Slice(allocations, func(i, j int) bool { return allocations[i].Key < allocations[j].Key })
	return allocations
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
