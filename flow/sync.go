package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"timesync/cache"
	"timesync/provider"
	"timesync/reconcile"
	"timesync/timereg"
)

// ErrUnresolvedAccounts aborts a sync when source entries without a
// resolvable invoice account remain after the operator declined a cache
// retry. Transferring unattributed time is never done silently.
var ErrUnresolvedAccounts = errors.New("cannot transfer time registration entries without an account")

// AccountCacheInvalidator is implemented by providers that memoize account
// resolutions between fetches. Sync invalidates through it so the in-memory
// state drops together with the durable keys; deleting the durable keys alone
// would leave the memo to repopulate them with stale data on the next flush.
type AccountCacheInvalidator interface {
	InvalidateAccountCaches() error
}

// SyncDeps wires a sync run. Source is the authoritative worklog service,
// Target the system missing registrations are created in.
type SyncDeps struct {
	Source   provider.TimeProvider
	Target   provider.TimeProvider
	Cache    *cache.Store
	Prompter Prompter
	Log      zerolog.Logger

	// Now defaults to time.Now; injectable for tests.
	Now func() time.Time
}

// Sync reconciles the current month (plus a five day grace into the previous
// one) between source and target. Differing registrations are listed and need
// operator confirmation to continue; missing ones are offered as a selectable
// week/day/account tree and the chosen subset is created on the target.
func Sync(ctx context.Context, deps SyncDeps) error {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}

	sourceIdent, err := identity(ctx, deps.Source, timereg.IdentAtlassianID)
	if err != nil {
		return err
	}
	targetIdent, err := identity(ctx, deps.Target, timereg.IdentFullName)
	if err != nil {
		return err
	}

	registrant := &timereg.Registrant{
		Name: targetIdent[timereg.IdentFullName],
		Identifications: map[string]string{
			timereg.IdentFullName:    targetIdent[timereg.IdentFullName],
			timereg.IdentAtlassianID: sourceIdent[timereg.IdentAtlassianID],
		},
	}

	// Account resolutions may be stale from a previous run; drop them so the
	// source re-resolves against live data.
	if err := invalidateAccountCaches(deps); err != nil {
		return err
	}

	from, to := syncRange(now())
	deps.Log.Info().
		Time("from", from).
		Time("to", to).
		Str("source", deps.Source.Name()).
		Str("target", deps.Target.Name()).
		Msg("starting sync")

	sourceAgg, titles, err := fetchResolvedAggregation(ctx, deps, registrant, from, to)
	if err != nil {
		return err
	}

	targetEntries, err := deps.Target.FetchEntries(ctx, registrant, from, to)
	if err != nil {
		return fmt.Errorf("fetch %s entries: %w", deps.Target.Name(), err)
	}
	targetAgg := timereg.Aggregate(targetEntries, timereg.ByAccountIdentification(timereg.IdentInvoiceAccount))

	diff := reconcile.Diff(sourceAgg, targetAgg, from, to)

	if len(diff.Differences) > 0 {
		proceed, err := deps.Prompter.ConfirmDifferences(diff.DifferencesByWeek(), titles)
		if err != nil {
			return err
		}
		if !proceed {
			deps.Log.Info().Msg("sync aborted after difference review")
			return nil
		}
	}

	if len(diff.Missing) == 0 {
		deps.Log.Info().Msg("no additional time registration entries to transfer")
		return nil
	}

	selected, err := deps.Prompter.SelectMissing(diff.MissingByWeek(), titles)
	if err != nil {
		return err
	}

	for _, missing := range selected {
		entry := timereg.NewEntry(registrant, missing.Hours, missing.Day, map[string]string{
			timereg.IdentInvoiceAccount:     missing.Account,
			timereg.IdentInvoiceAccountText: accountTitle(titles, missing.Account),
		})
		if err := deps.Target.CreateEntry(ctx, entry); err != nil {
			return fmt.Errorf("create entry on %s for %s/%s: %w",
				deps.Target.Name(), missing.Day.Format("2006-01-02"), missing.Account, err)
		}
		deps.Log.Info().
			Time("day", missing.Day).
			Str("account", missing.Account).
			Float64("hours", missing.Hours).
			Msg("transferred entry")
	}

	deps.Log.Info().Int("count", len(selected)).Msg("all chosen time registration entries were transferred")
	return nil
}

// fetchResolvedAggregation fetches and aggregates source entries, surfacing
// entries whose invoice account could not be resolved. The operator may clear
// the account caches and retry, which recomputes everything downstream of the
// stale keys; declining fails the sync.
func fetchResolvedAggregation(
	ctx context.Context,
	deps SyncDeps,
	registrant *timereg.Registrant,
	from, to time.Time,
) (timereg.Aggregation, map[string]string, error) {
	for {
		entries, err := deps.Source.FetchEntries(ctx, registrant, from, to)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch %s entries: %w", deps.Source.Name(), err)
		}

		agg := timereg.Aggregate(entries, timereg.ByAccountIdentification(timereg.IdentInvoiceAccount))

		unresolved := agg.UnresolvedBuckets()
		if len(unresolved) == 0 {
			return agg, collectAccountTitles(agg), nil
		}

		var problems []string
		for _, bucket := range unresolved {
			for _, entry := range bucket.Entries {
				issue, ok := entry.AccountIdentification(timereg.IdentIssueKey)
				if !ok {
					return nil, nil, &provider.MissingIdentificationError{Key: timereg.IdentIssueKey}
				}
				problems = append(problems, fmt.Sprintf("missing/closed account on issue %s", issue))
			}
		}
		deps.Log.Warn().Msg(strings.Join(problems, "\n"))

		retry, err := deps.Prompter.Confirm("Clear cache and try again?", false)
		if err != nil {
			return nil, nil, err
		}
		if !retry {
			return nil, nil, ErrUnresolvedAccounts
		}
		if err := invalidateAccountCaches(deps); err != nil {
			return nil, nil, err
		}
	}
}

// invalidateAccountCaches drops the source's account resolutions. Providers
// that memoize resolutions in memory expose AccountCacheInvalidator and clear
// both layers themselves; for anything else only the durable keys exist.
func invalidateAccountCaches(deps SyncDeps) error {
	if invalidator, ok := deps.Source.(AccountCacheInvalidator); ok {
		if err := invalidator.InvalidateAccountCaches(); err != nil {
			return fmt.Errorf("invalidate %s account caches: %w", deps.Source.Name(), err)
		}
		return nil
	}

	for _, key := range []string{cache.KeyIssueAccountCache, cache.KeyAccountNumbers} {
		if err := deps.Cache.Delete(key); err != nil {
			return fmt.Errorf("invalidate %s: %w", key, err)
		}
	}
	return nil
}

// collectAccountTitles maps each resolved account to the display text of its
// first entry.
func collectAccountTitles(agg timereg.Aggregation) map[string]string {
	titles := make(map[string]string)
	for _, day := range agg.Days() {
		for account, bucket := range agg[day] {
			if account == "" || len(bucket.Entries) == 0 {
				continue
			}
			if _, ok := titles[account]; ok {
				continue
			}
			if text, ok := bucket.Entries[0].AccountIdentification(timereg.IdentInvoiceAccountText); ok {
				titles[account] = text
			}
		}
	}
	return titles
}

func accountTitle(titles map[string]string, account string) string {
	if title, ok := titles[account]; ok {
		return title
	}
	return account
}
