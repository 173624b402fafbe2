package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"timesync/flow"
	"timesync/provider"
)

// confirmPrompter is the slice of the prompter the auth recovery needs.
type confirmPrompter interface {
	Confirm(question string, defaultYes bool) (bool, error)
}

// runInteractive is the bare-invocation default: transfer the next timer day
// when a timer is configured and authenticated, then sync the current month
// into the list system.
func runInteractive(ctx context.Context) error {
	deps, err := buildRunDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	prompter := newTerminalPrompter(os.Stdin, os.Stdout)

	if err := promptAuthRecovery(ctx, deps.session, prompter, deps.log); err != nil {
		return err
	}

	if timer, err := deps.session.Find("toggl"); err == nil && deps.session.Authenticated(ctx, timer) {
		worklog, err := deps.session.Find("tempo")
		if err != nil {
			return err
		}
		if deps.session.Authenticated(ctx, worklog) {
			err := flow.Transfer(ctx, flow.TransferDeps{
				Timer:    timer,
				Worklog:  worklog,
				Cache:    deps.store,
				Prompter: prompter,
				Log:      deps.log,
			})
			if err != nil {
				return err
			}
		}
	}

	source, err := deps.session.Find("tempo")
	if err != nil {
		return err
	}
	target, err := deps.session.Find("toolkit")
	if err != nil {
		return err
	}
	if !deps.session.Authenticated(ctx, source) || !deps.session.Authenticated(ctx, target) {
		deps.log.Warn().Msg("sync skipped: both the worklog service and the list system must be authenticated")
		return provider.ErrNotAuthenticated
	}

	return flow.Sync(ctx, flow.SyncDeps{
		Source:   source,
		Target:   target,
		Cache:    deps.store,
		Prompter: prompter,
		Log:      deps.log,
	})
}

// promptAuthRecovery offers one authentication retry per unauthenticated
// provider. Auth results are memoized for the session, so a token fixed while
// the run is waiting at the prompt is only picked up after ForgetAuth.
func promptAuthRecovery(ctx context.Context, session *provider.Session, prompter confirmPrompter, log zerolog.Logger) error {
	for _, p := range session.Unauthenticated(ctx) {
		log.Warn().Str("provider", p.Name()).Msg("provider is not authenticated")

		retry, err := prompter.Confirm(fmt.Sprintf("Retry authentication for %s?", p.Name()), false)
		if err != nil {
			return err
		}
		if !retry {
			log.Warn().Str("provider", p.Name()).Msg("provider will be skipped")
			continue
		}

		session.ForgetAuth(p.Name())
		if session.Authenticated(ctx, p) {
			log.Info().Str("provider", p.Name()).Msg("provider authenticated after retry")
		} else {
			log.Warn().Str("provider", p.Name()).Msg("provider is still not authenticated and will be skipped")
		}
	}
	return nil
}
