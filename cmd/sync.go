package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"timesync/flow"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Transfer missing registrations from the worklog service to the list system.",
	Long: `Reconcile the current month (plus a five day grace into the previous one)
between the worklog service and the list system.

Worklog entries whose invoice account cannot be resolved are reported with an
offer to clear the account caches and retry; declining aborts the sync.
Differing registrations are listed per week and require confirmation to
continue. Missing registrations are offered as a selectable week/day tree and
the chosen subset is created in the list system.`,
	Example: `
  # Reconcile the current month
  timesync sync
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildRunDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		return runSync(cmd, deps)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, deps *runDeps) error {
	source, err := requireAuthenticated(cmd.Context(), deps, "tempo")
	if err != nil {
		return err
	}
	target, err := requireAuthenticated(cmd.Context(), deps, "toolkit")
	if err != nil {
		return err
	}

	return flow.Sync(cmd.Context(), flow.SyncDeps{
		Source:   source,
		Target:   target,
		Cache:    deps.store,
		Prompter: newTerminalPrompter(os.Stdin, os.Stdout),
		Log:      deps.log,
	})
}
