package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"timesync/flow"
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Quantize timer entries into quarter-hour worklogs.",
	Long: `Move the next unprocessed day of timer entries into the worklog service.

The day's raw timer fragments are grouped by issue key and apportioned to
quarter hours so the day total is preserved. The resulting plan is shown for
review with per-issue overrides before anything is created. On success the
last-transfer date advances, so repeated runs work forward through a backlog
one day per run.`,
	Example: `
  # Transfer the next unprocessed timer day
  timesync transfer
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildRunDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		return runTransfer(cmd, deps)
	},
}

func init() {
	rootCmd.AddCommand(transferCmd)
}

func runTransfer(cmd *cobra.Command, deps *runDeps) error {
	timer, err := requireAuthenticated(cmd.Context(), deps, "toggl")
	if err != nil {
		return err
	}
	worklog, err := requireAuthenticated(cmd.Context(), deps, "tempo")
	if err != nil {
		return err
	}

	return flow.Transfer(cmd.Context(), flow.TransferDeps{
		Timer:    timer,
		Worklog:  worklog,
		Cache:    deps.store,
		Prompter: newTerminalPrompter(os.Stdin, os.Stdout),
		Log:      deps.log,
	})
}
