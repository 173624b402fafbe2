package cmd

import "github.com/spf13/cobra"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage timesync configuration file values.",
	Long: `Create, edit, display, and delete the timesync configuration file.

The configuration stores the backend endpoints and tokens:
- worklog.url / worklog.issue_url / worklog.token
- toolkit.url / toolkit.token
- timer.url / timer.email / timer.token
- cache.path`,
	Example: `
  # Create default config in $HOME/.timesync.yaml
  timesync config create

  # Show active config and source file
  timesync config show

  # Open active config in editor (creates example if missing)
  timesync config edit

  # Delete active config file
  timesync config delete
`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
