package cmd

import (
	"fmt"
	"github.com/spf13/viper"

	"github.com/spf13/cobra"
	"timesync/config"
)

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show active configuration values.",
	Long: `Display the currently loaded configuration and the resolved config file path.

This command validates the configuration before printing values. Tokens are
masked.`,
	Example: `
  # Show active configuration
  timesync config show
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			fmt.Println("Invalid config:", err)
			return
		}

		if configPath := viper.ConfigFileUsed(); configPath != "" {
			fmt.Println("Config file loaded from:", configPath)
			fmt.Println("Configuration:")
			fmt.Printf("worklog.url: %s\n", cfg.Worklog.URL)
			fmt.Printf("worklog.issue_url: %s\n", cfg.Worklog.IssueURL)
			fmt.Printf("worklog.token: %s\n", maskToken(cfg.Worklog.Token))
			fmt.Printf("toolkit.url: %s\n", cfg.Toolkit.URL)
			fmt.Printf("toolkit.token: %s\n", maskToken(cfg.Toolkit.Token))
			fmt.Printf("timer.url: %s\n", cfg.Timer.URL)
			fmt.Printf("timer.email: %s\n", cfg.Timer.Email)
			fmt.Printf("timer.token: %s\n", maskToken(cfg.Timer.Token))
			fmt.Printf("cache.path: %s\n", cfg.Cache.Path)
		}
	},
}

func maskToken(token string) string {
	if token == "" {
		return "<unset>"
	}
	return "********"
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
