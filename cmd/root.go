package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"timesync/config"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "timesync",
	Short: "Reconcile and transfer time registrations between worklog, list and timer systems.",
	Long: `
**********************************************
*                TIMESYNC                    *
**********************************************

This CLI keeps time registrations in sync across three backends: a worklog
service (the authoritative source), an enterprise list system, and a personal
timer. It can compare both sides day by day, transfer missing registrations
after review, and quantize raw timer entries into quarter-hour worklogs.
`,
	Example: `
  # Create configuration file
  timesync config create

  # Compare both sides for March
  timesync compare "Jane Doe" acc-123 2026-03-01 2026-03-31

  # Reconcile the current month into the list system
  timesync sync

  # Move the next unprocessed timer day into the worklog service
  timesync transfer

  # Run transfer and sync back to back
  timesync
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	config.SetDefaults()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "configFile", "", "Config file override (default discovery: $HOME/.timesync.yaml, then ./.timesync.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".timesync" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".timesync")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "No config file found. Create one first with: timesync config create")
	}
}

// newLogger builds the console logger commands hand to flows and connectors.
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
