package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"timesync/flow"
	"timesync/output"
	"timesync/timereg"
)

var compareOutputPath string

var compareCmd = &cobra.Command{
	Use:   "compare <fullName> <externalID> <from> <to>",
	Short: "Compare registrations between the worklog service and the list system.",
	Long: `Fetch both sides for the inclusive date range, aggregate by day and invoice
account, and print one row per (day, account) with a match flag. Hours are
compared at 2-decimal precision; a side with no registration renders empty.

fullName identifies the registrant in the list system, externalID in the
worklog service. Dates use YYYY-MM-DD.`,
	Example: `
  # Compare March on the terminal
  timesync compare "Jane Doe" acc-123 2026-03-01 2026-03-31

  # Write the report to a file instead
  timesync compare "Jane Doe" acc-123 2026-03-01 2026-03-31 --output report.xlsx
`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseDayArg(args[2])
		if err != nil {
			return err
		}
		to, err := parseDayArg(args[3])
		if err != nil {
			return err
		}
		if from.After(to) {
			return fmt.Errorf("invalid range: from must be <= to")
		}

		deps, err := buildRunDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		source, err := requireAuthenticated(cmd.Context(), deps, "tempo")
		if err != nil {
			return err
		}
		target, err := requireAuthenticated(cmd.Context(), deps, "toolkit")
		if err != nil {
			return err
		}

		registrant := &timereg.Registrant{
			Name: args[0],
			Identifications: map[string]string{
				timereg.IdentFullName:    args[0],
				timereg.IdentAtlassianID: args[1],
			},
		}

		report, err := flow.Compare(cmd.Context(), source, target, registrant, from, to)
		if err != nil {
			return err
		}

		if compareOutputPath != "" {
			writer, err := output.WriterForPath(compareOutputPath)
			if err != nil {
				return err
			}
			if err := writer.Write(compareOutputPath, report); err != nil {
				return err
			}
			fmt.Printf("Compare report written to: %s\n", compareOutputPath)
			return nil
		}

		printCompareReport(report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringVar(&compareOutputPath, "output", "", "Write the report to a .csv or .xlsx file instead of the terminal")
}

func parseDayArg(value string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(value), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", value)
	}
	return day, nil
}

func printCompareReport(report flow.CompareReport) {
	fmt.Printf("%-12s %-20s %10s %10s %s\n", "Day", "Account", report.SourceName, report.TargetName, "Match")
	matches := 0
	for _, row := range report.Rows {
		flag := "x"
		if row.Match {
			flag = "v"
			matches++
		}
		fmt.Printf("%-12s %-20s %10s %10s %s\n",
			row.Day.Format("2006-01-02"), row.Account, row.SourceHours, row.TargetHours, flag)
	}
	fmt.Printf("%d of %d rows match.\n", matches, len(report.Rows))
}
