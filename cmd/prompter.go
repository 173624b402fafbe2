package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"timesync/reconcile"
)

// terminalPrompter implements flow.Prompter on stdin/stdout.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(in), out: out}
}

func (p *terminalPrompter) Confirm(question string, defaultYes bool) (bool, error) {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}

	for {
		fmt.Fprintf(p.out, "%s %s ", question, suffix)
		answer, err := p.readLine()
		if err != nil {
			return false, err
		}

		switch strings.ToLower(answer) {
		case "":
			return defaultYes, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(p.out, "Please answer y or n.")
		}
	}
}

func (p *terminalPrompter) ConfirmDifferences(weeks []reconcile.WeekDifferences, titles map[string]string) (bool, error) {
	fmt.Fprintln(p.out, "The following registrations differ between the two systems:")
	for _, week := range weeks {
		fmt.Fprintf(p.out, "%s:\n", week.Week.Label())
		for _, diff := range week.Differences {
			fmt.Fprintf(p.out, "  %s  %s  %+0.2f\n",
				diff.Day.Format("2006-01-02"),
				accountLabel(titles, diff.Account),
				diff.Diff)
		}
	}
	return p.Confirm("Differing registrations are never transferred. Continue anyway?", false)
}

func (p *terminalPrompter) SelectMissing(weeks []reconcile.WeekMissing, titles map[string]string) ([]reconcile.Missing, error) {
	var selected []reconcile.Missing

	fmt.Fprintln(p.out, "The following registrations are missing on the target:")
	for _, week := range weeks {
		fmt.Fprintf(p.out, "%s (%s hours):\n", week.Week.Label(), formatPromptHours(week.Hours()))
		for _, day := range week.Days {
			for _, entry := range day.Entries {
				fmt.Fprintf(p.out, "  %s  %s  %s\n",
					entry.Day.Format("2006-01-02"),
					accountLabel(titles, entry.Account),
					formatPromptHours(entry.Hours))
			}
		}

		choice, err := p.weekChoice(week)
		if err != nil {
			return nil, err
		}

		switch choice {
		case "a":
			for _, day := range week.Days {
				selected = append(selected, day.Entries...)
			}
		case "d":
			for _, day := range week.Days {
				take, err := p.Confirm(fmt.Sprintf("Transfer %s (%s hours)?",
					day.Day.Format("2006-01-02"), formatPromptHours(day.Hours())), true)
				if err != nil {
					return nil, err
				}
				if take {
					selected = append(selected, day.Entries...)
				}
			}
		case "s":
		}
	}

	return selected, nil
}

func (p *terminalPrompter) weekChoice(week reconcile.WeekMissing) (string, error) {
	for {
		fmt.Fprintf(p.out, "Transfer %s? (a) all days, (d) decide per day, (s) skip: ", week.Week.Label())
		answer, err := p.readLine()
		if err != nil {
			return "", err
		}
		switch strings.ToLower(answer) {
		case "a", "d", "s":
			return strings.ToLower(answer), nil
		default:
			fmt.Fprintln(p.out, "Invalid choice. Please enter one of: a, d, s")
		}
	}
}

func (p *terminalPrompter) ReviewPlan(plan *reconcile.Plan) (bool, error) {
	for {
		fmt.Fprintf(p.out, "Planned registrations for %s (total %s hours):\n",
			plan.Day.Format("2006-01-02"), formatPromptHours(plan.Total()))
		for _, allocation := range plan.Allocations {
			label := allocation.Key
			if label == "" {
				label = "(no issue key, will be skipped)"
			}
			fmt.Fprintf(p.out, "  %-12s %5s  %s\n", label, formatPromptHours(allocation.Hours), allocation.Description)
		}

		fmt.Fprint(p.out, "(y) transfer, (n) abort, or an issue key to override its hours: ")
		answer, err := p.readLine()
		if err != nil {
			return false, err
		}

		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "":
			continue
		}

		fmt.Fprintf(p.out, "New hours for %s: ", answer)
		rawHours, err := p.readLine()
		if err != nil {
			return false, err
		}
		hours, err := strconv.ParseFloat(rawHours, 64)
		if err != nil {
			fmt.Fprintf(p.out, "Invalid hour value %q.\n", rawHours)
			continue
		}
		if !plan.Override(answer, hours) {
			fmt.Fprintf(p.out, "No allocation with key %q.\n", answer)
		}
	}
}

func (p *terminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && strings.TrimSpace(line) == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func accountLabel(titles map[string]string, account string) string {
	if title, ok := titles[account]; ok && title != account {
		return fmt.Sprintf("%s (%s)", account, title)
	}
	return account
}

// formatPromptHours renders hour values for prompts; unlike the diff
// formatting a true zero prints as 0.00.
func formatPromptHours(hours float64) string {
	return fmt.Sprintf("%.2f", hours)
}
