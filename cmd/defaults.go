package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"timesync/provider"
)

// defaultValueStore is the slice of the list-system provider the defaults
// commands talk to.
type defaultValueStore interface {
	Defaults() (map[string]string, error)
	SetDefault(field, value string) error
}

var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Manage default field values for created list-system registrations.",
	Long: `The list system requires a handful of fields beyond hours and case, e.g. the
hour type. Their values rarely change, so they are chosen once and stored in
the cache; every registration created by sync applies them.`,
	Example: `
  # Show stored default values
  timesync defaults show

  # Store one default value
  timesync defaults set hourType billable
`,
}

var defaultsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored default field values.",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildRunDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		store, err := defaultValues(deps.session)
		if err != nil {
			return err
		}

		defaults, err := store.Defaults()
		if err != nil {
			return err
		}
		if len(defaults) == 0 {
			fmt.Println("No default values stored. Set one with: timesync defaults set <field> <value>")
			return nil
		}

		fields := make([]string, 0, len(defaults))
		for field := range defaults {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			fmt.Printf("%s: %s\n", field, defaults[field])
		}
		return nil
	},
}

var defaultsSetCmd = &cobra.Command{
	Use:   "set <field> <value>",
	Short: "Store one default field value.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildRunDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		store, err := defaultValues(deps.session)
		if err != nil {
			return err
		}

		if err := store.SetDefault(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Default %s set to %s.\n", args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(defaultsCmd)
	defaultsCmd.AddCommand(defaultsShowCmd)
	defaultsCmd.AddCommand(defaultsSetCmd)
}

// defaultValues resolves the provider owning the default field selections.
func defaultValues(session *provider.Session) (defaultValueStore, error) {
	p, err := session.Find("toolkit")
	if err != nil {
		return nil, err
	}
	store, ok := p.(defaultValueStore)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support default values", p.Name())
	}
	return store, nil
}
