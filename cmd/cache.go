package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"timesync/cache"
	"timesync/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the durable metadata cache.",
	Long: `The cache stores account resolutions, case lookups, default field values
and the last-transfer date between runs. Entries never expire on their own;
clearing is the only invalidation.`,
	Example: `
  # List populated cache keys
  timesync cache show

  # Clear everything
  timesync cache clear

  # Clear one key
  timesync cache clear issue_account_cache
`,
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List populated cache keys.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openConfiguredCache()
		if err != nil {
			return err
		}
		defer store.Close()

		keys, err := store.Keys()
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			fmt.Println("Cache is empty.")
			return nil
		}
		for _, key := range keys {
			fmt.Println(key)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [key]",
	Short: "Clear the whole cache or a single key.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openConfiguredCache()
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 0 {
			if err := store.ClearAll(); err != nil {
				return err
			}
			fmt.Println("Cache cleared.")
			return nil
		}

		key := args[0]
		if !isKnownCacheKey(key) {
			return fmt.Errorf("unknown cache key %q (known: %v)", key, cache.KnownKeys())
		}
		if err := store.Delete(key); err != nil {
			return err
		}
		fmt.Printf("Cache key %s cleared.\n", key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openConfiguredCache() (*cache.Store, error) {
	cfg, err := config.LoadAndValidate()
	if err != nil {
		return nil, err
	}
	return openCache(cfg)
}

func isKnownCacheKey(key string) bool {
	for _, known := range cache.KnownKeys() {
		if known == key {
			return true
		}
	}
	return false
}
