package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/openip/iptools/pkg/cache"
	"github.com/openip/iptools/pkg/config"
)

// knownServices are the API families with their own cache database.
var knownServices = []string{"epo_ops", "uspto_odp", "uspto_assignments", "uspto_publications"}

// openManager builds a cache manager for one API family's database.
func openManager(configPath, service string) (*cache.Manager, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cache.NewManager(cache.ManagerConfig{
		DatabasePath: filepath.Join(cfg.CacheDir, service+".db"),
		TTL:          cfg.TTL.Std(),
	})
}

func newCacheCmd(configPath *string) *cobra.Command {
	var service string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the response caches",
	}
	cmd.PersistentFlags().StringVar(&service, "client", "epo_ops",
		fmt.Sprintf("API family cache to operate on (one of %v)", knownServices))

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := openManager(*configPath, service)
			if err != nil {
				return err
			}
			defer func() { _ = manager.Close() }()

			stats, err := manager.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Database: %s\n", stats.DatabasePath)
			fmt.Printf("Entries:  %d\n", stats.EntryCount)
			fmt.Printf("Size:     %.2f MB\n", stats.SizeMB())
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := openManager(*configPath, service)
			if err != nil {
				return err
			}
			defer func() { _ = manager.Close() }()

			cleared, err := manager.ClearAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d entries.\n", cleared)
			return nil
		},
	}

	var maxAge time.Duration
	clearExpiredCmd := &cobra.Command{
		Use:   "clear-expired",
		Short: "Remove cached responses older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := openManager(*configPath, service)
			if err != nil {
				return err
			}
			defer func() { _ = manager.Close() }()

			cleared, err := manager.ClearExpired(cmd.Context(), maxAge)
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d expired entries.\n", cleared)
			return nil
		},
	}
	clearExpiredCmd.Flags().DurationVar(&maxAge, "max-age", 0,
		"age cutoff (default: configured TTL, else 24h)")

	invalidateCmd := &cobra.Command{
		Use:   "invalidate <url-pattern>",
		Short: "Remove cached responses whose URL matches a regular expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := openManager(*configPath, service)
			if err != nil {
				return err
			}
			defer func() { _ = manager.Close() }()

			cleared, err := manager.InvalidatePattern(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Invalidated %d entries.\n", cleared)
			return nil
		},
	}

	cmd.AddCommand(statsCmd, clearCmd, clearExpiredCmd, invalidateCmd)
	return cmd
}
