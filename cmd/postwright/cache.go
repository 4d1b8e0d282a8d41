package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	cachepkg "github.com/postwright/postwright/pkg/cache/sqlite"
	"github.com/postwright/postwright/pkg/config"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the prompt cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			rate := 0.0
			if total := stats.Hits + stats.Misses; total > 0 {
				rate = float64(stats.Hits) / float64(total) * 100
			}
			fmt.Printf("Entries:  %s\nHits:     %s\nMisses:   %s\nHit rate: %.1f%%\n",
				humanize.Comma(stats.Entries), humanize.Comma(stats.Hits), humanize.Comma(stats.Misses), rate)
			return nil
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			n, err := c.Clear(cmd.Context(), expiredOnly)
			if err != nil {
				return err
			}
			what := "cache entries"
			if expiredOnly {
				what = "expired cache entries"
			}
			fmt.Printf("Cleared %s %s.\n", humanize.Comma(n), what)
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

func openCache(configPath string) (*cachepkg.Cache, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cachepkg.New(cfg.DBPath, cfg.Cache.TTL)
}
