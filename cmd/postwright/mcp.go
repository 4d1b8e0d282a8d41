package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/postwright/postwright/pkg/audit"
	cachepkg "github.com/postwright/postwright/pkg/cache/sqlite"
	"github.com/postwright/postwright/pkg/mcp"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve cost and budget queries as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			journal, err := audit.New(a.cfg.Audit)
			if err != nil {
				return fmt.Errorf("init processing log: %w", err)
			}
			a.onClose(journal.Close)

			deps := mcp.Deps{
				Budget: a.policy,
				Costs:  a.ledger,
				Logs:   journal,
				Log:    a.log,
			}
			if a.cfg.Cache.Enabled {
				c, err := cachepkg.New(a.cfg.DBPath, a.cfg.Cache.TTL)
				if err != nil {
					return fmt.Errorf("init cache: %w", err)
				}
				a.onClose(c.Close)
				deps.Cache = c
			}

			return mcp.New(deps, version).Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
