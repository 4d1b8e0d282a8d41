package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/postwright/postwright/pkg/audit"
	"github.com/postwright/postwright/pkg/config"
	"github.com/postwright/postwright/pkg/models"
)

func newLogsCmd(configPath *string) *cobra.Command {
	var (
		processType string
		status      string
		since       string
		limit       int
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query the processing log of generation jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openJournal(*configPath)
			if err != nil {
				return err
			}
			defer l.Close()

			q := models.ProcessingLogQuery{
				ProcessType: models.ProcessType(processType),
				Status:      models.ProcessStatus(status),
				Limit:       limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				q.Since = t
			}
			logs, err := l.Query(cmd.Context(), q)
			if err != nil {
				return err
			}
			fmt.Print(formatLogs(logs, time.Now()))
			return nil
		},
	}
	cmd.Flags().StringVar(&processType, "type", "", "filter by type (ai_post, post_analysis, reel_analysis, infographic)")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (success, error)")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max entries to return")

	cmd.AddCommand(newLogsStatsCmd(configPath), newLogsCleanupCmd(configPath))
	return cmd
}

func newLogsStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show success and error counts per job type",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openJournal(*configPath)
			if err != nil {
				return err
			}
			defer l.Close()

			stats, err := l.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("No processing log entries.")
				return nil
			}
			rows := make([][]string, 0, len(stats))
			for _, s := range stats {
				rows = append(rows, []string{
					string(s.ProcessType),
					humanize.Comma(int64(s.Success)),
					humanize.Comma(int64(s.Errors)),
					dollars(s.TotalCost, 4),
				})
			}
			fmt.Println(renderTable([]string{"TYPE", "SUCCESS", "ERRORS", "COST"}, rows, 2, 3, 4))
			return nil
		},
	}
}

func newLogsCleanupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openJournal(*configPath)
			if err != nil {
				return err
			}
			defer l.Close()

			n, err := l.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %s entries.\n", humanize.Comma(n))
			return nil
		},
	}
}

func openJournal(configPath string) (*audit.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return audit.New(cfg.Audit)
}

func formatLogs(logs []models.ProcessingLog, now time.Time) string {
	if len(logs) == 0 {
		return "No processing log entries found.\n"
	}
	rows := make([][]string, 0, len(logs))
	for _, l := range logs {
		details := l.Details
		if len(details) > 50 {
			details = details[:47] + "..."
		}
		rows = append(rows, []string{
			humanize.RelTime(l.CreatedAt, now, "ago", "from now"),
			string(l.ProcessType),
			string(l.Status),
			dollars(l.Cost, 4),
			(time.Duration(l.DurationMs) * time.Millisecond).Round(100 * time.Millisecond).String(),
			details,
		})
	}
	return renderTable([]string{"WHEN", "TYPE", "STATUS", "COST", "TOOK", "DETAILS"}, rows, 4, 5) + "\n"
}
