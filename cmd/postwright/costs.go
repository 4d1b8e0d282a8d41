package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/postwright/postwright/pkg/models"
)

func newCostsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Inspect the cost ledger",
	}
	cmd.AddCommand(
		newCostsSummaryCmd(configPath),
		newCostsOperationsCmd(configPath),
		newCostsExportCmd(configPath),
		newCostsRecentCmd(configPath),
	)
	return cmd
}

func newCostsSummaryCmd(configPath *string) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show spend by service and day for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := monthStart(month)
			if err != nil {
				return err
			}
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.ledger.Summary(cmd.Context(), start, start.AddDate(0, 1, 0))
			if err != nil {
				return err
			}
			fmt.Print(formatSummary(sum, a.policy.Config().MonthlyBudget.InexactFloat64()))
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to summarize (YYYY-MM, default: current)")
	return cmd
}

func formatSummary(sum models.CostSummary, budget float64) string {
	out := fmt.Sprintf("%s: %s spent", sum.WindowStart.Format("January 2006"), dollars(sum.TotalCost, 4))
	if budget > 0 {
		out += fmt.Sprintf(" of $%.2f (%.1f%%)", budget, sum.TotalCost.InexactFloat64()/budget*100)
	}
	out += "\n\n"
	if len(sum.ByService) == 0 {
		return out + "No spend recorded.\n"
	}

	rows := make([][]string, 0, len(sum.ByService))
	for _, sc := range sum.ByService {
		rows = append(rows, []string{string(sc.Service), humanize.Comma(int64(sc.CallCount)), dollars(sc.Cost, 4)})
	}
	out += renderTable([]string{"SERVICE", "CALLS", "COST"}, rows, 2, 3) + "\n"

	if len(sum.ByDay) > 1 {
		series := make([]float64, len(sum.ByDay))
		for i, d := range sum.ByDay {
			series[i] = d.Cost.InexactFloat64()
		}
		out += "\n" + asciigraph.Plot(series,
			asciigraph.Height(8),
			asciigraph.Caption("daily spend ($)"),
		) + "\n"
	}
	return out
}

func newCostsOperationsCmd(configPath *string) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "operations",
		Short: "Show spend per operation for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := monthStart(month)
			if err != nil {
				return err
			}
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ops, err := a.ledger.ByOperation(cmd.Context(), start, start.AddDate(0, 1, 0))
			if err != nil {
				return err
			}
			if len(ops) == 0 {
				fmt.Println("No cost data found.")
				return nil
			}
			rows := make([][]string, 0, len(ops))
			for _, op := range ops {
				rows = append(rows, []string{
					op.Operation,
					humanize.Comma(int64(op.Count)),
					dollars(op.TotalCost, 4),
					dollars(op.AverageCost, 4),
					humanize.Comma(op.TotalTokens),
				})
			}
			fmt.Println(renderTable([]string{"OPERATION", "COUNT", "TOTAL", "AVERAGE", "TOKENS"}, rows, 2, 3, 4, 5))
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to report (YYYY-MM, default: current)")
	return cmd
}

func newCostsExportCmd(configPath *string) *cobra.Command {
	var month, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a month of cost entries as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := monthStart(month)
			if err != nil {
				return err
			}
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			w := os.Stdout
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return a.ledger.ExportCSV(cmd.Context(), w, start, start.AddDate(0, 1, 0))
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to export (YYYY-MM, default: current)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func newCostsRecentCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent cost entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.ledger.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Print(formatEntries(entries, time.Now()))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries")
	return cmd
}

func formatEntries(entries []models.CostEntry, now time.Time) string {
	if len(entries) == 0 {
		return "No cost entries found.\n"
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		tokens := "-"
		if e.TokensUsed != nil {
			tokens = humanize.Comma(int64(*e.TokensUsed))
		}
		job := e.JobID
		if len(job) > 8 {
			job = job[:8]
		}
		rows = append(rows, []string{
			humanize.RelTime(e.CreatedAt, now, "ago", "from now"),
			string(e.Service), e.Operation, tokens, dollars(e.Cost, 4), job,
		})
	}
	return renderTable([]string{"WHEN", "SERVICE", "OPERATION", "TOKENS", "COST", "JOB"}, rows, 4, 5) + "\n"
}

