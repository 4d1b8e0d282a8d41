package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/postwright/postwright/pkg/models"
)

const clearScreen = "\033[H\033[2J"

func newTopCmd(configPath *string) *cobra.Command {
	var (
		interval time.Duration
		recent   int
	)
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Live view of spend against the budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval < time.Second {
				return fmt.Errorf("--interval must be at least 1s")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				frame, err := topFrame(ctx, a, recent)
				if err != nil {
					return err
				}
				fmt.Print(clearScreen + frame)

				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "refresh interval")
	cmd.Flags().IntVarP(&recent, "recent", "n", 8, "recent cost entries to show")
	return cmd
}

func topFrame(ctx context.Context, a *app, recent int) (string, error) {
	st, err := a.policy.Status(ctx)
	if err != nil {
		return "", err
	}
	entries, err := a.ledger.Recent(ctx, recent)
	if err != nil {
		return "", err
	}
	now := time.Now()

	var b strings.Builder
	fmt.Fprintf(&b, "postwright top  %s  (ctrl-c to quit)\n\n", now.Format("15:04:05"))
	b.WriteString(formatBudget(st))
	b.WriteString("\n")
	b.WriteString(spendPlot(st.Summary.ByDay))
	b.WriteString(formatEntries(entries, now))
	return b.String(), nil
}

// spendPlot charts cumulative spend for the month. It is empty until there
// are at least two days of data.
func spendPlot(days []models.DayCost) string {
	if len(days) < 2 {
		return ""
	}
	series := make([]float64, len(days))
	total := 0.0
	for i, d := range days {
		total += d.Cost.InexactFloat64()
		series[i] = total
	}
	return asciigraph.Plot(series,
		asciigraph.Height(6),
		asciigraph.Precision(2),
		asciigraph.Caption("cumulative spend this month ($)"),
	) + "\n\n"
}
