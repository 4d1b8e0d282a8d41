package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/postwright/postwright/pkg/models"
)

func formatSummary(sum models.CostSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Spend %s to %s\n", sum.WindowStart.Format("2006-01-02"), sum.WindowEnd.Format("2006-01-02"))
	fmt.Fprintf(&b, "  Total:     $%s\n", sum.TotalCost.StringFixed(4))
	fmt.Fprintf(&b, "  Budget:    $%s (%.1f%% used, $%s left)\n",
		sum.BudgetLimit.StringFixed(2), sum.BudgetUsedPercent, sum.BudgetRemaining.StringFixed(2))
	if len(sum.ByService) == 0 {
		b.WriteString("\nNo spend recorded.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "\n%-15s %8s %12s\n", "Service", "Calls", "Cost")
	b.WriteString(strings.Repeat("-", 37) + "\n")
	for _, sc := range sum.ByService {
		fmt.Fprintf(&b, "%-15s %8d %12s\n", sc.Service, sc.CallCount, "$"+sc.Cost.StringFixed(4))
	}

	if len(sum.ByDay) > 0 {
		fmt.Fprintf(&b, "\n%-12s %12s\n", "Day", "Cost")
		b.WriteString(strings.Repeat("-", 25) + "\n")
		for _, d := range sum.ByDay {
			fmt.Fprintf(&b, "%-12s %12s\n", d.Date, "$"+d.Cost.StringFixed(4))
		}
	}
	return b.String()
}

func formatBudgetStatus(st models.BudgetStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Budget: %s (%.1f%%)\n", strings.ToUpper(string(st.Health.Status)), st.Health.Percentage)
	fmt.Fprintf(&b, "  %s\n", st.Health.Message)
	fmt.Fprintf(&b, "  Month:     $%s of $%s\n", st.Summary.TotalCost.StringFixed(2), st.Summary.BudgetLimit.StringFixed(2))
	fmt.Fprintf(&b, "  Today:     $%s of $%s", st.Daily.Current.StringFixed(2), st.Daily.Limit.StringFixed(2))
	if st.Daily.Exceeded {
		b.WriteString(" (exceeded)")
	}
	b.WriteString("\n")
	if st.Reserved.IsPositive() {
		fmt.Fprintf(&b, "  Reserved:  $%s\n", st.Reserved.StringFixed(4))
	}
	fmt.Fprintf(&b, "  Remaining: about %d posts\n", st.EstimatedRemaining)
	return b.String()
}

func formatEntries(entries []models.CostEntry, now time.Time) string {
	if len(entries) == 0 {
		return "No cost entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %-14s %-20s %8s %10s\n", "When", "Service", "Operation", "Tokens", "Cost")
	b.WriteString(strings.Repeat("-", 72) + "\n")
	for _, e := range entries {
		tokens := "-"
		if e.TokensUsed != nil {
			tokens = humanize.Comma(int64(*e.TokensUsed))
		}
		fmt.Fprintf(&b, "%-16s %-14s %-20s %8s %10s\n",
			humanize.RelTime(e.CreatedAt, now, "ago", "from now"),
			e.Service, e.Operation, tokens, "$"+e.Cost.StringFixed(4))
	}
	return b.String()
}

func formatLogs(logs []models.ProcessingLog) string {
	if len(logs) == 0 {
		return "No processing log entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-14s %-8s %10s %8s  %s\n", "Time", "Type", "Status", "Cost", "Took", "Details")
	b.WriteString(strings.Repeat("-", 90) + "\n")
	for _, l := range logs {
		details := l.Details
		if len(details) > 40 {
			details = details[:37] + "..."
		}
		fmt.Fprintf(&b, "%-20s %-14s %-8s %10s %8s  %s\n",
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			l.ProcessType, l.Status, "$"+l.Cost.StringFixed(4),
			(time.Duration(l.DurationMs) * time.Millisecond).Round(100*time.Millisecond),
			details)
	}
	return b.String()
}

func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
}
