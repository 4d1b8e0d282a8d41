package main

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postwright/postwright/pkg/models"
)

func TestMonthStart(t *testing.T) {
	got, err := monthStart("2026-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	now := time.Now().UTC()
	got, err = monthStart("")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Day())
	assert.Equal(t, now.Month(), got.Month())

	_, err = monthStart("March")
	assert.Error(t, err)
}

func TestFormatBudget(t *testing.T) {
	out := formatBudget(models.BudgetStatus{
		Summary: models.CostSummary{
			TotalCost:         decimal.RequireFromString("8.5"),
			BudgetLimit:       decimal.NewFromInt(10),
			BudgetRemaining:   decimal.RequireFromString("1.5"),
			BudgetUsedPercent: 85,
		},
		Daily: models.DailyLimit{
			Limit:    decimal.RequireFromString("0.33"),
			Current:  decimal.RequireFromString("0.5"),
			Exceeded: true,
		},
		Health:             models.BudgetHealth{Status: models.HealthWarning, Message: "Approaching budget limit"},
		EstimatedRemaining: 75,
	})

	assert.Contains(t, out, "WARNING: Approaching budget limit")
	assert.Contains(t, out, "$8.50 of $10.00 (85.0%)")
	assert.Contains(t, out, "(exceeded)")
	assert.Contains(t, out, "about 75")
	assert.NotContains(t, out, "Reserved")
}

func TestFormatEntries(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tokens := 1500
	out := formatEntries([]models.CostEntry{{
		Service:    models.ServiceTextGen,
		Operation:  "generate_post",
		TokensUsed: &tokens,
		Cost:       decimal.RequireFromString("0.0125"),
		JobID:      "0123456789abcdef",
		CreatedAt:  now.Add(-time.Hour),
	}}, now)

	assert.Contains(t, out, "1,500")
	assert.Contains(t, out, "$0.0125")
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "89abcdef")

	assert.Equal(t, "No cost entries found.\n", formatEntries(nil, now))
}

func TestSpendPlotIsCumulative(t *testing.T) {
	assert.Empty(t, spendPlot([]models.DayCost{{Date: "2026-03-01", Cost: decimal.NewFromInt(1)}}))

	out := spendPlot([]models.DayCost{
		{Date: "2026-03-01", Cost: decimal.NewFromInt(1)},
		{Date: "2026-03-02", Cost: decimal.NewFromInt(2)},
	})
	assert.Contains(t, out, "cumulative spend")
	assert.Contains(t, out, "3.00")
}

func TestFormatSummaryWithoutSpend(t *testing.T) {
	out := formatSummary(models.CostSummary{
		WindowStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}, 10)
	assert.True(t, strings.HasPrefix(out, "March 2026: $0.0000 spent of $10.00 (0.0%)"), out)
	assert.Contains(t, out, "No spend recorded.")
}

func TestFormatCounts(t *testing.T) {
	got := formatCounts(map[models.PostStatus]int{models.PostDraft: 3, models.PostPosted: 1})
	assert.Equal(t, "draft 3  copied 0  posted 1", got)
}
