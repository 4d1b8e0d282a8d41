package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/postwright/postwright/pkg/models"
)

type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var toolHandlers = map[string]toolHandler{
	"cost_summary":    handleCostSummary,
	"budget_status":   handleBudgetStatus,
	"recent_costs":    handleRecentCosts,
	"processing_logs": handleProcessingLogs,
	"cache_stats":     handleCacheStats,
}

var noArgs = map[string]any{"type": "object", "properties": map[string]any{}}

var allTools = []ToolDefinition{
	{
		Name:        "cost_summary",
		Description: "Show this month's AI spend by service and by day, with budget usage.",
		InputSchema: noArgs,
	},
	{
		Name:        "budget_status",
		Description: "Show budget health, today's spend against the daily limit, and how many more posts the budget covers.",
		InputSchema: noArgs,
	},
	{
		Name:        "recent_costs",
		Description: "List the most recent cost ledger entries.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"description": "Number of entries (optional, default 10, max 100)",
				},
			},
		},
	},
	{
		Name:        "processing_logs",
		Description: "Search the processing log of post, reel and infographic jobs.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type": map[string]any{
					"type":        "string",
					"enum":        []string{"ai_post", "post_analysis", "reel_analysis", "infographic"},
					"description": "Filter by process type (optional)",
				},
				"status": map[string]any{
					"type":        "string",
					"enum":        []string{"success", "error"},
					"description": "Filter by status (optional)",
				},
				"since": map[string]any{
					"type":        "string",
					"description": "Start date in YYYY-MM-DD format (optional)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Number of entries (optional, default 20)",
				},
			},
		},
	},
	{
		Name:        "cache_stats",
		Description: "Show prompt cache statistics (entries, hits, misses, hit rate).",
		InputSchema: noArgs,
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: true}
}

func handleCostSummary(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Budget == nil {
		return textResult("Cost tracking is not configured.")
	}
	sum, err := s.deps.Budget.Summary(ctx)
	if err != nil {
		return errorResult("Error fetching cost summary: " + err.Error())
	}
	return textResult(formatSummary(sum))
}

func handleBudgetStatus(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Budget == nil {
		return textResult("Budget is not configured.")
	}
	st, err := s.deps.Budget.Status(ctx)
	if err != nil {
		return errorResult("Error fetching budget status: " + err.Error())
	}
	return textResult(formatBudgetStatus(st))
}

type limitArgs struct {
	Limit int `json:"limit"`
}

func handleRecentCosts(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.deps.Costs == nil {
		return textResult("Cost tracking is not configured.")
	}
	var args limitArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Limit <= 0 {
		args.Limit = 10
	}
	if args.Limit > 100 {
		args.Limit = 100
	}
	entries, err := s.deps.Costs.Recent(ctx, args.Limit)
	if err != nil {
		return errorResult("Error fetching recent costs: " + err.Error())
	}
	return textResult(formatEntries(entries, time.Now()))
}

type logArgs struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Since  string `json:"since"`
	Limit  int    `json:"limit"`
}

func handleProcessingLogs(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.deps.Logs == nil {
		return textResult("Processing log is not configured.")
	}
	var args logArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}

	q := models.ProcessingLogQuery{
		ProcessType: models.ProcessType(args.Type),
		Status:      models.ProcessStatus(args.Status),
		Limit:       args.Limit,
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		q.Since = t
	}

	logs, err := s.deps.Logs.Query(ctx, q)
	if err != nil {
		return errorResult("Error searching processing log: " + err.Error())
	}
	return textResult(formatLogs(logs))
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.deps.Cache.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}
