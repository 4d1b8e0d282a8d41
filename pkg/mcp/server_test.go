package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/postwright/postwright/pkg/models"
)

type fakeBudget struct {
	summary models.CostSummary
	status  models.BudgetStatus
}

func (f *fakeBudget) Summary(context.Context) (models.CostSummary, error) { return f.summary, nil }
func (f *fakeBudget) Status(context.Context) (models.BudgetStatus, error) { return f.status, nil }

type fakeCosts struct {
	entries []models.CostEntry
	limit   int
}

func (f *fakeCosts) Recent(_ context.Context, limit int) ([]models.CostEntry, error) {
	f.limit = limit
	return f.entries, nil
}

type fakeLogs struct {
	logs []models.ProcessingLog
	got  models.ProcessingLogQuery
}

func (f *fakeLogs) Query(_ context.Context, q models.ProcessingLogQuery) ([]models.ProcessingLog, error) {
	f.got = q
	return f.logs, nil
}

type fakeCache struct {
	stats models.CacheStats
}

func (f *fakeCache) Stats(context.Context) (models.CacheStats, error) { return f.stats, nil }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sendAndReceive(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	line, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	line = append(line, '\n')

	var out bytes.Buffer
	if err := srv.Run(context.Background(), bytes.NewReader(line), &out); err != nil {
		t.Fatal(err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, out.String())
	}
	return resp
}

func callTool(t *testing.T, srv *Server, name, args string) ToolCallResult {
	t.Helper()
	p := ToolCallParams{Name: name}
	if args != "" {
		p.Arguments = json.RawMessage(args)
	}
	params, _ := json.Marshal(p)
	resp := sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "tools/call", Params: params})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result ToolCallResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Content) == 0 {
		t.Fatal("expected content")
	}
	return result
}

func TestInitialize(t *testing.T) {
	srv := New(Deps{}, "test")
	resp := sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "initialize"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result InitializeResult
	json.Unmarshal(data, &result)

	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocol version = %s, want 2024-11-05", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "postwright" {
		t.Errorf("server name = %s, want postwright", result.ServerInfo.Name)
	}
}

func TestToolsList(t *testing.T) {
	srv := New(Deps{}, "test")
	resp := sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`2`), Method: "tools/list"})

	data, _ := json.Marshal(resp.Result)
	var result ToolsListResult
	json.Unmarshal(data, &result)

	names := make(map[string]bool)
	for _, tool := range result.Tools {
		names[tool.Name] = true
		if _, ok := toolHandlers[tool.Name]; !ok {
			t.Errorf("listed tool %s has no handler", tool.Name)
		}
	}
	for _, want := range []string{"cost_summary", "budget_status", "recent_costs", "processing_logs"} {
		if !names[want] {
			t.Errorf("missing tool: %s", want)
		}
	}
}

func TestCostSummary(t *testing.T) {
	b := &fakeBudget{summary: models.CostSummary{
		TotalCost:   d("1.25"),
		BudgetLimit: d("10"),
		ByService: []models.ServiceCost{
			{Service: models.ServiceTextGen, Cost: d("0.25"), CallCount: 20},
			{Service: models.ServiceImageGen, Cost: d("1.00"), CallCount: 25},
		},
		ByDay: []models.DayCost{{Date: "2026-03-14", Cost: d("1.25")}},
	}}
	text := callTool(t, New(Deps{Budget: b}, "test"), "cost_summary", "").Content[0].Text

	for _, want := range []string{"$1.2500", "text-gen", "image-gen", "2026-03-14"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestBudgetStatus(t *testing.T) {
	b := &fakeBudget{status: models.BudgetStatus{
		Health:             models.BudgetHealth{Status: models.HealthWarning, Message: "Approaching budget limit", Percentage: 85},
		Daily:              models.DailyLimit{Limit: d("0.33"), Current: d("0.50"), Exceeded: true},
		EstimatedRemaining: 15,
	}}
	text := callTool(t, New(Deps{Budget: b}, "test"), "budget_status", "").Content[0].Text

	for _, want := range []string{"WARNING", "85.0%", "exceeded", "about 15 posts"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestRecentCosts(t *testing.T) {
	tokens := 1500
	c := &fakeCosts{entries: []models.CostEntry{{
		Service: models.ServiceTextGen, Operation: "generate_post", TokensUsed: &tokens,
		Cost: d("0.0125"), CreatedAt: time.Now().Add(-time.Hour),
	}}}
	srv := New(Deps{Costs: c}, "test")

	text := callTool(t, srv, "recent_costs", `{"limit":500}`).Content[0].Text
	if c.limit != 100 {
		t.Errorf("limit = %d, want capped at 100", c.limit)
	}
	for _, want := range []string{"generate_post", "1,500", "$0.0125", "ago"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestProcessingLogs(t *testing.T) {
	l := &fakeLogs{logs: []models.ProcessingLog{{
		ProcessType: models.ProcessReelAnalysis, Status: models.ProcessError,
		Details: "No description provided for fallback", DurationMs: 1200,
	}}}
	srv := New(Deps{Logs: l}, "test")

	text := callTool(t, srv, "processing_logs", `{"type":"reel_analysis","status":"error","since":"2026-03-01"}`).Content[0].Text
	if l.got.ProcessType != models.ProcessReelAnalysis || l.got.Status != models.ProcessError {
		t.Errorf("unexpected query: %+v", l.got)
	}
	if l.got.Since.Format("2006-01-02") != "2026-03-01" {
		t.Errorf("since = %v", l.got.Since)
	}
	if !strings.Contains(text, "reel_analysis") || !strings.Contains(text, "No description") {
		t.Errorf("unexpected output:\n%s", text)
	}

	res := callTool(t, srv, "processing_logs", `{"since":"March"}`)
	if !res.IsError {
		t.Error("expected isError=true for a bad date")
	}
}

func TestNotConfigured(t *testing.T) {
	srv := New(Deps{}, "test")
	for _, tool := range []string{"cost_summary", "budget_status", "recent_costs", "processing_logs", "cache_stats"} {
		text := callTool(t, srv, tool, "").Content[0].Text
		if !strings.Contains(text, "not configured") {
			t.Errorf("%s: expected 'not configured', got: %s", tool, text)
		}
	}
}

func TestCacheStats(t *testing.T) {
	cache := &fakeCache{stats: models.CacheStats{Entries: 42, Hits: 10, Misses: 5}}
	text := callTool(t, New(Deps{Cache: cache}, "test"), "cache_stats", "").Content[0].Text
	if !strings.Contains(text, "42") || !strings.Contains(text, "66.7%") {
		t.Errorf("unexpected cache stats output: %s", text)
	}
}

func TestUnknownTool(t *testing.T) {
	res := callTool(t, New(Deps{}, "test"), "token_stats", "")
	if !res.IsError {
		t.Error("expected isError=true for unknown tool")
	}
}

func TestNotificationNoResponse(t *testing.T) {
	srv := New(Deps{}, "test")

	line, _ := json.Marshal(Request{JSONRPC: "2.0", Method: "notifications/initialized"})
	line = append(line, '\n')

	var out bytes.Buffer
	_ = srv.Run(context.Background(), bytes.NewReader(line), &out)

	if out.Len() != 0 {
		t.Errorf("expected no output for notification, got: %s", out.String())
	}
}

func TestUnknownMethod(t *testing.T) {
	srv := New(Deps{}, "test")
	resp := sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`9`), Method: "unknown/method"})

	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}

func TestParseError(t *testing.T) {
	var out bytes.Buffer
	_ = New(Deps{}, "test").Run(context.Background(), strings.NewReader("{not json\n"), &out)

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Errorf("expected parse error, got %+v", resp)
	}
}
