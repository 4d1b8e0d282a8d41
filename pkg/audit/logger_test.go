package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/postwright/postwright/pkg/models"
)

func tempCfg(t *testing.T) models.AuditConfig {
	t.Helper()
	return models.AuditConfig{
		DBPath:        filepath.Join(t.TempDir(), "audit_test.db"),
		RetentionDays: 90,
		MaxDetailSize: 1024,
	}
}

func mustNew(t *testing.T, cfg models.AuditConfig) *Logger {
	t.Helper()
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleEntry() models.ProcessingLog {
	return models.ProcessingLog{
		JobID:       "job-001",
		ProcessType: models.ProcessAIPost,
		Status:      models.ProcessSuccess,
		Details:     "Generated post about: remote work",
		Cost:        decimal.RequireFromString("0.003"),
		DurationMs:  1800,
		Metadata:    map[string]string{"model": "gemini-2.5-flash"},
		CreatedAt:   time.Now(),
	}
}

func TestLogAndQuery(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	if err := l.Log(ctx, sampleEntry()); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := l.Query(ctx, models.ProcessingLogQuery{ProcessType: models.ProcessAIPost})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.JobID != "job-001" {
		t.Errorf("expected job-001, got %s", got.JobID)
	}
	if !got.Cost.Equal(decimal.RequireFromString("0.003")) {
		t.Errorf("expected cost 0.003, got %s", got.Cost)
	}
	if got.Metadata["model"] != "gemini-2.5-flash" {
		t.Errorf("expected metadata, got %v", got.Metadata)
	}
}

func TestQueryFilters(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	_ = l.Log(ctx, sampleEntry())
	failed := sampleEntry()
	failed.JobID = "job-002"
	failed.ProcessType = models.ProcessReelAnalysis
	failed.Status = models.ProcessError
	failed.Details = "No description provided for fallback"
	_ = l.Log(ctx, failed)

	entries, err := l.Query(ctx, models.ProcessingLogQuery{Status: models.ProcessError})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].JobID != "job-002" {
		t.Fatalf("expected only job-002, got %+v", entries)
	}

	all, _ := l.Query(ctx, models.ProcessingLogQuery{Limit: 1})
	if len(all) != 1 {
		t.Errorf("expected limit 1 to apply, got %d", len(all))
	}
}

func TestDetailTruncation(t *testing.T) {
	cfg := tempCfg(t)
	cfg.MaxDetailSize = 16
	l := mustNew(t, cfg)
	ctx := context.Background()

	entry := sampleEntry()
	entry.Details = strings.Repeat("x", 100)
	if err := l.Log(ctx, entry); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := l.Query(ctx, models.ProcessingLogQuery{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries[0].Details) != 16 {
		t.Errorf("expected truncated details len 16, got %d", len(entries[0].Details))
	}
}

func TestCleanup(t *testing.T) {
	cfg := tempCfg(t)
	cfg.RetentionDays = 1
	l := mustNew(t, cfg)
	ctx := context.Background()

	old := sampleEntry()
	old.CreatedAt = time.Now().AddDate(0, 0, -3)
	_ = l.Log(ctx, old)
	_ = l.Log(ctx, sampleEntry())

	deleted, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
}

func TestStats(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	_ = l.Log(ctx, sampleEntry())
	_ = l.Log(ctx, sampleEntry())
	e3 := sampleEntry()
	e3.Status = models.ProcessError
	e3.Cost = decimal.Zero
	_ = l.Log(ctx, e3)

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 process type, got %d", len(stats))
	}
	if stats[0].Success != 2 || stats[0].Errors != 1 {
		t.Errorf("expected 2/1, got %d/%d", stats[0].Success, stats[0].Errors)
	}
	if !stats[0].TotalCost.Equal(decimal.RequireFromString("0.006")) {
		t.Errorf("expected 0.006, got %s", stats[0].TotalCost)
	}
}

func TestNilLoggerSafe(t *testing.T) {
	var l *Logger
	if err := l.Log(context.Background(), sampleEntry()); err != nil {
		t.Errorf("nil logger should be safe: %v", err)
	}
}

func TestNewInvalidPath(t *testing.T) {
	cfg := models.AuditConfig{
		DBPath: filepath.Join(os.TempDir(), "nonexistent", "deep", "path", "audit.db"),
	}
	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for invalid path")
	}
}
