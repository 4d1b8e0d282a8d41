package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/postwright/postwright/pkg/budget"
	"github.com/postwright/postwright/pkg/config"
	"github.com/postwright/postwright/pkg/ledger"
	"github.com/postwright/postwright/pkg/logger"
)

// app holds what every read-only command needs.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	ledger  *ledger.SQLiteLedger
	policy  *budget.Policy
	closers []func() error
}

func openApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newApp(cfg, logger.New(cfg.Log))
}

func newApp(cfg *config.Config, log *logger.Logger, opts ...budget.Option) (*app, error) {
	l, err := ledger.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	opts = append([]budget.Option{budget.WithLogger(log)}, opts...)
	return &app{
		cfg:     cfg,
		log:     log,
		ledger:  l,
		policy:  budget.New(budgetConfig(cfg.Budget), l, opts...),
		closers: []func() error{l.Close},
	}, nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close runs closers in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warnw("close failed", "error", err)
		}
	}
	_ = a.log.Sync()
}

func budgetConfig(b config.BudgetConfig) budget.Config {
	return budget.Config{
		MonthlyBudget:  decimal.NewFromFloat(b.MonthlyLimit),
		AlertThreshold: decimal.NewFromFloat(b.AlertThreshold),
		DailyLimit:     decimal.NewFromFloat(b.DailyLimit),
		DailyBuffer:    decimal.NewFromFloat(b.DailyBuffer),
		AverageJobCost: decimal.NewFromFloat(b.AverageJobCost),
	}
}

// monthStart parses an optional YYYY-MM month, defaulting to the current
// UTC month.
func monthStart(month string) (time.Time, error) {
	if month == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --month (use YYYY-MM): %w", err)
	}
	return t, nil
}
