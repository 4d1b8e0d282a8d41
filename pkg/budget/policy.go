// Package budget decides whether a job may spend money, reports budget
// health and raises threshold alerts.
package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/ledger"
	"github.com/postwright/postwright/pkg/logger"
	"github.com/postwright/postwright/pkg/models"
)

// Defaults used when Config leaves a field zero.
var (
	DefaultMonthlyBudget  = decimal.RequireFromString("10.00")
	DefaultAlertThreshold = decimal.RequireFromString("8.00")
	DefaultDailyBuffer    = decimal.RequireFromString("1.5")
	DefaultAverageJobCost = decimal.RequireFromString("0.10")
)

const (
	warningPercent  = 80
	criticalPercent = 100
)

// Config holds the budget limits.
type Config struct {
	MonthlyBudget  decimal.Decimal
	AlertThreshold decimal.Decimal
	// DailyLimit overrides MonthlyBudget/30 when positive.
	DailyLimit decimal.Decimal
	// DailyBuffer multiplies DailyLimit for the affordability check. The
	// slack tolerates bursty single-session usage.
	DailyBuffer    decimal.Decimal
	AverageJobCost decimal.Decimal
}

func (c Config) withDefaults() Config {
	if c.MonthlyBudget.IsZero() {
		c.MonthlyBudget = DefaultMonthlyBudget
	}
	if c.AlertThreshold.IsZero() {
		c.AlertThreshold = DefaultAlertThreshold
	}
	if !c.DailyLimit.IsPositive() {
		c.DailyLimit = c.MonthlyBudget.Div(decimal.NewFromInt(30))
	}
	if !c.DailyBuffer.IsPositive() {
		c.DailyBuffer = DefaultDailyBuffer
	}
	if !c.AverageJobCost.IsPositive() {
		c.AverageJobCost = DefaultAverageJobCost
	}
	return c
}

// Policy evaluates spend from the ledger against the configured limits.
// Checks are advisory unless callers use Reserve.
type Policy struct {
	cfg      Config
	ledger   ledger.Ledger
	reserver Reserver
	notifier Notifier
	log      *logger.Logger
	now      func() time.Time

	mu           sync.Mutex
	reservations map[string]int64
	alerted      map[string]models.HealthStatus
}

// Option configures a Policy.
type Option func(*Policy)

// WithClock sets the clock used for month and day windows.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// WithReserver enables reservations backed by r.
func WithReserver(r Reserver) Option {
	return func(p *Policy) { p.reserver = r }
}

// WithNotifier sets where threshold alerts go.
func WithNotifier(n Notifier) Option {
	return func(p *Policy) { p.notifier = n }
}

// WithLogger sets the policy logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Policy) { p.log = l }
}

// New creates a Policy over l.
func New(cfg Config, l ledger.Ledger, opts ...Option) *Policy {
	p := &Policy{
		cfg:          cfg.withDefaults(),
		ledger:       l,
		log:          logger.Nop(),
		now:          time.Now,
		reservations: make(map[string]int64),
		alerted:      make(map[string]models.HealthStatus),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective limits.
func (p *Policy) Config() Config {
	return p.cfg
}

// Reserving reports whether reservations are enabled.
func (p *Policy) Reserving() bool {
	return p.reserver != nil
}

// CanAfford reports whether a job estimated to cost estimate may start. The
// monthly limit is checked first.
func (p *Policy) CanAfford(ctx context.Context, estimate decimal.Decimal) (models.BudgetDecision, error) {
	if estimate.IsNegative() {
		return models.BudgetDecision{}, errors.NewValidationError("estimate", "must not be negative")
	}
	month, day, err := p.spent(ctx)
	if err != nil {
		return models.BudgetDecision{}, err
	}
	reserved, err := p.outstanding(ctx)
	if err != nil {
		return models.BudgetDecision{}, err
	}
	return p.decide(month.Add(reserved), day.Add(reserved), estimate), nil
}

func (p *Policy) decide(month, day, estimate decimal.Decimal) models.BudgetDecision {
	if month.Add(estimate).GreaterThan(p.cfg.MonthlyBudget) {
		return models.BudgetDecision{
			Reason: fmt.Sprintf("Monthly budget exceeded. Used: $%s/$%s",
				month.StringFixed(2), p.cfg.MonthlyBudget.StringFixed(2)),
		}
	}
	if day.Add(estimate).GreaterThan(p.cfg.DailyLimit.Mul(p.cfg.DailyBuffer)) {
		return models.BudgetDecision{
			Reason: fmt.Sprintf("Daily limit exceeded. Used: $%s today", day.StringFixed(2)),
		}
	}
	return models.BudgetDecision{Allowed: true}
}

// Summary returns the current month's summary with budget fields filled in.
func (p *Policy) Summary(ctx context.Context) (models.CostSummary, error) {
	start, end := p.monthWindow()
	sum, err := p.ledger.Summary(ctx, start, end)
	if err != nil {
		return sum, err
	}
	return p.withBudget(sum), nil
}

func (p *Policy) withBudget(sum models.CostSummary) models.CostSummary {
	budget := p.cfg.MonthlyBudget
	sum.BudgetLimit = budget
	sum.BudgetUsedPercent = UsedPercent(sum.TotalCost, budget)
	sum.BudgetRemaining = decimal.Max(decimal.Zero, budget.Sub(sum.TotalCost))
	sum.NearBudget = sum.TotalCost.GreaterThanOrEqual(p.cfg.AlertThreshold)
	sum.OverBudget = sum.TotalCost.GreaterThanOrEqual(budget)
	return sum
}

// UsedPercent is total/budget*100 rounded to one decimal place.
func UsedPercent(total, budget decimal.Decimal) float64 {
	if !budget.IsPositive() {
		if total.IsPositive() {
			return criticalPercent
		}
		return 0
	}
	pct, _ := total.Div(budget).Mul(decimal.NewFromInt(100)).Round(1).Float64()
	return pct
}

// Health classifies the current month's spend.
func (p *Policy) Health(ctx context.Context) (models.BudgetHealth, error) {
	sum, err := p.Summary(ctx)
	if err != nil {
		return models.BudgetHealth{}, err
	}
	return HealthOf(sum), nil
}

// HealthOf classifies a summary: critical at 100% or more, warning from 80%.
func HealthOf(sum models.CostSummary) models.BudgetHealth {
	pct := sum.BudgetUsedPercent
	switch {
	case pct >= criticalPercent:
		return models.BudgetHealth{
			Status:     models.HealthCritical,
			Message:    "Budget exceeded! Consider optimizing usage or increasing budget.",
			Percentage: pct,
		}
	case pct >= warningPercent:
		return models.BudgetHealth{
			Status:     models.HealthWarning,
			Message:    "Approaching budget limit. Monitor usage closely.",
			Percentage: pct,
		}
	default:
		return models.BudgetHealth{
			Status:     models.HealthHealthy,
			Message:    "Budget usage is within normal range.",
			Percentage: pct,
		}
	}
}

// DailyLimit reports today's spend against the unbuffered daily limit.
func (p *Policy) DailyLimit(ctx context.Context) (models.DailyLimit, error) {
	start, end := p.dayWindow()
	current, err := p.ledger.Total(ctx, start, end)
	if err != nil {
		return models.DailyLimit{}, err
	}
	limit := p.cfg.DailyLimit
	return models.DailyLimit{
		Limit:     limit.Round(6),
		Current:   current,
		Remaining: decimal.Max(decimal.Zero, limit.Sub(current)).Round(6),
		Exceeded:  current.GreaterThanOrEqual(limit),
	}, nil
}

// Status returns the combined budget view.
func (p *Policy) Status(ctx context.Context) (models.BudgetStatus, error) {
	sum, err := p.Summary(ctx)
	if err != nil {
		return models.BudgetStatus{}, err
	}
	daily, err := p.DailyLimit(ctx)
	if err != nil {
		return models.BudgetStatus{}, err
	}
	reserved, err := p.outstanding(ctx)
	if err != nil {
		return models.BudgetStatus{}, err
	}
	return models.BudgetStatus{
		Summary:            sum,
		Daily:              daily,
		Health:             HealthOf(sum),
		EstimatedRemaining: int(sum.BudgetRemaining.Div(p.cfg.AverageJobCost).IntPart()),
		Reserved:           reserved,
	}, nil
}

// Record appends entry to the ledger and raises a threshold alert when the
// month's spend crosses the alert threshold or the budget. Alert failures
// are logged and never returned.
func (p *Policy) Record(ctx context.Context, entry models.CostEntry) (int64, error) {
	id, err := p.ledger.Append(ctx, entry)
	if err != nil {
		return 0, err
	}
	p.observe(ctx)
	return id, nil
}

func (p *Policy) observe(ctx context.Context) {
	start, end := p.monthWindow()
	total, err := p.ledger.Total(ctx, start, end)
	if err != nil {
		p.log.Warnw("budget alert check failed", "error", err)
		return
	}

	var level models.HealthStatus
	switch {
	case total.GreaterThanOrEqual(p.cfg.MonthlyBudget):
		level = models.HealthCritical
		p.log.Errorw("budget exceeded", "spent", total.StringFixed(2), "budget", p.cfg.MonthlyBudget.StringFixed(2))
	case total.GreaterThanOrEqual(p.cfg.AlertThreshold):
		level = models.HealthWarning
		p.log.Warnw("cost alert", "spent", total.StringFixed(2), "percent", UsedPercent(total, p.cfg.MonthlyBudget))
	default:
		return
	}

	month := start.Format("2006-01")
	p.mu.Lock()
	if p.alerted[month] == level || p.alerted[month] == models.HealthCritical {
		p.mu.Unlock()
		return
	}
	p.alerted[month] = level
	p.mu.Unlock()

	if p.notifier == nil {
		return
	}
	alert := Alert{
		Level:   level,
		Month:   month,
		Spent:   total,
		Budget:  p.cfg.MonthlyBudget,
		Percent: UsedPercent(total, p.cfg.MonthlyBudget),
	}
	if err := p.notifier.Notify(ctx, alert); err != nil {
		p.log.Warnw("budget alert delivery failed", "level", level, "error", err)
	}
}

func (p *Policy) spent(ctx context.Context) (month, day decimal.Decimal, err error) {
	ms, me := p.monthWindow()
	month, err = p.ledger.Total(ctx, ms, me)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("budget check: %w", err)
	}
	ds, de := p.dayWindow()
	day, err = p.ledger.Total(ctx, ds, de)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("budget check: %w", err)
	}
	return month, day, nil
}

// monthWindow is the current UTC calendar month.
func (p *Policy) monthWindow() (time.Time, time.Time) {
	now := p.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// dayWindow is the current UTC calendar day.
func (p *Policy) dayWindow() (time.Time, time.Time) {
	now := p.now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
