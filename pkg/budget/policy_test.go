package budget

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/ledger"
	"github.com/postwright/postwright/pkg/models"
)

var fixedNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T) (*ledger.SQLiteLedger, context.Context) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "budget_test.db")
	l, err := ledger.New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l, context.Background()
}

func spend(t *testing.T, l ledger.Ledger, cost string, at time.Time) {
	t.Helper()
	_, err := l.Append(context.Background(), models.CostEntry{
		Service: models.ServiceTextGen, Operation: "text_generation",
		Cost: d(cost), CreatedAt: at,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func newPolicy(l ledger.Ledger, cfg Config, opts ...Option) *Policy {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(cfg, l, opts...)
}

func TestCanAffordMonthlyScenario(t *testing.T) {
	l, ctx := setup(t)
	// A large daily limit isolates the monthly check.
	p := newPolicy(l, Config{MonthlyBudget: d("10.00"), DailyLimit: d("100")})

	dec, err := p.CanAfford(ctx, d("0.02"))
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allowed on empty ledger, got %q", dec.Reason)
	}

	spend(t, l, "9.99", fixedNow.Add(-time.Hour))

	dec, err = p.CanAfford(ctx, d("0.02"))
	if err != nil {
		t.Fatal(err)
	}
	if dec.Allowed {
		t.Fatal("expected denial after $9.99 spent")
	}
	if !strings.Contains(dec.Reason, "$9.99/$10.00") {
		t.Errorf("expected reason to cite $9.99/$10.00, got %q", dec.Reason)
	}
}

func TestCanAffordMonthCheckedFirst(t *testing.T) {
	l, ctx := setup(t)
	p := newPolicy(l, Config{MonthlyBudget: d("10.00")})

	spend(t, l, "9.99", fixedNow)

	dec, _ := p.CanAfford(ctx, d("0.02"))
	if !strings.HasPrefix(dec.Reason, "Monthly budget exceeded") {
		t.Errorf("expected monthly reason, got %q", dec.Reason)
	}
}

func TestCanAffordDailyBuffer(t *testing.T) {
	l, ctx := setup(t)
	// Daily limit 0.3333..., buffered to 0.5.
	p := newPolicy(l, Config{MonthlyBudget: d("10.00")})

	// Spend on an earlier day does not count toward today.
	spend(t, l, "2.00", fixedNow.AddDate(0, 0, -3))
	spend(t, l, "0.45", fixedNow.Add(-2*time.Hour))

	dec, _ := p.CanAfford(ctx, d("0.04"))
	if !dec.Allowed {
		t.Errorf("expected 0.49 today to be allowed, got %q", dec.Reason)
	}

	dec, _ = p.CanAfford(ctx, d("0.06"))
	if dec.Allowed {
		t.Fatal("expected denial over the buffered daily limit")
	}
	if dec.Reason != "Daily limit exceeded. Used: $0.45 today" {
		t.Errorf("unexpected reason %q", dec.Reason)
	}
}

func TestCanAffordDeniesWheneverMonthOvershoots(t *testing.T) {
	l, ctx := setup(t)
	p := newPolicy(l, Config{MonthlyBudget: d("1.00"), DailyLimit: d("1000")})
	spend(t, l, "0.70", fixedNow)

	for _, c := range []string{"0", "0.1", "0.3", "0.300001", "0.31", "5"} {
		dec, err := p.CanAfford(ctx, d(c))
		if err != nil {
			t.Fatal(err)
		}
		over := d("0.70").Add(d(c)).GreaterThan(d("1.00"))
		if over == dec.Allowed {
			t.Errorf("estimate %s: expected allowed=%v, got %v", c, !over, dec.Allowed)
		}
	}
}

func TestCanAffordNegativeEstimate(t *testing.T) {
	l, ctx := setup(t)
	p := newPolicy(l, Config{})
	if _, err := p.CanAfford(ctx, d("-1")); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHealthOfThresholds(t *testing.T) {
	cases := []struct {
		pct  float64
		want models.HealthStatus
	}{
		{0, models.HealthHealthy},
		{79.9, models.HealthHealthy},
		{80, models.HealthWarning},
		{99.9, models.HealthWarning},
		{100, models.HealthCritical},
		{250, models.HealthCritical},
	}
	for _, c := range cases {
		got := HealthOf(models.CostSummary{BudgetUsedPercent: c.pct})
		if got.Status != c.want {
			t.Errorf("%.1f%%: expected %s, got %s", c.pct, c.want, got.Status)
		}
		if got.Percentage != c.pct {
			t.Errorf("expected percentage %.1f, got %.1f", c.pct, got.Percentage)
		}
	}
}

func TestSummaryBudgetFields(t *testing.T) {
	l, ctx := setup(t)
	p := newPolicy(l, Config{MonthlyBudget: d("10.00"), AlertThreshold: d("8.00")})
	spend(t, l, "8.25", fixedNow)
	// Previous month is excluded.
	spend(t, l, "3.00", fixedNow.AddDate(0, -1, 0))

	sum, err := p.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !sum.TotalCost.Equal(d("8.25")) {
		t.Errorf("expected 8.25, got %s", sum.TotalCost)
	}
	if sum.BudgetUsedPercent != 82.5 {
		t.Errorf("expected 82.5%%, got %v", sum.BudgetUsedPercent)
	}
	if !sum.BudgetRemaining.Equal(d("1.75")) {
		t.Errorf("expected 1.75 remaining, got %s", sum.BudgetRemaining)
	}
	if !sum.NearBudget || sum.OverBudget {
		t.Errorf("expected near and not over, got near=%v over=%v", sum.NearBudget, sum.OverBudget)
	}

	h, err := p.Health(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if h.Status != models.HealthWarning {
		t.Errorf("expected warning, got %s", h.Status)
	}
}

func TestSummaryRemainingNeverNegative(t *testing.T) {
	l, ctx := setup(t)
	p := newPolicy(l, Config{MonthlyBudget: d("1.00")})
	spend(t, l, "1.50", fixedNow)

	sum, _ := p.Summary(ctx)
	if !sum.BudgetRemaining.IsZero() {
		t.Errorf("expected zero remaining, got %s", sum.BudgetRemaining)
	}
	if HealthOf(sum).Status != models.HealthCritical {
		t.Errorf("expected critical")
	}
}

func TestDailyLimitAndStatus(t *testing.T) {
	l, ctx := setup(t)
	p := newPolicy(l, Config{MonthlyBudget: d("10.00"), DailyLimit: d("0.50")})
	spend(t, l, "2.05", fixedNow.AddDate(0, 0, -1))
	spend(t, l, "0.50", fixedNow)

	daily, err := p.DailyLimit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !daily.Current.Equal(d("0.50")) || !daily.Exceeded || !daily.Remaining.IsZero() {
		t.Errorf("unexpected daily limit: %+v", daily)
	}

	st, err := p.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// 7.45 remaining at 0.10 per post.
	if st.EstimatedRemaining != 74 {
		t.Errorf("expected 74 remaining posts, got %d", st.EstimatedRemaining)
	}
	if st.Health.Status != models.HealthHealthy {
		t.Errorf("expected healthy, got %s", st.Health.Status)
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (n *recordingNotifier) Notify(_ context.Context, a Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return nil
}

func TestRecordRaisesAlertsOncePerLevel(t *testing.T) {
	l, ctx := setup(t)
	n := &recordingNotifier{}
	p := newPolicy(l, Config{MonthlyBudget: d("10.00"), AlertThreshold: d("8.00")}, WithNotifier(n))

	record := func(cost string) {
		t.Helper()
		if _, err := p.Record(ctx, models.CostEntry{
			Service: models.ServiceImageGen, Operation: "infographic", Cost: d(cost), CreatedAt: fixedNow,
		}); err != nil {
			t.Fatal(err)
		}
	}

	record("7.00")
	if len(n.alerts) != 0 {
		t.Fatalf("expected no alert below threshold, got %d", len(n.alerts))
	}
	record("1.50")
	record("0.10")
	if len(n.alerts) != 1 || n.alerts[0].Level != models.HealthWarning {
		t.Fatalf("expected one warning, got %+v", n.alerts)
	}
	record("2.00")
	record("1.00")
	if len(n.alerts) != 2 || n.alerts[1].Level != models.HealthCritical {
		t.Fatalf("expected warning then critical, got %+v", n.alerts)
	}
	if !strings.Contains(n.alerts[1].Text(), "Budget exceeded") {
		t.Errorf("unexpected alert text %q", n.alerts[1].Text())
	}
}

func TestRecordRejectsInvalidEntry(t *testing.T) {
	l, ctx := setup(t)
	p := newPolicy(l, Config{})
	_, err := p.Record(ctx, models.CostEntry{Service: "fax", Operation: "x", Cost: d("1")})
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
