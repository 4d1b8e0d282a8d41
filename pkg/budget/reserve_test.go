package budget

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/postwright/postwright/pkg/models"
)

func TestReserveBlocksConcurrentOvershoot(t *testing.T) {
	l, ctx := setup(t)
	p := newPolicy(l, Config{MonthlyBudget: d("1.00"), DailyLimit: d("1.00")}, WithReserver(NewMemoryReserver()))

	first, dec, err := p.Reserve(ctx, d("0.60"))
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Allowed || first.ID == "" {
		t.Fatalf("expected first reservation, got %+v %+v", first, dec)
	}

	_, dec, err = p.Reserve(ctx, d("0.60"))
	if err != nil {
		t.Fatal(err)
	}
	if dec.Allowed {
		t.Fatal("expected second reservation to be denied")
	}

	// The advisory check sees outstanding reservations too.
	adv, _ := p.CanAfford(ctx, d("0.50"))
	if adv.Allowed {
		t.Error("expected advisory check to include reservations")
	}

	if err := p.Release(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	if err := p.Release(ctx, first.ID); err != nil {
		t.Fatalf("expected second release to be a no-op, got %v", err)
	}
	if _, dec, _ = p.Reserve(ctx, d("0.60")); !dec.Allowed {
		t.Errorf("expected reservation after release, got %q", dec.Reason)
	}
}

func TestCommitWritesLedgerAndReleases(t *testing.T) {
	l, ctx := setup(t)
	r := NewMemoryReserver()
	p := newPolicy(l, Config{MonthlyBudget: d("10.00")}, WithReserver(r))

	res, dec, err := p.Reserve(ctx, d("0.05"))
	if err != nil || !dec.Allowed {
		t.Fatalf("reserve failed: %v %+v", err, dec)
	}
	if _, err := p.Commit(ctx, res.ID, models.CostEntry{
		Service: models.ServiceImageGen, Operation: "infographic", Cost: d("0.04"), CreatedAt: fixedNow,
	}); err != nil {
		t.Fatal(err)
	}

	out, _ := r.Outstanding(ctx)
	if out != 0 {
		t.Errorf("expected no outstanding reservation, got %d", out)
	}
	st, err := p.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Summary.TotalCost.Equal(d("0.04")) {
		t.Errorf("expected 0.04 recorded, got %s", st.Summary.TotalCost)
	}
}

func TestConcurrentReservationsNeverExceedBudget(t *testing.T) {
	l, ctx := setup(t)
	p := newPolicy(l, Config{MonthlyBudget: d("1.00"), DailyLimit: d("1.00")}, WithReserver(NewMemoryReserver()))

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dec, err := p.Reserve(ctx, d("0.10"))
			if err == nil && dec.Allowed {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if granted > 10 {
		t.Errorf("expected at most 10 reservations, got %d", granted)
	}
}

func TestReserveDisabled(t *testing.T) {
	l, ctx := setup(t)
	p := newPolicy(l, Config{})
	if _, _, err := p.Reserve(ctx, d("0.01")); err == nil {
		t.Error("expected error without a reserver")
	}
}

func TestRedisReserver(t *testing.T) {
	url := os.Getenv("POSTWRIGHT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("POSTWRIGHT_TEST_REDIS_URL not set")
	}
	r, err := NewRedisReserver(url, "postwright:test:"+time.Now().Format("150405.000"), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	ctx := context.Background()

	total, err := r.Add(ctx, 40_000)
	if err != nil {
		t.Fatal(err)
	}
	if total != 40_000 {
		t.Errorf("expected 40000, got %d", total)
	}
	if err := r.Sub(ctx, 40_000); err != nil {
		t.Fatal(err)
	}
	if out, _ := r.Outstanding(ctx); out != 0 {
		t.Errorf("expected 0 outstanding, got %d", out)
	}

	// A late release after the key expired must not leave a debt that
	// hides the next reservation.
	if err := r.Sub(ctx, 25_000); err != nil {
		t.Fatal(err)
	}
	if out, _ := r.Outstanding(ctx); out != 0 {
		t.Errorf("expected 0 outstanding after late release, got %d", out)
	}
	total, err = r.Add(ctx, 10_000)
	if err != nil {
		t.Fatal(err)
	}
	if total != 10_000 {
		t.Errorf("expected 10000 after late release, got %d", total)
	}
}

func TestMemoryReserverClampsAtZero(t *testing.T) {
	r := NewMemoryReserver()
	ctx := context.Background()
	if err := r.Sub(ctx, 5_000); err != nil {
		t.Fatal(err)
	}
	total, err := r.Add(ctx, 1_000)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1_000 {
		t.Errorf("expected 1000, got %d", total)
	}
}
