package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/ledger"
	"github.com/postwright/postwright/pkg/models"
)

// Reserver holds the sum of outstanding reservations in micro-dollars.
type Reserver interface {
	// Add increases the outstanding amount and returns the new total.
	Add(ctx context.Context, micros int64) (int64, error)
	// Sub decreases the outstanding amount.
	Sub(ctx context.Context, micros int64) error
	// Outstanding returns the current total.
	Outstanding(ctx context.Context) (int64, error)
}

// Reservation is a provisional debit against the budget.
type Reservation struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

// Reserve provisionally debits estimate. The limits are checked against
// ledger spend plus every outstanding reservation, this one included, so
// concurrent reservers cannot jointly overshoot. A denied reservation holds
// nothing.
func (p *Policy) Reserve(ctx context.Context, estimate decimal.Decimal) (Reservation, models.BudgetDecision, error) {
	if p.reserver == nil {
		return Reservation{}, models.BudgetDecision{}, fmt.Errorf("reserve: reservations are not enabled")
	}
	if estimate.IsNegative() {
		return Reservation{}, models.BudgetDecision{}, errors.NewValidationError("estimate", "must not be negative")
	}

	micros := ledger.ToMicros(estimate)
	total, err := p.reserver.Add(ctx, micros)
	if err != nil {
		return Reservation{}, models.BudgetDecision{}, fmt.Errorf("reserve: %w", err)
	}
	others := ledger.FromMicros(total - micros)

	month, day, err := p.spent(ctx)
	if err != nil {
		_ = p.reserver.Sub(ctx, micros)
		return Reservation{}, models.BudgetDecision{}, err
	}
	decision := p.decide(month.Add(others), day.Add(others), estimate)
	if !decision.Allowed {
		if err := p.reserver.Sub(ctx, micros); err != nil {
			p.log.Warnw("release denied reservation failed", "error", err)
		}
		return Reservation{}, decision, nil
	}

	res := Reservation{ID: uuid.NewString(), Amount: ledger.FromMicros(micros)}
	p.mu.Lock()
	p.reservations[res.ID] = micros
	p.mu.Unlock()
	return res, decision, nil
}

// Commit records the real cost entry and releases the reservation. The
// reservation is released even when the append fails.
func (p *Policy) Commit(ctx context.Context, id string, entry models.CostEntry) (int64, error) {
	recID, err := p.Record(ctx, entry)
	if relErr := p.Release(ctx, id); relErr != nil {
		p.log.Warnw("release reservation failed", "reservation", id, "error", relErr)
	}
	return recID, err
}

// Release gives a reservation back. Unknown ids are ignored so callers can
// release unconditionally.
func (p *Policy) Release(ctx context.Context, id string) error {
	p.mu.Lock()
	micros, ok := p.reservations[id]
	delete(p.reservations, id)
	p.mu.Unlock()
	if !ok || p.reserver == nil {
		return nil
	}
	return p.reserver.Sub(ctx, micros)
}

func (p *Policy) outstanding(ctx context.Context) (decimal.Decimal, error) {
	if p.reserver == nil {
		return decimal.Zero, nil
	}
	micros, err := p.reserver.Outstanding(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("outstanding reservations: %w", err)
	}
	return ledger.FromMicros(micros), nil
}

// MemoryReserver keeps reservations in process memory.
type MemoryReserver struct {
	mu     sync.Mutex
	micros int64
}

// NewMemoryReserver creates an empty MemoryReserver.
func NewMemoryReserver() *MemoryReserver {
	return &MemoryReserver{}
}

// Add implements Reserver.
func (m *MemoryReserver) Add(_ context.Context, micros int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.micros += micros
	return m.micros, nil
}

// Sub implements Reserver.
func (m *MemoryReserver) Sub(_ context.Context, micros int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.micros -= micros
	if m.micros < 0 {
		m.micros = 0
	}
	return nil
}

// Outstanding implements Reserver.
func (m *MemoryReserver) Outstanding(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.micros, nil
}

// RedisReserver shares reservations between processes through one Redis
// counter. The key expires after ttl of inactivity so a crashed process
// cannot hold budget forever.
type RedisReserver struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	sub    *redis.Script
}

// subScript decrements the counter without letting it go below zero. A
// missing key means the reservations already expired, so there is nothing
// to give back.
const subScript = `
local v = redis.call('GET', KEYS[1])
if not v then
	return 0
end
local n = tonumber(v) - tonumber(ARGV[1])
if n <= 0 then
	redis.call('DEL', KEYS[1])
	return 0
end
redis.call('SET', KEYS[1], n, 'PX', ARGV[2])
return n
`

// NewRedisReserver parses url and returns a reserver on key.
func NewRedisReserver(url, key string, ttl time.Duration) (*RedisReserver, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if key == "" {
		key = "postwright:budget:reserved"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisReserver{
		client: redis.NewClient(opts),
		key:    key,
		ttl:    ttl,
		sub:    redis.NewScript(subScript),
	}, nil
}

// Add implements Reserver.
func (r *RedisReserver) Add(ctx context.Context, micros int64) (int64, error) {
	pipe := r.client.TxPipeline()
	incr := pipe.IncrBy(ctx, r.key, micros)
	pipe.Expire(ctx, r.key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Sub implements Reserver. The counter is clamped at zero and its TTL is
// refreshed.
func (r *RedisReserver) Sub(ctx context.Context, micros int64) error {
	return r.sub.Run(ctx, r.client, []string{r.key}, micros, r.ttl.Milliseconds()).Err()
}

// Outstanding implements Reserver.
func (r *RedisReserver) Outstanding(ctx context.Context) (int64, error) {
	v, err := r.client.Get(ctx, r.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, nil
	}
	return v, nil
}

// Close closes the Redis client.
func (r *RedisReserver) Close() error {
	return r.client.Close()
}
