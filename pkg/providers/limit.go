package providers

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/postwright/postwright/pkg/errors"
)

// Limiter caps the request rate of one provider account. A nil *Limiter
// never blocks.
type Limiter struct {
	name    string
	limiter *rate.Limiter
}

// NewLimiter allows requestsPerMinute requests with a burst of a tenth of
// that. It returns nil when requestsPerMinute is not positive.
func NewLimiter(name string, requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), burst),
	}
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limiter %s", l.name)
	}
	return nil
}
