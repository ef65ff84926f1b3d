// Package ratelimit keeps storefront traffic inside the API's limits: a
// spacing limiter for every request and a bounded pool for per-order calls.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between request starts.
//
// Thread Safety: Safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter admitting one request per minInterval with no
// burst. A non-positive interval disables limiting.
func NewLimiter(minInterval time.Duration) *Limiter {
	if minInterval <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the next request may start or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}
