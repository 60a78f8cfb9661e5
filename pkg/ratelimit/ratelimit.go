// Package ratelimit paces outbound API calls so a run stays under the
// reporting API's per-site QPS quota.
package ratelimit

import (
	"context"
	"time"
)

// Limiter spaces operations evenly at a fixed rate. It is safe for
// concurrent use by multiple goroutines.
type Limiter struct {
	ticker *time.Ticker
	ch     <-chan time.Time
}

// NewLimiter creates a limiter allowing rps requests per second.
// Fractional rates are supported (0.5 = one request every two seconds).
// If rps <= 0, the limiter does not block.
func NewLimiter(rps float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}

	interval := time.Duration(float64(time.Second) / rps)
	ticker := time.NewTicker(interval)

	return &Limiter{
		ticker: ticker,
		ch:     ticker.C,
	}
}

// Wait blocks until it is time to perform the next operation, or until
// the context is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.ch == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ch:
		return nil
	}
}

// Stop releases any resources associated with the limiter.
func (l *Limiter) Stop() {
	if l.ticker != nil {
		l.ticker.Stop()
	}
}
