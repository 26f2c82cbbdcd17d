package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter caps how often watch mode may start a conversion run.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter allows perSecond events with the given burst. A non-positive
// perSecond disables limiting.
func NewLimiter(perSecond float64, burst int) *Limiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{inner: rate.NewLimiter(limit, burst)}
}

// Allow reports whether one event may happen now.
func (l *Limiter) Allow() bool {
	return l.inner.AllowN(time.Now(), 1)
}

// Wait blocks until one event may happen or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.inner.Wait(ctx)
}
