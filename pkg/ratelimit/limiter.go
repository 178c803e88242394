package ratelimit

import (
	"context"
	"time"

	"clipvault/pkg/config"

	"golang.org/x/time/rate"
)

// Limiter throttles outgoing requests
type Limiter interface {
	// Allow reports whether a request may proceed now, consuming a token if so
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
}

// TokenBucket is a Limiter backed by golang.org/x/time/rate
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket allows burst requests at once and refills one token every interval
func NewTokenBucket(interval time.Duration, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

// NewPerMinute returns a limiter allowing requestsPerMinute requests per minute
func NewPerMinute(requestsPerMinute, burst int) *TokenBucket {
	return NewTokenBucket(time.Minute/time.Duration(requestsPerMinute), burst)
}

func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

// Unlimited never blocks except on an already cancelled context
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }

func (Unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}

// FromSettings returns the limiter described by the rate_limit section;
// zero requests per minute means no client-side limit.
func FromSettings(rl config.RateLimitConfig) Limiter {
	if rl.RequestsPerMinute <= 0 {
		return Unlimited{}
	}
	return NewPerMinute(rl.RequestsPerMinute, rl.BurstSize)
}
