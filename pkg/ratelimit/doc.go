// Package ratelimit throttles outgoing requests on the client side.
//
// TokenBucket wraps golang.org/x/time/rate; Unlimited is used when no
// requests-per-minute budget is configured. Limiters only ever slow the
// caller down.
//
//	limiter := ratelimit.FromSettings(cfg.RateLimit)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
