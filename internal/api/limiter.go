package api

import (
	"sync"

	"finbot/internal/config"

	"golang.org/x/time/rate"
)

// rateLimiter keeps one token bucket per API client.
type rateLimiter struct {
	cfg      config.APIRateLimitConfig
	limiters sync.Map // map[string]*rate.Limiter
}

func newRateLimiter(cfg config.APIRateLimitConfig) *rateLimiter {
	return &rateLimiter{cfg: cfg}
}

func (rl *rateLimiter) allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := rl.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := rl.cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(rl.cfg.RPS), burst)
	actual, loaded := rl.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}
