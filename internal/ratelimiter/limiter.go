package ratelimiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// KeyedLimiters holds one token bucket per key (a channel id such as
// "msteams" or "slack"). Buckets are created on first use.
// Burst equals the rate so no capacity is saved up beyond one second's worth.
type KeyedLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// New creates a KeyedLimiters allowing ratePerSec sends per second per key.
// A ratePerSec <= 0 disables limiting.
func New(ratePerSec int) *KeyedLimiters {
	kl := &KeyedLimiters{
		limit:    rate.Inf,
		burst:    1,
		limiters: make(map[string]*rate.Limiter),
	}
	if ratePerSec > 0 {
		kl.limit = rate.Limit(ratePerSec)
		kl.burst = ratePerSec
	}
	return kl
}

// Wait blocks until the bucket for key grants a token.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (kl *KeyedLimiters) Wait(ctx context.Context, key string) error {
	return kl.get(key).Wait(ctx)
}

// Allow reports whether a token is available for key right now.
func (kl *KeyedLimiters) Allow(key string) bool {
	return kl.get(key).Allow()
}

func (kl *KeyedLimiters) get(key string) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	l, ok := kl.limiters[key]
	if !ok {
		l = rate.NewLimiter(kl.limit, kl.burst)
		kl.limiters[key] = l
	}
	return l
}
