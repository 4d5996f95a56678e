package ratelimit

import (
	"sync"
)

// IPRateLimiter rate limits requests per client IP, lazily creating one
// token bucket per address.
type IPRateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*TokenBucket
	maxTokens  float64
	refillRate float64
}

// NewIPRateLimiter creates a new IPRateLimiter
func NewIPRateLimiter(maxTokens, refillRate float64) *IPRateLimiter {
	return &IPRateLimiter{
		limiters:   make(map[string]*TokenBucket),
		maxTokens:  maxTokens,
		refillRate: refillRate,
	}
}

// Allow checks if a request from the given IP can proceed
func (ipl *IPRateLimiter) Allow(ip string) bool {
	return ipl.getLimiter(ip).Allow()
}

func (ipl *IPRateLimiter) getLimiter(ip string) *TokenBucket {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()

	limiter, exists := ipl.limiters[ip]

	if !exists {
		limiter = NewTokenBucket(ipl.maxTokens, ipl.refillRate)
		ipl.limiters[ip] = limiter
	}

	return limiter
}
