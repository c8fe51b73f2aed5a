package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyLimiter stores a rate limiter per client key.
type KeyLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	r        rate.Limit
	b        int
}

// NewKeyLimiter creates a new KeyLimiter.
func NewKeyLimiter(r rate.Limit, b int) *KeyLimiter {
	return &KeyLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		b:        b,
	}
}

// Get returns the limiter for key, creating it on first use.
func (k *KeyLimiter) Get(key string) *rate.Limiter {
	k.mu.RLock()
	limiter, exists := k.limiters[key]
	k.mu.RUnlock()
	if exists {
		return limiter
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if limiter, exists = k.limiters[key]; !exists {
		limiter = rate.NewLimiter(k.r, k.b)
		k.limiters[key] = limiter
	}
	return limiter
}

// ClientKey picks the client address from header when set, otherwise gin's
// ClientIP.
func ClientKey(header string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		if header != "" {
			if v := c.GetHeader(header); v != "" {
				return v
			}
		}
		return c.ClientIP()
	}
}

// RateLimiter is a middleware for per-client rate limiting. A zero rate
// disables limiting.
func RateLimiter(r rate.Limit, b int, key func(*gin.Context) string) gin.HandlerFunc {
	if r <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := NewKeyLimiter(r, b)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / float64(r))))
	return func(c *gin.Context) {
		if !limiter.Get(key(c)).Allow() {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
