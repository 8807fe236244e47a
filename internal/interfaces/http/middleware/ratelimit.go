package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kwanza/fiscal/internal/interfaces/http/dto"
)

// RateLimiter is a fixed-window request limiter keyed by caller
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*window
	limit     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type window struct {
	remaining int
	startedAt time.Time
}

// NewRateLimiter allows limit requests per key in each window
func NewRateLimiter(limit int, per time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*window),
		limit:   limit,
		window:  per,
		now:     time.Now,
	}
}

// Allow consumes one request for key and reports whether it may proceed
// together with the requests left in the current window.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	w, ok := rl.clients[key]
	if !ok || now.Sub(w.startedAt) >= rl.window {
		w = &window{remaining: rl.limit, startedAt: now}
		rl.clients[key] = w
	}
	if w.remaining == 0 {
		return false, 0
	}
	w.remaining--
	return true, w.remaining
}

// sweep drops idle keys at most once per window
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for key, w := range rl.clients {
		if now.Sub(w.startedAt) >= rl.window {
			delete(rl.clients, key)
		}
	}
}

// RateLimitByTenant limits requests per authenticated tenant, falling back
// to the client IP. It must run after JWTAuth.
func RateLimitByTenant(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if p, ok := GetPrincipal(c); ok {
			key = "tenant:" + p.TenantID.String()
		}

		allowed, remaining := limiter.Allow(key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.NewErrorResponse(dto.ErrCodeRateLimited, "Too many requests. Please try again later.", GetRequestID(c)))
			return
		}
		c.Next()
	}
}
