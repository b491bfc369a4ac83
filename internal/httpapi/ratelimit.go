package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter applies a fixed window per client IP. Windows reset wholesale
// on expiry rather than sliding, which keeps the bookkeeping to one counter
// per address.
type RateLimiter struct {
	mutex   sync.Mutex
	windows map[string]*rateWindow
	limit   int
	period  time.Duration
	now     func() time.Time
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter constructs a limiter allowing limit requests per period per
// client IP.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*rateWindow),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Middleware rejects over-limit requests with 429.
func (limiter *RateLimiter) Middleware() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		if !limiter.allow(contextGin.ClientIP()) {
			respondError(contextGin, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		contextGin.Next()
	}
}

func (limiter *RateLimiter) allow(clientIP string) bool {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	now := limiter.now()
	window, ok := limiter.windows[clientIP]
	if !ok || now.After(window.resetAt) {
		limiter.purgeExpiredLocked(now)
		limiter.windows[clientIP] = &rateWindow{count: 1, resetAt: now.Add(limiter.period)}
		return true
	}
	if window.count >= limiter.limit {
		return false
	}
	window.count++
	return true
}

func (limiter *RateLimiter) purgeExpiredLocked(now time.Time) {
	for clientIP, window := range limiter.windows {
		if now.After(window.resetAt) {
			delete(limiter.windows, clientIP)
		}
	}
}
