package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeremiapane/restaurant-floor/utils"
)

type RateLimiter struct {
	rate     int
	interval time.Duration
	ips      map[string][]time.Time
	mu       sync.Mutex
}

func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		rate:     rate,
		interval: interval,
		ips:      make(map[string][]time.Time),
	}
}

// NewStrictRateLimiter guards the login route: burst requests per client
// IP, refilled one per every.
func NewStrictRateLimiter(every time.Duration, burst int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		mu.Lock()
		limiter, ok := limiters[ip]
		if !ok {
			limiter = rate.NewLimiter(rate.Every(every), burst)
			limiters[ip] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			utils.RespondMessage(c, http.StatusTooManyRequests, "Too many attempts, please wait a moment")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimit is a sliding window limiter over all console routes.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		rl.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-rl.interval)
		valid := rl.ips[ip][:0]
		for _, t := range rl.ips[ip] {
			if t.After(cutoff) {
				valid = append(valid, t)
			}
		}
		if len(valid) >= rl.rate {
			rl.ips[ip] = valid
			rl.mu.Unlock()
			utils.RespondMessage(c, http.StatusTooManyRequests, "Too many requests")
			c.Abort()
			return
		}
		rl.ips[ip] = append(valid, now)
		rl.mu.Unlock()

		c.Next()
	}
}
