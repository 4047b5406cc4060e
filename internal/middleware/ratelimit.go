package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/pkg/response"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

// ByIP buckets requests per client address.
func ByIP(c *gin.Context) string { return c.ClientIP() }

// ByUser buckets authenticated requests per user, falling back to the IP.
func ByUser(c *gin.Context) string {
	if id := GetUserID(c); id != 0 {
		return "u:" + strconv.FormatUint(uint64(id), 10)
	}
	return c.ClientIP()
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per key with a token bucket.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rps     rate.Limit
	burst   int
	key     KeyFunc
	idle    time.Duration
}

// NewRateLimiter allows rps requests per second per key with the given burst.
func NewRateLimiter(rps float64, burst int, key KeyFunc) *RateLimiter {
	if key == nil {
		key = ByIP
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		key:     key,
		idle:    5 * time.Minute,
	}
}

func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// sweep lazily instead of running a goroutine per limiter
	if len(rl.buckets) > 1024 {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) > rl.idle {
				delete(rl.buckets, k)
			}
		}
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Middleware answers 429 once a key runs out of tokens.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter(rl.key(c), time.Now()).Allow() {
			response.TooManyRequests(c, "too many requests, please try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimit is shorthand for a per-IP limiter.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	return NewRateLimiter(rps, burst, ByIP).Middleware()
}
