package middlewares

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/quote-engine/internal/common"
	"github.com/hxuan190/quote-engine/internal/http/httputil"
)

// idleBucketTTL is how long an untouched client bucket is kept.
const idleBucketTTL = 10 * time.Minute

type bucket struct {
	tokens   float64
	lastTime time.Time
}

// RateLimiter is a per-IP token bucket refilled at rate tokens per second.
type RateLimiter struct {
	mu      sync.Mutex
	rate    float64
	burst   float64
	buckets map[string]*bucket
	swept   time.Time
	now     func() time.Time
}

func NewRateLimiter(rate, burst int) *RateLimiter {
	if burst < rate {
		burst = rate
	}
	return &RateLimiter{
		rate:    float64(rate),
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow takes one token from key's bucket.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.burst, lastTime: now}
		rl.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastTime).Seconds() * rl.rate
	if b.tokens > rl.burst {
		b.tokens = rl.burst
	}
	b.lastTime = now

	if now.Sub(rl.swept) > idleBucketTTL {
		for k, other := range rl.buckets {
			if now.Sub(other.lastTime) > idleBucketTTL {
				delete(rl.buckets, k)
			}
		}
		rl.swept = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			httputil.HTTPError(c, common.HTTPErrorTooManyRequests(""))
			return
		}
		c.Next()
	}
}
