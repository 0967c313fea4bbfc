package ratelimit

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
	"github.com/noah-isme/rollcall-api/pkg/response"
)

// TokenBucket is an in-memory per-key rate limiter refilled once per minute.
type TokenBucket struct {
	capacity  int
	perMinute int
	now       func() time.Time

	// idleAfter is how long an untouched bucket takes to refill completely.
	// Such a bucket is indistinguishable from a missing one and is pruned.
	idleAfter time.Duration

	mu        sync.Mutex
	state     map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// New creates a limiter allowing perMinute requests per client with the given burst capacity.
func New(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	idleAfter := time.Minute
	if perMinute > 0 {
		if refill := time.Duration(float64(capacity) / float64(perMinute) * float64(time.Minute)); refill > idleAfter {
			idleAfter = refill
		}
	}
	return &TokenBucket{
		capacity:  capacity,
		perMinute: perMinute,
		idleAfter: idleAfter,
		now:       time.Now,
		state:     make(map[string]*bucket),
	}
}

// Middleware enforces per-IP limits. A non-positive rate disables limiting.
func (l *TokenBucket) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.perMinute <= 0 {
			c.Next()
			return
		}
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}
		if !l.Allow(key) {
			response.Error(c, appErrors.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Allow consumes one token for key.
func (l *TokenBucket) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true
	}

	refill := int(now.Sub(b.last).Minutes() * float64(l.perMinute))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets idle for at least idleAfter, at most once per idleAfter.
func (l *TokenBucket) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleAfter {
		return
	}
	l.lastSweep = now
	for key, b := range l.state {
		if now.Sub(b.last) >= l.idleAfter {
			delete(l.state, key)
		}
	}
}

