package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ipLimiter is a fixed-window per-client-IP counter for the challenge
// endpoint. The attempt cap and blacklist are scoped to identities, so
// without this an attacker could mint unlimited fresh challenges under a
// new claimed identity each time. Deployments behind an edge limiter can
// run with it disabled.
type ipLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	start   time.Time
	counts  map[string]int
	nowFunc func() time.Time
}

func newIPLimiter(limit int, window time.Duration) *ipLimiter {
	return &ipLimiter{
		window:  window,
		limit:   limit,
		counts:  make(map[string]int),
		nowFunc: time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if now.Sub(l.start) >= l.window {
		l.start = now
		l.counts = make(map[string]int)
	}
	if l.counts[ip] >= l.limit {
		return false
	}
	l.counts[ip]++
	return true
}

// ChallengeRateLimit limits challenge issuance per client IP.
func ChallengeRateLimit(limit int, window time.Duration) gin.HandlerFunc {
	limiter := newIPLimiter(limit, window)
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many challenge requests"})
			return
		}
		c.Next()
	}
}
