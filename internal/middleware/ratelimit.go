package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"social-login/internal/logger"
	"social-login/internal/metrics"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleTTL is how long an untouched client limiter is kept. Idle clients are
// swept at most once per idleTTL.
const idleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	swept   time.Time
	limit   rate.Limit
	burst   int
	route   string
	stat    metrics.Recorder
	now     func() time.Time
}

// NewRateLimiter allows perMinute requests per client IP with the given burst.
func NewRateLimiter(route string, perMinute, burst int, stat metrics.Recorder) *RateLimiter {
	if stat == nil {
		stat = metrics.Nop{}
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		route:   route,
		stat:    stat,
		now:     time.Now,
	}
}

func (l *RateLimiter) reserve(ip string) *rate.Reservation {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.swept) > idleTTL {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > idleTTL {
				delete(l.clients, k)
			}
		}
		l.swept = now
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.ReserveN(now, 1)
}

// Middleware rejects over-limit requests with 429 and a Retry-After header.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		res := l.reserve(c.ClientIP())
		delay := res.DelayFrom(l.now())
		if !res.OK() || delay > 0 {
			retry := 60
			if res.OK() {
				res.CancelAt(l.now())
				retry = int(math.Ceil(delay.Seconds()))
			}
			l.stat.RecordRateLimited(l.route)
			logger.Warn("rate limited", map[string]any{
				"route": l.route,
				"ip":    c.ClientIP(),
			})
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
