package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	rateLimitRPS   = 1.0 / 3.0 // 1 write every 3 seconds
	rateLimitBurst = 3
	visitorIdleTTL = 10 * time.Minute
)

var janitorSpec = "@every 10m"

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	now      func() time.Time
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		rps:      r,
		burst:    b,
		now:      time.Now,
	}
}

func (rl *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = rl.now()
	return v.limiter
}

// Sweep forgets visitors not seen for longer than ttl and returns how many
// were removed.
func (rl *IPRateLimiter) Sweep(ttl time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-ttl)
	removed := 0
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
			removed++
		}
	}
	return removed
}

// StartJanitor schedules Sweep every ten minutes. Stop the returned cron on
// shutdown.
func (rl *IPRateLimiter) StartJanitor(log *zap.Logger) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc(janitorSpec, func() {
		if n := rl.Sweep(visitorIdleTTL); n > 0 {
			log.Debug("rate limiter swept idle visitors", zap.Int("removed", n))
		}
	})
	if err != nil {
		log.Error("failed to schedule rate limiter sweep, idle visitors will not be evicted",
			zap.String("spec", janitorSpec), zap.Error(err))
	}
	c.Start()
	return c
}

func RateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.GetLimiter(ip).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please wait."})
			return
		}
		c.Next()
	}
}
