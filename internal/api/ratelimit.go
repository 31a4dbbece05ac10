package api

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter throttles requests per client IP
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	clients  map[string]*clientLimiter
	idleTTL  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter allows perMinute requests per client with the given burst
// and evicts clients idle for longer than ten minutes
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 20
	}
	if burst <= 0 {
		burst = 1
	}
	rl := &RateLimiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		idleTTL: 10 * time.Minute,
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastAccess = time.Now()
	return cl.limiter
}

// Middleware answers 429 once a client exceeds its budget
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	retryAfter := int(math.Ceil(1.0 / float64(rl.limit)))
	if retryAfter < 1 {
		retryAfter = 1
	}

	return func(c *gin.Context) {
		if !rl.limiterFor(c.ClientIP()).Allow() {
			util.GetLogger().Warn("Rate limit exceeded",
				zap.String("client_ip", c.ClientIP()),
				zap.String("path", c.FullPath()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests, please try again later"})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, cl := range rl.clients {
		if now.Sub(cl.lastAccess) > rl.idleTTL {
			delete(rl.clients, key)
		}
	}
}
