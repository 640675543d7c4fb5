package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sweepstar/service-booking/internal/pkg/response"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore keeps one token bucket per key and evicts idle ones.
type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	lastGC   time.Time
}

func newLimiterStore(perSecond float64, burst int) *limiterStore {
	return &limiterStore{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		lastGC:   time.Now(),
	}
}

func (s *limiterStore) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastGC) > limiterIdleTTL {
		for k, e := range s.limiters {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(s.limiters, k)
			}
		}
		s.lastGC = now
	}

	e, ok := s.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// RateLimitPerUser throttles requests per authenticated user, falling back
// to the client IP. Must run after AuthMiddleware.
func RateLimitPerUser(perSecond float64, burst int, logger *zap.Logger) gin.HandlerFunc {
	store := newLimiterStore(perSecond, burst)
	return func(c *gin.Context) {
		key := c.ClientIP()
		if userID, ok := GetUserID(c); ok {
			key = userID.String()
		}
		if !store.get(key, time.Now()).Allow() {
			logger.Warn("rate limit exceeded", zap.String("key", key), zap.String("path", c.FullPath()))
			c.Header("Retry-After", "1")
			abortTooManyRequests(c)
			return
		}
		c.Next()
	}
}

func abortTooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, response.Envelope{
		Success: false,
		Error: &response.ErrorBody{
			Code:    "RATE_LIMITED",
			Message: "too many requests, try again later",
		},
	})
}
