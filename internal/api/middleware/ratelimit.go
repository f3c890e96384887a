package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTimeout     = time.Hour
)

type limiterEntry struct {
	limiter    *rate.Limiter
	mu         sync.Mutex
	lastAccess time.Time
}

// ipLimiterStore holds one token bucket per client IP.
type ipLimiterStore struct {
	limiters sync.Map // map[string]*limiterEntry
	rps      rate.Limit
	burst    int
}

func (s *ipLimiterStore) get(ip string) *rate.Limiter {
	now := time.Now()
	if v, ok := s.limiters.Load(ip); ok {
		e := v.(*limiterEntry)
		e.mu.Lock()
		e.lastAccess = now
		e.mu.Unlock()
		return e.limiter
	}
	v, _ := s.limiters.LoadOrStore(ip, &limiterEntry{
		limiter:    rate.NewLimiter(s.rps, s.burst),
		lastAccess: now,
	})
	return v.(*limiterEntry).limiter
}

func (s *ipLimiterStore) sweep(threshold time.Time) {
	s.limiters.Range(func(key, value any) bool {
		e := value.(*limiterEntry)
		e.mu.Lock()
		stale := e.lastAccess.Before(threshold)
		e.mu.Unlock()
		if stale {
			s.limiters.Delete(key)
		}
		return true
	})
}

func (s *ipLimiterStore) cleanup(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now().Add(-limiterIdleTimeout))
		}
	}
}

// LoginRateLimit throttles credential endpoints per client IP to slow down
// password guessing. Limiters idle for an hour are dropped; the sweeper stops
// with ctx.
func LoginRateLimit(ctx context.Context, rps float64, burst int, log zerolog.Logger) echo.MiddlewareFunc {
	if burst <= 0 {
		burst = 1
	}
	store := &ipLimiterStore{rps: rate.Limit(rps), burst: burst}
	go store.cleanup(ctx)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			limiter := store.get(ip)

			if !limiter.Allow() {
				r := limiter.Reserve()
				wait := r.Delay()
				r.Cancel()

				retryAfter := int(math.Ceil(wait.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				log.Warn().Str("ip", ip).Int("retry_after", retryAfter).Msg("login rate limit exceeded")
				c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(retryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts, retry later")
			}
			return next(c)
		}
	}
}
