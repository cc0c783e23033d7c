package middlewares

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tourhub/tourhub/internal/apperr"
	"github.com/tourhub/tourhub/internal/observability"
)

// Counter counts hits per key in fixed windows. It returns the hits so far
// in the current window and the time until the window resets.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type RateLimiter struct {
	counter  Counter
	fallback *MemoryCounter
	limit    int
	window   time.Duration
	message  string
	prom     *observability.Prom
	log      *slog.Logger
}

type RateLimiterConfig struct {
	Limit   int
	Window  time.Duration
	Message string
	// Counter defaults to an in-process counter. Errors from a shared
	// counter fall back to the in-process one.
	Counter Counter
	Prom    *observability.Prom
	Log     *slog.Logger
}

func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	fallback := NewMemoryCounter()
	rl := &RateLimiter{
		counter:  cfg.Counter,
		fallback: fallback,
		limit:    cfg.Limit,
		window:   cfg.Window,
		message:  cfg.Message,
		prom:     cfg.Prom,
		log:      cfg.Log,
	}
	if rl.counter == nil {
		rl.counter = fallback
	}
	if rl.message == "" {
		rl.message = "Too many requests. Please try again shortly."
	}
	if rl.log == nil {
		rl.log = slog.Default()
	}
	return rl
}

// RateLimiterMiddleware enforces the limit for the key derived by keyFn.
func (rl *RateLimiter) RateLimiterMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			// fallback to IP if key cannot be derived
			key = clientIP(c)
		}
		key = "ratelimit:" + key

		count, resetIn, err := rl.counter.Hit(c.Request.Context(), key, rl.window)
		if err != nil {
			rl.log.WarnContext(c.Request.Context(), "rate limit counter unavailable, using local counter", "err", err)
			count, resetIn, _ = rl.fallback.Hit(c.Request.Context(), key, rl.window)
		}

		remaining := int64(rl.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rl.limit) {
			retryAfter := int(resetIn.Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			if rl.prom != nil {
				route := c.FullPath()
				if route == "" {
					route = "unmatched"
				}
				rl.prom.RateLimited.WithLabelValues(route).Inc()
			}
			abortWith(c, apperr.New(apperr.RateLimited, rl.message))
			return
		}

		c.Next()
	}
}

// MemoryCounter keeps windows in process memory.
type MemoryCounter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	now     func() time.Time
}

type clientBucket struct {
	count     int64
	windowEnd time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

func (m *MemoryCounter) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.clients[key]
	if !ok || now.After(b.windowEnd) {
		b = &clientBucket{windowEnd: now.Add(window)}
		m.clients[key] = b
		m.sweep(now)
	}
	b.count++
	return b.count, b.windowEnd.Sub(now), nil
}

// sweep drops expired windows so idle clients do not accumulate.
func (m *MemoryCounter) sweep(now time.Time) {
	for k, b := range m.clients {
		if now.After(b.windowEnd) {
			delete(m.clients, k)
		}
	}
}

// for unauthenticated endpoints: rate limit by IP
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

// For authenticated endpoints: rate limit by user id if available
func KeyByUserOrIP(c *gin.Context) string {
	id, ok := UserIDFromContext(c)
	if ok && id != "" {
		return "user:" + id
	}
	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	// gin's ClientIP respects X-Forwarded-For / X-Real-IP if configured.
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)
	if err == nil && host != "" {
		return host
	}
	return ip
}
