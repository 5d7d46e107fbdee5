package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, reset time.Time, err error)
	Limit() int
}

// MemoryLimiter is a per-process sliding window limiter. Used when Redis is
// not configured; limits are not shared between replicas.
type MemoryLimiter struct {
	requests int
	window   time.Duration
	clients  map[string][]time.Time
	mu       sync.Mutex
	stop     chan struct{}
	now      func() time.Time
}

func NewMemoryLimiter(requests, windowSeconds int) *MemoryLimiter {
	requests, window := normalizeLimits(requests, windowSeconds)
	rl := &MemoryLimiter{
		requests: requests,
		window:   window,
		clients:  make(map[string][]time.Time),
		stop:     make(chan struct{}),
		now:      time.Now,
	}
	go rl.cleanup(time.Minute)
	return rl
}

func normalizeLimits(requests, windowSeconds int) (int, time.Duration) {
	if requests <= 0 {
		requests = 100
	}
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	return requests, time.Duration(windowSeconds) * time.Second
}

func (rl *MemoryLimiter) Limit() int { return rl.requests }

// Stop ends the background cleanup loop.
func (rl *MemoryLimiter) Stop() {
	close(rl.stop)
}

func (rl *MemoryLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := rl.now().Add(-rl.window)
			for key, ts := range rl.clients {
				if len(ts) == 0 || ts[len(ts)-1].Before(cutoff) {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *MemoryLimiter) Allow(_ context.Context, key string) (bool, int, time.Time, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.window)

	ts := rl.clients[key]
	drop := 0
	for drop < len(ts) && !ts[drop].After(windowStart) {
		drop++
	}
	ts = ts[drop:]

	if len(ts) >= rl.requests {
		rl.clients[key] = ts
		return false, 0, ts[0].Add(rl.window), nil
	}

	ts = append(ts, now)
	rl.clients[key] = ts
	return true, rl.requests - len(ts), now.Add(rl.window), nil
}

// RedisLimiter is a fixed window counter shared by every API replica.
type RedisLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
	prefix   string
	now      func() time.Time
}

func NewRedisLimiter(client *redis.Client, requests, windowSeconds int) *RedisLimiter {
	requests, window := normalizeLimits(requests, windowSeconds)
	return &RedisLimiter{
		client:   client,
		requests: requests,
		window:   window,
		prefix:   "ratelimit:",
		now:      time.Now,
	}
}

func (rl *RedisLimiter) Limit() int { return rl.requests }

func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	now := rl.now()
	bucket := now.Truncate(rl.window)
	reset := bucket.Add(rl.window)
	redisKey := fmt.Sprintf("%s%s:%d", rl.prefix, key, bucket.Unix())

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, reset.Sub(now)+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, rl.requests, reset, fmt.Errorf("incrementing rate counter: %w", err)
	}

	count := int(incr.Val())
	if count > rl.requests {
		return false, 0, reset, nil
	}
	return true, rl.requests - count, reset, nil
}

// RateLimit applies limiter per client IP, or per user when a session has
// already been attached. Limiter errors fail open.
func RateLimit(limiter Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + getClientIP(r)
			if userID := GetUserID(r.Context()); userID != uuid.Nil {
				key = "user:" + userID.String()
			}

			allowed, remaining, resetTime, err := limiter.Allow(r.Context(), key)
			if err != nil && logger != nil {
				logger.Warn("rate limiter unavailable", "error", err)
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if !allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(resetTime).Seconds())+1, 10))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For: first entry is the original client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
