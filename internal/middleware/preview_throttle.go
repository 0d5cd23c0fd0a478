package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// PreviewThrottle limits how often one client may hit the interactive
// route-preview endpoint, which fans out to the paid upstream on a cache
// miss.
type PreviewThrottle interface {
	Allow(ctx context.Context, clientKey string) (bool, error)
}

type redisPreviewThrottle struct {
	client *redis.Client
	prefix string
	window time.Duration
}

func (t *redisPreviewThrottle) Allow(ctx context.Context, clientKey string) (bool, error) {
	key := t.prefix + ":" + clientKey
	ok, err := t.client.SetNX(ctx, key, "1", t.window).Result()
	if err != nil {
		return false, err
	}
	// false => key exists => the client already previewed inside the window
	return ok, nil
}

type memoryPreviewThrottle struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	nextGC time.Time
}

func newMemoryPreviewThrottle(window time.Duration) *memoryPreviewThrottle {
	now := time.Now()
	return &memoryPreviewThrottle{
		seen:   make(map[string]time.Time),
		window: window,
		nextGC: now.Add(window),
	}
}

func (t *memoryPreviewThrottle) Allow(_ context.Context, clientKey string) (bool, error) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if exp, ok := t.seen[clientKey]; ok && exp.After(now) {
		return false, nil
	}

	t.seen[clientKey] = now.Add(t.window)
	if now.After(t.nextGC) {
		for key, exp := range t.seen {
			if exp.Before(now) {
				delete(t.seen, key)
			}
		}
		t.nextGC = now.Add(t.window)
	}

	return true, nil
}

// NewPreviewThrottle builds a Redis throttle and falls back to in-memory
// on failure.
func NewPreviewThrottle(addr, pass string, db int, window time.Duration) (PreviewThrottle, error) {
	if window <= 0 {
		window = 10 * time.Second
	}
	if addr == "" {
		return newMemoryPreviewThrottle(window), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryPreviewThrottle(window), err
	}

	return &redisPreviewThrottle{
		client: client,
		prefix: "preview:client",
		window: window,
	}, nil
}

// ThrottlePreview rejects repeat preview requests from one client for the
// same origin/destination pair within the throttle window.
func ThrottlePreview(throttle PreviewThrottle) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if throttle == nil {
				return next(c)
			}

			key := c.RealIP() + "|" + c.QueryParam("origin") + "|" + c.QueryParam("destination")
			allowed, err := throttle.Allow(c.Request().Context(), key)
			if err != nil {
				// Throttle backend trouble should not take previews down.
				return next(c)
			}
			if !allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"status": false,
					"msg":    "Too many preview requests, try again shortly",
					"obj":    nil,
				})
			}

			return next(c)
		}
	}
}
