package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"mailgate/utils"
)

// SendWindow is the span over which SendLimiter counts sends.
const SendWindow = time.Minute

// SendLimiter bounds outbound sends to a fixed number per trailing minute.
// One instance is shared by every caller in the process.
type SendLimiter struct {
	mu        sync.Mutex
	perMinute int
	window    []time.Time
	now       func() time.Time
}

// NewSendLimiter creates a limiter; perMinute <= 0 disables it.
func NewSendLimiter(perMinute int) *SendLimiter {
	return &SendLimiter{perMinute: perMinute, now: time.Now}
}

// WithClock swaps the time source, for tests.
func (l *SendLimiter) WithClock(now func() time.Time) *SendLimiter {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
	return l
}

// Admit records a send or fails with a rate limit error. Prune, check and
// append happen under one lock so two callers cannot share the last slot.
func (l *SendLimiter) Admit() error {
	if l.perMinute <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-SendWindow)

	// Oldest first, so only the front can be stale.
	stale := 0
	for stale < len(l.window) && l.window[stale].Before(cutoff) {
		stale++
	}
	l.window = l.window[stale:]

	if len(l.window) >= l.perMinute {
		return utils.RateLimitError(fmt.Sprintf("send limit of %d per minute exceeded", l.perMinute))
	}
	l.window = append(l.window, now)
	return nil
}

// RequestThrottle limits tool requests per client IP with a token bucket.
func RequestThrottle(requests int, duration time.Duration) fiber.Handler {
	if requests <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		clients = make(map[string]*client)
		mu      sync.Mutex
	)

	// Cleanup old clients every 5 minutes
	go func() {
		for {
			time.Sleep(5 * time.Minute)
			mu.Lock()
			for ip, c := range clients {
				if time.Since(c.lastSeen) > 10*time.Minute {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *fiber.Ctx) error {
		ip := c.IP()

		mu.Lock()
		cl, exists := clients[ip]
		if !exists {
			limiter := rate.NewLimiter(rate.Every(duration/time.Duration(requests)), requests)
			cl = &client{limiter: limiter}
			clients[ip] = cl
		}
		cl.lastSeen = time.Now()
		mu.Unlock()

		if !cl.limiter.Allow() {
			utils.Log.WithField("ip", ip).Warn("Request throttled")
			return utils.RateLimitError("too many requests, please try again later")
		}

		return c.Next()
	}
}
