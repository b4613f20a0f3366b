package middleware

import (
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailgate/utils"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestSendLimiterWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)}
	l := NewSendLimiter(3).WithClock(clock.Now)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Admit(), "send %d", i+1)
		clock.Advance(10 * time.Second)
	}

	err := l.Admit()
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.KindRateLimit))

	// 60s after the first send it is still inside the window.
	clock.Advance(30 * time.Second)
	assert.Error(t, l.Admit())

	clock.Advance(time.Second)
	assert.NoError(t, l.Admit())
	assert.Error(t, l.Admit())
}

func TestSendLimiterRejectedCallsDoNotConsume(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := NewSendLimiter(1).WithClock(clock.Now)

	require.NoError(t, l.Admit())
	for i := 0; i < 5; i++ {
		assert.Error(t, l.Admit())
	}

	clock.Advance(SendWindow + time.Millisecond)
	assert.NoError(t, l.Admit())
}

func TestSendLimiterDisabled(t *testing.T) {
	for _, limit := range []int{0, -1} {
		l := NewSendLimiter(limit)
		for i := 0; i < 100; i++ {
			require.NoError(t, l.Admit())
		}
	}
}

func TestSendLimiterConcurrentAdmission(t *testing.T) {
	const limit = 5
	l := NewSendLimiter(limit)

	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit() == nil {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), admitted)
}

func TestRequestThrottle(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if appErr, ok := err.(*utils.AppError); ok {
				return c.Status(appErr.Code).SendString(appErr.Public())
			}
			return c.SendStatus(fiber.StatusInternalServerError)
		},
	})
	app.Use(RequestThrottle(2, time.Hour))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}
