package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	l := New(limit, window, nil)
	l.now = clock.Now
	return l, clock
}

func TestLimiter_WindowBoundary(t *testing.T) {
	t.Parallel()
	l, clock := newTestLimiter(2, 60*time.Second)

	res, err := l.Allow("k")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Remaining)

	clock.Advance(10 * time.Second)
	res, err = l.Allow("k")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Remaining)

	clock.Advance(10 * time.Second)
	_, err = l.Allow("k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))

	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 40, limitErr.RetryAfter)
	assert.Equal(t, 2, limitErr.Limit)

	// 60s after the first request the window has expired.
	clock.Advance(40 * time.Second)
	res, err = l.Allow("k")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Remaining)
}

func TestLimiter_RetryAfterRoundsUp(t *testing.T) {
	t.Parallel()
	l, clock := newTestLimiter(1, 60*time.Second)

	_, err := l.Allow("k")
	require.NoError(t, err)

	clock.Advance(59*time.Second + 500*time.Millisecond)
	_, err = l.Allow("k")

	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 1, limitErr.RetryAfter)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	t.Parallel()
	l, _ := newTestLimiter(1, time.Minute)

	_, err := l.Allow("a")
	require.NoError(t, err)
	_, err = l.Allow("b")
	require.NoError(t, err)

	_, err = l.Allow("a")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestLimiter_ConcurrentLastSlot(t *testing.T) {
	t.Parallel()
	const limit = 5
	l, _ := newTestLimiter(limit, time.Minute)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Allow("shared"); err == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(limit), admitted.Load())
}

func TestLimiter_Sweep(t *testing.T) {
	t.Parallel()
	l, clock := newTestLimiter(1, time.Minute)

	_, _ = l.Allow("old")
	clock.Advance(30 * time.Second)
	_, _ = l.Allow("new")
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

func TestLimiter_RunSweeperStops(t *testing.T) {
	t.Parallel()
	l := New(1, time.Millisecond, nil)
	_, _ = l.Allow("k")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestNew_PanicsOnInvalidConfig(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { New(0, time.Minute, nil) })
	assert.Panics(t, func() { New(1, 0, nil) })
}

func TestMaskIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"203.0.113.42", "203.0.113.xxx"},
		{"203.0.113.42:51234", "203.0.113.xxx"},
		{"::ffff:203.0.113.42", "203.0.113.xxx"},
		{"2001:db8:abcd:12:1:2:3:4", "2001:db8:abcd:12::/64"},
		{"[2001:db8:abcd:12::1]:443", "2001:db8:abcd:12::/64"},
		{"fe80::1%eth0", "fe80::/64"},
		{"not-an-ip", "not-an-ip"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MaskIP(tt.in))
		})
	}

	assert.Equal(t, MaskIP("198.51.100.1"), MaskIP("198.51.100.254"))
}
