package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when told to.
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
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAcquireUnderLimit(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	l := New(3, time.Minute).WithNow(clk.Now)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	assert.Equal(t, 3, l.Pending())
}

func TestAcquirePrunesExpiredStamps(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	l := New(2, time.Minute).WithNow(clk.Now)

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))

	// After the window passes both stamps fall out and the limiter is free.
	clk.Advance(61 * time.Second)
	require.NoError(t, l.Acquire(ctx))
	assert.Equal(t, 1, l.Pending())
}

func TestAcquireWaitsWhenFull(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	l := New(1, 50*time.Millisecond).WithNow(clk.Now)

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))

	// Advance the clock from another goroutine while Acquire sleeps on the
	// real timer.
	done := make(chan error, 1)
	go func() {
		done <- l.Acquire(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	clk.Advance(51 * time.Millisecond)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Acquire did not return after the window elapsed")
	}
}

func TestAcquireContextCancelled(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	l := New(1, time.Hour).WithNow(clk.Now)

	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Acquire(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Acquire did not honor cancellation")
	}
}
