package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(max int) Policy {
	return Policy{Interval: time.Millisecond, MaxAttempts: max}
}

func TestRun(t *testing.T) {
	t.Run("stops at terminal tick", func(t *testing.T) {
		var calls int32
		err := Run(context.Background(), fastPolicy(10), func(ctx context.Context, attempt int) (bool, error) {
			atomic.AddInt32(&calls, 1)
			return attempt == 4, nil
		})

		assert.NoError(t, err)
		assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	})

	t.Run("exhausts after exactly max attempts", func(t *testing.T) {
		var calls int32
		err := Run(context.Background(), fastPolicy(30), func(ctx context.Context, attempt int) (bool, error) {
			atomic.AddInt32(&calls, 1)
			return false, nil
		})

		assert.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, int32(30), atomic.LoadInt32(&calls))
	})

	t.Run("transient errors count toward the budget", func(t *testing.T) {
		var calls int32
		err := Run(context.Background(), fastPolicy(3), func(ctx context.Context, attempt int) (bool, error) {
			atomic.AddInt32(&calls, 1)
			return false, errors.New("network blip")
		})

		assert.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("fatal error aborts immediately", func(t *testing.T) {
		fatal := errors.New("create failed")
		var calls int32
		err := Run(context.Background(), fastPolicy(30), func(ctx context.Context, attempt int) (bool, error) {
			atomic.AddInt32(&calls, 1)
			if attempt == 3 {
				return true, fatal
			}
			return false, nil
		})

		assert.ErrorIs(t, err, fatal)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("unbounded policy runs until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var calls int32
		err := Run(ctx, Policy{Interval: time.Millisecond}, func(ctx context.Context, attempt int) (bool, error) {
			if atomic.AddInt32(&calls, 1) == 200 {
				cancel()
			}
			return false, nil
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(200), atomic.LoadInt32(&calls))
	})

	t.Run("cancel during wait prevents next tick", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var calls int32
		done := make(chan error, 1)
		go func() {
			done <- Run(ctx, Policy{Interval: time.Hour, Immediate: true}, func(ctx context.Context, attempt int) (bool, error) {
				atomic.AddInt32(&calls, 1)
				return false, nil
			})
		}()

		require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("Run did not return after cancel")
		}
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestPolicyWait(t *testing.T) {
	p := Policy{Interval: 2 * time.Second, ErrorInterval: 3 * time.Second}
	assert.Equal(t, 2*time.Second, p.wait(nil))
	assert.Equal(t, 3*time.Second, p.wait(errors.New("x")))

	p.ErrorInterval = 0
	assert.Equal(t, 2*time.Second, p.wait(errors.New("x")))
}
