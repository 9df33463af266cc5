package worker

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

type task struct {
	ID string
}

func TestWorkerPool(t *testing.T) {
	t.Run("processes tasks", func(t *testing.T) {
		var done int32
		pool := NewWorkerPool("test", func(ctx context.Context, tk task) error {
			atomic.AddInt32(&done, 1)
			return nil
		}, 2, 10)
		pool.Start()
		defer pool.Stop()

		for i := 0; i < 5; i++ {
			require.True(t, pool.AddTask(task{ID: "t"}))
		}

		assert.Eventually(t, func() bool { return atomic.LoadInt32(&done) == 5 }, time.Second, 5*time.Millisecond)
	})

	t.Run("retries then succeeds", func(t *testing.T) {
		var attempts int32
		pool := NewWorkerPool("test", func(ctx context.Context, tk task) error {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return errors.New("transient")
			}
			return nil
		}, 1, 10).WithRetry(3, time.Millisecond)
		pool.Start()
		defer pool.Stop()

		pool.AddTask(task{ID: "r"})

		assert.Eventually(t, func() bool { return atomic.LoadInt32(&attempts) == 3 }, time.Second, 5*time.Millisecond)
	})

	t.Run("drops after max retries", func(t *testing.T) {
		var attempts int32
		var mu sync.Mutex
		var dropped []string
		pool := NewWorkerPool("test", func(ctx context.Context, tk task) error {
			atomic.AddInt32(&attempts, 1)
			return errors.New("always")
		}, 1, 10).WithRetry(2, time.Millisecond)
		pool.OnDrop = func(tk task, err error) {
			mu.Lock()
			dropped = append(dropped, tk.ID)
			mu.Unlock()
		}
		pool.Start()
		defer pool.Stop()

		pool.AddTask(task{ID: "x"})

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(dropped) == 1
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		var attempts int32
		droppedCh := make(chan error, 1)
		pool := NewWorkerPool("test", func(ctx context.Context, tk task) error {
			atomic.AddInt32(&attempts, 1)
			return Permanent(errors.New("bad request"))
		}, 1, 10).WithRetry(3, time.Millisecond)
		pool.OnDrop = func(tk task, err error) { droppedCh <- err }
		pool.Start()
		defer pool.Stop()

		pool.AddTask(task{ID: "p"})

		select {
		case err := <-droppedCh:
			assert.EqualError(t, err, "bad request")
		case <-time.After(time.Second):
			t.Fatal("task was not dropped")
		}
		assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	})
}
