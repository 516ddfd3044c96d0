package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSafeGo(t *testing.T) {
	t.Run("runs the function", func(t *testing.T) {
		done := make(chan struct{})
		SafeGo(context.Background(), time.Second, "test", func(ctx context.Context) error {
			close(done)
			return nil
		})

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("function never ran")
		}
	})

	t.Run("recovers from panic", func(t *testing.T) {
		done := make(chan struct{})
		SafeGo(context.Background(), time.Second, "test", func(ctx context.Context) error {
			defer close(done)
			panic("boom")
		})
		<-done
		// Reaching here without crashing the test binary is the assertion.
	})

	t.Run("enforces timeout", func(t *testing.T) {
		expired := make(chan struct{})
		SafeGo(context.Background(), 10*time.Millisecond, "test", func(ctx context.Context) error {
			<-ctx.Done()
			close(expired)
			return ctx.Err()
		})

		select {
		case <-expired:
		case <-time.After(time.Second):
			t.Fatal("context never expired")
		}
	})
}

func TestBatch(t *testing.T) {
	t.Run("processes all items", func(t *testing.T) {
		var count atomic.Int64
		errs := Batch(context.Background(), []int{1, 2, 3, 4, 5}, 3, "test", time.Second,
			func(ctx context.Context, item int) error {
				count.Add(1)
				return nil
			})

		assert.Empty(t, errs)
		assert.Equal(t, int64(5), count.Load())
	})

	t.Run("collects failures without stopping", func(t *testing.T) {
		var count atomic.Int64
		errs := Batch(context.Background(), []int{1, 2, 3, 4}, 2, "test", time.Second,
			func(ctx context.Context, item int) error {
				count.Add(1)
				if item%2 == 0 {
					return errors.New("even item")
				}
				return nil
			})

		assert.Len(t, errs, 2)
		assert.Equal(t, int64(4), count.Load())
	})

	t.Run("bounds concurrency", func(t *testing.T) {
		var mu sync.Mutex
		inFlight, peak := 0, 0

		Batch(context.Background(), make([]struct{}, 20), 4, "test", time.Second,
			func(ctx context.Context, _ struct{}) error {
				mu.Lock()
				inFlight++
				if inFlight > peak {
					peak = inFlight
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				inFlight--
				mu.Unlock()
				return nil
			})

		assert.LessOrEqual(t, peak, 4)
		assert.Greater(t, peak, 0)
	})

	t.Run("converts panics to errors", func(t *testing.T) {
		errs := Batch(context.Background(), []int{1}, 1, "test", time.Second,
			func(ctx context.Context, item int) error {
				panic("boom")
			})

		assert.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "panic")
	})

	t.Run("stops submitting on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var count atomic.Int64

		errs := Batch(ctx, make([]struct{}, 100), 1, "test", time.Second,
			func(taskCtx context.Context, _ struct{}) error {
				if count.Add(1) == 3 {
					cancel()
				}
				time.Sleep(time.Millisecond)
				return nil
			})

		assert.NotEmpty(t, errs)
		assert.Less(t, count.Load(), int64(100))
	})

	t.Run("empty input", func(t *testing.T) {
		errs := Batch(context.Background(), []int{}, 8, "test", time.Second,
			func(ctx context.Context, item int) error { return nil })
		assert.Empty(t, errs)
	})
}
