package async

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"
)

// SafeGo executes fn in a goroutine with a bounded timeout and panic
// recovery. Errors are logged, never propagated; use it for work whose
// failure must not affect the caller (notifications, cache warming).
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.Printf("[async] panic in %s: %v\n%s", taskName, r, debug.Stack())
			}
		}()

		if err := fn(ctx); err != nil {
			log.Printf("[async] %s: %v", taskName, err)
		}
	}()
}

// Batch processes items concurrently with at most workers goroutines.
// Each invocation of fn gets a context bounded by timeout; panics are
// converted to errors. The returned slice holds every failure, in no
// particular order.
func Batch[T any](ctx context.Context, items []T, workers int, taskName string, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		errs  []error
		index = make(chan T)
	)

	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	runOne := func(item T) {
		taskCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[async] panic in %s: %v\n%s", taskName, r, debug.Stack())
				record(fmt.Errorf("panic: %v", r))
			}
		}()

		if err := fn(taskCtx, item); err != nil {
			record(err)
		}
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range index {
				runOne(item)
			}
		}()
	}

	for _, item := range items {
		select {
		case index <- item:
		case <-ctx.Done():
			record(ctx.Err())
			close(index)
			wg.Wait()
			return errs
		}
	}
	close(index)
	wg.Wait()

	return errs
}
