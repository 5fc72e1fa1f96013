// Package parallel runs a function over a slice with a bounded number of
// goroutines.
package parallel

import (
	"context"
	"errors"
	"sync"
)

// ForEach calls fn for every input using at most limit workers and waits for
// all of them. A failing input does not stop the others; the errors are
// joined. Inputs not yet started when ctx is cancelled are skipped.
func ForEach[T any](ctx context.Context, inputs []T, limit int, fn func(context.Context, T) error) error {
	if len(inputs) == 0 {
		return nil
	}
	limit = min(max(limit, 1), len(inputs))

	tasks := make(chan T)
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)

	for range limit {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range tasks {
				if err := fn(ctx, item); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

	var cancelled error
feed:
	for _, item := range inputs {
		if cancelled = ctx.Err(); cancelled != nil {
			break
		}
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		case tasks <- item:
		}
	}
	close(tasks)
	wg.Wait()

	if cancelled != nil {
		errs = append(errs, cancelled)
	}
	return errors.Join(errs...)
}
