package concurrent

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrMissingResult is returned by FanIn when a worker finished without
// posting its result.
var ErrMissingResult = errors.New("worker produced no result")

// Concurrent runs action for each element in its own goroutine and waits for
// all of them. It returns the first error encountered; the context passed to
// action is cancelled as soon as any action fails.
func Concurrent[T any](ctx context.Context, items []T, action func(context.Context, T) error) error {
	group, gctx := errgroup.WithContext(ctx)
	for _, item := range items {
		group.Go(func() error {
			return action(gctx, item)
		})
	}
	return group.Wait()
}

// FanIn starts one fresh goroutine per input, each posting a single result on
// its own buffered channel, then collects the results in input order. Either
// every worker succeeds or FanIn returns an error and no results: a failed,
// cancelled or silent worker fails the whole batch.
func FanIn[T, R any](ctx context.Context, inputs []T, work func(context.Context, T) (R, error)) ([]R, error) {
	group, gctx := errgroup.WithContext(ctx)
	slots := make([]chan R, len(inputs))
	for i, in := range inputs {
		slot := make(chan R, 1)
		slots[i] = slot
		group.Go(func() error {
			defer close(slot)
			r, err := work(gctx, in)
			if err != nil {
				return err
			}
			slot <- r
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	out := make([]R, len(inputs))
	for i, slot := range slots {
		r, ok := <-slot
		if !ok {
			return nil, ErrMissingResult
		}
		out[i] = r
	}
	return out, nil
}

// ParallelMust runs action for each element in a separate goroutine and waits
// for all of them.
func ParallelMust[T any](items []T, action func(T)) {
	var wg sync.WaitGroup
	wg.Add(len(items))
	for _, item := range items {
		go func(v T) {
			defer wg.Done()
			action(v)
		}(item)
	}
	wg.Wait()
}
