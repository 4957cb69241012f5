// Package poller re-reads a resource on a fixed interval until it reaches a final state.
package poller

import (
	"context"
	"fmt"
	"time"
)

// DefaultInterval matches the dashboard's refresh rate.
const DefaultInterval = 2 * time.Second

// Fetcher loads the current state.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Options tunes a Poll call.
type Options[T any] struct {
	Interval time.Duration
	// Done decides when polling stops. Required.
	Done func(T) bool
	// OnUpdate, when set, sees every fetched state including the last.
	OnUpdate func(T)
}

// Poll fetches immediately and then every interval until Done reports true.
// The first fetch error ends polling and is returned; it is not retried.
func Poll[T any](ctx context.Context, fetch Fetcher[T], opts Options[T]) (T, error) {
	var zero T
	if opts.Done == nil {
		return zero, fmt.Errorf("poll: missing Done predicate")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		state, err := fetch(ctx)
		if err != nil {
			return zero, fmt.Errorf("poll attempt %d: %w", attempt, err)
		}
		if opts.OnUpdate != nil {
			opts.OnUpdate(state)
		}
		if opts.Done(state) {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-ticker.C:
		}
	}
}
