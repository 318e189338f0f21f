// Package batch runs deferred requests in fixed-size concurrent chunks.
package batch

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

// Request is a deferred call. Nothing is sent until Execute invokes it.
type Request[T any] func(ctx context.Context) (T, error)

// Options controls chunking.
type Options struct {
	// RateLimit is the maximum number of requests in flight. Values below 1
	// are treated as 1.
	RateLimit int
	// Delay is awaited between chunks, never after the last one.
	Delay time.Duration
	// OnProgress receives the rounded percentage of completed requests after
	// every chunk.
	OnProgress func(pct int)
}

// Chunks returns how many chunks n requests are split into.
func Chunks(n, size int) int {
	if size < 1 {
		size = 1
	}
	return (n + size - 1) / size
}

// Execute runs reqs in chunks of opts.RateLimit. Requests within a chunk run
// concurrently; a chunk starts only after the previous one has fully settled.
// The first error fails the whole call. Results keep the order of reqs.
func Execute[T any](ctx context.Context, reqs []Request[T], opts Options) ([]T, error) {
	size := opts.RateLimit
	if size < 1 {
		size = 1
	}
	results := make([]T, len(reqs))
	total := len(reqs)

	for start := 0; start < total; start += size {
		end := min(start+size, total)

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i // per-iteration copy (go directive < 1.22)
			g.Go(func() error {
				res, err := reqs[i](gctx)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if opts.OnProgress != nil {
			opts.OnProgress(int(math.Round(float64(end) / float64(total) * 100)))
		}

		if opts.Delay > 0 && end < total {
			if err := sleep(ctx, opts.Delay); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
