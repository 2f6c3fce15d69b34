package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the default number of chunks in flight per fan-out.
const DefaultConcurrency = 25

// FanOutExecutor runs chunks concurrently with at most Limit in flight.
//
// Once the caller's context is done no further chunk starts; chunks already
// running keep going on a detached context for up to DrainTimeout and are
// then cancelled.
type FanOutExecutor struct {
	Limit        int
	DrainTimeout time.Duration
}

// Validate checks the concurrency bound.
func (e *FanOutExecutor) Validate() error {
	if e.Limit < 1 {
		return ConfigErrorf("concurrency limit must be >= 1, got %d", e.Limit)
	}
	if e.DrainTimeout < 0 {
		return ConfigErrorf("drain timeout must be >= 0, got %s", e.DrainTimeout)
	}
	return nil
}

// Run executes every chunk and returns one result per chunk in input order.
// Item failures are reported inside the results; the error is non-nil only
// for an invalid executor.
func (e *FanOutExecutor) Run(ctx context.Context, chunks []Chunk, invoker TaskInvoker) ([]ChunkResult, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	drainCtx, cancelDrain := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelDrain()
	stop := context.AfterFunc(ctx, func() {
		t := time.NewTimer(e.DrainTimeout)
		defer t.Stop()
		select {
		case <-t.C:
			cancelDrain()
		case <-drainCtx.Done():
		}
	})
	defer stop()

	results := make([]ChunkResult, len(chunks))
	g := new(errgroup.Group)
	g.SetLimit(e.Limit)

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			results[i] = NotDispatched(chunk, err)
			continue
		}
		g.Go(func() error {
			// A slot may free up after cancellation; the chunk still counts
			// as undispatched in that case.
			if err := ctx.Err(); err != nil {
				results[i] = NotDispatched(chunk, err)
				return nil
			}
			results[i] = RunChunk(drainCtx, chunk, invoker)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}
