package pipeline

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultMaxRounds is the number of retry rounds after round 0.
	DefaultMaxRounds = 1
	// DefaultBackoff is the fixed wait before each retry round.
	DefaultBackoff = 30 * time.Second
)

// RoundRunner executes one fan-out round and performs the backoff wait.
// The local runtime backs it with FanOutExecutor and a timer; the Temporal
// runtime with activities and workflow.Sleep.
type RoundRunner interface {
	RunRound(ctx context.Context, round int, chunks []Chunk) ([]ChunkResult, error)
	Wait(ctx context.Context, d time.Duration) error
}

// RetryCoordinator drives the rounds of one chunked stage. Rounds are the
// only retry budget: an item is re-queued once per round until MaxRounds
// retry rounds have run.
type RetryCoordinator struct {
	ChunkSize int
	MaxRounds int
	Backoff   time.Duration

	// OnRound, when set, is called before each retry round (round >= 1).
	OnRound func(round, itemCount int)
}

// NewRetryCoordinator returns a coordinator with the default round cap and
// backoff.
func NewRetryCoordinator(chunkSize int) RetryCoordinator {
	return RetryCoordinator{
		ChunkSize: chunkSize,
		MaxRounds: DefaultMaxRounds,
		Backoff:   DefaultBackoff,
	}
}

// Validate checks the coordinator's bounds.
func (c RetryCoordinator) Validate() error {
	if c.ChunkSize < 1 {
		return ConfigErrorf("chunk size must be >= 1, got %d", c.ChunkSize)
	}
	if c.MaxRounds < 0 {
		return ConfigErrorf("max rounds must be >= 0, got %d", c.MaxRounds)
	}
	if c.Backoff < 0 {
		return ConfigErrorf("backoff must be >= 0, got %s", c.Backoff)
	}
	return nil
}

// RetryOutcome is the settled item sets after the last round.
type RetryOutcome struct {
	Completed []Completion
	Failed    []ItemFailure
	Rounds    int
}

// Run executes round 0 over items, then retry rounds over whatever came back
// retryable. Every input item ends in exactly one of Completed or Failed.
//
// A non-nil error means a round or wait could not run at all (cancellation,
// a deadline, a runner fault); items still pending at that point are
// reported as failed with that reason.
func (c RetryCoordinator) Run(ctx context.Context, items []WorkItem, runner RoundRunner) (RetryOutcome, error) {
	var out RetryOutcome
	if err := c.Validate(); err != nil {
		return out, err
	}

	pending := items
	for round := 0; len(pending) > 0; round++ {
		if round > 0 {
			if c.OnRound != nil {
				c.OnRound(round, len(pending))
			}
			if err := runner.Wait(ctx, c.Backoff); err != nil {
				out.Failed = append(out.Failed, abandon(pending, err)...)
				return out, err
			}
			for i := range pending {
				pending[i].Retries++
			}
		}

		chunks, err := Partition(pending, c.ChunkSize)
		if err != nil {
			return out, err
		}
		results, err := runner.RunRound(ctx, round, chunks)
		if err != nil {
			out.Failed = append(out.Failed, abandon(pending, err)...)
			return out, fmt.Errorf("round %d: %w", round, err)
		}
		out.Rounds = round + 1

		var retry []ItemFailure
		for _, r := range results {
			out.Completed = append(out.Completed, r.Completed...)
			out.Failed = append(out.Failed, r.Failed...)
			retry = append(retry, r.Retryable...)
		}
		if len(retry) == 0 {
			break
		}
		if round >= c.MaxRounds {
			for _, f := range retry {
				f.Reason = "retry rounds exhausted: " + f.Reason
				out.Failed = append(out.Failed, f)
			}
			break
		}

		pending = make([]WorkItem, 0, len(retry))
		for _, f := range retry {
			pending = append(pending, f.Item)
		}
	}
	return out, nil
}

func abandon(items []WorkItem, err error) []ItemFailure {
	failed := make([]ItemFailure, 0, len(items))
	for _, item := range items {
		failed = append(failed, ItemFailure{Item: item, Reason: err.Error(), Class: ClassTransient})
	}
	return failed
}
