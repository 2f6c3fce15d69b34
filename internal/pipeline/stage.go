package pipeline

import (
	"context"
)

// StageFunc performs a non-chunked stage as a single invocation.
type StageFunc func(ctx context.Context) ([]Completion, []ItemFailure, error)

// StageRunner sequences one stage and settles it into a StageOutcome.
type StageRunner struct {
	Stage       Stage
	Coordinator RetryCoordinator
}

// RunSingle executes fn once. An error from fn fails the stage.
func (r StageRunner) RunSingle(ctx context.Context, fn StageFunc) (StageOutcome, error) {
	completed, failed, err := fn(ctx)
	out := StageOutcome{
		Stage:     r.Stage,
		Completed: completed,
		Failed:    failed,
		Rounds:    1,
	}
	if err != nil {
		out.Status = StageFailed
		return out, err
	}
	out.Status = Settle(len(completed)+len(failed), len(completed), len(failed))
	return out, nil
}

// RunChunked partitions items, fans them out through runner and drives retry
// rounds until every item is settled.
func (r StageRunner) RunChunked(ctx context.Context, items []WorkItem, runner RoundRunner) (StageOutcome, error) {
	res, err := r.Coordinator.Run(ctx, items, runner)
	out := StageOutcome{
		Stage:     r.Stage,
		Completed: res.Completed,
		Failed:    res.Failed,
		Rounds:    res.Rounds,
		Status:    Settle(len(items), len(res.Completed), len(res.Failed)),
	}
	return out, err
}

// Settle derives a stage status from its item counts. A stage with input and
// nothing completed has failed; any failed item makes it a partial failure.
func Settle(input, completed, failed int) StageStatus {
	switch {
	case input > 0 && completed == 0:
		return StageFailed
	case failed > 0:
		return StagePartialFailure
	default:
		return StageSucceeded
	}
}
