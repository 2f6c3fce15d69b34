package workflows

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
)

// workflowRounds fans transcription chunks out as activities with at most
// limit in flight. After deadline nothing new is dispatched; chunks still
// running get drain before they are cancelled.
type workflowRounds struct {
	ctx      workflow.Context
	runID    string
	deadline time.Time
	limit    int
	drain    time.Duration
}

var _ pipeline.RoundRunner = (*workflowRounds)(nil)

func (r *workflowRounds) RunRound(_ context.Context, round int, chunks []pipeline.Chunk) ([]pipeline.ChunkResult, error) {
	results := make([]pipeline.ChunkResult, len(chunks))
	if len(chunks) == 0 {
		return results, nil
	}

	actCtx, cancelActs := workflow.WithCancel(r.ctx)
	defer cancelActs()
	timerCtx, cancelTimers := workflow.WithCancel(r.ctx)
	defer cancelTimers()

	sel := workflow.NewSelector(r.ctx)
	var (
		a        *Activities
		next     int
		inFlight int
		expired  bool
		draining bool
	)

	dispatch := func() {
		i := next
		next++
		inFlight++
		f := workflow.ExecuteActivity(actCtx, a.TranscribeChunk, TranscribeInput{
			RunID: r.runID,
			Round: round,
			Chunk: chunks[i],
		})
		sel.AddFuture(f, func(f workflow.Future) {
			inFlight--
			var res pipeline.ChunkResult
			if err := f.Get(actCtx, &res); err != nil {
				results[i] = pipeline.FailedChunk(chunks[i], err.Error())
				return
			}
			results[i] = res
		})
	}

	if remaining := r.deadline.Sub(workflow.Now(r.ctx)); remaining > 0 {
		sel.AddFuture(workflow.NewTimer(timerCtx, remaining), func(workflow.Future) {
			expired = true
		})
	} else {
		expired = true
	}

	for {
		for !expired && next < len(chunks) && inFlight < r.limit {
			dispatch()
		}
		if inFlight == 0 && (expired || next == len(chunks)) {
			break
		}
		if expired && !draining {
			draining = true
			if r.drain <= 0 {
				cancelActs()
			} else {
				sel.AddFuture(workflow.NewTimer(timerCtx, r.drain), func(workflow.Future) {
					cancelActs()
				})
			}
		}
		sel.Select(r.ctx)
	}

	reason := fmt.Errorf("deadline %s passed", r.deadline.Format(time.RFC3339))
	for i := next; i < len(chunks); i++ {
		results[i] = pipeline.NotDispatched(chunks[i], reason)
	}
	return results, nil
}

// Wait sleeps durably. A wait that would outlast the deadline sleeps until
// the deadline and fails.
func (r *workflowRounds) Wait(_ context.Context, d time.Duration) error {
	remaining := r.deadline.Sub(workflow.Now(r.ctx))
	if d <= remaining {
		return workflow.Sleep(r.ctx, d)
	}
	if remaining > 0 {
		if err := workflow.Sleep(r.ctx, remaining); err != nil {
			return err
		}
	}
	return pipeline.Timeout(fmt.Errorf("backoff of %s: %w", d, context.DeadlineExceeded))
}
