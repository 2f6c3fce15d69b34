package workflows

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
)

// VariationsWorkflow runs one pipeline execution to a terminal state.
//
// A failed run returns a non-retryable application error whose type is the
// failure's pipeline kind; the execution record is attached as its details
// (see ExecutionFromError).
func VariationsWorkflow(ctx workflow.Context, in VariationsInput) (*pipeline.WorkflowExecution, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting variations workflow",
		"RunID", in.RunID,
		"Words", len(in.Words),
		"WordsKey", in.WordsKey)

	if err := in.Validate(); err != nil {
		return nil, toApplicationError(pipeline.ConfigErrorf("%v", err))
	}
	fan := pipeline.FanOutExecutor{Limit: in.Concurrency, DrainTimeout: in.DrainTimeout}
	if err := fan.Validate(); err != nil {
		return nil, toApplicationError(err)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: in.activityTimeout(),
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	orch := &pipeline.Orchestrator{
		Timeout: in.Timeout,
		Retry: pipeline.RetryCoordinator{
			ChunkSize: in.ChunkSize,
			MaxRounds: in.MaxRounds,
			Backoff:   in.RetryBackoff,
		},
		Observer: &workflowObserver{ctx: ctx},
	}
	d := &workflowDriver{ctx: ctx, in: in}

	exec, err := orch.Run(context.Background(), in.RunID, d)
	if exec == nil {
		return nil, toApplicationError(err)
	}
	if err != nil {
		return nil, toApplicationError(err, exec)
	}

	logger.Info("Variations workflow complete",
		"RunID", in.RunID,
		"Dictionary", exec.Result.DictionaryKey,
		"Words", exec.Result.Words)
	return exec, nil
}

// workflowDriver performs stage effects as activities. The context.Context
// the orchestrator passes is ignored; everything runs on the workflow context.
type workflowDriver struct {
	ctx workflow.Context
	in  VariationsInput
}

var _ pipeline.Driver = (*workflowDriver)(nil)

func (d *workflowDriver) Now() time.Time {
	return workflow.Now(d.ctx)
}

func (d *workflowDriver) Generate(context.Context) (pipeline.GenerateResult, error) {
	var a *Activities
	var res pipeline.GenerateResult
	err := workflow.ExecuteActivity(d.ctx, a.GenerateClips, GenerateInput{
		RunID:    d.in.RunID,
		Words:    d.in.Words,
		WordsKey: d.in.WordsKey,
	}).Get(d.ctx, &res)
	return res, fromActivityError(err)
}

func (d *workflowDriver) Rounds(deadline time.Time) pipeline.RoundRunner {
	return &workflowRounds{
		ctx:      d.ctx,
		runID:    d.in.RunID,
		deadline: deadline,
		limit:    d.in.Concurrency,
		drain:    d.in.DrainTimeout,
	}
}

func (d *workflowDriver) Reconcile(_ context.Context, req pipeline.ReconcileRequest) (pipeline.ReconcileResult, error) {
	var a *Activities
	var res pipeline.ReconcileResult
	err := workflow.ExecuteActivity(d.ctx, a.Reconcile, req).Get(d.ctx, &res)
	return res, fromActivityError(err)
}

// workflowObserver logs run events and records them as metrics. Metrics
// are skipped while replaying.
type workflowObserver struct {
	ctx workflow.Context
}

func (o *workflowObserver) Observe(e pipeline.Event) {
	logger := workflow.GetLogger(o.ctx)
	switch e.Kind {
	case pipeline.EventStageEnter:
		logger.Info("Stage entered", "RunID", e.RunID, "Stage", e.Stage)
	case pipeline.EventStageExit:
		logger.Info("Stage exited", "RunID", e.RunID, "Stage", e.Stage, "Status", e.Status, "Completed", e.ItemCount)
	case pipeline.EventRetryRound:
		logger.Info("Retry round starting", "RunID", e.RunID, "Round", e.Round, "Items", e.ItemCount)
	case pipeline.EventRunTerminal:
		if e.Cause != nil {
			logger.Error("Run failed", "RunID", e.RunID, "Stage", e.Cause.Stage, "Kind", e.Cause.Kind, "Message", e.Cause.Message)
		} else {
			logger.Info("Run succeeded", "RunID", e.RunID)
		}
	}

	if workflow.IsReplaying(o.ctx) {
		return
	}
	recordEvent(e, workflow.GetInfo(o.ctx).WorkflowStartTime)
}
