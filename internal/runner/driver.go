package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/voicematch/internal/logging"
	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
	"github.com/fyrsmithlabs/voicematch/internal/tasks"
	"github.com/fyrsmithlabs/voicematch/internal/variations"
)

// driver is the in-process pipeline.Driver for one run.
type driver struct {
	r        *Runner
	runID    string
	words    []string
	wordsKey string
}

var _ pipeline.Driver = (*driver)(nil)

func (d *driver) Now() time.Time {
	return time.Now()
}

func (d *driver) Generate(ctx context.Context) (pipeline.GenerateResult, error) {
	ctx = logging.WithStage(ctx, string(pipeline.StageGenerate))
	ctx, span := d.r.deps.Tracer.Start(ctx, "stage.generate")
	defer span.End()

	words := d.words
	if len(words) == 0 {
		key := d.wordsKey
		if key == "" {
			key = d.r.opts.WordsKey
		}
		loaded, err := tasks.LoadWords(ctx, d.r.deps.Store, key)
		if err != nil {
			recordError(span, err)
			return pipeline.GenerateResult{}, err
		}
		words = loaded
	}

	gen := &tasks.Generator{
		Store:       d.r.deps.Store,
		Synth:       d.r.deps.Speech,
		Profiles:    d.r.deps.Profiles,
		Concurrency: d.r.opts.GenerateConcurrency,
		Logger:      d.r.deps.Logger,
	}
	res, err := gen.Generate(ctx, d.runID, words)
	span.SetAttributes(
		attribute.Int("words", len(words)),
		attribute.Int("clips", len(res.Items)),
		attribute.Int("failed", len(res.Failed)),
	)
	if err != nil {
		recordError(span, err)
	}
	return res, err
}

func (d *driver) Rounds(deadline time.Time) pipeline.RoundRunner {
	return &rounds{
		deadline: deadline,
		exec:     d.r.executor(),
		invoker:  tasks.NewTranscription(d.r.deps.Store, d.r.deps.Speech),
		tracer:   d.r.deps.Tracer,
	}
}

func (d *driver) Reconcile(ctx context.Context, req pipeline.ReconcileRequest) (pipeline.ReconcileResult, error) {
	ctx = logging.WithStage(ctx, string(pipeline.StageReconcile))
	ctx, span := d.r.deps.Tracer.Start(ctx, "stage.reconcile")
	defer span.End()

	rec := variations.NewReconciler(d.r.deps.Store, d.r.deps.Logger, d.r.opts.DictionaryKey)
	res, err := rec.Reconcile(ctx, req)
	span.SetAttributes(
		attribute.Int("completed", len(req.Completed)),
		attribute.Int("failed", len(req.Failed)),
		attribute.Int("words", res.Words),
	)
	if err != nil {
		recordError(span, err)
	}
	return res, err
}

// rounds runs transcription rounds on a FanOutExecutor. Nothing is
// dispatched after deadline.
type rounds struct {
	deadline time.Time
	exec     *pipeline.FanOutExecutor
	invoker  pipeline.TaskInvoker
	tracer   trace.Tracer
}

func (r *rounds) RunRound(ctx context.Context, round int, chunks []pipeline.Chunk) ([]pipeline.ChunkResult, error) {
	ctx = logging.WithStage(ctx, string(pipeline.StageTranscribe))
	ctx, span := r.tracer.Start(ctx, "stage.transcribe.round", trace.WithAttributes(
		attribute.Int("round", round),
		attribute.Int("chunks", len(chunks)),
	))
	defer span.End()

	ctx, cancel := context.WithDeadline(ctx, r.deadline)
	defer cancel()

	results, err := r.exec.Run(ctx, chunks, r.invoker)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	var completed, retryable, failed int
	for _, res := range results {
		completed += len(res.Completed)
		retryable += len(res.Retryable)
		failed += len(res.Failed)
	}
	span.SetAttributes(
		attribute.Int("completed", completed),
		attribute.Int("retryable", retryable),
		attribute.Int("failed", failed),
	)
	return results, nil
}

func (r *rounds) Wait(ctx context.Context, d time.Duration) error {
	ctx, cancel := context.WithDeadline(ctx, r.deadline)
	defer cancel()

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		if err := ctx.Err(); errors.Is(err, context.DeadlineExceeded) {
			return pipeline.Timeout(fmt.Errorf("backoff of %s: %w", d, err))
		}
		return ctx.Err()
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if kind := pipeline.KindOf(err); kind != "" {
		span.SetAttributes(attribute.String("error.kind", string(kind)))
	}
}

func recordRun(span trace.Span, exec *pipeline.WorkflowExecution, err error) {
	if exec != nil {
		span.SetAttributes(
			attribute.String("run.id", exec.RunID),
			attribute.String("run.status", string(exec.Status)),
		)
	}
	if err != nil {
		recordError(span, err)
	}
}
