package pipeline

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout bounds a whole run, measured from entry into Generating.
const DefaultTimeout = time.Hour

// Driver supplies the clock and the stage effects for one run. Drivers used
// inside a Temporal workflow must only use workflow-safe primitives.
type Driver interface {
	// Now returns the driver's notion of current time.
	Now() time.Time
	// Generate produces the work items for transcription.
	Generate(ctx context.Context) (GenerateResult, error)
	// Rounds returns the fan-out runner used for transcription. No chunk may
	// be dispatched after deadline.
	Rounds(deadline time.Time) RoundRunner
	// Reconcile folds the settled transcriptions into the dictionary. It is
	// called at most once per run.
	Reconcile(ctx context.Context, req ReconcileRequest) (ReconcileResult, error)
}

// Orchestrator sequences Generate, Transcribe and Reconcile. It is
// single-threaded control logic; only the transcription fan-out runs
// concurrently, inside the driver's RoundRunner.
type Orchestrator struct {
	Timeout  time.Duration
	Retry    RetryCoordinator
	Observer Observer
}

// Validate checks the orchestrator's configuration.
func (o *Orchestrator) Validate() error {
	if o.Timeout <= 0 {
		return ConfigErrorf("timeout must be > 0, got %s", o.Timeout)
	}
	return o.Retry.Validate()
}

// Run executes one run to a terminal state. The returned execution is always
// non-nil once validation passes; on failure the error is the run's *Cause.
func (o *Orchestrator) Run(ctx context.Context, runID string, d Driver) (*WorkflowExecution, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	start := d.Now()
	r := &run{
		o:        o,
		d:        d,
		deadline: start.Add(o.Timeout),
		exec: &WorkflowExecution{
			RunID:     runID,
			State:     StateGenerating,
			Status:    RunRunning,
			StartedAt: start,
			Timeout:   o.Timeout,
		},
	}

	for !r.exec.State.Terminal() {
		r.step(ctx)
	}

	r.exec.Elapsed = d.Now().Sub(start)
	r.emit(Event{Kind: EventRunTerminal, Status: string(r.exec.Status), Cause: r.exec.Cause})

	if r.exec.Status == RunFailed {
		return r.exec, r.exec.Cause
	}
	return r.exec, nil
}

// run holds the mutable state of a single execution.
type run struct {
	o        *Orchestrator
	d        Driver
	exec     *WorkflowExecution
	deadline time.Time

	items       []WorkItem
	genFailed   []ItemFailure
	transcribed StageOutcome
}

func (r *run) step(ctx context.Context) {
	state := r.exec.State
	stage := state.Stage()
	r.emit(Event{Kind: EventStageEnter, Stage: stage})

	var (
		out StageOutcome
		err error
	)
	switch state {
	case StateGenerating:
		out, err = r.generate(ctx)
	case StateTranscribing:
		out, err = r.transcribe(ctx)
	case StateReconciling:
		out, err = r.reconcile(ctx)
	}
	r.exec.Stages = append(r.exec.Stages, out)
	r.emit(Event{
		Kind:      EventStageExit,
		Stage:     stage,
		Status:    string(out.Status),
		ItemCount: len(out.Completed),
	})

	// Deterministic clocks land exactly on the deadline.
	if elapsed := r.d.Now().Sub(r.exec.StartedAt); elapsed >= r.o.Timeout || KindOf(err) == KindTimeout {
		r.fail(&Cause{
			Stage:   stage,
			Kind:    KindTimeout,
			Message: fmt.Sprintf("elapsed %s reached timeout %s", elapsed.Round(time.Millisecond), r.o.Timeout),
			Err:     err,
		})
		return
	}
	if err != nil {
		r.fail(NewCause(stage, KindStageFatal, err))
		return
	}
	if out.Status == StageFailed {
		r.fail(NewCause(stage, KindStageFatal, noneCompleted(out)))
		return
	}

	switch state {
	case StateGenerating:
		r.exec.State = StateTranscribing
	case StateTranscribing:
		r.exec.State = StateReconciling
	case StateReconciling:
		r.exec.State = StateSucceeded
		r.exec.Status = RunSucceeded
	}
}

func (r *run) generate(ctx context.Context) (StageOutcome, error) {
	runner := StageRunner{Stage: StageGenerate}
	return runner.RunSingle(ctx, func(ctx context.Context) ([]Completion, []ItemFailure, error) {
		res, err := r.d.Generate(ctx)
		if err != nil {
			return nil, nil, err
		}
		r.items = res.Items
		r.genFailed = res.Failed
		completed := make([]Completion, 0, len(res.Items))
		for _, item := range res.Items {
			completed = append(completed, Completion{Item: item, Output: item.Ref})
		}
		return completed, res.Failed, nil
	})
}

func (r *run) transcribe(ctx context.Context) (StageOutcome, error) {
	coord := r.o.Retry
	coord.OnRound = func(round, itemCount int) {
		r.emit(Event{Kind: EventRetryRound, Stage: StageTranscribe, Round: round, ItemCount: itemCount})
	}
	items := make([]WorkItem, len(r.items))
	copy(items, r.items)

	runner := StageRunner{Stage: StageTranscribe, Coordinator: coord}
	out, err := runner.RunChunked(ctx, items, r.d.Rounds(r.deadline))
	r.transcribed = out
	return out, err
}

func (r *run) reconcile(ctx context.Context) (StageOutcome, error) {
	runner := StageRunner{Stage: StageReconcile}
	return runner.RunSingle(ctx, func(ctx context.Context) ([]Completion, []ItemFailure, error) {
		failed := make([]ItemFailure, 0, len(r.genFailed)+len(r.transcribed.Failed))
		failed = append(failed, r.genFailed...)
		failed = append(failed, r.transcribed.Failed...)

		res, err := r.d.Reconcile(ctx, ReconcileRequest{
			RunID:     r.exec.RunID,
			Words:     r.words(),
			Completed: r.transcribed.Completed,
			Failed:    failed,
		})
		if err != nil {
			return nil, nil, err
		}
		r.exec.Result = &res
		ref := WorkItem{Ref: res.DictionaryKey}
		return []Completion{{Item: ref, Output: res.DictionaryKey}}, nil, nil
	})
}

// words lists every distinct word the run was asked for, in generation order.
func (r *run) words() []string {
	seen := make(map[string]bool)
	var words []string
	add := func(w string) {
		if w != "" && !seen[w] {
			seen[w] = true
			words = append(words, w)
		}
	}
	for _, item := range r.items {
		add(item.Word)
	}
	for _, f := range r.genFailed {
		add(f.Item.Word)
	}
	return words
}

func (r *run) fail(cause *Cause) {
	r.exec.State = StateFailed
	r.exec.Status = RunFailed
	r.exec.Cause = cause
}

func (r *run) emit(e Event) {
	if r.o.Observer == nil {
		return
	}
	e.RunID = r.exec.RunID
	e.At = r.d.Now()
	r.o.Observer.Observe(e)
}

func noneCompleted(out StageOutcome) error {
	if len(out.Failed) == 0 {
		return fmt.Errorf("no items completed")
	}
	return fmt.Errorf("no items completed, %d failed, first: %s", len(out.Failed), out.Failed[0].Reason)
}
