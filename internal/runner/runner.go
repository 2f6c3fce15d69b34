// Package runner executes the pipeline in-process. Stage effects run on
// goroutines of this process and time comes from the wall clock.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/voicematch/internal/artifacts"
	"github.com/fyrsmithlabs/voicematch/internal/config"
	"github.com/fyrsmithlabs/voicematch/internal/logging"
	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
	"github.com/fyrsmithlabs/voicematch/internal/speech"
)

const tracerName = "github.com/fyrsmithlabs/voicematch/internal/runner"

// Options bounds a local run.
type Options struct {
	ChunkSize           int
	Concurrency         int
	MaxRounds           int
	Backoff             time.Duration
	Timeout             time.Duration
	DrainTimeout        time.Duration
	GenerateConcurrency int
	WordsKey            string
	DictionaryKey       string
}

// OptionsFromConfig maps the pipeline config section.
func OptionsFromConfig(c config.PipelineConfig) Options {
	return Options{
		ChunkSize:           c.ChunkSize,
		Concurrency:         c.Concurrency,
		MaxRounds:           c.MaxRounds,
		Backoff:             c.RetryBackoff,
		Timeout:             c.Timeout,
		DrainTimeout:        c.DrainTimeout,
		GenerateConcurrency: c.GenerateConcurrency,
		WordsKey:            c.WordsKey,
		DictionaryKey:       c.DictionaryKey,
	}
}

// Deps are the external capabilities a run uses.
type Deps struct {
	Store    artifacts.Store
	Speech   speech.Service
	Profiles []speech.VoiceProfile
	Logger   *logging.Logger
	Tracer   trace.Tracer
	Observer pipeline.Observer
}

// Request asks for one run. Words, when empty, are loaded from WordsKey
// (or the configured default key).
type Request struct {
	RunID    string   `json:"run_id,omitempty"`
	Words    []string `json:"words,omitempty"`
	WordsKey string   `json:"words_key,omitempty"`
}

// Runner runs pipelines locally and keeps a registry of their state.
type Runner struct {
	opts     Options
	deps     Deps
	registry *Registry
}

// New validates opts and deps.
func New(opts Options, deps Deps) (*Runner, error) {
	if deps.Store == nil {
		return nil, pipeline.ConfigErrorf("artifact store is required")
	}
	if deps.Speech == nil {
		return nil, pipeline.ConfigErrorf("speech service is required")
	}
	if len(deps.Profiles) == 0 {
		return nil, pipeline.ConfigErrorf("at least one voice profile is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}
	r := &Runner{opts: opts, deps: deps, registry: NewRegistry()}
	if err := r.orchestrator().Validate(); err != nil {
		return nil, err
	}
	exec := r.executor()
	if err := exec.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Registry exposes the runs this Runner has seen.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Get returns the record of runID.
func (r *Runner) Get(runID string) (Record, bool) {
	return r.registry.Get(runID)
}

// List returns every known run, newest first.
func (r *Runner) List() []Record {
	return r.registry.List()
}

func (r *Runner) orchestrator() *pipeline.Orchestrator {
	return &pipeline.Orchestrator{
		Timeout: r.opts.Timeout,
		Retry: pipeline.RetryCoordinator{
			ChunkSize: r.opts.ChunkSize,
			MaxRounds: r.opts.MaxRounds,
			Backoff:   r.opts.Backoff,
		},
		Observer: pipeline.Observers{r.registry, r.deps.Observer},
	}
}

func (r *Runner) executor() *pipeline.FanOutExecutor {
	return &pipeline.FanOutExecutor{Limit: r.opts.Concurrency, DrainTimeout: r.opts.DrainTimeout}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Run executes req to a terminal state and blocks until it gets there.
func (r *Runner) Run(ctx context.Context, req Request) (*pipeline.WorkflowExecution, error) {
	if req.RunID == "" {
		req.RunID = NewRunID()
	}
	if !logging.ValidID(req.RunID) {
		return nil, pipeline.ConfigErrorf("invalid run id %q", req.RunID)
	}
	if !r.registry.Add(req.RunID) {
		return nil, pipeline.ConfigErrorf("run %s already exists", req.RunID)
	}
	return r.run(ctx, req)
}

// Submit registers req and runs it in the background. The run outlives
// ctx's cancellation but keeps its values.
func (r *Runner) Submit(ctx context.Context, req Request) (string, error) {
	if req.RunID == "" {
		req.RunID = NewRunID()
	}
	if !logging.ValidID(req.RunID) {
		return "", pipeline.ConfigErrorf("invalid run id %q", req.RunID)
	}
	if !r.registry.Add(req.RunID) {
		return "", pipeline.ConfigErrorf("run %s already exists", req.RunID)
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		_, _ = r.run(bg, req)
	}()
	return req.RunID, nil
}

func (r *Runner) run(ctx context.Context, req Request) (*pipeline.WorkflowExecution, error) {
	ctx = logging.WithRunID(ctx, req.RunID)
	ctx, span := r.deps.Tracer.Start(ctx, "voicematch.run")
	defer span.End()

	// Stages past the deadline only get the drain window before their
	// context is cancelled.
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout+r.opts.DrainTimeout)
	defer cancel()

	d := &driver{r: r, runID: req.RunID, words: req.Words, wordsKey: req.WordsKey}
	exec, err := r.orchestrator().Run(ctx, req.RunID, d)
	r.registry.Finish(req.RunID, exec, err)
	recordRun(span, exec, err)
	r.logSummary(ctx, exec, err)
	return exec, err
}

func (r *Runner) logSummary(ctx context.Context, exec *pipeline.WorkflowExecution, err error) {
	if exec == nil {
		r.deps.Logger.Error(ctx, "run rejected", zap.Error(err))
		return
	}
	fields := []zap.Field{
		zap.String("status", string(exec.Status)),
		zap.Duration("elapsed", exec.Elapsed),
	}
	for _, o := range exec.Stages {
		fields = append(fields,
			zap.String(fmt.Sprintf("%s.status", o.Stage), string(o.Status)),
			zap.Int(fmt.Sprintf("%s.completed", o.Stage), len(o.Completed)),
			zap.Int(fmt.Sprintf("%s.failed", o.Stage), len(o.Failed)),
		)
	}
	if exec.Cause != nil {
		fields = append(fields,
			zap.String("cause.stage", string(exec.Cause.Stage)),
			zap.String("cause.kind", string(exec.Cause.Kind)),
			zap.String("cause.message", exec.Cause.Message),
		)
		r.deps.Logger.Error(ctx, "run failed", fields...)
		return
	}
	r.deps.Logger.Info(ctx, "run finished", fields...)
}
