package workflows

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.temporal.io/sdk/activity"

	"github.com/fyrsmithlabs/voicematch/internal/artifacts"
	"github.com/fyrsmithlabs/voicematch/internal/logging"
	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
	"github.com/fyrsmithlabs/voicematch/internal/speech"
	"github.com/fyrsmithlabs/voicematch/internal/tasks"
	"github.com/fyrsmithlabs/voicematch/internal/variations"
)

// Activities performs the stage effects of VariationsWorkflow. Register an
// instance with the worker; the workflow refers to its methods by name.
type Activities struct {
	Store               artifacts.Store
	Speech              speech.Service
	Profiles            []speech.VoiceProfile
	GenerateConcurrency int
	WordsKey            string
	DictionaryKey       string
	Logger              *logging.Logger
}

func (a *Activities) logger() *logging.Logger {
	if a.Logger == nil {
		return logging.NewNop()
	}
	return a.Logger
}

// GenerateClips synthesizes every word in every profile.
func (a *Activities) GenerateClips(ctx context.Context, in GenerateInput) (pipeline.GenerateResult, error) {
	start := time.Now()
	ctx = logging.WithRunID(ctx, in.RunID)
	ctx = logging.WithStage(ctx, string(pipeline.StageGenerate))

	words := in.Words
	if len(words) == 0 {
		key := in.WordsKey
		if key == "" {
			key = a.WordsKey
		}
		loaded, err := tasks.LoadWords(ctx, a.Store, key)
		if err != nil {
			recordActivity(ctx, "GenerateClips", start, err)
			return pipeline.GenerateResult{}, toApplicationError(err)
		}
		words = loaded
	}

	gen := &tasks.Generator{
		Store:       a.Store,
		Synth:       a.Speech,
		Profiles:    a.Profiles,
		Concurrency: a.GenerateConcurrency,
		Logger:      a.logger(),
	}
	res, err := gen.Generate(ctx, in.RunID, words)
	recordActivity(ctx, "GenerateClips", start, err)
	if err != nil {
		return pipeline.GenerateResult{}, toApplicationError(err)
	}
	return res, nil
}

// TranscribeChunk transcribes one chunk. Item failures are reported in the
// result; the activity itself only fails if it cannot run at all.
func (a *Activities) TranscribeChunk(ctx context.Context, in TranscribeInput) (pipeline.ChunkResult, error) {
	start := time.Now()
	ctx = logging.WithRunID(ctx, in.RunID)
	ctx = logging.WithStage(ctx, string(pipeline.StageTranscribe))

	inv := tasks.NewTranscription(a.Store, a.Speech)
	res := pipeline.RunChunk(ctx, in.Chunk, pipeline.InvokerFunc(func(ctx context.Context, item pipeline.WorkItem) (string, error) {
		activity.RecordHeartbeat(ctx, item.Ref)
		return inv.Invoke(ctx, item)
	}))

	activity.GetLogger(ctx).Debug("chunk transcribed",
		"RunID", in.RunID,
		"Round", in.Round,
		"Chunk", in.Chunk.Index,
		"Completed", len(res.Completed),
		"Retryable", len(res.Retryable),
		"Failed", len(res.Failed),
	)
	recordActivity(ctx, "TranscribeChunk", start, nil)
	return res, nil
}

// Reconcile builds and writes the variations dictionary.
func (a *Activities) Reconcile(ctx context.Context, req pipeline.ReconcileRequest) (pipeline.ReconcileResult, error) {
	start := time.Now()
	ctx = logging.WithRunID(ctx, req.RunID)
	ctx = logging.WithStage(ctx, string(pipeline.StageReconcile))

	rec := variations.NewReconciler(a.Store, a.logger(), a.DictionaryKey)
	res, err := rec.Reconcile(ctx, req)
	recordActivity(ctx, "Reconcile", start, err)
	if err != nil {
		return pipeline.ReconcileResult{}, toApplicationError(err)
	}
	return res, nil
}

func recordActivity(ctx context.Context, name string, start time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("activity", name))
	activityDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		activityErrorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("activity", name),
			attribute.String("kind", string(pipeline.KindOf(err))),
		))
	}
}
