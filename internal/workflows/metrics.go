package workflows

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
)

const instrumentationName = "github.com/fyrsmithlabs/voicematch/internal/workflows"

// Metrics for the variations workflow
var (
	runCounter           metric.Int64Counter
	runDuration          metric.Float64Histogram
	stageCounter         metric.Int64Counter
	retryRoundCounter    metric.Int64Counter
	activityDuration     metric.Float64Histogram
	activityErrorCounter metric.Int64Counter
)

// initMetrics creates the OpenTelemetry instruments for workflows and
// activities against the global MeterProvider.
func initMetrics() {
	meter := otel.Meter(instrumentationName)

	var err error

	runCounter, err = meter.Int64Counter(
		"voicematch.workflows.variations.runs",
		metric.WithDescription("Variations workflow runs that reached a terminal state"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create run counter: %v", err))
	}

	runDuration, err = meter.Float64Histogram(
		"voicematch.workflows.variations.duration",
		metric.WithDescription("Workflow time from Generating to a terminal state"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create run duration: %v", err))
	}

	stageCounter, err = meter.Int64Counter(
		"voicematch.workflows.variations.stages",
		metric.WithDescription("Settled stages by stage and status"),
		metric.WithUnit("{stage}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create stage counter: %v", err))
	}

	retryRoundCounter, err = meter.Int64Counter(
		"voicematch.workflows.variations.retry_rounds",
		metric.WithDescription("Transcription retry rounds started"),
		metric.WithUnit("{round}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create retry round counter: %v", err))
	}

	activityDuration, err = meter.Float64Histogram(
		"voicematch.workflows.activity.duration",
		metric.WithDescription("Duration of workflow activity executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create activity duration: %v", err))
	}

	activityErrorCounter, err = meter.Int64Counter(
		"voicematch.workflows.activity.errors",
		metric.WithDescription("Number of activity execution errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create activity error counter: %v", err))
	}
}

func init() {
	initMetrics()
}

// recordEvent records a run event. started is the workflow's start time,
// used for the terminal duration.
func recordEvent(e pipeline.Event, started time.Time) {
	ctx := context.Background()
	switch e.Kind {
	case pipeline.EventStageExit:
		stageCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", string(e.Stage)),
			attribute.String("status", e.Status),
		))
	case pipeline.EventRetryRound:
		retryRoundCounter.Add(ctx, 1)
	case pipeline.EventRunTerminal:
		cause := "none"
		if e.Cause != nil {
			cause = string(e.Cause.Kind)
		}
		runCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", e.Status),
			attribute.String("cause", cause),
		))
		runDuration.Record(ctx, e.At.Sub(started).Seconds())
	}
}
