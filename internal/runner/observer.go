package runner

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/voicematch/internal/logging"
	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
)

// LogObserver writes run events to a logger.
type LogObserver struct {
	Logger *logging.Logger
}

// Observe logs e. Terminal failures are logged at error level.
func (o LogObserver) Observe(e pipeline.Event) {
	if o.Logger == nil {
		return
	}
	ctx := context.Background()
	fields := []zap.Field{
		zap.String("event", string(e.Kind)),
		zap.String("run_id", e.RunID),
	}
	if e.Stage != "" {
		fields = append(fields, zap.String("stage", string(e.Stage)))
	}

	switch e.Kind {
	case pipeline.EventStageEnter:
		o.Logger.Debug(ctx, "stage entered", fields...)
	case pipeline.EventStageExit:
		fields = append(fields, zap.String("status", e.Status), zap.Int("completed", e.ItemCount))
		o.Logger.Info(ctx, "stage exited", fields...)
	case pipeline.EventRetryRound:
		fields = append(fields, zap.Int("round", e.Round), zap.Int("items", e.ItemCount))
		o.Logger.Info(ctx, "retry round starting", fields...)
	case pipeline.EventRunTerminal:
		fields = append(fields, zap.String("status", e.Status))
		if e.Cause != nil {
			fields = append(fields,
				zap.String("cause.stage", string(e.Cause.Stage)),
				zap.String("cause.kind", string(e.Cause.Kind)),
				zap.String("cause.message", e.Cause.Message),
			)
			o.Logger.Error(ctx, "run terminal", fields...)
			return
		}
		o.Logger.Info(ctx, "run terminal", fields...)
	}
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus collectors fed by MetricsObserver.
type Metrics struct {
	StageTransitions *prometheus.CounterVec
	StageItems       *prometheus.CounterVec
	RetryRounds      prometheus.Counter
	RetryItems       prometheus.Counter
	Runs             *prometheus.CounterVec
	RunsInFlight     prometheus.Gauge
}

// NewMetrics registers the pipeline collectors with the default registry.
// Registration happens once per process.
//
// Metrics:
//   - voicematch_stage_transitions_total{stage,status}
//   - voicematch_stage_completed_items_total{stage}
//   - voicematch_retry_rounds_total
//   - voicematch_retry_items_total
//   - voicematch_runs_total{status,cause}
//   - voicematch_runs_in_flight
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			StageTransitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "voicematch_stage_transitions_total",
					Help: "Stages settled, by stage and status",
				},
				[]string{"stage", "status"},
			),
			StageItems: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "voicematch_stage_completed_items_total",
					Help: "Items completed per stage",
				},
				[]string{"stage"},
			),
			RetryRounds: promauto.NewCounter(prometheus.CounterOpts{
				Name: "voicematch_retry_rounds_total",
				Help: "Retry rounds started",
			}),
			RetryItems: promauto.NewCounter(prometheus.CounterOpts{
				Name: "voicematch_retry_items_total",
				Help: "Items re-queued into retry rounds",
			}),
			Runs: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "voicematch_runs_total",
					Help: "Runs that reached a terminal state",
				},
				[]string{"status", "cause"},
			),
			RunsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "voicematch_runs_in_flight",
				Help: "Runs between their first stage and a terminal state",
			}),
		}
	})
	return globalMetrics
}

// MetricsObserver feeds run events into Metrics.
type MetricsObserver struct {
	Metrics *Metrics
}

// NewMetricsObserver uses the process-wide collectors.
func NewMetricsObserver() MetricsObserver {
	return MetricsObserver{Metrics: NewMetrics()}
}

// Observe updates the collectors for e.
func (o MetricsObserver) Observe(e pipeline.Event) {
	m := o.Metrics
	if m == nil {
		return
	}
	switch e.Kind {
	case pipeline.EventStageEnter:
		if e.Stage == pipeline.StageGenerate {
			m.RunsInFlight.Inc()
		}
	case pipeline.EventStageExit:
		m.StageTransitions.WithLabelValues(string(e.Stage), e.Status).Inc()
		m.StageItems.WithLabelValues(string(e.Stage)).Add(float64(e.ItemCount))
	case pipeline.EventRetryRound:
		m.RetryRounds.Inc()
		m.RetryItems.Add(float64(e.ItemCount))
	case pipeline.EventRunTerminal:
		m.RunsInFlight.Dec()
		cause := "none"
		if e.Cause != nil {
			cause = string(e.Cause.Kind)
		}
		m.Runs.WithLabelValues(e.Status, cause).Inc()
	}
}
