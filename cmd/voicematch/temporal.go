package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/voicematch/internal/logging"
	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
	"github.com/fyrsmithlabs/voicematch/internal/runner"
	"github.com/fyrsmithlabs/voicematch/internal/workflows"
)

func dialTemporal(deps *dependencies) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  deps.cfg.Temporal.HostPort,
		Namespace: deps.cfg.Temporal.Namespace,
		Logger:    logging.NewTemporalLogger(deps.logger),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create Temporal client: %w", err)
	}
	return c, nil
}

func taskQueue(deps *dependencies) string {
	if q := deps.cfg.Temporal.TaskQueue; q != "" {
		return q
	}
	return workflows.DefaultTaskQueue
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Host the variations workflow on a Temporal worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context())
		},
	}
}

func runWorker(ctx context.Context) error {
	deps, err := initDependencies(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close(context.Background()) }()

	c, err := dialTemporal(deps)
	if err != nil {
		return err
	}
	defer c.Close()

	queue := taskQueue(deps)
	w := worker.New(c, queue, worker.Options{})
	w.RegisterWorkflow(workflows.VariationsWorkflow)
	w.RegisterActivity(&workflows.Activities{
		Store:               deps.store,
		Speech:              deps.speech,
		Profiles:            deps.profiles,
		GenerateConcurrency: deps.cfg.Pipeline.GenerateConcurrency,
		WordsKey:            deps.cfg.Pipeline.WordsKey,
		DictionaryKey:       deps.cfg.Pipeline.DictionaryKey,
		Logger:              deps.logger,
	})

	if err := w.Start(); err != nil {
		return fmt.Errorf("worker error: %w", err)
	}
	deps.logger.Info(ctx, "worker started",
		zap.String("task_queue", queue),
		zap.String("namespace", deps.cfg.Temporal.Namespace))

	<-ctx.Done()
	deps.logger.Info(context.Background(), "shutdown signal received")
	w.Stop()
	deps.logger.Info(context.Background(), "worker stopped gracefully")
	return nil
}

type startFlags struct {
	runID    string
	words    []string
	wordsKey string
	wait     bool
}

func newStartCmd() *cobra.Command {
	var f startFlags
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a variations workflow on Temporal",
		Long: `Start submits VariationsWorkflow with the configured pipeline bounds.
With --wait it blocks until the run is terminal and prints its execution.

Examples:
  voicematch start --words apple,banana --wait
  voicematch start --run-id nightly-2024-11-02`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return startWorkflow(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().StringVar(&f.runID, "run-id", "", "run identifier (default: random)")
	cmd.Flags().StringSliceVar(&f.words, "words", nil, "comma separated words")
	cmd.Flags().StringVar(&f.wordsKey, "words-key", "", "artifact key of a JSON word list")
	cmd.Flags().BoolVar(&f.wait, "wait", false, "wait for the run to finish")
	return cmd
}

func startWorkflow(ctx context.Context, out io.Writer, f startFlags) error {
	deps, err := initDependencies(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close(context.Background()) }()

	c, err := dialTemporal(deps)
	if err != nil {
		return err
	}
	defer c.Close()

	runID := f.runID
	if runID == "" {
		runID = runner.NewRunID()
	}
	in := workflows.NewInput(deps.cfg.Pipeline, runID, f.words)
	if f.wordsKey != "" {
		in.WordsKey = f.wordsKey
	}
	if err := in.Validate(); err != nil {
		return err
	}

	we, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "voicematch-" + runID,
		TaskQueue: taskQueue(deps),
	}, workflows.VariationsWorkflow, in)
	if err != nil {
		return fmt.Errorf("failed to start workflow: %w", err)
	}
	deps.logger.Info(ctx, "workflow started",
		zap.String("workflow_id", we.GetID()),
		zap.String("temporal_run_id", we.GetRunID()))
	fmt.Fprintf(out, "Started %s (run %s)\n", we.GetID(), runID)

	if !f.wait {
		return nil
	}

	var exec pipeline.WorkflowExecution
	if err := we.Get(ctx, &exec); err != nil {
		failed, ok := workflows.ExecutionFromError(err)
		if !ok {
			return fmt.Errorf("workflow failed: %w", err)
		}
		printExecution(out, failed)
		return errors.New("run failed")
	}
	printExecution(out, &exec)
	return nil
}
