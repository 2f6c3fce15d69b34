package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
	"github.com/fyrsmithlabs/voicematch/internal/runner"
)

type runFlags struct {
	runID    string
	words    []string
	wordsKey string
	jsonOut  bool
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline in this process",
		Long: `Run generates clips, transcribes them and writes the reconciled dictionary
without a Temporal cluster. Words come from --words or from the word list
stored under --words-key.

Examples:
  # Run two words
  voicematch run --words apple,banana

  # Run the stored word list and print the execution as JSON
  voicematch run --words-key input/words.json --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLocal(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().StringVar(&f.runID, "run-id", "", "run identifier (default: random)")
	cmd.Flags().StringSliceVar(&f.words, "words", nil, "comma separated words")
	cmd.Flags().StringVar(&f.wordsKey, "words-key", "", "artifact key of a JSON word list")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print the execution record as JSON")
	return cmd
}

func runLocal(ctx context.Context, out io.Writer, f runFlags) error {
	deps, err := initDependencies(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close(context.Background()) }()

	r, err := runner.New(runner.OptionsFromConfig(deps.cfg.Pipeline), runner.Deps{
		Store:    deps.store,
		Speech:   deps.speech,
		Profiles: deps.profiles,
		Logger:   deps.logger,
		Tracer:   deps.telemetry.Tracer("voicematch/runner"),
		Observer: runner.LogObserver{Logger: deps.logger},
	})
	if err != nil {
		return err
	}

	exec, err := r.Run(ctx, runner.Request{RunID: f.runID, Words: f.words, WordsKey: f.wordsKey})
	if exec != nil {
		if f.jsonOut {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(exec); encErr != nil {
				return encErr
			}
		} else {
			printExecution(out, exec)
		}
	}
	return err
}

// printExecution writes a per-stage summary of exec.
func printExecution(w io.Writer, exec *pipeline.WorkflowExecution) {
	fmt.Fprintf(w, "Run:     %s\n", exec.RunID)
	fmt.Fprintf(w, "Status:  %s\n", exec.Status)
	fmt.Fprintf(w, "Elapsed: %s\n", exec.Elapsed.Round(time.Millisecond))
	if exec.Cause != nil {
		fmt.Fprintf(w, "Cause:   %s\n", exec.Cause.Error())
	}
	fmt.Fprintln(w)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"STAGE", "STATUS", "COMPLETED", "FAILED", "ROUNDS"})
	for _, s := range exec.Stages {
		tw.AppendRow(table.Row{s.Stage, s.Status, len(s.Completed), len(s.Failed), s.Rounds})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	tw.Render()

	if exec.Result != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Dictionary:     %s (%d words)\n", exec.Result.DictionaryKey, exec.Result.Words)
		fmt.Fprintf(w, "Transcriptions: %s\n", exec.Result.TranscriptionsKey)
		fmt.Fprintf(w, "Failures:       %s\n", exec.Result.FailedKey)
	}
}
