package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/voicematch/internal/artifacts"
	"github.com/fyrsmithlabs/voicematch/internal/logging"
	"github.com/fyrsmithlabs/voicematch/internal/variations"
)

type matchFlags struct {
	runID         string
	dictionaryKey string
	jsonOut       bool
}

func newMatchCmd() *cobra.Command {
	var f matchFlags
	cmd := &cobra.Command{
		Use:   "match TEXT...",
		Short: "Match spoken text against the variations dictionary",
		Long: `Match resolves what a caller said to a dictionary word, the way a
dial-by-name prompt would. The default dictionary is pipeline.dictionary_key;
--run uses the dictionary a run wrote instead.

Examples:
  voicematch match star bucks
  voicematch match --run 3f2c9a6e tifany --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := initDependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close(context.Background()) }()

			if f.dictionaryKey == "" {
				f.dictionaryKey = deps.cfg.Pipeline.DictionaryKey
			}
			return matchText(cmd.Context(), cmd.OutOrStdout(), deps.store, strings.Join(args, " "), f)
		},
	}
	cmd.Flags().StringVar(&f.runID, "run", "", "match against the dictionary written by this run")
	cmd.Flags().StringVar(&f.dictionaryKey, "dictionary-key", "", "artifact key of the dictionary (default pipeline.dictionary_key)")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print the result as JSON")
	return cmd
}

func matchText(ctx context.Context, out io.Writer, store artifacts.Store, text string, f matchFlags) error {
	var key string
	if f.runID != "" {
		if !logging.ValidID(f.runID) {
			return fmt.Errorf("invalid run id %q", f.runID)
		}
		key = artifacts.OutputKey(f.runID, variations.DictionaryFile)
	}

	m := variations.StoredMatcher{Store: store, Key: f.dictionaryKey}
	res, ok, err := m.Match(ctx, key, text)
	if err != nil {
		return err
	}

	if f.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if !ok {
			return enc.Encode(struct {
				Text    string `json:"text"`
				Matched bool   `json:"matched"`
			}{Text: text})
		}
		return enc.Encode(struct {
			Text    string `json:"text"`
			Matched bool   `json:"matched"`
			variations.MatchResult
		}{Text: text, Matched: true, MatchResult: res})
	}

	if !ok {
		fmt.Fprintf(out, "No match for %q\n", text)
		return nil
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"INPUT", "WORD", "MATCH", "CONFIDENCE", "SIMILARITY"})
	tw.AppendRow(table.Row{text, res.Word, res.Type, res.Confidence, fmt.Sprintf("%.2f", res.Similarity)})
	tw.Render()
	return nil
}
