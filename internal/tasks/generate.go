// Package tasks holds the stage effects of the pipeline: clip generation,
// the per-clip transcription invoker and word list loading. Both the local
// runner and the Temporal activities call into it.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/voicematch/internal/artifacts"
	"github.com/fyrsmithlabs/voicematch/internal/logging"
	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
	"github.com/fyrsmithlabs/voicematch/internal/speech"
)

// DefaultGenerateConcurrency bounds parallel synthesis calls.
const DefaultGenerateConcurrency = 8

// WordRecord is one element of the word list document.
type WordRecord struct {
	Word string `json:"word"`
}

// LoadWords reads the word list stored under key. A missing or malformed
// list is a configuration problem.
func LoadWords(ctx context.Context, store artifacts.Store, key string) ([]string, error) {
	if key == "" {
		return nil, pipeline.ConfigErrorf("word list key is empty")
	}
	var records []WordRecord
	if err := artifacts.GetJSON(ctx, store, key, &records); err != nil {
		if errors.Is(err, artifacts.ErrNotFound) {
			return nil, pipeline.ConfigErrorf("word list %s not found", key)
		}
		return nil, pipeline.ConfigErrorf("word list %s: %v", key, err)
	}
	words := make([]string, 0, len(records))
	for _, r := range records {
		words = append(words, r.Word)
	}
	return words, nil
}

// CleanWords trims words, drops blanks and keeps the first occurrence of each.
func CleanWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Generator synthesizes every word in every voice profile and stores the
// clips.
type Generator struct {
	Store       artifacts.Store
	Synth       speech.Synthesizer
	Profiles    []speech.VoiceProfile
	Concurrency int
	Logger      *logging.Logger
}

// Generate produces one work item per stored clip. Pairs whose synthesis or
// upload fails are logged and reported in Failed. A run that stores nothing
// is a stage failure.
func (g *Generator) Generate(ctx context.Context, runID string, words []string) (pipeline.GenerateResult, error) {
	words = CleanWords(words)
	if len(words) == 0 {
		return pipeline.GenerateResult{}, pipeline.ConfigErrorf("word list is empty")
	}
	if len(g.Profiles) == 0 {
		return pipeline.GenerateResult{}, pipeline.ConfigErrorf("no voice profiles configured")
	}
	logger := g.Logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	limit := g.Concurrency
	if limit < 1 {
		limit = DefaultGenerateConcurrency
	}

	type slot struct {
		item pipeline.WorkItem
		err  error
	}
	slots := make([]slot, 0, len(words)*len(g.Profiles))
	for _, w := range words {
		for _, p := range g.Profiles {
			slots = append(slots, slot{item: pipeline.WorkItem{
				Ref:     artifacts.ClipKey(runID, w, p.String()),
				Word:    w,
				Profile: p.String(),
			}})
		}
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i := range slots {
		eg.Go(func() error {
			slots[i].err = g.one(egctx, slots[i].item)
			return nil
		})
	}
	_ = eg.Wait()

	var res pipeline.GenerateResult
	for _, s := range slots {
		if s.err != nil {
			logger.Warn(ctx, "clip generation failed",
				zap.String("word", s.item.Word),
				zap.String("profile", s.item.Profile),
				zap.Error(s.err),
			)
			res.Failed = append(res.Failed, pipeline.ItemFailure{
				Item:   s.item,
				Reason: s.err.Error(),
				Class:  pipeline.Classify(s.err),
			})
			continue
		}
		res.Items = append(res.Items, s.item)
	}

	if err := ctx.Err(); err != nil {
		return res, pipeline.StageFatal(fmt.Errorf("generate interrupted: %w", err))
	}
	if len(res.Items) == 0 {
		return res, pipeline.StageFatal(fmt.Errorf("no clips generated for %d words", len(words)))
	}
	logger.Info(ctx, "clips generated",
		zap.String("run_id", runID),
		zap.Int("words", len(words)),
		zap.Int("clips", len(res.Items)),
		zap.Int("failed", len(res.Failed)),
	)
	return res, nil
}

func (g *Generator) one(ctx context.Context, item pipeline.WorkItem) error {
	profile, err := speech.ParseProfile(item.Profile)
	if err != nil {
		return pipeline.Permanent(err)
	}
	// Clip keys are per run, word and profile, so a stored clip is final.
	stored, err := g.Store.Exists(ctx, item.Ref)
	if err != nil {
		return pipeline.Transient(err)
	}
	if stored {
		return nil
	}
	audio, err := g.Synth.Synthesize(ctx, item.Word, profile)
	if err != nil {
		return err
	}
	if err := g.Store.Put(ctx, item.Ref, audio, artifacts.ContentTypeMP3); err != nil {
		return pipeline.Transient(err)
	}
	return nil
}
