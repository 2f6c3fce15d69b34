package variations

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/voicematch/internal/artifacts"
	"github.com/fyrsmithlabs/voicematch/internal/logging"
	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
)

// Output names written under a run's prefix.
const (
	TranscriptionsFile = "successful_transcriptions.json"
	FailedFile         = "failed_files.json"
	DictionaryFile     = "variations.json"
)

// FailedFiles is the failed_files.json document.
type FailedFiles struct {
	FailedFiles []string `json:"failed_files"`
	Count       int      `json:"count"`
}

// Reconciler aggregates a run's transcripts into the variations dictionary.
type Reconciler struct {
	Store  artifacts.Store
	Logger *logging.Logger
	// DictionaryKey locates an existing dictionary to merge into. Empty or
	// missing means start from scratch.
	DictionaryKey string
}

// NewReconciler creates a reconciler over store.
func NewReconciler(store artifacts.Store, logger *logging.Logger, dictionaryKey string) *Reconciler {
	if logger == nil {
		logger = logging.FromContext(context.Background())
	}
	return &Reconciler{Store: store, Logger: logger, DictionaryKey: dictionaryKey}
}

// Reconcile groups completed transcripts by word, filters them, rebuilds the
// entries of req.Words and writes the run outputs.
func (r *Reconciler) Reconcile(ctx context.Context, req pipeline.ReconcileRequest) (pipeline.ReconcileResult, error) {
	if req.RunID == "" {
		return pipeline.ReconcileResult{}, pipeline.ConfigErrorf("reconcile: run id is required")
	}

	raw := make(map[string][]string, len(req.Words))
	for _, w := range req.Words {
		raw[w] = nil
	}
	for _, c := range req.Completed {
		raw[c.Item.Word] = append(raw[c.Item.Word], c.Output)
	}
	grouped := Group(raw)

	update := make(Dictionary, len(grouped))
	kept := 0
	for word, ts := range grouped {
		filtered := Filter(word, ts)
		kept += len(filtered)
		update[word] = BuildEntry(word, filtered)
	}

	base, err := r.loadBase(ctx)
	if err != nil {
		return pipeline.ReconcileResult{}, err
	}
	merged := Merge(base, update)

	failed := make([]string, 0, len(req.Failed))
	for _, f := range req.Failed {
		failed = append(failed, f.Item.Ref)
	}
	sort.Strings(failed)

	res := pipeline.ReconcileResult{
		DictionaryKey:     artifacts.OutputKey(req.RunID, DictionaryFile),
		TranscriptionsKey: artifacts.OutputKey(req.RunID, TranscriptionsFile),
		FailedKey:         artifacts.OutputKey(req.RunID, FailedFile),
		Words:             len(update),
	}
	if err := artifacts.PutJSON(ctx, r.Store, res.TranscriptionsKey, grouped); err != nil {
		return pipeline.ReconcileResult{}, pipeline.StageFatal(err)
	}
	if err := artifacts.PutJSON(ctx, r.Store, res.FailedKey, FailedFiles{FailedFiles: failed, Count: len(failed)}); err != nil {
		return pipeline.ReconcileResult{}, pipeline.StageFatal(err)
	}
	if err := artifacts.PutJSON(ctx, r.Store, res.DictionaryKey, merged); err != nil {
		return pipeline.ReconcileResult{}, pipeline.StageFatal(err)
	}

	r.Logger.Info(ctx, "variations dictionary written",
		zap.String("run_id", req.RunID),
		zap.Int("words", len(update)),
		zap.Int("entries", len(merged)),
		zap.Int("transcripts_kept", kept),
		zap.Int("failed_files", len(failed)),
	)
	return res, nil
}

func (r *Reconciler) loadBase(ctx context.Context) (Dictionary, error) {
	if r.DictionaryKey == "" {
		return Dictionary{}, nil
	}
	var base Dictionary
	err := artifacts.GetJSON(ctx, r.Store, r.DictionaryKey, &base)
	if errors.Is(err, artifacts.ErrNotFound) {
		r.Logger.Debug(ctx, "no existing dictionary, starting empty", zap.String("key", r.DictionaryKey))
		return Dictionary{}, nil
	}
	if err != nil {
		return nil, pipeline.StageFatal(fmt.Errorf("load dictionary: %w", err))
	}
	return base, nil
}
