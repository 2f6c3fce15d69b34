// Package workflows runs the voicematch pipeline as a Temporal workflow.
//
// VariationsWorkflow drives the same pipeline.Orchestrator the local runner
// uses. Time comes from workflow.Now, transcription chunks fan out as
// TranscribeChunk activities behind a Selector with an in-flight cap, and the
// retry backoff is a durable workflow.Sleep.
package workflows

import (
	"time"

	"github.com/fyrsmithlabs/voicematch/internal/config"
	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
)

// DefaultTaskQueue is the task queue workers poll when none is configured.
const DefaultTaskQueue = "voicematch"

// VariationsInput starts one run.
type VariationsInput struct {
	RunID    string   `json:"run_id"`
	Words    []string `json:"words,omitempty"`
	WordsKey string   `json:"words_key,omitempty"`

	ChunkSize    int           `json:"chunk_size"`
	Concurrency  int           `json:"concurrency"`
	MaxRounds    int           `json:"max_rounds"`
	RetryBackoff time.Duration `json:"retry_backoff"`
	Timeout      time.Duration `json:"timeout"`
	DrainTimeout time.Duration `json:"drain_timeout"`
}

// NewInput builds the input for runID from the pipeline config section.
func NewInput(c config.PipelineConfig, runID string, words []string) VariationsInput {
	return VariationsInput{
		RunID:        runID,
		Words:        words,
		WordsKey:     c.WordsKey,
		ChunkSize:    c.ChunkSize,
		Concurrency:  c.Concurrency,
		MaxRounds:    c.MaxRounds,
		RetryBackoff: c.RetryBackoff,
		Timeout:      c.Timeout,
		DrainTimeout: c.DrainTimeout,
	}
}

// activityTimeout bounds a single activity: the run's budget plus the
// drain window.
func (in VariationsInput) activityTimeout() time.Duration {
	return in.Timeout + in.DrainTimeout
}

// GenerateInput is the input of GenerateClips.
type GenerateInput struct {
	RunID    string   `json:"run_id"`
	Words    []string `json:"words,omitempty"`
	WordsKey string   `json:"words_key,omitempty"`
}

// TranscribeInput is the input of TranscribeChunk.
type TranscribeInput struct {
	RunID string         `json:"run_id"`
	Round int            `json:"round"`
	Chunk pipeline.Chunk `json:"chunk"`
}
