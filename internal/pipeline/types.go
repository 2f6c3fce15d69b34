// Package pipeline implements the stage graph that turns a word list into a
// variations dictionary: generate clips, transcribe them in bounded chunks with
// retry rounds, then reconcile once.
//
// The package is runtime-agnostic. The same Orchestrator and RetryCoordinator
// run in-process (internal/runner) and inside a Temporal workflow
// (internal/workflows); a Driver supplies the clock and the stage effects.
package pipeline

import (
	"time"
)

// Stage names one phase of the pipeline.
type Stage string

const (
	StageGenerate   Stage = "generate"
	StageTranscribe Stage = "transcribe"
	StageReconcile  Stage = "reconcile"
)

// State is the orchestrator's position in the stage graph.
type State string

const (
	StateGenerating   State = "Generating"
	StateTranscribing State = "Transcribing"
	StateReconciling  State = "Reconciling"
	StateSucceeded    State = "Succeeded"
	StateFailed       State = "Failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Stage returns the stage executed while in s, or "" for terminal states.
func (s State) Stage() Stage {
	switch s {
	case StateGenerating:
		return StageGenerate
	case StateTranscribing:
		return StageTranscribe
	case StateReconciling:
		return StageReconcile
	}
	return ""
}

// StageStatus is the settled status of one stage.
type StageStatus string

const (
	StageSucceeded      StageStatus = "Succeeded"
	StagePartialFailure StageStatus = "PartialFailure"
	StageFailed         StageStatus = "Failed"
)

// RunStatus is the status of a whole execution.
type RunStatus string

const (
	RunRunning   RunStatus = "Running"
	RunSucceeded RunStatus = "Succeeded"
	RunFailed    RunStatus = "Failed"
)

// WorkItem is a unit of work carried between stages. Ref is its identity.
type WorkItem struct {
	Ref     string `json:"ref"`
	Word    string `json:"word,omitempty"`
	Profile string `json:"profile,omitempty"`
	Retries int    `json:"retries"`
}

// Chunk is an ordered, size-bounded group of work items.
type Chunk struct {
	Index int        `json:"index"`
	Items []WorkItem `json:"items"`
}

// Completion pairs a finished item with the artifact it produced.
type Completion struct {
	Item   WorkItem `json:"item"`
	Output string   `json:"output"`
}

// ItemFailure records why an item did not complete.
type ItemFailure struct {
	Item   WorkItem `json:"item"`
	Reason string   `json:"reason"`
	Class  Class    `json:"class"`
}

// ChunkResult is the outcome of executing one chunk. Completed, Retryable and
// Failed partition a subset of the chunk's items.
type ChunkResult struct {
	Index     int           `json:"index"`
	Completed []Completion  `json:"completed,omitempty"`
	Retryable []ItemFailure `json:"retryable,omitempty"`
	Failed    []ItemFailure `json:"failed,omitempty"`
}

// StageOutcome is the settled result of a stage after all retry rounds.
type StageOutcome struct {
	Stage     Stage         `json:"stage"`
	Status    StageStatus   `json:"status"`
	Completed []Completion  `json:"completed,omitempty"`
	Failed    []ItemFailure `json:"failed,omitempty"`
	Rounds    int           `json:"rounds"`
}

// CompletedItems returns the work items of the completed set.
func (o StageOutcome) CompletedItems() []WorkItem {
	items := make([]WorkItem, 0, len(o.Completed))
	for _, c := range o.Completed {
		items = append(items, c.Item)
	}
	return items
}

// GenerateResult is what the Generate stage produced.
type GenerateResult struct {
	Items  []WorkItem    `json:"items"`
	Failed []ItemFailure `json:"failed,omitempty"`
}

// ReconcileRequest carries the aggregated pipeline output into reconciliation.
type ReconcileRequest struct {
	RunID     string        `json:"run_id"`
	Words     []string      `json:"words"`
	Completed []Completion  `json:"completed"`
	Failed    []ItemFailure `json:"failed"`
}

// ReconcileResult lists the artifacts written by reconciliation.
type ReconcileResult struct {
	DictionaryKey     string `json:"dictionary_key"`
	TranscriptionsKey string `json:"transcriptions_key"`
	FailedKey         string `json:"failed_key"`
	Words             int    `json:"words"`
}

// WorkflowExecution is the top-level record of a run. The orchestrator owns it
// until the run reaches a terminal state.
type WorkflowExecution struct {
	RunID     string           `json:"run_id"`
	State     State            `json:"state"`
	Status    RunStatus        `json:"status"`
	Stages    []StageOutcome   `json:"stages"`
	StartedAt time.Time        `json:"started_at"`
	Elapsed   time.Duration    `json:"elapsed"`
	Timeout   time.Duration    `json:"timeout"`
	Cause     *Cause           `json:"cause,omitempty"`
	Result    *ReconcileResult `json:"result,omitempty"`
}

// Outcome returns the recorded outcome for stage, if any.
func (e *WorkflowExecution) Outcome(stage Stage) (StageOutcome, bool) {
	for _, o := range e.Stages {
		if o.Stage == stage {
			return o, true
		}
	}
	return StageOutcome{}, false
}
