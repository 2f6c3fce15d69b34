package runner

import (
	"sort"
	"sync"
	"time"

	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
)

// Record is the externally visible state of one local run.
type Record struct {
	RunID       string                      `json:"run_id"`
	State       pipeline.State              `json:"state"`
	Status      pipeline.RunStatus          `json:"status"`
	SubmittedAt time.Time                   `json:"submitted_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
	Error       string                      `json:"error,omitempty"`
	Execution   *pipeline.WorkflowExecution `json:"execution,omitempty"`
}

// Registry tracks local runs. It observes run events to follow a run's
// state while it is in flight.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Record
}

var _ pipeline.Observer = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Record)}
}

// Add registers runID. It reports false if the id is already known.
func (g *Registry) Add(runID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.runs[runID]; ok {
		return false
	}
	now := time.Now()
	g.runs[runID] = &Record{
		RunID:       runID,
		State:       pipeline.StateGenerating,
		Status:      pipeline.RunRunning,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	return true
}

// Observe follows stage-enter events.
func (g *Registry) Observe(e pipeline.Event) {
	if e.Kind != pipeline.EventStageEnter {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.runs[e.RunID]
	if !ok {
		return
	}
	switch e.Stage {
	case pipeline.StageGenerate:
		rec.State = pipeline.StateGenerating
	case pipeline.StageTranscribe:
		rec.State = pipeline.StateTranscribing
	case pipeline.StageReconcile:
		rec.State = pipeline.StateReconciling
	}
	rec.UpdatedAt = e.At
}

// Finish stores the terminal execution of runID.
func (g *Registry) Finish(runID string, exec *pipeline.WorkflowExecution, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.runs[runID]
	if !ok {
		return
	}
	rec.UpdatedAt = time.Now()
	if err != nil {
		rec.Error = err.Error()
	}
	if exec == nil {
		rec.State = pipeline.StateFailed
		rec.Status = pipeline.RunFailed
		return
	}
	rec.Execution = exec
	rec.State = exec.State
	rec.Status = exec.Status
}

// Get returns a copy of the record for runID.
func (g *Registry) Get(runID string) (Record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.runs[runID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// List returns every record, newest first.
func (g *Registry) List() []Record {
	g.mu.RLock()
	out := make([]Record, 0, len(g.runs))
	for _, rec := range g.runs {
		out = append(out, *rec)
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].RunID < out[j].RunID
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out
}
