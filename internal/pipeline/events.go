package pipeline

import (
	"time"
)

// EventKind names an observable boundary of a run.
type EventKind string

const (
	EventStageEnter  EventKind = "stage-enter"
	EventStageExit   EventKind = "stage-exit"
	EventRetryRound  EventKind = "retry-round-start"
	EventRunTerminal EventKind = "workflow-terminal"
)

// Event is emitted at run boundaries for external monitoring. Nothing in the
// pipeline reads events back.
type Event struct {
	Kind      EventKind `json:"kind"`
	RunID     string    `json:"run_id"`
	Stage     Stage     `json:"stage,omitempty"`
	Status    string    `json:"status,omitempty"`
	Round     int       `json:"round,omitempty"`
	ItemCount int       `json:"item_count,omitempty"`
	Cause     *Cause    `json:"cause,omitempty"`
	At        time.Time `json:"at"`
}

// Observer receives run events. Implementations must not block for long;
// they run on the orchestrator's control path.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f.
func (f ObserverFunc) Observe(e Event) { f(e) }

// Observers fans an event out to several observers in order.
type Observers []Observer

// Observe forwards e to every non-nil observer.
func (o Observers) Observe(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(e)
		}
	}
}
