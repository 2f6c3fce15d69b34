package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline errors.
type Kind string

const (
	// KindTransient is an item-level failure eligible for another round.
	KindTransient Kind = "TransientTaskFailure"
	// KindPermanent is an item-level failure that is never retried.
	KindPermanent Kind = "PermanentTaskFailure"
	// KindConfig rejects a run before any stage executes.
	KindConfig Kind = "ConfigError"
	// KindTimeout means the global deadline passed at a stage boundary.
	KindTimeout Kind = "WorkflowTimeout"
	// KindStageFatal is a stage's own fault, unrelated to item failures.
	KindStageFatal Kind = "StageFatalFailure"
)

// Class is the item-level classification reported by a TaskInvoker.
type Class string

const (
	ClassTransient Class = "transient"
	ClassPermanent Class = "permanent"
)

// ErrNotDispatched marks items whose chunk never started because the run was
// cancelled or its deadline passed.
var ErrNotDispatched = errors.New("not dispatched")

// Error attaches a Kind to an underlying error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient marks err as retryable within a stage.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindTransient, Err: err}
}

// Permanent marks err as never retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindPermanent, Err: err}
}

// StageFatal marks err as a stage-level fault.
func StageFatal(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindStageFatal, Err: err}
}

// Timeout marks err as caused by the run's global deadline.
func Timeout(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindTimeout, Err: err}
}

// ConfigErrorf builds a ConfigError.
func ConfigErrorf(format string, args ...any) error {
	return &Error{Kind: KindConfig, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the outermost Kind in err's chain, or "" when err is
// unmarked.
func KindOf(err error) Kind {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Kind
		case *Cause:
			return e.Kind
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// Classify maps an invocation error to an item class. Unmarked errors are
// transient.
func Classify(err error) Class {
	switch KindOf(err) {
	case KindPermanent, KindConfig:
		return ClassPermanent
	}
	return ClassTransient
}

// Cause is the structured reason a run ended in Failed.
type Cause struct {
	Stage   Stage  `json:"stage"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// NewCause builds a Cause for stage. The kind comes from err, falling back to
// fallback when err carries none.
func NewCause(stage Stage, fallback Kind, err error) *Cause {
	kind := KindOf(err)
	if kind == "" || kind == KindTransient || kind == KindPermanent {
		kind = fallback
	}
	c := &Cause{Stage: stage, Kind: kind, Err: err}
	if err != nil {
		c.Message = err.Error()
	}
	return c
}

func (c *Cause) Error() string {
	if c.Message == "" {
		return fmt.Sprintf("%s failed: %s", c.Stage, c.Kind)
	}
	return fmt.Sprintf("%s failed: %s: %s", c.Stage, c.Kind, c.Message)
}

func (c *Cause) Unwrap() error {
	return c.Err
}
