package workflows

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
)

// knownKinds are the pipeline kinds carried across the activity boundary as
// application error types.
var knownKinds = map[pipeline.Kind]bool{
	pipeline.KindTransient:  true,
	pipeline.KindPermanent:  true,
	pipeline.KindConfig:     true,
	pipeline.KindTimeout:    true,
	pipeline.KindStageFatal: true,
}

// toApplicationError converts err into a non-retryable application error
// whose type is err's pipeline kind. Unmarked errors become StageFatalFailure.
// Retries are decided by the orchestrator's rounds, never by Temporal.
func toApplicationError(err error, details ...interface{}) error {
	if err == nil {
		return nil
	}
	kind := pipeline.KindOf(err)
	if kind == "" {
		kind = pipeline.KindStageFatal
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), string(kind), err, details...)
}

// fromActivityError restores the pipeline kind of an activity failure.
// Timeouts and cancellations of the activity itself are stage faults.
func fromActivityError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		if kind := pipeline.Kind(appErr.Type()); knownKinds[kind] {
			return &pipeline.Error{Kind: kind, Err: errors.New(appErr.Message())}
		}
	}
	return pipeline.StageFatal(err)
}

// ExecutionFromError extracts the execution record attached to a failed
// VariationsWorkflow's error.
func ExecutionFromError(err error) (*pipeline.WorkflowExecution, bool) {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || !appErr.HasDetails() {
		return nil, false
	}
	var exec pipeline.WorkflowExecution
	if derr := appErr.Details(&exec); derr != nil {
		return nil, false
	}
	return &exec, true
}

// KindFromError returns the pipeline kind a failed VariationsWorkflow
// reported, or "" if err did not come from one.
func KindFromError(err error) pipeline.Kind {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		if kind := pipeline.Kind(appErr.Type()); knownKinds[kind] {
			return kind
		}
	}
	return ""
}
