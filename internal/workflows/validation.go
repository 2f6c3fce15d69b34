package workflows

import (
	"errors"
	"fmt"
	"regexp"
)

// Validation errors
var (
	// ErrInvalidInput indicates workflow input validation failed.
	ErrInvalidInput = errors.New("invalid workflow input")

	// ErrEmptyField indicates a required field is empty.
	ErrEmptyField = errors.New("required field is empty")
)

// runIDPattern matches run ids that are safe as storage key segments.
var runIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,128}$`)

// Validate checks the fields the orchestrator does not: the run id and the
// word source. Bounds are checked by the orchestrator and fan-out.
func (in VariationsInput) Validate() error {
	if in.RunID == "" {
		return fmt.Errorf("%w: RunID", ErrEmptyField)
	}
	if !runIDPattern.MatchString(in.RunID) || in.RunID == "." || in.RunID == ".." {
		return fmt.Errorf("%w: RunID must be alphanumeric, dot, hyphen or underscore (1-128 chars): %q", ErrInvalidInput, in.RunID)
	}
	if len(in.Words) == 0 && in.WordsKey == "" {
		return fmt.Errorf("%w: Words or WordsKey", ErrEmptyField)
	}
	return nil
}
