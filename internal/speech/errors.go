package speech

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fyrsmithlabs/voicematch/internal/pipeline"
)

var errEmptyInput = errors.New("empty input")

// classify wraps err with op and marks it transient or permanent.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", op, err)
	if isRetryable(err) {
		return pipeline.Transient(wrapped)
	}
	return pipeline.Permanent(wrapped)
}

// isRetryable reports whether a speech call may succeed if repeated later.
func isRetryable(err error) bool {
	if errors.Is(err, errEmptyInput) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	// No response was received: dial and transport errors.
	return true
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return false
	}
	if code >= 500 && code < 600 {
		return true
	}
	// Unknown 4xx are the caller's fault; 0 means no response was received.
	return code == 0
}
