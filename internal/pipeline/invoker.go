package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// TaskInvoker executes one unit of work against an external capability.
// A nil error means output is the produced artifact; otherwise the error is
// classified with Classify.
type TaskInvoker interface {
	Invoke(ctx context.Context, item WorkItem) (string, error)
}

// InvokerFunc adapts a function to TaskInvoker.
type InvokerFunc func(ctx context.Context, item WorkItem) (string, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, item WorkItem) (string, error) {
	return f(ctx, item)
}

// RunChunk invokes every item of chunk in order and partitions the outcomes.
// Panics inside the invoker are recovered as transient failures.
func RunChunk(ctx context.Context, chunk Chunk, invoker TaskInvoker) ChunkResult {
	res := ChunkResult{Index: chunk.Index}
	for _, item := range chunk.Items {
		out, err := safeInvoke(ctx, invoker, item)
		if err == nil {
			res.Completed = append(res.Completed, Completion{Item: item, Output: out})
			continue
		}
		f := ItemFailure{Item: item, Reason: err.Error(), Class: Classify(err)}
		if f.Class == ClassPermanent {
			res.Failed = append(res.Failed, f)
		} else {
			res.Retryable = append(res.Retryable, f)
		}
	}
	return res
}

// NotDispatched returns a result marking every item of chunk retryable.
func NotDispatched(chunk Chunk, reason error) ChunkResult {
	if reason == nil || errors.Is(reason, ErrNotDispatched) {
		return failChunk(chunk, ErrNotDispatched.Error())
	}
	return failChunk(chunk, fmt.Errorf("%w: %v", ErrNotDispatched, reason).Error())
}

// FailedChunk returns a result marking every item of chunk retryable with
// reason. Used when the chunk's execution itself faulted.
func FailedChunk(chunk Chunk, reason string) ChunkResult {
	return failChunk(chunk, reason)
}

func failChunk(chunk Chunk, reason string) ChunkResult {
	res := ChunkResult{Index: chunk.Index}
	for _, item := range chunk.Items {
		res.Retryable = append(res.Retryable, ItemFailure{Item: item, Reason: reason, Class: ClassTransient})
	}
	return res
}

func safeInvoke(ctx context.Context, invoker TaskInvoker, item WorkItem) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Transient(fmt.Errorf("invoker panic on %s: %v", item.Ref, r))
		}
	}()
	return invoker.Invoke(ctx, item)
}
