package local

import (
	"context"
	"sync"

	contracts "github.com/vsbuffalo/modelops-contracts"
)

// futureImpl is one submission: the task, a cancellable run context,
// and a result resolved exactly once.
type futureImpl struct {
	id   string
	task contracts.SimTask

	// runCtx governs the wire call; cancelling it aborts a queued or
	// running job.
	runCtx    context.Context
	cancelRun context.CancelFunc

	once   sync.Once
	done   chan struct{}
	result contracts.SimReturn
	err    error
}

// Interface check.
var _ contracts.Future = (*futureImpl)(nil)

func newFuture(id string, task contracts.SimTask, parent context.Context) *futureImpl {
	runCtx, cancel := context.WithCancel(parent)
	return &futureImpl{
		id:        id,
		task:      task,
		runCtx:    runCtx,
		cancelRun: cancel,
		done:      make(chan struct{}),
	}
}

// resolve records the outcome. Only the first call wins; later calls
// (a cancel racing completion, shutdown racing a worker) are no-ops.
// Returns whether this call was the one that resolved the future.
func (f *futureImpl) resolve(result contracts.SimReturn, err error) bool {
	won := false
	f.once.Do(func() {
		f.result = result
		f.err = err
		won = true
		close(f.done)
	})
	return won
}

// ID returns the submission identifier.
func (f *futureImpl) ID() string { return f.id }

// Result blocks until the result is available or ctx is done.
func (f *futureImpl) Result(ctx context.Context) (contracts.SimReturn, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return contracts.SimReturn{}, ctx.Err()
	}
}

// Done reports without blocking whether the result is available.
func (f *futureImpl) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Cancel requests cancellation. Returns false when the task already
// produced a result.
func (f *futureImpl) Cancel() bool {
	won := f.resolve(contracts.SimReturn{}, context.Canceled)
	if won {
		f.cancelRun()
	}
	return won
}
