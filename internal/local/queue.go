package local

import "sync"

// jobQueue is a thread-safe FIFO of pending submissions.
//
// Unbounded so Submit never blocks the caller; the worker pool bounds
// actual concurrency. A buffered signal channel (size 1) coalesces
// wakeups so workers can wait without spinning and without missing
// enqueues.
type jobQueue struct {
	mu     sync.Mutex
	jobs   []*futureImpl
	closed bool
	signal chan struct{}
}

func newJobQueue() *jobQueue {
	return &jobQueue{
		jobs:   make([]*futureImpl, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// enqueue adds a job. Returns false if the queue is closed.
func (q *jobQueue) enqueue(j *futureImpl) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.jobs = append(q.jobs, j)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// tryDequeue removes the front job without blocking.
// ok=false with open=true means the queue is momentarily empty;
// open=false means it is closed and drained.
func (q *jobQueue) tryDequeue() (j *futureImpl, ok, open bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) > 0 {
		j = q.jobs[0]
		q.jobs = q.jobs[1:]
		// Re-signal when work remains so a second idle worker wakes;
		// the buffer-1 channel coalesced the original signals.
		if len(q.jobs) > 0 {
			select {
			case q.signal <- struct{}{}:
			default:
			}
		}
		return j, true, true
	}
	return nil, false, !q.closed
}

// wait returns a channel that fires when a job may be available.
func (q *jobQueue) wait() <-chan struct{} {
	return q.signal
}

// close marks the queue closed. Queued jobs still drain; new enqueues
// are refused. The signal wakes any waiting worker so it can observe
// the closed state.
func (q *jobQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}
