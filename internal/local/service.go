package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"

	contracts "github.com/vsbuffalo/modelops-contracts"
)

// DefaultWorkers is the worker pool size when the caller does not
// choose one.
const DefaultWorkers = 4

// Service runs tasks through a WireFunction on a bounded worker pool.
// Implements the contracts.SimulationService and
// contracts.ExecutionEnvironment ports.
type Service struct {
	wire    contracts.WireFunction
	workers int

	queue *jobQueue
	quit  chan struct{}
	wg    sync.WaitGroup

	mu       sync.Mutex
	shutdown bool
	inflight int
}

// Interface checks.
var (
	_ contracts.SimulationService    = (*Service)(nil)
	_ contracts.ExecutionEnvironment = (*Service)(nil)
)

// Option configures a Service.
type Option func(*Service)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(s *Service) { s.workers = n }
}

// New starts a service over the given wire function.
func New(wire contracts.WireFunction, opts ...Option) (*Service, error) {
	if wire == nil {
		return nil, fmt.Errorf("local: wire function must be non-nil")
	}
	s := &Service{
		wire:    wire,
		workers: DefaultWorkers,
		queue:   newJobQueue(),
		quit:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		return nil, fmt.Errorf("local: worker count must be at least 1, got %d", s.workers)
	}

	s.wg.Add(s.workers)
	for i := 0; i < s.workers; i++ {
		go s.worker()
	}
	return s, nil
}

// worker drains the queue until shutdown.
func (s *Service) worker() {
	defer s.wg.Done()
	for {
		job, ok, open := s.queue.tryDequeue()
		if ok {
			s.execute(job)
			continue
		}
		if !open {
			return
		}
		select {
		case <-s.queue.wait():
		case <-s.quit:
			// Drain whatever is still queued before exiting so no
			// accepted submission is silently dropped.
			for {
				job, ok, _ := s.queue.tryDequeue()
				if !ok {
					return
				}
				s.execute(job)
			}
		}
	}
}

// Submit enqueues one task. The returned future resolves exactly once.
func (s *Service) Submit(ctx context.Context, task contracts.SimTask) (contracts.Future, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil, fmt.Errorf("local: service is shut down")
	}
	s.inflight++
	s.mu.Unlock()

	f := newFuture(uuid.NewString(), task, context.Background())
	if !s.queue.enqueue(f) {
		s.taskDone()
		return nil, fmt.Errorf("local: service is shut down")
	}
	return f, nil
}

// SubmitBatch enqueues tasks in order. Futures are returned in the
// same order as the input tasks.
func (s *Service) SubmitBatch(ctx context.Context, tasks []contracts.SimTask) ([]contracts.Future, error) {
	futures := make([]contracts.Future, 0, len(tasks))
	for _, task := range tasks {
		f, err := s.Submit(ctx, task)
		if err != nil {
			// Cancel what was already accepted; a partial batch is
			// worse than a failed one.
			for _, accepted := range futures {
				accepted.Cancel()
			}
			return nil, err
		}
		futures = append(futures, f)
	}
	return futures, nil
}

// Gather blocks until every future resolves and returns the results in
// input order: results[i] belongs to futures[i] regardless of
// completion order. The first error wins.
func (s *Service) Gather(ctx context.Context, futures []contracts.Future) ([]contracts.SimReturn, error) {
	results := make([]contracts.SimReturn, len(futures))
	for i, f := range futures {
		r, err := f.Result(ctx)
		if err != nil {
			return nil, fmt.Errorf("gather [%d]: %w", i, err)
		}
		results[i] = r
	}
	return results, nil
}

// Run executes one task synchronously, bypassing the queue.
func (s *Service) Run(ctx context.Context, task contracts.SimTask) (contracts.SimReturn, error) {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return contracts.SimReturn{}, fmt.Errorf("local: service is shut down")
	}
	s.mu.Unlock()
	return s.runWire(ctx, task)
}

// HealthCheck reports a status snapshot.
func (s *Service) HealthCheck(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	status := "ok"
	if s.shutdown {
		status = "shutdown"
	}
	return map[string]string{
		"status":   status,
		"workers":  strconv.Itoa(s.workers),
		"inflight": strconv.Itoa(s.inflight),
	}, nil
}

// Shutdown stops accepting work, waits for the queue to drain, and
// releases the worker pool. Idempotent: a second call is a no-op.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	s.mu.Unlock()

	s.queue.close()
	close(s.quit)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) taskDone() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
}

// execute resolves one queued job.
func (s *Service) execute(job *futureImpl) {
	defer s.taskDone()
	defer job.cancelRun()

	if job.Done() {
		return // cancelled while queued
	}
	result, err := s.runWire(job.runCtx, job.task)
	job.resolve(result, err)
}

// runWire invokes the wire function and shapes its raw outputs into a
// validated SimReturn. A wire error produces a failed SimReturn rather
// than a Go error: the task ran, it just did not succeed.
func (s *Service) runWire(ctx context.Context, task contracts.SimTask) (contracts.SimReturn, error) {
	if err := ctx.Err(); err != nil {
		return contracts.SimReturn{}, err
	}

	encoded, err := contracts.EncodeParams(task.Params().Values())
	if err != nil {
		return contracts.SimReturn{}, fmt.Errorf("local: encode params: %w", err)
	}

	raw, wireErr := s.wire(ctx, task.Entrypoint().Canonical().String(), encoded, task.Seed())
	if wireErr != nil {
		if ctx.Err() != nil {
			return contracts.SimReturn{}, ctx.Err()
		}
		return contracts.NewSimReturn(task.TaskID(), task.SimRoot(), nil, &contracts.ErrorInfo{
			Code:    "wire_error",
			Message: "simulation entrypoint failed",
			Detail:  wireErr.Error(),
		})
	}

	outputs, missing := shapeOutputs(task, raw)
	if len(missing) > 0 {
		return contracts.NewSimReturn(task.TaskID(), task.SimRoot(), outputs, &contracts.ErrorInfo{
			Code:    "missing_output",
			Message: fmt.Sprintf("requested outputs not produced: %v", missing),
		})
	}
	return contracts.NewSimReturn(task.TaskID(), task.SimRoot(), outputs, nil)
}

// shapeOutputs turns raw wire payloads into TableArtifacts. When the
// task requests specific outputs, only those are kept and any that the
// wire did not produce are reported missing; a task with no output
// list takes everything.
func shapeOutputs(task contracts.SimTask, raw map[string][]byte) (map[string]contracts.TableArtifact, []string) {
	requested := task.Outputs()
	if requested == nil {
		requested = make([]string, 0, len(raw))
		for name := range raw {
			requested = append(requested, name)
		}
		sort.Strings(requested)
	}

	outputs := make(map[string]contracts.TableArtifact, len(requested))
	var missing []string
	for _, name := range requested {
		payload, ok := raw[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		sum := sha256.Sum256(payload)
		var inline []byte
		if len(payload) <= contracts.InlineCap {
			inline = payload
		}
		artifact, err := contracts.NewTableArtifact(int64(len(payload)), inline, hex.EncodeToString(sum[:]))
		if err != nil {
			// Payload-derived fields cannot fail validation; a failure
			// here is a programming bug.
			panic(fmt.Sprintf("local: shape output %s: %v", name, err))
		}
		outputs[name] = artifact
	}
	if len(outputs) == 0 {
		outputs = nil
	}
	return outputs, missing
}
