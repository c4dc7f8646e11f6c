package contracts

import "context"

// The port interfaces below are the narrow behavioral contracts external
// collaborators implement. The core depends only on these signatures; the
// in-process reference implementations under internal/ exist for tests,
// local development, and the CLI.

// Future is a handle to one submitted task's eventual result.
type Future interface {
	// Result blocks until the result is available or ctx is done.
	Result(ctx context.Context) (SimReturn, error)

	// Done reports without blocking whether the result is available.
	Done() bool

	// Cancel requests cancellation; returns false when the task already
	// produced a result.
	Cancel() bool
}

// SimulationService submits validated tasks for execution.
//
// Gather must preserve input ordering: results[i] corresponds to
// futures[i] regardless of completion order.
type SimulationService interface {
	Submit(ctx context.Context, task SimTask) (Future, error)
	SubmitBatch(ctx context.Context, tasks []SimTask) ([]Future, error)
	Gather(ctx context.Context, futures []Future) ([]SimReturn, error)
}

// ExecutionEnvironment runs one task to completion inside a prepared
// bundle.
//
// Shutdown must release all held resources and must be idempotent: a
// second call is a no-op, not an error.
type ExecutionEnvironment interface {
	Run(ctx context.Context, task SimTask) (SimReturn, error)
	HealthCheck(ctx context.Context) (map[string]string, error)
	Shutdown(ctx context.Context) error
}

// BundleLocation is a materialized bundle: its full content digest and its
// local filesystem path.
type BundleLocation struct {
	Digest string
	Path   string
}

// BundleRepository materializes immutable artifact bundles locally.
type BundleRepository interface {
	EnsureLocal(ctx context.Context, ref string) (BundleLocation, error)
	Exists(ctx context.Context, ref string) (bool, error)
}

// CAS is a content-addressable blob store.
//
// Put must be idempotent: storing identical bytes twice yields the
// identical address.
type CAS interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, address string) ([]byte, error)
	Exists(ctx context.Context, address string) (bool, error)
}

// AdaptiveAlgorithm is the ask-tell optimization loop.
//
// Ask returns up to n candidate parameter sets; fewer, including zero, is
// legal - a caller seeing an empty batch should consult Finished. Tell
// accepts results in any order; re-telling an identical result for a
// finished trial is a no-op, while a conflicting result for a finished
// trial must be rejected. The core only guarantees the values crossing
// this port satisfy their invariants; the algorithm lives elsewhere.
type AdaptiveAlgorithm interface {
	Ask(ctx context.Context, n int) ([]ParameterSet, error)
	Tell(ctx context.Context, results []TrialResult) error
	Finished() bool
}

// WireFunction is the in-bundle execution hook: given a canonical
// entrypoint, encoded parameters, and a seed, produce named output
// payloads.
type WireFunction func(ctx context.Context, entrypoint string, params []byte, seed uint64) (map[string][]byte, error)
