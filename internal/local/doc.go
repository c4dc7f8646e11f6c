// Package local is the in-process reference implementation of the
// SimulationService and ExecutionEnvironment ports. It runs validated
// tasks through a caller-supplied WireFunction on a bounded worker
// pool, resolving each submission's future exactly once.
//
// It exists for tests, local development, and the CLI. Production
// backends (cluster schedulers, remote executors) implement the same
// ports elsewhere.
package local
