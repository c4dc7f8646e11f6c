// Package contracts defines the stable data contracts shared between the
// orchestration side of modelops (schedulers, queues, storage) and the
// scientific side (simulation models, calibration algorithms).
//
// The package is the foundational layer: registry, bundleenv, and the
// internal packages all import contracts; contracts imports nothing from
// this module. Everything here is either an immutable value type
// (ParameterSet, SimTask, TrialResult, SimBatch) or a small port interface
// (SimulationService, CAS, AdaptiveAlgorithm) that the two sides implement
// independently.
//
// Key design constraints:
//   - Identity is content-derived. Parameter sets, tasks, batches, and jobs
//     hash to stable hex digests via domain-separated BLAKE2b-256; equal
//     content means equal identity on any machine.
//   - Canonical encodings are total functions of the value. Map iteration
//     order, insertion order, and platform never leak into bytes.
//   - Validation happens at construction. A value you hold is a value that
//     passed its checks; there is no half-valid state to defend against.
//   - All JSON tags use snake_case.
package contracts
