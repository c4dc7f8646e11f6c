// Package registry tracks the models and calibration targets a bundle
// ships, together with the file dependencies that affect their behavior.
//
// The registry is the authoring-side half of provenance: each model entry
// declares its source file, its data and code dependencies, and sha256
// digests for all of them. Comparing stored digests against the working
// tree answers "what changed since this bundle was built" without running
// any model code.
//
// Registry documents are YAML. Before semantic validation they are linted
// against an embedded CUE schema, so malformed documents fail with
// positional schema errors rather than partial decodes.
package registry
