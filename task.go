package contracts

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Recognized bundle reference syntaxes. The sha256 form is the production
// content address; local:// points at a development bundle by short digest.
var (
	reBundleSHA256 = regexp.MustCompile(`^sha256:[a-f0-9]{64}$`)
	reBundleLocal  = regexp.MustCompile(`^local://[a-f0-9]{12}$`)
)

// ValidateBundleRef checks that ref matches a recognized content-address
// syntax: sha256:<64 lowercase hex> or local://<12 lowercase hex>.
func ValidateBundleRef(ref string) error {
	if ref == "" {
		return NewStructuralError("bundle_ref", "bundle reference must be non-empty")
	}
	if reBundleSHA256.MatchString(ref) || reBundleLocal.MatchString(ref) {
		return nil
	}
	return NewStructuralError("bundle_ref",
		fmt.Sprintf("unrecognized bundle reference %q: expected sha256:<64 hex> or local://<12 hex>", ref))
}

// SimTask is one fully-validated unit of simulation work: which model and
// scenario to run (entrypoint), from which immutable artifact bundle
// (bundle ref), with which parameters, seed, and requested outputs.
//
// Construction validates everything; a SimTask either satisfies all of its
// invariants or never exists. Immutable after construction: With* methods
// return new values. Execution collaborators treat a SimTask as an opaque
// unit of work identified by TaskID.
type SimTask struct {
	entrypoint Entrypoint
	bundleRef  string
	params     ParameterSet
	seed       uint64
	outputs    []string
	config     Params
	env        map[string]string
}

// TaskFromComponents builds a SimTask from individual fields, constructing
// the entrypoint descriptor and parameter set internally. The produced
// entrypoint is always the canonical digest-free form.
func TaskFromComponents(importPath, scenario, bundleRef string, params Params, seed uint64, outputs []string) (SimTask, error) {
	text, err := FormatEntrypoint(importPath, scenario)
	if err != nil {
		return SimTask{}, err
	}
	ps, err := NewParameterSet(params)
	if err != nil {
		return SimTask{}, err
	}
	return NewSimTask(text, bundleRef, ps, seed, outputs)
}

// NewSimTask builds a SimTask from entrypoint text and a pre-built
// parameter set.
//
// Validation order, first failure wins:
//  1. seed range - enforced by the uint64 type in-process; the wire
//     boundary (ParseSeed, UnmarshalJSON) rejects out-of-domain literals
//  2. bundle reference syntax
//  3. entrypoint/bundle digest consistency, when the entrypoint carries a
//     legacy digest fragment
func NewSimTask(entrypoint, bundleRef string, params ParameterSet, seed uint64, outputs []string) (SimTask, error) {
	e, err := ParseEntrypoint(entrypoint)
	if err != nil {
		return SimTask{}, err
	}
	if err := ValidateBundleRef(bundleRef); err != nil {
		return SimTask{}, err
	}
	if err := validateEntrypointAgainstBundle(e, bundleRef); err != nil {
		return SimTask{}, err
	}
	if params.IsZero() {
		return SimTask{}, NewStructuralError("params", "parameter set must be constructed, not zero")
	}

	var sorted []string
	if len(outputs) > 0 {
		sorted = make([]string, len(outputs))
		copy(sorted, outputs)
		sort.Strings(sorted)
		for _, name := range sorted {
			if name == "" {
				return SimTask{}, NewStructuralError("outputs", "output names must be non-empty")
			}
		}
	}

	return SimTask{
		entrypoint: e,
		bundleRef:  bundleRef,
		params:     params,
		seed:       seed,
		outputs:    sorted,
	}, nil
}

// validateEntrypointAgainstBundle cross-checks a legacy digest fragment
// against the bundle reference.
//
// For sha256 bundles the fragment must be a case-insensitive prefix of the
// digest portion; a mismatch is a provenance-consistency error, distinct
// from a format error, so callers can tell "wrong bundle" from "garbage
// input". For local bundles the fragment must equal the 12-hex short
// digest.
func validateEntrypointAgainstBundle(e Entrypoint, bundleRef string) error {
	if !e.HasDigest() {
		return nil
	}
	fragment := strings.ToLower(e.Digest())

	switch {
	case strings.HasPrefix(bundleRef, "sha256:"):
		bundleDigest := strings.TrimPrefix(bundleRef, "sha256:")
		if !strings.HasPrefix(bundleDigest, fragment) {
			return NewProvenanceError(
				fmt.Sprintf("entrypoint digest %q does not match bundle digest prefix", e.Digest()),
				e.Digest(), bundleRef)
		}
	case strings.HasPrefix(bundleRef, "local://"):
		short := strings.TrimPrefix(bundleRef, "local://")
		if fragment != short {
			return NewProvenanceError(
				fmt.Sprintf("entrypoint digest %q does not match local bundle digest", e.Digest()),
				e.Digest(), bundleRef)
		}
	default:
		return NewStructuralError("bundle_ref",
			fmt.Sprintf("unknown bundle reference scheme in %q", bundleRef))
	}
	return nil
}

// WithConfig returns a copy of the task carrying a frozen config mapping.
// Config participates in SimRoot, so two tasks differing only in config
// have different provenance roots.
func (t SimTask) WithConfig(config Params) (SimTask, error) {
	if _, err := EncodeParams(config); err != nil {
		return SimTask{}, err
	}
	out := t
	out.config = config.Clone()
	return out, nil
}

// WithEnv returns a copy of the task carrying a frozen environment-variable
// mapping. Env participates in SimRoot.
func (t SimTask) WithEnv(env map[string]string) (SimTask, error) {
	for k := range env {
		if k == "" {
			return SimTask{}, NewStructuralError("env", "environment variable names must be non-empty")
		}
	}
	out := t
	if env != nil {
		out.env = make(map[string]string, len(env))
		for k, v := range env {
			out.env[k] = v
		}
	}
	return out, nil
}

// Entrypoint returns the parsed entrypoint descriptor.
func (t SimTask) Entrypoint() Entrypoint { return t.entrypoint }

// BundleRef returns the content-address of the execution bundle.
func (t SimTask) BundleRef() string { return t.bundleRef }

// Params returns the embedded parameter set.
func (t SimTask) Params() ParameterSet { return t.params }

// ParamID returns the parameter set's content-addressed identifier, the
// join key between this task and the trial result it produces.
func (t SimTask) ParamID() string { return t.params.ID() }

// Seed returns the stochastic seed.
func (t SimTask) Seed() uint64 { return t.seed }

// Outputs returns a copy of the requested output names, sorted. Nil means
// "all outputs".
func (t SimTask) Outputs() []string {
	if t.outputs == nil {
		return nil
	}
	out := make([]string, len(t.outputs))
	copy(out, t.outputs)
	return out
}

// Config returns a copy of the optional config mapping.
func (t SimTask) Config() Params { return t.config.Clone() }

// Env returns a copy of the optional environment-variable mapping.
func (t SimTask) Env() map[string]string {
	if t.env == nil {
		return nil
	}
	out := make(map[string]string, len(t.env))
	for k, v := range t.env {
		out[k] = v
	}
	return out
}

// SimRoot returns the provenance root digest covering everything that
// determines this task's simulation behavior. See ComputeSimRoot.
func (t SimTask) SimRoot() string {
	return ComputeSimRoot(t)
}

// TaskID returns the content-addressed task identifier derived from the
// sim root, the canonical entrypoint, and the requested outputs. See
// ComputeTaskID.
func (t SimTask) TaskID() string {
	return ComputeTaskID(t)
}

// Equal reports whether two tasks are the same unit of work, by TaskID.
func (t SimTask) Equal(o SimTask) bool {
	return t.TaskID() == o.TaskID()
}

// simTaskWire is the JSON shape of a SimTask.
type simTaskWire struct {
	Entrypoint string            `json:"entrypoint"`
	BundleRef  string            `json:"bundle_ref"`
	Params     Params            `json:"params"`
	Seed       json.Number       `json:"seed"`
	Outputs    []string          `json:"outputs,omitempty"`
	Config     Params            `json:"config,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
}

// MarshalJSON serializes the task in its wire form. The seed is emitted as
// a JSON number; it always survives because the full uint64 range fits in
// a decimal literal.
func (t SimTask) MarshalJSON() ([]byte, error) {
	return json.Marshal(simTaskWire{
		Entrypoint: t.entrypoint.String(),
		BundleRef:  t.bundleRef,
		Params:     t.params.Values(),
		Seed:       json.Number(fmt.Sprintf("%d", t.seed)),
		Outputs:    t.outputs,
		Config:     t.config,
		Env:        t.env,
	})
}

// UnmarshalJSON decodes and fully validates a task document. Seed literals
// outside [0, 2^64-1] fail with a range error.
func (t *SimTask) UnmarshalJSON(data []byte) error {
	var wire simTaskWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return NewStructuralError("task", fmt.Sprintf("invalid task document: %v", err))
	}

	seed, err := ParseSeed(string(wire.Seed))
	if err != nil {
		return err
	}
	ps, err := NewParameterSet(wire.Params)
	if err != nil {
		return err
	}
	task, err := NewSimTask(wire.Entrypoint, wire.BundleRef, ps, seed, wire.Outputs)
	if err != nil {
		return err
	}
	if wire.Config != nil {
		task, err = task.WithConfig(wire.Config)
		if err != nil {
			return err
		}
	}
	if wire.Env != nil {
		task, err = task.WithEnv(wire.Env)
		if err != nil {
			return err
		}
	}
	*t = task
	return nil
}
