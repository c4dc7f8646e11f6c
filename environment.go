package contracts

import (
	"encoding/json"
	"runtime"
	"sort"
)

// DefaultRNGAlgorithm is the contract-level default for the stochastic
// generator the computation side is expected to use.
const DefaultRNGAlgorithm = "PCG64"

// EnvironmentDigest fingerprints the runtime a simulation executed under.
// Two runs with the same digest ran in scientifically equivalent
// environments; the digest feeds calibration provenance as the env leaf.
type EnvironmentDigest struct {
	RuntimeVersion string            `json:"runtime_version"`
	Platform       string            `json:"platform"`
	Dependencies   map[string]string `json:"dependencies,omitempty"`
	ContainerImage string            `json:"container_image,omitempty"`
	CUDAVersion    string            `json:"cuda_version,omitempty"`
	RNGAlgorithm   string            `json:"rng_algorithm"`
	ThreadCount    int               `json:"thread_count"`
}

// CaptureCurrent fingerprints the current process environment.
func CaptureCurrent() EnvironmentDigest {
	return EnvironmentDigest{
		RuntimeVersion: runtime.Version(),
		Platform:       runtime.GOOS + "/" + runtime.GOARCH,
		RNGAlgorithm:   DefaultRNGAlgorithm,
		ThreadCount:    runtime.GOMAXPROCS(0),
	}
}

// WithDependencies returns a copy carrying the given dependency pins.
func (e EnvironmentDigest) WithDependencies(deps map[string]string) EnvironmentDigest {
	out := e
	if deps != nil {
		out.Dependencies = make(map[string]string, len(deps))
		for k, v := range deps {
			out.Dependencies[k] = v
		}
	}
	return out
}

// Digest computes the content-addressed environment fingerprint.
// Dependencies contribute as a sorted list so map iteration order never
// leaks in.
func (e EnvironmentDigest) Digest() string {
	deps := make([]any, 0, len(e.Dependencies))
	names := make([]string, 0, len(e.Dependencies))
	for name := range e.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		deps = append(deps, map[string]any{"name": name, "version": e.Dependencies[name]})
	}

	rng := e.RNGAlgorithm
	if rng == "" {
		rng = DefaultRNGAlgorithm
	}
	threads := e.ThreadCount
	if threads == 0 {
		threads = 1
	}

	canonical, err := marshalCanonicalJSON(map[string]any{
		"runtime":   e.RuntimeVersion,
		"platform":  e.Platform,
		"deps":      deps,
		"container": e.ContainerImage,
		"cuda":      e.CUDAVersion,
		"rng":       rng,
		"threads":   threads,
	})
	if err != nil {
		panic(err)
	}
	return hashWithDomain(DomainEnv, canonical)
}

// MarshalIndentJSON renders the fingerprint plus its digest for operator
// inspection.
func (e EnvironmentDigest) MarshalIndentJSON() ([]byte, error) {
	type withDigest struct {
		EnvironmentDigest
		DigestHex string `json:"digest"`
	}
	return json.MarshalIndent(withDigest{EnvironmentDigest: e, DigestHex: e.Digest()}, "", "  ")
}
