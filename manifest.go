package contracts

import (
	"fmt"
	"sort"
)

// ModelEntry describes one executable model inside a bundle: its
// entrypoint base ("import.path.Class"), the scenarios it supports, the
// outputs it produces, the parameters it accepts, and its content digest.
type ModelEntry struct {
	EntrypointBase string   `json:"entrypoint_base"`
	Scenarios      []string `json:"scenarios"`
	Outputs        []string `json:"outputs"`
	Parameters     []string `json:"parameters"`
	ModelDigest    string   `json:"model_digest"`
}

// NewModelEntry validates and builds a ModelEntry.
func NewModelEntry(entry ModelEntry) (ModelEntry, error) {
	if entry.EntrypointBase == "" {
		return ModelEntry{}, NewStructuralError("entrypoint_base", "entrypoint base must be non-empty")
	}
	if !reImportPath.MatchString(entry.EntrypointBase) {
		return ModelEntry{}, NewStructuralError("entrypoint_base",
			fmt.Sprintf("malformed entrypoint base %q", entry.EntrypointBase))
	}
	if len(entry.Scenarios) == 0 {
		return ModelEntry{}, NewStructuralError("scenarios", "model must declare at least one scenario")
	}
	for _, s := range entry.Scenarios {
		if !reScenario.MatchString(s) {
			return ModelEntry{}, NewStructuralError("scenarios", fmt.Sprintf("malformed scenario %q", s))
		}
	}
	if len(entry.Parameters) == 0 {
		return ModelEntry{}, NewStructuralError("parameters", "model must declare at least one parameter")
	}
	if !IsDigestHex(entry.ModelDigest) {
		return ModelEntry{}, NewStructuralError("model_digest",
			fmt.Sprintf("model digest must be a %d-character hex string, got %q", DigestHexLen, entry.ModelDigest))
	}
	return entry, nil
}

// Entrypoints returns the canonical entrypoint text for every scenario.
func (m ModelEntry) Entrypoints() []string {
	out := make([]string, len(m.Scenarios))
	for i, s := range m.Scenarios {
		out[i] = m.EntrypointBase + "/" + s
	}
	return out
}

// BundleManifest is the executable surface of one resolved bundle: which
// models it contains and under which entrypoints they run.
type BundleManifest struct {
	BundleRef    string                `json:"bundle_ref"`
	BundleDigest string                `json:"bundle_digest"`
	Models       map[string]ModelEntry `json:"models"`
	Version      int                   `json:"version"`
}

// NewBundleManifest validates and builds a BundleManifest. Version
// defaults to 1.
func NewBundleManifest(m BundleManifest) (BundleManifest, error) {
	if m.BundleRef == "" {
		return BundleManifest{}, NewStructuralError("bundle_ref", "bundle_ref must be non-empty")
	}
	if !IsDigestHex(m.BundleDigest) {
		return BundleManifest{}, NewStructuralError("bundle_digest",
			fmt.Sprintf("bundle digest must be a %d-character hex string, got %q", DigestHexLen, m.BundleDigest))
	}
	if len(m.Models) == 0 {
		return BundleManifest{}, NewStructuralError("models", "manifest must declare at least one model")
	}
	for key, entry := range m.Models {
		validated, err := NewModelEntry(entry)
		if err != nil {
			return BundleManifest{}, fmt.Errorf("model %q: %w", key, err)
		}
		m.Models[key] = validated
	}
	if m.Version == 0 {
		m.Version = 1
	}
	return m, nil
}

// ModelByEntrypoint looks a model up by its entrypoint base. Returns
// false when no model matches.
func (m BundleManifest) ModelByEntrypoint(base string) (ModelEntry, bool) {
	for _, entry := range m.Models {
		if entry.EntrypointBase == base {
			return entry, true
		}
	}
	return ModelEntry{}, false
}

// AllEntrypoints returns every entrypoint the bundle serves, sorted.
func (m BundleManifest) AllEntrypoints() []string {
	var out []string
	for _, entry := range m.Models {
		out = append(out, entry.Entrypoints()...)
	}
	sort.Strings(out)
	return out
}
