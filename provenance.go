package contracts

import (
	"fmt"
	"sort"
	"strings"
)

// LeafKind classifies one input to a provenance root.
type LeafKind string

const (
	LeafParams    LeafKind = "params"
	LeafConfig    LeafKind = "config"
	LeafCode      LeafKind = "code"
	LeafScenario  LeafKind = "scenario"
	LeafSeed      LeafKind = "seed"
	LeafEnv       LeafKind = "env"
	LeafTargets   LeafKind = "targets"
	LeafOptimizer LeafKind = "optimizer"
)

var validLeafKinds = map[LeafKind]bool{
	LeafParams:    true,
	LeafConfig:    true,
	LeafCode:      true,
	LeafScenario:  true,
	LeafSeed:      true,
	LeafEnv:       true,
	LeafTargets:   true,
	LeafOptimizer: true,
}

// ProvenanceLeaf is one named, digested input to a provenance root.
// Two leaves with the same (kind, name) would be ambiguous under the
// root's sort, so callers must keep them unique.
type ProvenanceLeaf struct {
	Kind   LeafKind `json:"kind"`
	Name   string   `json:"name"`
	Digest string   `json:"digest"`
}

// NewProvenanceLeaf validates and builds a leaf. The digest must have the
// fixed 64-lowercase-hex identifier shape.
func NewProvenanceLeaf(kind LeafKind, name, digest string) (ProvenanceLeaf, error) {
	if !validLeafKinds[kind] {
		return ProvenanceLeaf{}, NewStructuralError("kind", fmt.Sprintf("unknown leaf kind %q", kind))
	}
	if name == "" {
		return ProvenanceLeaf{}, NewStructuralError("name", "leaf name must be non-empty")
	}
	if !IsDigestHex(digest) {
		return ProvenanceLeaf{}, NewStructuralError("digest",
			fmt.Sprintf("leaf digest must be %d lowercase hex characters, got %q", DigestHexLen, digest))
	}
	return ProvenanceLeaf{Kind: kind, Name: name, Digest: digest}, nil
}

// ComputeRoot merges leaves into one deterministic root digest.
// Leaves are sorted by (kind, name) so caller ordering never matters; the
// payload is canonical JSON of {"version": 1, "leaves": [...]} hashed
// under the provenance domain.
func ComputeRoot(leaves []ProvenanceLeaf) (string, error) {
	if len(leaves) == 0 {
		return "", NewStructuralError("leaves", "provenance root requires at least one leaf")
	}

	sorted := make([]ProvenanceLeaf, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		return sorted[i].Name < sorted[j].Name
	})

	encoded := make([]any, len(sorted))
	for i, leaf := range sorted {
		if _, err := NewProvenanceLeaf(leaf.Kind, leaf.Name, leaf.Digest); err != nil {
			return "", err
		}
		encoded[i] = map[string]any{
			"kind":   string(leaf.Kind),
			"name":   leaf.Name,
			"digest": leaf.Digest,
		}
	}

	canonical, err := marshalCanonicalJSON(map[string]any{
		"version": 1,
		"leaves":  encoded,
	})
	if err != nil {
		return "", fmt.Errorf("ComputeRoot: %w", err)
	}
	return hashWithDomain(DomainRoot, canonical), nil
}

// mustRoot is ComputeRoot for leaves built internally from validated
// tasks; an error here is a programming bug.
func mustRoot(leaves []ProvenanceLeaf) string {
	root, err := ComputeRoot(leaves)
	if err != nil {
		panic(err)
	}
	return root
}

// ComputeSimRoot derives the provenance root of a simulation task: the
// digest covering everything that determines its behavior. Code (bundle),
// parameters, seed, and scenario always contribute; config and env
// contribute when present.
//
// Two tasks with the same SimRoot are scientifically interchangeable.
func ComputeSimRoot(t SimTask) string {
	leaves := []ProvenanceLeaf{
		{Kind: LeafCode, Name: "bundle", Digest: mustPayloadDigest(map[string]any{"ref": t.BundleRef()})},
		{Kind: LeafParams, Name: "parameters", Digest: t.ParamID()},
		{Kind: LeafSeed, Name: "seed", Digest: seedDigest(t.Seed())},
		{Kind: LeafScenario, Name: "name", Digest: mustPayloadDigest(map[string]any{"name": t.Entrypoint().Scenario()})},
	}
	if cfg := t.Config(); cfg != nil {
		leaves = append(leaves, ProvenanceLeaf{Kind: LeafConfig, Name: "config", Digest: MustParamID(cfg)})
	}
	if env := t.Env(); env != nil {
		leaves = append(leaves, ProvenanceLeaf{Kind: LeafEnv, Name: "env", Digest: mustPayloadDigest(map[string]any{"env": env})})
	}
	return mustRoot(leaves)
}

func mustPayloadDigest(payload map[string]any) string {
	d, err := payloadDigest(payload)
	if err != nil {
		panic(err)
	}
	return d
}

// ComputeTaskID derives the content-addressed task identifier from the
// sim root, the canonical digest-free entrypoint, and the requested
// outputs ("*" when unset, else comma-joined sorted names). The legacy
// entrypoint digest fragment never contributes: it is a transport hint,
// not identity.
func ComputeTaskID(t SimTask) string {
	outputs := "*"
	if outs := t.Outputs(); outs != nil {
		outputs = strings.Join(outs, ",")
	}
	canonical, err := marshalCanonicalJSON(map[string]any{
		"sim_root":   t.SimRoot(),
		"entrypoint": t.Entrypoint().Canonical().String(),
		"outputs":    outputs,
	})
	if err != nil {
		panic(err)
	}
	return hashWithDomain(DomainTask, canonical)
}

// ComputeCalibRoot derives the provenance root of a calibration study from
// the digests of its inputs: the target data, the optimizer configuration,
// the sim roots it explores (order-insensitive), the calibration code, and
// the runtime environment fingerprint.
func ComputeCalibRoot(targetsDigest, optimizerDigest string, simRoots []string, calibCodeDigest, envDigest string) (string, error) {
	sorted := make([]string, len(simRoots))
	copy(sorted, simRoots)
	sort.Strings(sorted)
	for _, root := range sorted {
		if !IsDigestHex(root) {
			return "", NewStructuralError("sim_roots",
				fmt.Sprintf("sim root must be %d lowercase hex characters, got %q", DigestHexLen, root))
		}
	}
	rootsDigest, err := payloadDigest(map[string]any{"sim_roots": sorted})
	if err != nil {
		return "", err
	}

	leaves := make([]ProvenanceLeaf, 0, 5)
	for _, spec := range []struct {
		kind   LeafKind
		name   string
		digest string
	}{
		{LeafTargets, "data", targetsDigest},
		{LeafOptimizer, "config", optimizerDigest},
		{LeafCode, "sim_roots", rootsDigest},
		{LeafCode, "calib", calibCodeDigest},
		{LeafEnv, "runtime", envDigest},
	} {
		leaf, err := NewProvenanceLeaf(spec.kind, spec.name, spec.digest)
		if err != nil {
			return "", err
		}
		leaves = append(leaves, leaf)
	}
	return ComputeRoot(leaves)
}

// Shard splits a digest into a directory fan-out path: Shard("abcd...", 2, 2)
// returns "ab/cd/abcd...". Storage backends use it to keep directory sizes
// bounded.
func Shard(digest string, depth, width int) (string, error) {
	if depth < 1 || width < 1 {
		return "", NewStructuralError("shard", "depth and width must be at least 1")
	}
	if len(digest) < depth*width {
		return "", NewStructuralError("digest",
			fmt.Sprintf("digest too short for sharding: need %d characters, have %d", depth*width, len(digest)))
	}
	parts := make([]string, 0, depth+1)
	for i := 0; i < depth; i++ {
		parts = append(parts, digest[i*width:(i+1)*width])
	}
	parts = append(parts, digest)
	return strings.Join(parts, "/"), nil
}
