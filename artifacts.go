package contracts

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Media types for bundle manifests and layers.
const (
	MediaTypeBundleManifest = "application/vnd.modelops.bundle.manifest+json"
	MediaTypeLayer          = "application/vnd.modelops.layer+json"
	MediaTypeExternalRef    = "application/vnd.modelops.external-ref+json"
	MediaTypeOCIManifest    = "application/vnd.oci.image.manifest.v1+json"
	MediaTypeOCIEmptyCfg    = "application/vnd.oci.empty.v1+json"
)

// InlineCap is the largest table artifact carried inline in a SimReturn.
// Larger outputs go through the CAS and travel by checksum only.
const InlineCap = 1 << 20

var (
	reSHA256Ref = regexp.MustCompile(`^sha256:[a-f0-9]{64}$`)
	reBundleName = regexp.MustCompile(`^[a-z0-9-/]+$`)
)

// TableArtifact is one named simulation output: either inline bytes (small
// results) or a checksum pointing into the CAS (large results). Opaque to
// the contract layer beyond its addressing fields.
type TableArtifact struct {
	Size     int64  `json:"size"`
	Inline   []byte `json:"inline,omitempty"`
	Checksum string `json:"checksum"`
}

// NewTableArtifact validates and builds a TableArtifact.
func NewTableArtifact(size int64, inline []byte, checksum string) (TableArtifact, error) {
	if size < 0 {
		return TableArtifact{}, NewRangeError("size", fmt.Sprintf("artifact size must be non-negative, got %d", size))
	}
	if !IsDigestHex(checksum) {
		return TableArtifact{}, NewStructuralError("checksum",
			fmt.Sprintf("checksum must be %d lowercase hex characters, got %q", DigestHexLen, checksum))
	}
	if inline != nil {
		if int64(len(inline)) != size {
			return TableArtifact{}, NewStructuralError("inline",
				fmt.Sprintf("inline payload is %d bytes but size says %d", len(inline), size))
		}
		if len(inline) > InlineCap {
			return TableArtifact{}, NewSizeLimitError("inline", len(inline), InlineCap)
		}
	}
	frozen := make([]byte, len(inline))
	copy(frozen, inline)
	if inline == nil {
		frozen = nil
	}
	return TableArtifact{Size: size, Inline: frozen, Checksum: checksum}, nil
}

// ErrorInfo describes why a run failed, in a transport-neutral shape.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// SimReturn is the outcome of executing one SimTask: the task and sim-root
// identifiers echoed back, plus the produced outputs keyed by name.
// Error is set when the run failed and Outputs may then be partial.
type SimReturn struct {
	TaskID  string                   `json:"task_id"`
	SimRoot string                   `json:"sim_root"`
	Outputs map[string]TableArtifact `json:"outputs,omitempty"`
	Error   *ErrorInfo               `json:"error,omitempty"`
}

// NewSimReturn validates and builds a SimReturn.
func NewSimReturn(taskID, simRoot string, outputs map[string]TableArtifact, errInfo *ErrorInfo) (SimReturn, error) {
	if !IsDigestHex(taskID) {
		return SimReturn{}, NewStructuralError("task_id",
			fmt.Sprintf("task_id must be %d lowercase hex characters, got %q", DigestHexLen, taskID))
	}
	if !IsDigestHex(simRoot) {
		return SimReturn{}, NewStructuralError("sim_root",
			fmt.Sprintf("sim_root must be %d lowercase hex characters, got %q", DigestHexLen, simRoot))
	}
	var frozen map[string]TableArtifact
	if outputs != nil {
		frozen = make(map[string]TableArtifact, len(outputs))
		for name, artifact := range outputs {
			if name == "" {
				return SimReturn{}, NewStructuralError("outputs", "output names must be non-empty")
			}
			frozen[name] = artifact
		}
	}
	var errCopy *ErrorInfo
	if errInfo != nil {
		c := *errInfo
		errCopy = &c
	}
	return SimReturn{TaskID: taskID, SimRoot: simRoot, Outputs: frozen, Error: errCopy}, nil
}

// Failed reports whether the run carried an error.
func (r SimReturn) Failed() bool { return r.Error != nil }

// BundleRef identifies a bundle by exactly one of:
//   - LocalPath (development builds)
//   - Digest (immutable content address)
//   - Name and Version (registry lookup)
//
// Resolution precedence when multiple could apply elsewhere in the system:
// local path, then digest, then name+version. Names normalize to
// lowercase.
type BundleRef struct {
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
	Digest    string `json:"digest,omitempty" yaml:"digest,omitempty"`
	LocalPath string `json:"local_path,omitempty" yaml:"local_path,omitempty"`

	// Role is an optional default-role hint for materialization.
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
}

// NewBundleRef validates a BundleRef, normalizing the name to lowercase.
func NewBundleRef(ref BundleRef) (BundleRef, error) {
	if ref.Name != "" {
		lowered := strings.ToLower(ref.Name)
		if !reBundleName.MatchString(lowered) {
			return BundleRef{}, NewStructuralError("name",
				"name must contain only lowercase letters, digits, hyphens, and slashes")
		}
		ref.Name = lowered
	}
	if ref.Digest != "" && !reSHA256Ref.MatchString(ref.Digest) {
		return BundleRef{}, NewStructuralError("digest",
			fmt.Sprintf("digest must match sha256:<64 lowercase hex>, got %q", ref.Digest))
	}

	choices := 0
	if ref.LocalPath != "" {
		choices++
	}
	if ref.Digest != "" {
		choices++
	}
	if ref.Name != "" && ref.Version != "" {
		choices++
	}
	if choices != 1 || (ref.Name != "") != (ref.Version != "") {
		return BundleRef{}, NewStructuralError("bundle_ref",
			"must provide exactly one of: local_path, digest, or name+version")
	}
	return ref, nil
}

// String renders a short human-readable form.
func (r BundleRef) String() string {
	switch {
	case r.Digest != "":
		return fmt.Sprintf("BundleRef(digest=%s...)", r.Digest[:12])
	case r.LocalPath != "":
		return fmt.Sprintf("BundleRef(local_path=%s)", r.LocalPath)
	case r.Name != "" && r.Version != "":
		return fmt.Sprintf("BundleRef(%s:%s)", r.Name, r.Version)
	default:
		return "BundleRef(empty)"
	}
}

// UnmarshalJSON decodes and validates a BundleRef.
func (r *BundleRef) UnmarshalJSON(data []byte) error {
	type plain BundleRef
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewStructuralError("bundle_ref", fmt.Sprintf("invalid bundle ref document: %v", err))
	}
	validated, err := NewBundleRef(BundleRef(raw))
	if err != nil {
		return err
	}
	*r = validated
	return nil
}

// ResolvedBundle is the result of bundle resolution: the original
// reference plus the content addresses of everything materialization
// needs.
type ResolvedBundle struct {
	Ref            BundleRef           `json:"ref"`
	ManifestDigest string              `json:"manifest_digest"`
	MediaType      string              `json:"media_type"`
	Roles          map[string][]string `json:"roles"`
	Layers         []string            `json:"layers"`
	ExternalIndex  bool                `json:"external_index_present"`
	TotalSize      int64               `json:"total_size"`
	CacheDir       string              `json:"cache_dir,omitempty"`
}

// NewResolvedBundle validates a ResolvedBundle. Role and layer names share
// the bundle-name grammar; every role must reference at least one layer.
func NewResolvedBundle(rb ResolvedBundle) (ResolvedBundle, error) {
	if _, err := NewBundleRef(rb.Ref); err != nil {
		return ResolvedBundle{}, err
	}
	if !reSHA256Ref.MatchString(rb.ManifestDigest) {
		return ResolvedBundle{}, NewStructuralError("manifest_digest",
			fmt.Sprintf("manifest digest must match sha256:<64 lowercase hex>, got %q", rb.ManifestDigest))
	}
	if rb.MediaType == "" {
		rb.MediaType = MediaTypeBundleManifest
	}
	if rb.TotalSize < 0 {
		return ResolvedBundle{}, NewRangeError("total_size",
			fmt.Sprintf("total size must be non-negative, got %d", rb.TotalSize))
	}
	for role, layers := range rb.Roles {
		if role == "" || !reBundleName.MatchString(role) {
			return ResolvedBundle{}, NewStructuralError("roles", fmt.Sprintf("invalid role name %q", role))
		}
		if len(layers) == 0 {
			return ResolvedBundle{}, NewStructuralError("roles",
				fmt.Sprintf("role %q must reference at least one layer", role))
		}
		for _, layer := range layers {
			if layer == "" || !reBundleName.MatchString(layer) {
				return ResolvedBundle{}, NewStructuralError("roles",
					fmt.Sprintf("invalid layer name %q in role %q", layer, role))
			}
		}
	}
	for _, layer := range rb.Layers {
		if layer == "" || !reBundleName.MatchString(layer) {
			return ResolvedBundle{}, NewStructuralError("layers", fmt.Sprintf("invalid layer name %q", layer))
		}
	}
	return rb, nil
}

// RoleLayers returns the layer names a role references. Unknown roles
// error with the available role names, sorted.
func (rb ResolvedBundle) RoleLayers(role string) ([]string, error) {
	layers, ok := rb.Roles[role]
	if !ok {
		available := make([]string, 0, len(rb.Roles))
		for r := range rb.Roles {
			available = append(available, r)
		}
		sort.Strings(available)
		return nil, NewStructuralError("role",
			fmt.Sprintf("role %q not found, available roles: %s", role, strings.Join(available, ", ")))
	}
	out := make([]string, len(layers))
	copy(out, layers)
	return out, nil
}
