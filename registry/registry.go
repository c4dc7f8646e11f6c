package registry

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RegistryVersion is the document version this package reads and writes.
const RegistryVersion = "1.0"

// Registry entrypoints use "module.path:Class" notation, matching how the
// scientific side imports models. Distinct from the task entrypoint form
// "module.path.Class/scenario".
var reRegistryEntrypoint = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*:[A-Za-z_][A-Za-z0-9_]*$`)

// ModelEntry is one registered model: where it lives, what it can do, and
// which files it depends on. Digest maps are keyed by the dependency's
// registry-relative path.
type ModelEntry struct {
	Entrypoint string   `yaml:"entrypoint"`
	Path       string   `yaml:"path"`
	ClassName  string   `yaml:"class_name"`
	Scenarios  []string `yaml:"scenarios,omitempty"`
	Parameters []string `yaml:"parameters,omitempty"`
	Outputs    []string `yaml:"outputs,omitempty"`

	Data        []string          `yaml:"data,omitempty"`
	DataDigests map[string]string `yaml:"data_digests,omitempty"`

	Code        []string          `yaml:"code,omitempty"`
	CodeDigests map[string]string `yaml:"code_digests,omitempty"`

	ModelDigest string `yaml:"model_digest,omitempty"`
}

// TargetEntry is one registered calibration target: the scoring file, the
// model output it scores, and the observation data it scores against.
type TargetEntry struct {
	Path         string `yaml:"path"`
	ModelOutput  string `yaml:"model_output"`
	Observation  string `yaml:"observation"`
	TargetDigest string `yaml:"target_digest,omitempty"`
}

// Registry is the full model/target registry of one bundle.
type Registry struct {
	Version string                 `yaml:"version"`
	Models  map[string]ModelEntry  `yaml:"models"`
	Targets map[string]TargetEntry `yaml:"targets"`
}

// New returns an empty registry at the current document version.
func New() *Registry {
	return &Registry{
		Version: RegistryVersion,
		Models:  make(map[string]ModelEntry),
		Targets: make(map[string]TargetEntry),
	}
}

// DeriveEntrypoint builds registry entrypoint notation from a model file
// path: strip the source suffix and any leading "src/", turn path
// separators into dots, and append the class name after a colon.
//
//	src/models/sir.py + StochasticSIR → models.sir:StochasticSIR
func DeriveEntrypoint(path, className string) string {
	if strings.HasSuffix(path, ".py") {
		module := strings.TrimSuffix(path, ".py")
		module = strings.TrimPrefix(module, "src/")
		module = strings.ReplaceAll(module, "/", ".")
		return module + ":" + className
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return stem + ":" + className
}

// AddModel registers a model under modelID, deriving its entrypoint from
// the path and class name. Returns the entry as stored.
func (r *Registry) AddModel(modelID, path, className string, outputs, data, code []string) ModelEntry {
	entry := ModelEntry{
		Entrypoint: DeriveEntrypoint(path, className),
		Path:       path,
		ClassName:  className,
		Outputs:    outputs,
		Data:       data,
		Code:       code,
	}
	if r.Models == nil {
		r.Models = make(map[string]ModelEntry)
	}
	r.Models[modelID] = entry
	return entry
}

// AddTarget registers a calibration target under targetID.
func (r *Registry) AddTarget(targetID, path, modelOutput, observation string) TargetEntry {
	entry := TargetEntry{
		Path:        path,
		ModelOutput: modelOutput,
		Observation: observation,
	}
	if r.Targets == nil {
		r.Targets = make(map[string]TargetEntry)
	}
	r.Targets[targetID] = entry
	return entry
}

// AllDependencies returns every file the registry references, sorted and
// deduplicated: model files, data and code dependencies, target files,
// and observation data.
func (r *Registry) AllDependencies() []string {
	seen := make(map[string]struct{})
	for _, m := range r.Models {
		seen[m.Path] = struct{}{}
		for _, p := range m.Data {
			seen[p] = struct{}{}
		}
		for _, p := range m.Code {
			seen[p] = struct{}{}
		}
	}
	for _, t := range r.Targets {
		seen[t.Path] = struct{}{}
		seen[t.Observation] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Validate checks every entry against the working tree rooted at base.
// Collects all problems rather than failing fast; an empty slice means
// the registry is valid.
func (r *Registry) Validate(base string) []ValidationError {
	var errs []ValidationError

	modelIDs := sortedKeys(r.Models)
	for _, id := range modelIDs {
		m := r.Models[id]
		if !reRegistryEntrypoint.MatchString(m.Entrypoint) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("models.%s.entrypoint", id),
				Message: fmt.Sprintf("malformed entrypoint %q, want module.path:Class", m.Entrypoint),
				Code:    ErrModelEntrypoint,
			})
		}
		if !fileExists(base, m.Path) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("models.%s.path", id),
				Message: fmt.Sprintf("Model %s: file not found at %s", id, m.Path),
				Code:    ErrModelFileMissing,
			})
		}
		for _, p := range m.Data {
			if !fileExists(base, p) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("models.%s.data", id),
					Message: fmt.Sprintf("Model %s: data dependency not found at %s", id, p),
					Code:    ErrDataFileMissing,
				})
			}
		}
		for _, p := range m.Code {
			if !fileExists(base, p) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("models.%s.code", id),
					Message: fmt.Sprintf("Model %s: code dependency not found at %s", id, p),
					Code:    ErrCodeFileMissing,
				})
			}
		}
		errs = append(errs, validateDigests(fmt.Sprintf("models.%s", id), m)...)
	}

	targetIDs := sortedKeys(r.Targets)
	for _, id := range targetIDs {
		t := r.Targets[id]
		if !fileExists(base, t.Path) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("targets.%s.path", id),
				Message: fmt.Sprintf("Target %s: file not found at %s", id, t.Path),
				Code:    ErrTargetFileMissing,
			})
		}
		if !fileExists(base, t.Observation) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("targets.%s.observation", id),
				Message: fmt.Sprintf("Target %s: observation not found at %s", id, t.Observation),
				Code:    ErrObservationMissing,
			})
		}
		if t.TargetDigest != "" && !reFileDigest.MatchString(t.TargetDigest) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("targets.%s.target_digest", id),
				Message: fmt.Sprintf("malformed digest %q", t.TargetDigest),
				Code:    ErrDigestMalformed,
			})
		}
	}

	return errs
}

// validateDigests checks the digest format of everything an entry stores.
func validateDigests(field string, m ModelEntry) []ValidationError {
	var errs []ValidationError
	if m.ModelDigest != "" && !reFileDigest.MatchString(m.ModelDigest) {
		errs = append(errs, ValidationError{
			Field:   field + ".model_digest",
			Message: fmt.Sprintf("malformed digest %q", m.ModelDigest),
			Code:    ErrDigestMalformed,
		})
	}
	for _, digests := range []map[string]string{m.DataDigests, m.CodeDigests} {
		for _, path := range sortedKeys(digests) {
			if !reFileDigest.MatchString(digests[path]) {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("malformed digest %q for %s", digests[path], path),
					Code:    ErrDigestMalformed,
				})
			}
		}
	}
	return errs
}

// Save writes the registry as YAML.
func (r *Registry) Save(path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// Load reads a registry document. Unknown fields are rejected so typos in
// hand-edited documents surface instead of decoding to zero values.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return Parse(data)
}

// Parse decodes a registry document from raw YAML bytes.
func Parse(data []byte) (*Registry, error) {
	var r Registry
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if r.Version == "" {
		r.Version = RegistryVersion
	}
	if r.Models == nil {
		r.Models = make(map[string]ModelEntry)
	}
	if r.Targets == nil {
		r.Targets = make(map[string]TargetEntry)
	}
	return &r, nil
}

func fileExists(base, path string) bool {
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
