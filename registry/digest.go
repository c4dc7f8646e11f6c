package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

// File digests use sha256 because bundle tooling addresses layers that
// way; content identity elsewhere in the system is BLAKE2b.
var reFileDigest = regexp.MustCompile(`^sha256:[a-f0-9]{64}$`)

// FileDigest streams a file through sha256 in 8 KiB chunks and returns
// the "sha256:<hex>" form.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 8192)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

// resolve joins a registry-relative path onto base unless it is already
// absolute.
func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// ComputeDigests fills the entry's model, data, and code digests from the
// working tree rooted at base. Missing files are skipped, not errors:
// CheckInvalidation reports them as "no digest stored" or "file missing".
func (m *ModelEntry) ComputeDigests(base string) error {
	if fileExists(base, m.Path) {
		digest, err := FileDigest(resolve(base, m.Path))
		if err != nil {
			return err
		}
		m.ModelDigest = digest
	}

	for _, paths := range []struct {
		files   []string
		digests *map[string]string
	}{
		{m.Data, &m.DataDigests},
		{m.Code, &m.CodeDigests},
	} {
		for _, p := range paths.files {
			if !fileExists(base, p) {
				continue
			}
			digest, err := FileDigest(resolve(base, p))
			if err != nil {
				return err
			}
			if *paths.digests == nil {
				*paths.digests = make(map[string]string)
			}
			(*paths.digests)[p] = digest
		}
	}
	return nil
}

// ComputeDigest fills the target's digest from its scoring file.
func (t *TargetEntry) ComputeDigest(base string) error {
	if !fileExists(base, t.Path) {
		return nil
	}
	digest, err := FileDigest(resolve(base, t.Path))
	if err != nil {
		return err
	}
	t.TargetDigest = digest
	return nil
}

// ComputeDigests refreshes digests for every model and target in place.
func (r *Registry) ComputeDigests(base string) error {
	for _, id := range sortedKeys(r.Models) {
		m := r.Models[id]
		if err := m.ComputeDigests(base); err != nil {
			return fmt.Errorf("model %s: %w", id, err)
		}
		r.Models[id] = m
	}
	for _, id := range sortedKeys(r.Targets) {
		t := r.Targets[id]
		if err := t.ComputeDigest(base); err != nil {
			return fmt.Errorf("target %s: %w", id, err)
		}
		r.Targets[id] = t
	}
	return nil
}

// CheckInvalidation compares the entry's stored digests against the
// working tree and describes every difference. An empty result means
// nothing the entry depends on has changed since digests were computed.
func (m ModelEntry) CheckInvalidation(base string) ([]string, error) {
	var changes []string

	if m.Path != "" && m.ModelDigest != "" {
		switch current, err := digestIfPresent(base, m.Path); {
		case err != nil:
			return nil, err
		case current == "":
			changes = append(changes, fmt.Sprintf("MODEL %s: file missing", m.Path))
		case current != m.ModelDigest:
			changes = append(changes, fmt.Sprintf("MODEL %s: content changed", m.Path))
		}
	}

	for _, p := range m.Data {
		change, err := checkDependency("DATA", base, p, m.DataDigests[p])
		if err != nil {
			return nil, err
		}
		if change != "" {
			changes = append(changes, change)
		}
	}
	for _, p := range m.Code {
		change, err := checkDependency("CODE", base, p, m.CodeDigests[p])
		if err != nil {
			return nil, err
		}
		if change != "" {
			changes = append(changes, change)
		}
	}

	return changes, nil
}

// CheckInvalidation aggregates per-model changes across the registry,
// keyed by model ID. Models with no changes are omitted.
func (r *Registry) CheckInvalidation(base string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, id := range sortedKeys(r.Models) {
		changes, err := r.Models[id].CheckInvalidation(base)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", id, err)
		}
		if len(changes) > 0 {
			out[id] = changes
		}
	}
	return out, nil
}

// checkDependency classifies one dependency: unchanged (empty string),
// changed, missing, or never digested.
func checkDependency(kind, base, path, stored string) (string, error) {
	if stored == "" {
		return fmt.Sprintf("%s %s: no digest stored", kind, path), nil
	}
	current, err := digestIfPresent(base, path)
	if err != nil {
		return "", err
	}
	if current == "" {
		return fmt.Sprintf("%s %s: file missing", kind, path), nil
	}
	if current != stored {
		return fmt.Sprintf("%s %s: content changed", kind, path), nil
	}
	return "", nil
}

// digestIfPresent returns the file's digest, or "" when the file does not
// exist.
func digestIfPresent(base, path string) (string, error) {
	if !fileExists(base, path) {
		return "", nil
	}
	return FileDigest(resolve(base, path))
}
