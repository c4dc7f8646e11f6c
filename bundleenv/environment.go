// Package bundleenv manages named deployment environments: which
// container registry bundles are pushed to and which blob storage holds
// their layers. Environments are small YAML documents under
// ~/.modelops/bundle-env, written 0600 because they can carry
// credentials.
package bundleenv

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEnvironment is the environment name used when the operator
// does not specify one.
const DefaultEnvironment = "dev"

// envDirName is the per-user directory holding environment documents.
const envDirName = ".modelops/bundle-env"

// Recognized providers. Validation is by membership, not behavior: this
// package stores configuration, it does not speak to any provider.
var (
	registryProviders = map[string]bool{
		"docker": true,
		"acr":    true,
		"ecr":    true,
		"gcr":    true,
		"ghcr":   true,
	}
	storageProviders = map[string]bool{
		"azure":   true,
		"s3":      true,
		"gcs":     true,
		"azurite": true,
		"minio":   true,
	}
)

// RegistryConfig names the container registry an environment pushes
// bundles to.
type RegistryConfig struct {
	Provider     string `yaml:"provider"`
	LoginServer  string `yaml:"login_server"`
	Username     string `yaml:"username,omitempty"`
	Password     string `yaml:"password,omitempty"`
	RequiresAuth bool   `yaml:"requires_auth"`
}

// StorageConfig names the blob storage an environment reads and writes
// bundle layers through.
type StorageConfig struct {
	Provider         string `yaml:"provider"`
	Container        string `yaml:"container"`
	ConnectionString string `yaml:"connection_string,omitempty"`
	Endpoint         string `yaml:"endpoint,omitempty"`
	AccessKey        string `yaml:"access_key,omitempty"`
	SecretKey        string `yaml:"secret_key,omitempty"`
}

// Environment is one named deployment target: a registry plus a storage
// account. Timestamp records when the document was last saved.
type Environment struct {
	Name      string         `yaml:"name"`
	Registry  RegistryConfig `yaml:"registry"`
	Storage   StorageConfig  `yaml:"storage"`
	Timestamp time.Time      `yaml:"timestamp,omitempty"`
}

// New validates and builds an Environment. Names are lowercased so
// "Dev" and "dev" are the same environment on every filesystem.
func New(name string, registry RegistryConfig, storage StorageConfig) (Environment, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Environment{}, fmt.Errorf("environment name must be non-empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return Environment{}, fmt.Errorf("environment name %q must not contain path separators", name)
	}
	if err := validateRegistry(registry); err != nil {
		return Environment{}, err
	}
	if err := validateStorage(storage); err != nil {
		return Environment{}, err
	}
	return Environment{Name: name, Registry: registry, Storage: storage}, nil
}

func validateRegistry(r RegistryConfig) error {
	if !registryProviders[r.Provider] {
		return fmt.Errorf("unknown registry provider %q, want one of %s",
			r.Provider, strings.Join(sortedProviderNames(registryProviders), ", "))
	}
	if r.LoginServer == "" {
		return fmt.Errorf("registry login_server must be non-empty")
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	if !storageProviders[s.Provider] {
		return fmt.Errorf("unknown storage provider %q, want one of %s",
			s.Provider, strings.Join(sortedProviderNames(storageProviders), ", "))
	}
	if s.Container == "" {
		return fmt.Errorf("storage container must be non-empty")
	}
	return nil
}

func sortedProviderNames(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultDir returns the per-user environment directory.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, filepath.FromSlash(envDirName)), nil
}

// SaveTo writes the environment document under dir with mode 0600.
// The directory is created if needed.
func (e Environment) SaveTo(dir string) error {
	if e.Name == "" {
		return fmt.Errorf("cannot save environment with empty name")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create environment directory: %w", err)
	}

	e.Timestamp = time.Now().UTC()
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("encode environment %s: %w", e.Name, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode environment %s: %w", e.Name, err)
	}

	// 0600: environment documents may carry credentials.
	path := filepath.Join(dir, e.Name+".yaml")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write environment %s: %w", e.Name, err)
	}
	return nil
}

// Save writes the environment document under the default directory.
func (e Environment) Save() error {
	dir, err := DefaultDir()
	if err != nil {
		return err
	}
	return e.SaveTo(dir)
}

// LoadFrom reads one named environment from dir. A missing document is
// an operator error, not a zero value: it names the provisioning step.
func LoadFrom(dir, name string) (Environment, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	path := filepath.Join(dir, name+".yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Environment{}, fmt.Errorf(
			"environment %q not found at %s: provision it first (moc env create)", name, path)
	}
	if err != nil {
		return Environment{}, fmt.Errorf("read environment %s: %w", name, err)
	}

	var e Environment
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&e); err != nil {
		return Environment{}, fmt.Errorf("parse environment %s: %w", name, err)
	}
	if e.Name == "" {
		e.Name = name
	}
	if err := validateRegistry(e.Registry); err != nil {
		return Environment{}, fmt.Errorf("environment %s: %w", name, err)
	}
	if err := validateStorage(e.Storage); err != nil {
		return Environment{}, fmt.Errorf("environment %s: %w", name, err)
	}
	return e, nil
}

// Load reads one named environment from the default directory.
func Load(name string) (Environment, error) {
	dir, err := DefaultDir()
	if err != nil {
		return Environment{}, err
	}
	return LoadFrom(dir, name)
}

// ListIn returns the names of every environment under dir, sorted. A
// missing directory means no environments, not an error.
func ListIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}

// ListEnvironments returns the names of every environment under the
// default directory, sorted.
func ListEnvironments() ([]string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return nil, err
	}
	return ListIn(dir)
}
