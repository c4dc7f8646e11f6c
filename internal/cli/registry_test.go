package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliRegistryYAML = `version: "1.0"
models:
  seir:
    entrypoint: "models.seir:SEIR"
    path: "src/models/seir.py"
    class_name: "SEIR"
    scenarios: ["baseline"]
    parameters: ["R0"]
    outputs: ["infections"]
targets:
  cases:
    path: "targets/cases.py"
    model_output: "infections"
    observation: "data/obs.csv"
`

// writeRegistryTree lays out a registry document plus every file it
// references, returning the document path.
func writeRegistryTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, rel := range []string{"src/models/seir.py", "targets/cases.py", "data/obs.csv"} {
		full := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("# placeholder\n"), 0o644))
	}
	path := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cliRegistryYAML), 0o644))
	return path
}

func TestRegistryLintValid(t *testing.T) {
	path := writeRegistryTree(t)

	rootOpts := &RootOptions{Format: "text"}
	out, _, err := execute(t, NewRegistryCommand(rootOpts), "lint", path)
	require.NoError(t, err)
	assert.Contains(t, out, "valid")
}

func TestRegistryLintValidJSON(t *testing.T) {
	path := writeRegistryTree(t)

	rootOpts := &RootOptions{Format: "json"}
	out, _, err := execute(t, NewRegistryCommand(rootOpts), "lint", path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestRegistryLintMissingReferencedFile(t *testing.T) {
	path := writeRegistryTree(t)
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(path), "src/models/seir.py")))

	rootOpts := &RootOptions{Format: "text"}
	out, _, err := execute(t, NewRegistryCommand(rootOpts), "lint", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "seir.py")
}

func TestRegistryLintSchemaViolation(t *testing.T) {
	path := writeTempFile(t, "registry.yaml", "models: [unclosed")

	rootOpts := &RootOptions{Format: "text"}
	out, _, err := execute(t, NewRegistryCommand(rootOpts), "lint", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "lint failed")
}

func TestRegistryLintErrorsJSON(t *testing.T) {
	path := writeRegistryTree(t)
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(path), "data/obs.csv")))

	rootOpts := &RootOptions{Format: "json"}
	out, _, err := execute(t, NewRegistryCommand(rootOpts), "lint", path)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.NotEmpty(t, resp.Error.Code)
}

func TestRegistryLintExplicitBase(t *testing.T) {
	// Document in one directory, referenced files under another.
	docPath := writeTempFile(t, "registry.yaml", cliRegistryYAML)

	base := t.TempDir()
	for _, rel := range []string{"src/models/seir.py", "targets/cases.py", "data/obs.csv"} {
		full := filepath.Join(base, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("# placeholder\n"), 0o644))
	}

	rootOpts := &RootOptions{Format: "text"}
	_, _, err := execute(t, NewRegistryCommand(rootOpts), "lint", docPath, "--base", base)
	require.NoError(t, err)
}
