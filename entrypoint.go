package contracts

import (
	"fmt"
	"regexp"
	"strings"
)

// DigestPrefixLen is the length of the digest fragment in the legacy
// entrypoint form import.path.Class/scenario@digest12.
const DigestPrefixLen = 12

var (
	// Import path: dotted identifiers ending in a class-like segment.
	// At least one dot - a bare module with no class cannot be executed.
	reImportPath = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*\.[A-Za-z_][A-Za-z0-9_]*$`)

	// Scenario: DNS-label-like, 1-64 chars, no leading/trailing separator.
	reScenario = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-_.]{0,62}[a-z0-9])?$`)
)

// Entrypoint names which simulation model class and scenario to execute.
//
// Canonical text form is digest-free: "import.path.Class/scenario".
// The legacy form "import.path.Class/scenario@digest12" is accepted on
// parse; the fragment is retained raw so task validation can cross-check
// it against the bundle reference, and Canonical() strips it.
//
// Immutable after parsing.
type Entrypoint struct {
	importPath string
	scenario   string
	digest     string
}

// ParseEntrypoint parses entrypoint text.
//
// The text splits on the LAST '/': the left side is the import path, the
// right side is scenario[@digest]. Fails with a structural-validation
// error on a missing '/', an empty or malformed import path, or an empty
// or malformed scenario. A digest fragment is validated only for
// non-emptiness here; length and bundle consistency are checked where a
// bundle reference is in scope.
func ParseEntrypoint(text string) (Entrypoint, error) {
	rest := text
	digest := ""
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		digest = rest[at+1:]
		rest = rest[:at]
		if digest == "" {
			return Entrypoint{}, NewStructuralError("entrypoint",
				fmt.Sprintf("empty digest fragment in %q", text))
		}
	}

	slash := strings.LastIndex(rest, "/")
	if slash < 0 {
		return Entrypoint{}, NewStructuralError("entrypoint",
			fmt.Sprintf("invalid entrypoint %q: expected import.path.Class/scenario", text))
	}

	importPath := rest[:slash]
	scenario := rest[slash+1:]
	if importPath == "" {
		return Entrypoint{}, NewStructuralError("entrypoint",
			fmt.Sprintf("empty import path in %q", text))
	}
	if scenario == "" {
		return Entrypoint{}, NewStructuralError("entrypoint",
			fmt.Sprintf("empty scenario in %q", text))
	}
	if !reImportPath.MatchString(importPath) {
		return Entrypoint{}, NewStructuralError("entrypoint",
			fmt.Sprintf("malformed import path %q: expected dotted identifiers ending in a class name", importPath))
	}
	if !reScenario.MatchString(scenario) {
		return Entrypoint{}, NewStructuralError("entrypoint",
			fmt.Sprintf("malformed scenario %q: expected lowercase name of 1-64 chars", scenario))
	}

	return Entrypoint{importPath: importPath, scenario: scenario, digest: digest}, nil
}

// FormatEntrypoint builds canonical digest-free entrypoint text from parts,
// validating both.
func FormatEntrypoint(importPath, scenario string) (string, error) {
	if !reImportPath.MatchString(importPath) {
		return "", NewStructuralError("import_path",
			fmt.Sprintf("malformed import path %q: expected dotted identifiers ending in a class name", importPath))
	}
	if !reScenario.MatchString(scenario) {
		return "", NewStructuralError("scenario",
			fmt.Sprintf("malformed scenario %q: expected lowercase name of 1-64 chars", scenario))
	}
	return importPath + "/" + scenario, nil
}

// ImportPath returns the dotted import path (left of the last '/').
func (e Entrypoint) ImportPath() string { return e.importPath }

// Scenario returns the scenario name.
func (e Entrypoint) Scenario() string { return e.scenario }

// Digest returns the raw legacy digest fragment, or "" for the canonical
// form.
func (e Entrypoint) Digest() string { return e.digest }

// HasDigest reports whether this entrypoint carries a legacy digest
// fragment.
func (e Entrypoint) HasDigest() bool { return e.digest != "" }

// Canonical returns the digest-free form of this entrypoint. The legacy
// fragment is a transport-level hint, not part of entrypoint identity.
func (e Entrypoint) Canonical() Entrypoint {
	return Entrypoint{importPath: e.importPath, scenario: e.scenario}
}

// String renders the entrypoint text. Round-trips exactly through
// ParseEntrypoint, including any digest fragment.
func (e Entrypoint) String() string {
	if e.digest != "" {
		return e.importPath + "/" + e.scenario + "@" + e.digest
	}
	return e.importPath + "/" + e.scenario
}

// IsZero reports whether e is the zero value (never parsed).
func (e Entrypoint) IsZero() bool {
	return e.importPath == "" && e.scenario == ""
}
