package contracts

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// TrialStatus is the terminal outcome of one evaluated parameter set.
type TrialStatus string

const (
	// TrialCompleted means the simulation ran and produced a usable loss.
	TrialCompleted TrialStatus = "completed"

	// TrialFailed means the simulation terminated without a usable loss.
	TrialFailed TrialStatus = "failed"

	// TrialTimeout means the simulation exceeded its time budget.
	TrialTimeout TrialStatus = "timeout"
)

// ParseTrialStatus normalizes status text from the wire. The legacy alias
// "ok" maps to "completed" here and only here - core logic never sees the
// old name. Matching is case-insensitive; unknown statuses fail with a
// structural-validation error.
func ParseTrialStatus(s string) (TrialStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed":
		return TrialCompleted, nil
	case "ok": // pre-1.0 wire name for completed
		return TrialCompleted, nil
	case "failed":
		return TrialFailed, nil
	case "timeout":
		return TrialTimeout, nil
	default:
		return "", NewStructuralError("status", fmt.Sprintf("unknown trial status %q", s))
	}
}

// Success reports whether the status denotes a successful evaluation.
func (s TrialStatus) Success() bool {
	return s == TrialCompleted
}

// MaxDiagnosticsBytes is the hard ceiling on the serialized diagnostics
// payload. The serialized form must be strictly smaller: 65535 bytes pass,
// 65536 fail.
const MaxDiagnosticsBytes = 64 * 1024

// TrialResult is the terminal, immutable record of one evaluated parameter
// set. The ParamID is the join key back to the ParameterSet that produced
// it; the optimization side consumes results purely as values.
//
// Diagnostics are frozen at construction by keeping only their serialized
// form; every read decodes a fresh copy.
type TrialResult struct {
	paramID     string
	status      TrialStatus
	loss        float64
	diagnostics []byte
}

// NewTrialResult validates and builds a TrialResult.
//
// Checks, in order:
//   - paramID must have the fixed 64-lowercase-hex identifier shape. The
//     shape check is strict rather than deferred: a malformed join key
//     poisons every downstream ledger keyed by it.
//   - status must be one of the terminal statuses.
//   - on success, loss must be finite (NaN and infinities fail with a
//     range error; 0.0 and every finite value pass).
//   - diagnostics must serialize to strictly fewer than MaxDiagnosticsBytes
//     bytes of UTF-8 JSON, else a size-limit error.
func NewTrialResult(paramID string, status TrialStatus, loss float64, diagnostics map[string]any) (TrialResult, error) {
	if !IsDigestHex(paramID) {
		return TrialResult{}, NewStructuralError("param_id",
			fmt.Sprintf("param_id must be %d lowercase hex characters, got %q", DigestHexLen, paramID))
	}
	switch status {
	case TrialCompleted, TrialFailed, TrialTimeout:
	default:
		return TrialResult{}, NewStructuralError("status", fmt.Sprintf("unknown trial status %q", status))
	}
	if status.Success() && (math.IsNaN(loss) || math.IsInf(loss, 0)) {
		return TrialResult{}, NewRangeError("loss",
			fmt.Sprintf("loss must be finite when status is %s, got %v", status, loss))
	}

	serialized, err := marshalDiagnostics(diagnostics)
	if err != nil {
		return TrialResult{}, err
	}
	if len(serialized) >= MaxDiagnosticsBytes {
		return TrialResult{}, NewSizeLimitError("diagnostics", len(serialized), MaxDiagnosticsBytes)
	}

	return TrialResult{
		paramID:     paramID,
		status:      status,
		loss:        loss,
		diagnostics: serialized,
	}, nil
}

func marshalDiagnostics(diagnostics map[string]any) ([]byte, error) {
	if diagnostics == nil {
		return []byte("{}"), nil
	}
	serialized, err := json.Marshal(diagnostics)
	if err != nil {
		return nil, NewStructuralError("diagnostics",
			fmt.Sprintf("diagnostics must be JSON-serializable: %v", err))
	}
	return serialized, nil
}

// ParamID returns the parameter set identifier this result belongs to.
func (r TrialResult) ParamID() string { return r.paramID }

// Status returns the terminal status.
func (r TrialResult) Status() TrialStatus { return r.status }

// Loss returns the loss value. Only meaningful when Status().Success().
func (r TrialResult) Loss() float64 { return r.loss }

// Diagnostics decodes a fresh copy of the diagnostics payload.
func (r TrialResult) Diagnostics() map[string]any {
	if len(r.diagnostics) == 0 {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(r.diagnostics, &out); err != nil {
		// diagnostics were serialized by us at construction
		panic(fmt.Sprintf("corrupt diagnostics payload: %v", err))
	}
	return out
}

// DiagnosticsJSON returns the frozen serialized diagnostics payload.
func (r TrialResult) DiagnosticsJSON() []byte {
	out := make([]byte, len(r.diagnostics))
	copy(out, r.diagnostics)
	return out
}

// trialResultWire is the JSON shape of a TrialResult. Loss is a pointer so
// a failed trial's meaningless loss serializes as null instead of breaking
// on non-finite values.
type trialResultWire struct {
	ParamID     string          `json:"param_id"`
	Status      string          `json:"status"`
	Loss        *float64        `json:"loss"`
	Diagnostics json.RawMessage `json:"diagnostics,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r TrialResult) MarshalJSON() ([]byte, error) {
	var loss *float64
	if !math.IsNaN(r.loss) && !math.IsInf(r.loss, 0) {
		v := r.loss
		loss = &v
	}
	return json.Marshal(trialResultWire{
		ParamID:     r.paramID,
		Status:      string(r.status),
		Loss:        loss,
		Diagnostics: r.diagnostics,
	})
}

// UnmarshalJSON decodes and fully validates a result document, applying
// the legacy status alias.
func (r *TrialResult) UnmarshalJSON(data []byte) error {
	var wire trialResultWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return NewStructuralError("trial_result", fmt.Sprintf("invalid result document: %v", err))
	}

	status, err := ParseTrialStatus(wire.Status)
	if err != nil {
		return err
	}
	loss := math.NaN()
	if wire.Loss != nil {
		loss = *wire.Loss
	}
	if status.Success() && wire.Loss == nil {
		return NewRangeError("loss", "loss must be present and finite when status is completed")
	}

	var diagnostics map[string]any
	if len(wire.Diagnostics) > 0 {
		if err := json.Unmarshal(wire.Diagnostics, &diagnostics); err != nil {
			return NewStructuralError("diagnostics",
				fmt.Sprintf("diagnostics must be a JSON object: %v", err))
		}
	}

	rebuilt, err := NewTrialResult(wire.ParamID, status, loss, diagnostics)
	if err != nil {
		return err
	}
	*r = rebuilt
	return nil
}
