package contracts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Scalar is a sealed interface over the value types allowed in a parameter
// mapping. Only String, Int, Float, and Bool implement it.
// NO nested containers - parameter values are flat by contract.
type Scalar interface {
	scalar() // Sealed - only these types implement it
}

// String represents a text parameter value.
type String string

func (String) scalar() {}

// Int represents a 64-bit integer parameter value.
// Always int64, never a narrower width.
type Int int64

func (Int) scalar() {}

// Float represents a 64-bit IEEE-754 parameter value.
// NaN and infinities are rejected at validation and encoding boundaries.
type Float float64

func (Float) scalar() {}

// Bool represents a boolean parameter value.
type Bool bool

func (Bool) scalar() {}

// ScalarFromAny converts a plain Go value to a Scalar.
// Nested containers and null are rejected - parameter mappings are flat.
func ScalarFromAny(v any) (Scalar, error) {
	switch val := v.(type) {
	case nil:
		return nil, NewStructuralError("", "null is not a valid parameter value")
	case Scalar:
		return val, nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, NewRangeError("", fmt.Sprintf("integer %d out of int64 range", val))
		}
		return Int(val), nil
	case float32:
		return floatScalar(float64(val))
	case float64:
		return floatScalar(val)
	case bool:
		return Bool(val), nil
	case json.Number:
		return scalarFromNumber(val)
	case []any, map[string]any:
		return nil, NewStructuralError("", fmt.Sprintf("nested containers are not allowed in parameters: %T", v))
	default:
		return nil, NewStructuralError("", fmt.Sprintf("unsupported parameter type: %T", v))
	}
}

func floatScalar(f float64) (Scalar, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, NewStructuralError("", fmt.Sprintf("non-finite floats are not allowed in parameters: %v", f))
	}
	return Float(f), nil
}

// scalarFromNumber decodes a json.Number, preferring Int when the literal
// has no fractional or exponent part.
func scalarFromNumber(n json.Number) (Scalar, error) {
	s := string(n)
	if strings.ContainsAny(s, ".eE") {
		f, err := n.Float64()
		if err != nil {
			return nil, NewStructuralError("", fmt.Sprintf("invalid number literal: %s", s))
		}
		return floatScalar(f)
	}
	i, err := n.Int64()
	if err != nil {
		return nil, NewRangeError("", fmt.Sprintf("integer out of int64 range: %s", s))
	}
	return Int(i), nil
}

// MarshalScalar marshals a Scalar to JSON bytes.
// Uses type-switch dispatch so the static JSON form matches the dynamic type.
func MarshalScalar(v Scalar) ([]byte, error) {
	switch val := v.(type) {
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, NewStructuralError("", fmt.Sprintf("non-finite float cannot be serialized: %v", f))
		}
		return json.Marshal(f)
	case Bool:
		return json.Marshal(bool(val))
	default:
		return nil, NewStructuralError("", fmt.Sprintf("unknown Scalar type: %T", v))
	}
}

// UnmarshalScalar deserializes JSON into a Scalar with strict validation.
// Rejects null, arrays, and objects - only string/int/float/bool allowed.
func UnmarshalScalar(data []byte) (Scalar, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, NewStructuralError("", fmt.Sprintf("invalid JSON value: %v", err))
	}
	return ScalarFromAny(raw)
}

// Params is a flat mapping from parameter name to Scalar value.
// Use SortedKeys() for deterministic iteration.
type Params map[string]Scalar

// SortedKeys returns the parameter names in byte-wise lexicographic order,
// the ordering the canonical encoder uses.
func (p Params) SortedKeys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy. Scalars are immutable, so a shallow copy is
// a full defensive copy.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ParamsFromAny converts a plain map decoded from JSON or YAML into Params.
// Any nested container or unsupported type fails with a structural error.
func ParamsFromAny(m map[string]any) (Params, error) {
	out := make(Params, len(m))
	for k, v := range m {
		sv, err := ScalarFromAny(v)
		if err != nil {
			return nil, withField(err, k)
		}
		out[k] = sv
	}
	return out, nil
}

// withField attaches a field name to a ContractError that was raised without
// one. Non-contract errors pass through unchanged.
func withField(err error, field string) error {
	var ce *ContractError
	if errors.As(err, &ce) && ce.Field == "" {
		return &ContractError{Kind: ce.Kind, Message: ce.Message, Field: field, Details: ce.Details}
	}
	return fmt.Errorf("%s: %w", field, err)
}

// MarshalJSON implements json.Marshaler for Params with sorted keys.
// NOTE: This is the wire form, not the canonical encoding - use
// EncodeParams for content-addressed identity.
func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range p.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalScalar(p[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Params.
// Rejects nested containers and null values.
func (p *Params) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewStructuralError("", fmt.Sprintf("parameters must be a JSON object: %v", err))
	}

	out := make(Params, len(raw))
	for k, v := range raw {
		sv, err := UnmarshalScalar(v)
		if err != nil {
			return fmt.Errorf("parameter %q: %w", k, err)
		}
		out[k] = sv
	}
	*p = out
	return nil
}
