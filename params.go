package contracts

import (
	"encoding/json"
	"fmt"
)

// ParameterSet is an immutable parameter mapping plus its derived
// content-addressed identifier.
//
// Construction computes the ID; afterwards neither the mapping nor the ID
// can change. The ID is independent of the order in which entries were
// supplied, so ParameterSet values may be compared and deduplicated by ID
// across processes.
type ParameterSet struct {
	params  Params
	paramID string
}

// NewParameterSet builds a ParameterSet from a typed mapping.
// Fails with a structural-validation error if any value cannot be
// canonically encoded (non-finite floats, nil scalars). An empty mapping is
// not fatal; callers that require parameters enforce that themselves.
func NewParameterSet(values Params) (ParameterSet, error) {
	frozen := values.Clone()
	id, err := ComputeParamID(frozen)
	if err != nil {
		return ParameterSet{}, err
	}
	return ParameterSet{params: frozen, paramID: id}, nil
}

// ParameterSetFromAny builds a ParameterSet from a plain map, as produced
// by JSON or YAML decoding. Nested containers, null, and unsupported types
// fail with a structural-validation error.
func ParameterSetFromAny(values map[string]any) (ParameterSet, error) {
	params, err := ParamsFromAny(values)
	if err != nil {
		return ParameterSet{}, err
	}
	return NewParameterSet(params)
}

// ID returns the content-addressed identifier: 64 lowercase hex characters,
// a pure function of the mapping's contents.
func (ps ParameterSet) ID() string {
	return ps.paramID
}

// Values returns a defensive copy of the parameter mapping.
func (ps ParameterSet) Values() Params {
	return ps.params.Clone()
}

// Get returns the named parameter value.
func (ps ParameterSet) Get(name string) (Scalar, bool) {
	v, ok := ps.params[name]
	return v, ok
}

// Len returns the number of parameters.
func (ps ParameterSet) Len() int {
	return len(ps.params)
}

// IsZero reports whether ps is the zero value (never constructed).
// A constructed ParameterSet always has a non-empty ID, even when empty.
func (ps ParameterSet) IsZero() bool {
	return ps.paramID == ""
}

// MarshalJSON serializes the mapping alone. The ID is derived, never
// trusted from the wire: decoding recomputes it.
func (ps ParameterSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(ps.params)
}

// UnmarshalJSON decodes a parameter object and recomputes the ID.
func (ps *ParameterSet) UnmarshalJSON(data []byte) error {
	var params Params
	if err := json.Unmarshal(data, &params); err != nil {
		return err
	}
	rebuilt, err := NewParameterSet(params)
	if err != nil {
		return fmt.Errorf("parameter set: %w", err)
	}
	*ps = rebuilt
	return nil
}
