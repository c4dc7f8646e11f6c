package contracts

import (
	"errors"
	"fmt"
)

// ContractError represents a validation failure detected at construction time.
//
// Contract errors include:
//   - Structural validation: unsupported parameter types, malformed
//     entrypoint text, malformed bundle references
//   - Range: seed outside the uint64 domain, non-finite loss on success
//   - Size limit: diagnostics payload at or above the serialized ceiling
//   - Provenance consistency: entrypoint digest fragment not matching the
//     bundle reference digest
//
// ContractError includes structured fields so infrastructure code can branch
// on the failure kind rather than string-matching messages.
type ContractError struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// Field names the offending field or parameter key, when known.
	Field string

	// Details contains additional context.
	Details map[string]string
}

// ErrorKind categorizes contract errors.
type ErrorKind string

const (
	// ErrKindStructural indicates a malformed or unsupported value shape.
	ErrKindStructural ErrorKind = "STRUCTURAL_VALIDATION"

	// ErrKindRange indicates a numeric value outside its legal domain.
	ErrKindRange ErrorKind = "RANGE"

	// ErrKindSizeLimit indicates a payload exceeding its serialized ceiling.
	ErrKindSizeLimit ErrorKind = "SIZE_LIMIT"

	// ErrKindProvenance indicates cross-field digest inconsistency between
	// an entrypoint and its bundle reference.
	ErrKindProvenance ErrorKind = "PROVENANCE_CONSISTENCY"
)

// Error implements the error interface.
func (e *ContractError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsStructuralError returns true if the error is a structural-validation error.
// Uses errors.As to handle wrapped errors.
func IsStructuralError(err error) bool {
	var ce *ContractError
	if errors.As(err, &ce) {
		return ce.Kind == ErrKindStructural
	}
	return false
}

// IsRangeError returns true if the error is a range error.
// Uses errors.As to handle wrapped errors.
func IsRangeError(err error) bool {
	var ce *ContractError
	if errors.As(err, &ce) {
		return ce.Kind == ErrKindRange
	}
	return false
}

// IsSizeLimitError returns true if the error is a size-limit error.
// Uses errors.As to handle wrapped errors.
func IsSizeLimitError(err error) bool {
	var ce *ContractError
	if errors.As(err, &ce) {
		return ce.Kind == ErrKindSizeLimit
	}
	return false
}

// IsProvenanceError returns true if the error is a provenance-consistency error.
// Uses errors.As to handle wrapped errors.
func IsProvenanceError(err error) bool {
	var ce *ContractError
	if errors.As(err, &ce) {
		return ce.Kind == ErrKindProvenance
	}
	return false
}

// NewStructuralError creates a ContractError for malformed input.
func NewStructuralError(field, message string) *ContractError {
	return &ContractError{
		Kind:    ErrKindStructural,
		Message: message,
		Field:   field,
	}
}

// NewRangeError creates a ContractError for an out-of-domain value.
func NewRangeError(field, message string) *ContractError {
	return &ContractError{
		Kind:    ErrKindRange,
		Message: message,
		Field:   field,
	}
}

// NewSizeLimitError creates a ContractError for an oversized payload.
func NewSizeLimitError(field string, size, limit int) *ContractError {
	return &ContractError{
		Kind:    ErrKindSizeLimit,
		Message: fmt.Sprintf("serialized payload is %d bytes, limit is %d", size, limit),
		Field:   field,
		Details: map[string]string{
			"size":  fmt.Sprintf("%d", size),
			"limit": fmt.Sprintf("%d", limit),
		},
	}
}

// NewProvenanceError creates a ContractError for digest inconsistency
// between an entrypoint fragment and a bundle reference.
func NewProvenanceError(message, entrypointDigest, bundleRef string) *ContractError {
	return &ContractError{
		Kind:    ErrKindProvenance,
		Message: message,
		Details: map[string]string{
			"entrypoint_digest": entrypointDigest,
			"bundle_ref":        bundleRef,
		},
	}
}
