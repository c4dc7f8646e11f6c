package contracts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// task.schema.json is the wire-shape contract for task documents. It gates
// field names and JSON value types only; grammars, ranges, and cross-field
// rules stay in the typed constructors so their error kinds and checking
// order remain authoritative.
//
//go:embed task.schema.json
var taskSchemaJSON string

var taskSchema = jsonschema.MustCompileString("task.schema.json", taskSchemaJSON)

// ValidateTaskDocument checks that raw is a structurally well-formed task
// document: a single JSON object with the required fields, no unknown
// fields, and scalar parameter values. Semantic validation is not run here;
// use ParseSimTask for the full pipeline.
func ValidateTaskDocument(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return NewStructuralError("", fmt.Sprintf("task document is not valid JSON: %v", err))
	}
	if err := dec.Decode(new(any)); err != io.EOF {
		return NewStructuralError("", "task document has trailing content after the JSON object")
	}
	if err := taskSchema.Validate(doc); err != nil {
		field, msg := schemaFailureDetail(err)
		return NewStructuralError(field, fmt.Sprintf("task document rejected by schema: %s", msg))
	}
	return nil
}

// ParseSimTask decodes an untrusted task document: the schema gate first,
// then the typed decode with its seed, bundle, and provenance checks.
func ParseSimTask(raw []byte) (SimTask, error) {
	if err := ValidateTaskDocument(raw); err != nil {
		return SimTask{}, err
	}
	var t SimTask
	if err := json.Unmarshal(raw, &t); err != nil {
		return SimTask{}, err
	}
	return t, nil
}

// schemaFailureDetail walks to the most specific cause so the error names
// the offending instance location rather than the document root.
func schemaFailureDetail(err error) (field, msg string) {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return "", err.Error()
	}
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	return verr.InstanceLocation, verr.Message
}
