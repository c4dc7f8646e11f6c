package registry

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// The schema context is shared between compiling the embedded schema and
// encoding documents: CUE values can only unify within one context.
var (
	schemaCtx      = cuecontext.New()
	registrySchema = mustCompileSchema()
)

func mustCompileSchema() cue.Value {
	v := schemaCtx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Registry"))
	if err := v.Err(); err != nil {
		panic(fmt.Sprintf("registry: embedded schema does not compile: %v", err))
	}
	return v
}

// Lint checks a raw YAML registry document against the embedded CUE
// schema. Returns one ValidationError per violation; nil means the
// document's shape is acceptable. Semantic checks (files on disk, digest
// freshness) are Validate's job.
func Lint(raw []byte) []ValidationError {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return []ValidationError{{
			Field:   "document",
			Message: fmt.Sprintf("not valid YAML: %v", err),
			Code:    ErrSchemaViolation,
		}}
	}
	if doc == nil {
		return []ValidationError{{
			Field:   "document",
			Message: "document is empty",
			Code:    ErrSchemaViolation,
		}}
	}

	value := schemaCtx.Encode(doc)
	if err := value.Err(); err != nil {
		return []ValidationError{{
			Field:   "document",
			Message: fmt.Sprintf("cannot encode document: %v", err),
			Code:    ErrSchemaViolation,
		}}
	}

	err := registrySchema.Unify(value).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs []ValidationError
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		errs = append(errs, ValidationError{
			Field:   strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
			Code:    ErrSchemaViolation,
		})
	}
	return errs
}

// LintAndParse runs the schema gate, then decodes. The returned registry
// is nil whenever lint errors are present.
func LintAndParse(raw []byte) (*Registry, []ValidationError) {
	if errs := Lint(raw); len(errs) > 0 {
		return nil, errs
	}
	r, err := Parse(raw)
	if err != nil {
		return nil, []ValidationError{{
			Field:   "document",
			Message: err.Error(),
			Code:    ErrSchemaViolation,
		}}
	}
	return r, nil
}
