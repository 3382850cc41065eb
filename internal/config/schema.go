package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// SchemaError lists every violation of the config schema.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "config does not match schema: " + strings.Join(e.Violations, "; ")
}

// validateSchema checks a decoded config document against #Config.
// The definition is closed, so unknown keys are rejected too.
func validateSchema(raw map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	if raw == nil {
		raw = map[string]any{}
	}
	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError flattens a CUE error list into a SchemaError.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{Violations: []string{err.Error()}}
	}

	violations := make([]string, 0, len(errs))
	for _, e := range errs {
		violations = append(violations, errors.String(e))
	}
	return &SchemaError{Violations: violations}
}
