// Package resource implements the schema-typed, partition-indexed
// record runtime every other objectdb plugin is built on: insert,
// update, patch, conditional update, delete, get, list, query, page,
// plus the before-hook and post-mutation event machinery the queue,
// replication, and graph plugins subscribe to.
package resource

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var fieldValidator = validator.New()

// FieldType names the scalar/composite types a schema field can take.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldBool   FieldType = "bool"
	FieldObject FieldType = "object"
	FieldArray  FieldType = "array"
	FieldJSON   FieldType = "json"
)

// FieldSpec declares one schema attribute. Rule, when set, is a
// go-playground/validator tag (e.g. "min=1,max=255") checked against
// the raw value via validator.Var, on top of the Type/Required checks.
type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
	Rule     string
}

// Schema is the declared attribute set for a resource.
type Schema struct {
	Fields []FieldSpec
}

func (s Schema) fieldNames() map[string]FieldSpec {
	out := make(map[string]FieldSpec, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = f
	}
	return out
}

// Validate checks data against the schema: required fields must be
// present, and present fields must match their declared type.
func (s Schema) Validate(data map[string]any) error {
	for _, f := range s.Fields {
		v, present := data[f.Name]
		if !present {
			if f.Required {
				return &ValidationError{Field: f.Name, Reason: "required field missing"}
			}
			continue
		}
		if !typeMatches(f.Type, v) {
			return &ValidationError{Field: f.Name, Reason: fmt.Sprintf("expected %s", f.Type)}
		}
		if f.Rule != "" {
			if err := fieldValidator.Var(v, f.Rule); err != nil {
				return &ValidationError{Field: f.Name, Reason: err.Error()}
			}
		}
	}
	return nil
}

func typeMatches(t FieldType, v any) bool {
	if v == nil {
		return true
	}
	switch t {
	case FieldString:
		_, ok := v.(string)
		return ok
	case FieldNumber:
		switch v.(type) {
		case int, int64, float64, float32:
			return true
		}
		return false
	case FieldBool:
		_, ok := v.(bool)
		return ok
	case FieldObject:
		_, ok := v.(map[string]any)
		return ok
	case FieldArray:
		_, ok := v.([]any)
		return ok
	case FieldJSON:
		return true
	default:
		return true
	}
}

// ValidationError reports a schema mismatch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("resource: validation failed on %q: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource: %q/%s not found", e.Resource, e.ID)
}
