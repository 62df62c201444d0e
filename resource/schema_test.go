package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidateRejectsMissingRequiredField(t *testing.T) {
	s := Schema{Fields: []FieldSpec{{Name: "name", Type: FieldString, Required: true}}}
	err := s.Validate(map[string]any{})
	require.Error(t, err)

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
}

func TestSchemaValidateRejectsWrongType(t *testing.T) {
	s := Schema{Fields: []FieldSpec{{Name: "count", Type: FieldNumber}}}
	err := s.Validate(map[string]any{"count": "not-a-number"})
	assert.Error(t, err)
}

func TestSchemaValidateEnforcesValidatorRule(t *testing.T) {
	s := Schema{Fields: []FieldSpec{{Name: "sku", Type: FieldString, Rule: "min=3"}}}

	err := s.Validate(map[string]any{"sku": "ab"})
	assert.Error(t, err)

	err = s.Validate(map[string]any{"sku": "widget"})
	assert.NoError(t, err)
}

func TestSchemaValidateAllowsAbsentOptionalField(t *testing.T) {
	s := Schema{Fields: []FieldSpec{{Name: "nickname", Type: FieldString}}}
	assert.NoError(t, s.Validate(map[string]any{}))
}
