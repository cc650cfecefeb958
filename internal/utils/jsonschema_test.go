package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSchemaValidator(t *testing.T) {
	schema, err := NewJSONSchemaBuilder("reading").
		AddProperty("id", "integer", true, map[string]interface{}{"minimum": 1}).
		AddNumberProperty("value", true).
		AddStringProperty("note", false).
		Build()
	require.NoError(t, err)

	v := NewJSONSchemaValidator()
	require.NoError(t, v.LoadSchema("reading", schema))

	assert.NoError(t, v.Validate("reading", []byte(`{"id": 3, "value": 1.5}`)))
	assert.NoError(t, v.Validate("reading", []byte(`{"id": 3, "value": 1, "note": "ok"}`)))

	err = v.Validate("reading", []byte(`{"id": 0, "value": 1.5}`))
	assert.ErrorIs(t, err, ErrValidation)

	err = v.Validate("reading", []byte(`{"id": 3}`))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "value")

	assert.ErrorIs(t, v.Validate("reading", []byte(`{"id": 3, "value": 1, "extra": true}`)), ErrValidation)
	assert.ErrorIs(t, v.Validate("reading", []byte(`not json`)), ErrValidation)

	assert.Error(t, v.Validate("missing", []byte(`{}`)))
	assert.Error(t, v.LoadSchema("broken", `{"type": 12}`))
}
