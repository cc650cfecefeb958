package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchemaValidator validates raw JSON documents against compiled schemas
type JSONSchemaValidator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewJSONSchemaValidator creates a new JSONSchemaValidator
func NewJSONSchemaValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// LoadSchema compiles schema and stores it under name
func (v *JSONSchemaValidator) LoadSchema(name, schema string) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	v.schemas[name] = compiled
	return nil
}

// Validate checks document against the named schema. Documents that do not
// match are reported as ErrValidation.
func (v *JSONSchemaValidator) Validate(name string, document []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("schema %s not found", name)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			messages = append(messages, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(messages, "; "))
	}

	return nil
}

// JSONSchemaBuilder builds flat object schemas
type JSONSchemaBuilder struct {
	schema     map[string]interface{}
	properties map[string]interface{}
	required   []string
}

// NewJSONSchemaBuilder creates a builder for an object that rejects unknown
// properties
func NewJSONSchemaBuilder(title string) *JSONSchemaBuilder {
	properties := map[string]interface{}{}
	return &JSONSchemaBuilder{
		schema: map[string]interface{}{
			"$schema":              "http://json-schema.org/draft-07/schema#",
			"title":                title,
			"type":                 "object",
			"additionalProperties": false,
			"properties":           properties,
		},
		properties: properties,
	}
}

// AddProperty adds a property with extra keywords such as minimum
func (b *JSONSchemaBuilder) AddProperty(name, propertyType string, required bool, keywords map[string]interface{}) *JSONSchemaBuilder {
	property := map[string]interface{}{"type": propertyType}
	for k, v := range keywords {
		property[k] = v
	}
	b.properties[name] = property

	if required {
		b.required = append(b.required, name)
	}
	return b
}

// AddStringProperty adds a string property to the schema
func (b *JSONSchemaBuilder) AddStringProperty(name string, required bool) *JSONSchemaBuilder {
	return b.AddProperty(name, "string", required, nil)
}

// AddNumberProperty adds a number property to the schema
func (b *JSONSchemaBuilder) AddNumberProperty(name string, required bool) *JSONSchemaBuilder {
	return b.AddProperty(name, "number", required, nil)
}

// AddIntegerProperty adds an integer property to the schema
func (b *JSONSchemaBuilder) AddIntegerProperty(name string, required bool) *JSONSchemaBuilder {
	return b.AddProperty(name, "integer", required, nil)
}

// Build returns the JSON schema as a string
func (b *JSONSchemaBuilder) Build() (string, error) {
	if len(b.required) > 0 {
		b.schema["required"] = b.required
	}

	jsonBytes, err := json.MarshalIndent(b.schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}
	return string(jsonBytes), nil
}
