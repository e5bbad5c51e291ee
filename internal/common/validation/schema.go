// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"

	apperrors "lending-engine/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// MustCompile compiles a schema literal and panics when it is malformed.
func MustCompile(name, raw string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	return &Schema{name: name, schema: s}
}

// Check validates a raw JSON document and reports every violation.
func (s *Schema) Check(document []byte) (*ValidationResult, error) {
	return s.check(gojsonschema.NewBytesLoader(document))
}

// CheckValue validates an already-decoded value such as Zeebe job variables.
func (s *Schema) CheckValue(value interface{}) (*ValidationResult, error) {
	return s.check(gojsonschema.NewGoLoader(value))
}

func (s *Schema) check(loader gojsonschema.JSONLoader) (*ValidationResult, error) {
	result, err := s.schema.Validate(loader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// Validate returns a VALIDATION_FAILED error listing every violation, or nil.
func (s *Schema) Validate(document []byte) error {
	result, err := s.Check(document)
	return s.toError(result, err)
}

// ValidateValue is Validate for decoded values.
func (s *Schema) ValidateValue(value interface{}) error {
	result, err := s.CheckValue(value)
	return s.toError(result, err)
}

func (s *Schema) toError(result *ValidationResult, err error) error {
	if err != nil {
		return apperrors.NewValidationError(s.name+" is not valid JSON", err.Error())
	}
	if result.Valid {
		return nil
	}
	msgs := make([]string, len(result.Errors))
	for i, e := range result.Errors {
		msgs[i] = e.Field + ": " + e.Message
	}
	return apperrors.NewValidationError(s.name+" failed validation", strings.Join(msgs, "; "))
}
