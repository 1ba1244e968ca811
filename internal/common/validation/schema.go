package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema.
type Schema struct {
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

// Compile parses a JSON schema document.
func Compile(schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// MustCompile is Compile for package-level schemas; it panics on a bad schema.
func MustCompile(schemaJSON string) *Schema {
	s, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateInput validates already-decoded variables, e.g. Zeebe job variables.
func (s *Schema) ValidateInput(input map[string]interface{}) *ValidationResult {
	return s.validate(gojsonschema.NewGoLoader(input))
}

// ValidateBytes validates a raw JSON document such as an HTTP request body.
func (s *Schema) ValidateBytes(doc []byte) *ValidationResult {
	return s.validate(gojsonschema.NewBytesLoader(doc))
}

func (s *Schema) validate(doc gojsonschema.JSONLoader) *ValidationResult {
	result, err := s.schema.Validate(doc)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "invalid_json",
			}},
		}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldOf(e),
			Message: e.Description(),
			Code:    e.Type(),
		})
	}
	return out
}

// fieldOf points required-property errors at the missing property instead of its parent.
func fieldOf(e gojsonschema.ResultError) string {
	field := e.Field()
	if e.Type() != "required" {
		return field
	}
	prop, ok := e.Details()["property"].(string)
	if !ok {
		return field
	}
	if field == "(root)" {
		return prop
	}
	return field + "." + prop
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}
