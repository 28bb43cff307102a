package errors

import (
	"fmt"
	"strings"
)

// ValidationError represents a field-specific validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Validator collects field errors and turns them into a single AppError
type Validator struct {
	prefix string
	parent *Validator
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// Nested returns a validator that records into v with every field prefixed by name.
func (v *Validator) Nested(name string) *Validator {
	return &Validator{prefix: v.field(name), parent: v}
}

func (v *Validator) root() *Validator {
	for v.parent != nil {
		v = v.parent
	}
	return v
}

func (v *Validator) field(name string) string {
	if v.prefix == "" {
		return name
	}
	return v.prefix + "." + name
}

// AddError adds a validation error
func (v *Validator) AddError(field, rule, message string, value ...interface{}) {
	var valueStr string
	if len(value) > 0 {
		valueStr = fmt.Sprintf("%v", value[0])
	}

	root := v.root()
	root.errors = append(root.errors, ValidationError{
		Field:   v.field(field),
		Value:   valueStr,
		Rule:    rule,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.root().errors) > 0
}

// Fields returns the names of all fields that failed
func (v *Validator) Fields() []string {
	var names []string
	for _, e := range v.root().errors {
		names = append(names, e.Field)
	}
	return names
}

// ToAppError converts validation errors to an AppError
func (v *Validator) ToAppError() *AppError {
	return v.ToAppErrorWithCode(ErrValidationFailed, "Validation failed")
}

// ToAppErrorWithCode converts validation errors to an AppError with the given code
func (v *Validator) ToAppErrorWithCode(code ErrorCode, message string) *AppError {
	if !v.HasErrors() {
		return nil
	}

	var messages []string
	for _, err := range v.root().errors {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}

	appErr := NewError(code, message)
	appErr.Details = strings.Join(messages, "; ")
	_ = appErr.WithContext("validation_errors", v.root().errors)

	return appErr
}

// RequiredField validates that a field is not empty
func (v *Validator) RequiredField(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "required", "Field is required", value)
	}
	return v
}

// RequiredPositive validates that an identifier is present and positive
func (v *Validator) RequiredPositive(field string, value int64) *Validator {
	if value <= 0 {
		v.AddError(field, "required", "Field is required", value)
	}
	return v
}

// RequiredObject validates that a nested object was present in the payload
func (v *Validator) RequiredObject(field string, present bool) *Validator {
	if !present {
		v.AddError(field, "required", "Object is required")
	}
	return v
}
