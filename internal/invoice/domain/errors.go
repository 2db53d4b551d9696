package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("not_found")

// Validation codes carried by FieldError.Code.
const (
	CodeRequired          = "required"
	CodeMaxLength         = "max_length"
	CodeMinValue          = "min_value"
	CodeMaxValue          = "max_value"
	CodeMaxDecimalPlaces  = "max_decimal_places"
	CodeInvalidChoice     = "invalid_choice"
	CodeInvalid           = "invalid"
	CodeUnique            = "unique"
	CodeUnknownLineItem   = "unknown_line_item"
	CodeDuplicateLineItem = "duplicate_line_item"
	CodeNotSupported      = "not_supported"
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError collects every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation error"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// Add records a failing field.
func (e *ValidationError) Add(field, code, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: message})
}

// OrNil returns e when it holds at least one field error.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, code, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Code: code, Message: message}}}
}

// UniquenessError reports a value colliding with an existing record.
type UniquenessError struct {
	Field string
	Value string
}

func (e *UniquenessError) Error() string {
	return fmt.Sprintf("%s must be unique: %q already exists", e.Field, e.Value)
}

func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

func IsUniquenessError(err error) bool {
	var uErr *UniquenessError
	return errors.As(err, &uErr)
}

// LineItemField builds the field path of a nested line item attribute.
func LineItemField(index int, field string) string {
	return fmt.Sprintf("details[%d].%s", index, field)
}
