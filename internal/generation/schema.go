// Package generation invokes an external generative model with a declared input shape and a
// required output shape, and returns records that conform to the output shape.
package generation

import (
	"strings"
	"unicode/utf8"

	"github.com/ashureev/analystai/internal/domain"
)

// Record is a flat set of named text values matching a Shape.
type Record map[string]string

// Field declares one text field of a Shape.
type Field struct {
	Name        string
	Description string
	// MinLength is the minimum rune count accepted for input fields. Zero means non-empty.
	MinLength int
	// Message overrides the validation message reported when the field is rejected.
	Message string
}

// Shape declares the fields of an input or output record. Every field is required text.
type Shape struct {
	Name   string
	Fields []Field
}

// Validate checks rec against s, reporting the first offending field.
func (s Shape) Validate(rec Record) error {
	for _, f := range s.Fields {
		value, ok := rec[f.Name]
		if !ok || strings.TrimSpace(value) == "" {
			return domain.NewValidationError(f.Name, f.message("is required"))
		}
		if f.MinLength > 0 && utf8.RuneCountInString(value) < f.MinLength {
			return domain.NewValidationError(f.Name, f.message("is too short"))
		}
	}
	return nil
}

func (f Field) message(fallback string) string {
	if f.Message != "" {
		return f.Message
	}
	return f.Name + " " + fallback
}

// JSONSchema renders s as a strict JSON schema object of required string properties.
func (s Shape) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := make([]any, 0, len(s.Fields))
	for _, f := range s.Fields {
		props[f.Name] = map[string]any{
			"type":        "string",
			"description": f.Description,
		}
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}
