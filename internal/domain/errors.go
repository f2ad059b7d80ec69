package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a conversation does not exist in the caller's collection.
var ErrNotFound = errors.New("not found")

// ValidationError reports input that was rejected before any external call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// GenerationError reports a failed or non-conformant model call.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// PublicationError reports a failed wiki publication. The message is shown to users verbatim.
type PublicationError struct {
	Err error
}

func (e *PublicationError) Error() string {
	return e.Err.Error()
}

func (e *PublicationError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed store read or write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsGeneration reports whether err is or wraps a GenerationError.
func IsGeneration(err error) bool {
	var g *GenerationError
	return errors.As(err, &g)
}

// IsPublication reports whether err is or wraps a PublicationError.
func IsPublication(err error) bool {
	var p *PublicationError
	return errors.As(err, &p)
}

// IsPersistence reports whether err is or wraps a PersistenceError.
func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}
