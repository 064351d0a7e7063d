package storage

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Error types
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"
)

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	// Fields maps payload field names to validation messages.
	Fields map[string][]string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, field := range slices.Sorted(maps.Keys(e.Fields)) {
			parts = append(parts, field+": "+strings.Join(e.Fields[field], ", "))
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound builds a not_found error for the event id.
func NotFound(id string) *Error {
	return &Error{Type: ErrNotFound, Message: fmt.Sprintf("event %q not found", id)}
}

// AlreadyExists builds an already_exists error for the event id.
func AlreadyExists(id string) *Error {
	return &Error{Type: ErrAlreadyExists, Message: fmt.Sprintf("event %q already exists", id)}
}

func isType(err error, t ErrorType) bool {
	var serr *Error
	return errors.As(err, &serr) && serr.Type == t
}

// IsNotFound reports whether err is a storage not_found error.
func IsNotFound(err error) bool { return isType(err, ErrNotFound) }

// IsAlreadyExists reports whether err is a storage already_exists error.
func IsAlreadyExists(err error) bool { return isType(err, ErrAlreadyExists) }

// IsInvalidInput reports whether err is a storage invalid_input error.
func IsInvalidInput(err error) bool { return isType(err, ErrInvalidInput) }
