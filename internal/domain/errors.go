package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates missing or rejected credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates valid credentials without the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput indicates a request rejected before reaching the backend.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError lists the reasons a request was rejected. It matches
// ErrInvalidInput under errors.Is.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return ErrInvalidInput.Error()
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Invalid builds a ValidationError from messages.
func Invalid(messages ...string) error {
	return &ValidationError{Messages: messages}
}
