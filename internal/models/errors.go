package models

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrEventNotFound   = notFound("event not found")
	ErrBookingNotFound = notFound("booking not found")
	ErrAccountNotFound = notFound("account not found")
	ErrPaymentNotFound = notFound("payment not found")
	ErrQRNotAssigned   = notFound("no QR code has been generated for this booking")

	ErrValidation = errors.New("validation failed")

	ErrConflict               = errors.New("conflict")
	ErrAlreadyBooked          = conflict("an active booking already exists for this event")
	ErrBookingNotPayable      = conflict("booking cannot accept payment in its current status")
	ErrBookingNotCancellable  = conflict("booking cannot be cancelled in its current status")
	ErrPaymentAlreadyVerified = conflict("payment has already been verified")
	ErrDuplicateAccount       = conflict("username or email already registered")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("forbidden")

	ErrTicketIDExhausted = errors.New("could not allocate a unique ticket id")
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func notFound(msg string) error { return &kindError{msg: msg, kind: ErrNotFound} }
func conflict(msg string) error { return &kindError{msg: msg, kind: ErrConflict} }

// ValidationError carries per-field messages and matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
