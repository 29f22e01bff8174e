package engine

import (
	"errors"
	"fmt"
)

// IngestError represents a message rejected at the ingest boundary.
//
// The engine has no unrecoverable failure modes: everything past the ingest
// boundary degrades to a Skipped outcome or a fresh session rather than an
// error. IngestError therefore only ever describes the caller's message,
// never engine state.
type IngestError struct {
	// Code identifies the error category.
	Code IngestErrorCode

	// Message is a human-readable description.
	Message string

	// Field names the offending message field, when known.
	Field string
}

// IngestErrorCode categorizes ingest boundary errors.
type IngestErrorCode string

const (
	// ErrCodeMalformedMessage indicates a message missing required fields.
	ErrCodeMalformedMessage IngestErrorCode = "MALFORMED_MESSAGE"
)

// Error implements the error interface.
func (e *IngestError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsMalformed reports whether err is a malformed-message rejection.
func IsMalformed(err error) bool {
	var ie *IngestError
	return errors.As(err, &ie) && ie.Code == ErrCodeMalformedMessage
}

func malformed(field, message string) *IngestError {
	return &IngestError{Code: ErrCodeMalformedMessage, Message: message, Field: field}
}
