package journey

import (
	"errors"
	"fmt"
)

// Error is a classified failure surfaced by the core.
//
// Errors include:
//   - Malformed batch: ingestion input missing required fields or badly typed
//   - Store unavailable: the underlying persistence failed
//
// "No journey yet" is not an error; queries return an empty result instead.
// A hand-off to an unknown step is not an error either; the graph builder
// handles it with a placeholder node.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Field locates the offending input, e.g. "customers[0].journey[2].step_id".
	Field string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes core errors.
type ErrorCode string

const (
	// ErrCodeMalformedBatch indicates the ingestion input is missing required fields.
	ErrCodeMalformedBatch ErrorCode = "MALFORMED_BATCH"

	// ErrCodeStoreUnavailable indicates a persistence failure.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field=%s)", msg, e.Field)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewMalformedBatch creates an Error for invalid ingestion input.
func NewMalformedBatch(field, message string) *Error {
	return &Error{
		Code:    ErrCodeMalformedBatch,
		Message: message,
		Field:   field,
	}
}

// StoreUnavailable wraps a persistence failure. The op names the store call
// that failed. Returns nil when err is nil.
func StoreUnavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    ErrCodeStoreUnavailable,
		Message: op,
		Err:     err,
	}
}

// IsMalformedBatch returns true if the error is a malformed batch error.
// Uses errors.As to handle wrapped errors.
func IsMalformedBatch(err error) bool {
	return hasCode(err, ErrCodeMalformedBatch)
}

// IsStoreUnavailable returns true if the error is a store failure.
// Uses errors.As to handle wrapped errors.
func IsStoreUnavailable(err error) bool {
	return hasCode(err, ErrCodeStoreUnavailable)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
