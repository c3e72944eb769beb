package core

import (
	"errors"
	"fmt"
)

// Error codes shared across the engine. Codes classify failures into the
// recoverable/fatal taxonomy the workflow relies on.
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeRetrieval           = "RETRIEVAL_ERROR"
	ErrCodeRetrievalTimeout    = "RETRIEVAL_TIMEOUT"
	ErrCodeRerankUnavailable   = "RERANK_UNAVAILABLE"
	ErrCodeGeneration          = "GENERATION_ERROR"
	ErrCodeApprovalUnavailable = "APPROVAL_UNAVAILABLE"
	ErrCodeApprovalLimit       = "APPROVAL_LOOP_EXCEEDED"
)

// Error is the engine-wide error carrier. It wraps an underlying cause and
// tags it with a stable code so callers can branch without string matching.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return e.Code
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a coded error wrapping cause. Either message or cause may be
// empty, not both.
func NewError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code string) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}
