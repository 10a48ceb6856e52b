package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by every layer. The HTTP layer maps them to status codes.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeTransactionFailure = "TRANSACTION_FAILURE"
	CodeInvalidState       = "INVALID_STATE"
	CodeConflict           = "CONFLICT"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeUnauthorized       = "UNAUTHORIZED"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the wrapped lower-layer error, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches domain errors by code so sentinel comparisons work with errors.Is
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns a copy of the error carrying an extra detail entry
func (e *DomainError) WithDetail(key, value string) *DomainError {
	cp := *e
	cp.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError reports a rejected input
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// NewNotFoundError reports a missing resource scoped to the caller's tenant
func NewNotFoundError(resource, id string) *DomainError {
	return &DomainError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: map[string]string{"resource": resource, "id": id},
	}
}

// NewInvalidTransitionError reports an illegal status change, naming both states
func NewInvalidTransitionError(from, to string) *DomainError {
	return &DomainError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition rental from %s to %s", from, to),
		Details: map[string]string{"from": from, "to": to},
	}
}

// NewTransactionFailure wraps a persistence or ledger error that aborted a unit of work
func NewTransactionFailure(cause error) *DomainError {
	return &DomainError{
		Code:    CodeTransactionFailure,
		Message: "transaction failed and was rolled back",
		cause:   cause,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConflict, "Resource was modified by another process")
	ErrDuplicateRequest    = NewDomainError(CodeConflict, "Request with this idempotency key was already processed")
	ErrUnauthorized        = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
)

// HasCode reports whether err is a DomainError carrying code
func HasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// AsDomainError extracts the DomainError from err's chain
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func IsNotFound(err error) bool          { return HasCode(err, CodeNotFound) }
func IsValidation(err error) bool        { return HasCode(err, CodeValidation) }
func IsInvalidTransition(err error) bool { return HasCode(err, CodeInvalidTransition) }
func IsTransactionFailure(err error) bool {
	return HasCode(err, CodeTransactionFailure)
}
