package sequence

import (
	"errors"
	"fmt"

	"github.com/erp/docnumber/internal/domain/shared"
)

// Error codes carried by the sequence error types. They line up with the
// codes the HTTP layer already maps to status codes.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeState        = "INVALID_STATE"
	CodeConcurrency  = "CONCURRENCY_CONFLICT"
	CodeTenantConfig = "TENANT_CONFIG"
)

// ErrSequenceNotFound is returned when no sequence matches a lookup
var ErrSequenceNotFound = shared.NewDomainError("NOT_FOUND", "Sequence not found")

// ValidationError reports a malformed pattern, an out-of-range fiscal year
// or invalid allocation input.
type ValidationError struct {
	err *shared.DomainError
}

// NewValidationError creates a ValidationError with a formatted message
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{err: shared.NewDomainError(CodeValidation, fmt.Sprintf(format, args...))}
}

func (e *ValidationError) Error() string { return e.err.Message }
func (e *ValidationError) Unwrap() error { return e.err }

// StateError reports an operation that the current state of a sequence or
// issued number does not allow.
type StateError struct {
	err *shared.DomainError
}

// NewStateError creates a StateError with a formatted message
func NewStateError(format string, args ...any) *StateError {
	return &StateError{err: shared.NewDomainError(CodeState, fmt.Sprintf(format, args...))}
}

func (e *StateError) Error() string { return e.err.Message }
func (e *StateError) Unwrap() error { return e.err }

// ConcurrencyError reports that the sequence lock could not be acquired in
// time. The whole allocation may be attempted again.
type ConcurrencyError struct {
	err   *shared.DomainError
	cause error
}

// NewConcurrencyError wraps the store-level cause of a lock failure
func NewConcurrencyError(cause error) *ConcurrencyError {
	msg := "Sequence is locked by another allocation, retry the operation"
	return &ConcurrencyError{
		err:   shared.NewDomainError(CodeConcurrency, msg),
		cause: cause,
	}
}

func (e *ConcurrencyError) Error() string {
	if e.cause == nil {
		return e.err.Message
	}
	return e.err.Message + ": " + e.cause.Error()
}

func (e *ConcurrencyError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.err}
	}
	return []error{e.err, e.cause}
}

// Retryable is always true for lock acquisition failures
func (e *ConcurrencyError) Retryable() bool { return true }

// TenantConfigError reports that a tenant is missing configuration that the
// allocator needs and no static fallback applies.
type TenantConfigError struct {
	err *shared.DomainError
}

// NewTenantConfigError creates a TenantConfigError with a formatted message
func NewTenantConfigError(format string, args ...any) *TenantConfigError {
	return &TenantConfigError{err: shared.NewDomainError(CodeTenantConfig, fmt.Sprintf(format, args...))}
}

func (e *TenantConfigError) Error() string { return e.err.Message }
func (e *TenantConfigError) Unwrap() error { return e.err }

// IsValidation reports whether err is or wraps a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsState reports whether err is or wraps a StateError
func IsState(err error) bool {
	var target *StateError
	return errors.As(err, &target)
}

// IsConcurrency reports whether err is or wraps a ConcurrencyError
func IsConcurrency(err error) bool {
	var target *ConcurrencyError
	return errors.As(err, &target)
}

// IsTenantConfig reports whether err is or wraps a TenantConfigError
func IsTenantConfig(err error) bool {
	var target *TenantConfigError
	return errors.As(err, &target)
}
