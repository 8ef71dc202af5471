// Package errors defines the error taxonomy shared by the intent engine and
// its HTTP boundary. Every error carries a stable machine-readable code.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrDatabaseConnect = errors.New("failed to connect to database")
	ErrSessionExpired  = errors.New("session expired")
)

// ValidationError reports malformed or out-of-range input. It collects every
// violation found rather than failing on the first, and is never retried.
type ValidationError struct {
	Code       string
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// NewValidation creates a ValidationError with the default code.
func NewValidation(violations ...string) *ValidationError {
	return &ValidationError{Code: "VALIDATION_ERROR", Violations: violations}
}

// NewRouteMismatch reports a route whose declared tokens do not match the
// trade metadata.
func NewRouteMismatch(violations ...string) *ValidationError {
	return &ValidationError{Code: "ROUTE_MISMATCH", Violations: violations}
}

// ConflictError reports an operation that clashes with existing state, such
// as a duplicate commitment or a second reveal. Reference points at the
// existing transaction or record.
type ConflictError struct {
	Code      string
	Message   string
	Reference string
}

func (e *ConflictError) Error() string {
	if e.Reference != "" {
		return fmt.Sprintf("%s (existing: %s)", e.Message, e.Reference)
	}
	return e.Message
}

// NewConflict creates a ConflictError.
func NewConflict(code, message, reference string) *ConflictError {
	return &ConflictError{Code: code, Message: message, Reference: reference}
}

// NotFoundError reports an unknown intent hash, session or other resource.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// NewNotFound creates a NotFoundError.
func NewNotFound(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

// IntegrityError reports a recomputed intent hash that does not match the
// supplied one. It is fatal and never silently coerced.
type IntegrityError struct {
	Expected string
	Computed string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("intent hash mismatch: expected %s, computed %s", e.Expected, e.Computed)
}

// StateError reports an operation attempted from a lifecycle state that does
// not allow it, such as revealing an uncommitted intent or settling fees for
// uninitialized accounts.
type StateError struct {
	Code    string
	Message string
}

func (e *StateError) Error() string { return e.Message }

// NewState creates a StateError.
func NewState(code, message string) *StateError {
	return &StateError{Code: code, Message: message}
}

// NewIntentExpired reports an intent whose expiry has elapsed.
func NewIntentExpired(expiry int64) *StateError {
	return &StateError{Code: "INTENT_EXPIRED", Message: fmt.Sprintf("intent expired at %d", expiry)}
}

// UpstreamError reports an unavailable external dependency (quoting, RPC or
// persistence). Retryable by the caller or by the queue with backoff.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NewUpstream creates an UpstreamError.
func NewUpstream(service string, err error) *UpstreamError {
	return &UpstreamError{Service: service, Err: err}
}

// ExecutionError reports an on-chain execution that was confirmed-rejected or
// otherwise failed after preconditions passed. Never retried automatically.
type ExecutionError struct {
	Stage string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed at %s: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// NewExecution creates an ExecutionError.
func NewExecution(stage string, err error) *ExecutionError {
	return &ExecutionError{Stage: stage, Err: err}
}
