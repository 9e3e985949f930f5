// Package errors provides centralized error definitions and error handling utilities
// for the debate arena. It defines sentinel errors, domain error types with context
// wrapping, and classification helpers used at the engine boundary.
//
// # Error Types
//
// Domain-specific errors:
//   - SessionError: errors related to a debate session (persistence, generation)
//   - TransitionError: a command was rejected by the session state machine
//
// Semantic errors:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Reason Codes
//
// Every rejection carries a machine-readable reason code available through
// [Code]. Transport adapters map these codes to status codes without having
// to inspect error strings.
//
// # Usage
//
//	err := errors.NewTransitionError("pause", "abc123", "paused")
//	if errors.Is(err, errors.ErrInvalidTransition) { ... }
//	switch errors.Code(err) {
//	case errors.CodeInvalidTransition:
//	    // 409
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Session-related sentinel errors
var (
	// ErrSessionNotFound indicates that a session could not be found.
	ErrSessionNotFound = New("session not found")
	// ErrInvalidTransition indicates that a command is not valid for the current status.
	ErrInvalidTransition = New("invalid status transition")
	// ErrConflict indicates a concurrent write to the same session was detected.
	ErrConflict = New("concurrent session update")
	// ErrSnapshotCorrupted indicates that a stored snapshot could not be decrypted or decoded.
	ErrSnapshotCorrupted = New("snapshot corrupted")
)

// Resource-related sentinel errors
var (
	// ErrBudgetExhausted indicates the session token budget has been reached.
	ErrBudgetExhausted = New("token budget exhausted")
	// ErrRateLimitTimeout indicates provider capacity did not free up within the allowed wait.
	ErrRateLimitTimeout = New("rate limit wait timed out")
	// ErrExceedsCapacity indicates a request can never fit in the provider's per-minute capacity.
	ErrExceedsCapacity = New("request exceeds provider capacity")
	// ErrGenerationFailed indicates the text-generation capability returned an error.
	ErrGenerationFailed = New("generation failed")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Reason Codes
// -----------------------------------------------------------------------------

// Machine-readable reason codes returned by [Code].
const (
	CodeSessionNotFound   = "session_not_found"
	CodeInvalidTransition = "invalid_transition"
	CodeBudgetExhausted   = "budget_exhausted"
	CodeRateLimitTimeout  = "rate_limit_timeout"
	CodeGenerationFailed  = "generation_failed"
	CodeTimeout           = "timeout"
	CodeInvalidInput      = "invalid_input"
	CodeConflict          = "conflict"
	CodeInternal          = "internal"
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// ArenaError is the base interface for all arena errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type ArenaError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// SessionError represents errors related to a debate session.
//
// Example:
//
//	err := errors.NewSessionError("failed to persist snapshot", cause)
//	err = err.WithSessionID("abc123").WithTurn(3)
//	fmt.Println(err) // "session error [session=abc123, turn=3]: failed to persist snapshot: ..."
type SessionError struct {
	baseError
	SessionID string
	TurnIndex int
	hasTurn   bool
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// WithTurn adds the plan index of the turn being executed.
func (e *SessionError) WithTurn(index int) *SessionError {
	e.TurnIndex = index
	e.hasTurn = true
	return e
}

// WithSeverity sets the error severity.
func (e *SessionError) WithSeverity(s Severity) *SessionError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *SessionError) WithRetryable(r bool) *SessionError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.hasTurn {
		parts = append(parts, fmt.Sprintf("turn=%d", e.TurnIndex))
	}

	prefix := "session error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("session error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TransitionError is returned when a command is not valid for the session's
// current status. It never indicates a fault; the session is left unchanged.
//
// Example:
//
//	err := errors.NewTransitionError("resume", "abc123", "in_progress")
//	fmt.Println(err) // "cannot resume session abc123: status is in_progress"
type TransitionError struct {
	baseError
	Op        string
	SessionID string
	From      string
	Reason    string
}

// NewTransitionError creates a TransitionError for op attempted from status from.
func NewTransitionError(op, sessionID, from string) *TransitionError {
	return &TransitionError{
		baseError: baseError{
			message:    fmt.Sprintf("cannot %s session %s", op, sessionID),
			cause:      ErrInvalidTransition,
			severity:   SeverityInfo,
			retryable:  false,
			userFacing: true,
		},
		Op:        op,
		SessionID: sessionID,
		From:      from,
	}
}

// WithReason replaces the generic status explanation with a specific reason.
func (e *TransitionError) WithReason(reason string) *TransitionError {
	e.Reason = reason
	return e
}

// WithCause overrides the cause. The default cause is ErrInvalidTransition.
func (e *TransitionError) WithCause(cause error) *TransitionError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.message, e.Reason)
	}
	return fmt.Sprintf("%s: status is %s", e.message, e.From)
}

// Is checks if this error matches the target.
func (e *TransitionError) Is(target error) bool {
	if _, ok := target.(*TransitionError); ok {
		return true
	}
	if target == ErrInvalidTransition {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("session", "abc123")
//	fmt.Println(err) // "session 'abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if e.ResourceType == "session" && target == ErrSessionNotFound {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("turn count out of range")
//	err = err.WithField("turnCount").WithValue(12)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("generating opening", 60*time.Second)
//	fmt.Println(err) // "timeout error: generating opening (timeout: 1m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if target == ErrTimeout {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// Code returns the machine-readable reason code for err.
// Unknown errors map to CodeInternal; nil maps to the empty string.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrSessionNotFound):
		return CodeSessionNotFound
	case Is(err, ErrBudgetExhausted):
		return CodeBudgetExhausted
	case Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case Is(err, ErrRateLimitTimeout), Is(err, ErrExceedsCapacity):
		return CodeRateLimitTimeout
	case Is(err, ErrConflict):
		return CodeConflict
	case Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case Is(err, ErrTimeout):
		return CodeTimeout
	case Is(err, ErrGenerationFailed):
		return CodeGenerationFailed
	default:
		return CodeInternal
	}
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var arenaErr ArenaError
	if As(err, &arenaErr) {
		return arenaErr.IsRetryable()
	}

	return Is(err, ErrTimeout) || Is(err, ErrConflict)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var arenaErr ArenaError
	if As(err, &arenaErr) {
		return arenaErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement ArenaError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var arenaErr ArenaError
	if As(err, &arenaErr) {
		return arenaErr.Severity()
	}
	return SeverityError
}

// IsRejection reports whether err is an expected business rejection
// (precondition violation) rather than a fault.
func IsRejection(err error) bool {
	var transition *TransitionError
	var notFound *NotFoundError
	var validation *ValidationError
	return As(err, &transition) || As(err, &notFound) || As(err, &validation)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
