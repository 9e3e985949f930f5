package errors

import (
	"fmt"
	"testing"
	"time"
)

func TestTransitionError(t *testing.T) {
	err := NewTransitionError("pause", "abc", "paused")

	if !Is(err, ErrInvalidTransition) {
		t.Error("TransitionError should match ErrInvalidTransition")
	}
	if got := err.Error(); got != "cannot pause session abc: status is paused" {
		t.Errorf("Error() = %q", got)
	}
	if Code(err) != CodeInvalidTransition {
		t.Errorf("Code() = %q, want %q", Code(err), CodeInvalidTransition)
	}
	if !IsRejection(err) {
		t.Error("TransitionError should be a rejection")
	}
	if GetSeverity(err) != SeverityInfo {
		t.Errorf("GetSeverity() = %v, want info", GetSeverity(err))
	}
}

func TestTransitionError_WithCause(t *testing.T) {
	err := NewTransitionError("start", "abc", "pending").
		WithCause(ErrBudgetExhausted).
		WithReason("token budget exhausted")

	if Code(err) != CodeBudgetExhausted {
		t.Errorf("Code() = %q, want %q", Code(err), CodeBudgetExhausted)
	}
	if got := err.Error(); got != "cannot start session abc: token budget exhausted" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("session", "missing")

	if !Is(err, ErrSessionNotFound) {
		t.Error("session NotFoundError should match ErrSessionNotFound")
	}
	if Code(err) != CodeSessionNotFound {
		t.Errorf("Code() = %q", Code(err))
	}
	if got := err.Error(); got != "session 'missing' not found" {
		t.Errorf("Error() = %q", got)
	}

	other := NewNotFoundError("provider", "x")
	if Is(other, ErrSessionNotFound) {
		t.Error("provider NotFoundError should not match ErrSessionNotFound")
	}
}

func TestSessionError(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := NewSessionError("turn failed", cause).WithSessionID("s1").WithTurn(3)

	want := "session error [session=s1, turn=3]: turn failed: boom"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if Unwrap(err) != cause {
		t.Error("Unwrap should return the cause")
	}

	wrapped := NewSessionError("generation", ErrGenerationFailed)
	if Code(wrapped) != CodeGenerationFailed {
		t.Errorf("Code() = %q", Code(wrapped))
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("out of range").WithField("turnCount").WithValue(12)

	if !Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
	if Code(err) != CodeInvalidInput {
		t.Errorf("Code() = %q", Code(err))
	}
	want := "validation error [field=turnCount, value=12]: out of range"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("generating opening", time.Minute)

	if !Is(err, ErrTimeout) {
		t.Error("TimeoutError should match ErrTimeout")
	}
	if !IsRetryable(err) {
		t.Error("TimeoutError should be retryable")
	}
	if Code(err) != CodeTimeout {
		t.Errorf("Code() = %q", Code(err))
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"unknown", New("x"), CodeInternal},
		{"wrapped conflict", Wrap(ErrConflict, "save"), CodeConflict},
		{"rate limit", Wrapf(ErrRateLimitTimeout, "provider %s", "openai"), CodeRateLimitTimeout},
		{"capacity", ErrExceedsCapacity, CodeRateLimitTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassificationHelpers_Nil(t *testing.T) {
	if IsRetryable(nil) || IsUserFacing(nil) || IsRejection(nil) {
		t.Error("nil error should not be classified")
	}
	if GetSeverity(nil) != SeverityDebug {
		t.Error("nil severity should be debug")
	}
	if Wrap(nil, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}
