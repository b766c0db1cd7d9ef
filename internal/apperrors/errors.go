package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNoSession        = errors.New("no session tokens stored")
	ErrPartialTokenPair = errors.New("access and refresh tokens must be set together")

	ErrValidation   = errors.New("validation failed")
	ErrRecovery     = errors.New("recovery request rejected")
	ErrTokenInvalid = errors.New("reset token is invalid or expired")
	ErrRoleDenied   = errors.New("role denied by backend")
	ErrNetwork      = errors.New("backend unreachable")
	ErrUnauthorized = errors.New("session is not authorized")

	ErrBusy         = errors.New("request already in flight")
	ErrNotReady     = errors.New("flow is not ready for this action")
	ErrFlowFinished = errors.New("flow reached terminal state")
	ErrFlowClosed   = errors.New("flow is closed")
)

// ValidationError is raised before any network call, e.g. a short password
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// RecoveryError is reported by the backend and carries a message for display.
// The user may fix the input and resubmit.
type RecoveryError struct {
	StatusCode int
	Message    string
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

func (e *RecoveryError) Unwrap() error {
	return ErrRecovery
}

// TokenError means the backend refused a reset token. Terminal for that token.
type TokenError struct {
	RecoveryError
}

func (e *TokenError) Unwrap() []error {
	return []error{ErrTokenInvalid, ErrRecovery}
}

// NetworkError wraps transport failures: no response was received at all
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() []error {
	return []error{ErrNetwork, e.Err}
}

// Message returns text that is safe to show to the user.
// Server supplied messages are passed through, everything else gets the fallback.
func Message(err error, fallback string) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}

	var te *TokenError
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}

	var re *RecoveryError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}

	return fallback
}
