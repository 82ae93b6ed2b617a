// Package errors defines the error taxonomy shared across the chat core.
//
// Errors fall into four classes with different handling at the turn boundary:
// configuration errors abort before any network call, auth errors clear the
// token cache and surface as a notification, network errors preserve partial
// content, and cancellation is expected and never reported as a failure.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// ConfigReason identifies which piece of configuration was missing or invalid.
type ConfigReason string

const (
	ReasonUnknownModel   ConfigReason = "unknown_model"
	ReasonPromptNotFound ConfigReason = "prompt_not_found"
	ReasonNotConfigured  ConfigReason = "not_configured"
)

// ConfigError reports missing or unknown model, prompt, or provider
// configuration. The user must reconfigure; the turn aborts before any
// network call.
type ConfigError struct {
	Reason ConfigReason
	Ref    string // offending model/prompt/provider reference
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("config error (%s): %s", e.Reason, e.Ref)
	}
	return fmt.Sprintf("config error (%s)", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError builds a ConfigError for the given reason and reference.
func NewConfigError(reason ConfigReason, ref string) *ConfigError {
	return &ConfigError{Reason: reason, Ref: ref}
}

// AuthReason identifies why authentication failed.
type AuthReason string

const (
	ReasonNoCredentials AuthReason = "no_credentials"
	ReasonLoginFailed   AuthReason = "login_failed"
	ReasonRefreshFailed AuthReason = "refresh_failed"
)

// AuthError reports missing credentials, a failed login, or a failed token
// refresh. StatusCode carries the HTTP status when a network exchange was
// involved.
type AuthError struct {
	Reason     AuthReason
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("auth error (%s): status %d", e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("auth error (%s)", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError builds an AuthError for the given reason.
func NewAuthError(reason AuthReason, status int, err error) *AuthError {
	return &AuthError{Reason: reason, StatusCode: status, Err: err}
}

// NetworkError reports a transport failure during an invoke or stream call.
// Partial content already applied stays on the message; retry is a
// user-initiated regenerate.
type NetworkError struct {
	Op  string // "stream", "invoke", "embed"
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NewNetworkError wraps a transport failure.
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err}
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsAuth reports whether err is an authentication error.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsNetwork reports whether err is a transport error.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsCancellation reports whether err stems from a fired cancellation signal.
// Cancellation is cooperative and expected; callers keep partial content and
// do not treat the turn as failed.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
