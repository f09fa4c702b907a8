package cli

import (
	"errors"
	"fmt"

	"authbridge/pkg/flow"
)

// AuthRequiredError indicates a command needs a session that does not exist.
// The root command maps it to a dedicated exit code so scripts can
// distinguish "run login first" from a hard failure.
type AuthRequiredError struct {
	// Endpoint is the auth server the session was missing for.
	Endpoint string
}

// Error implements the error interface.
func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("not signed in to %s (run 'authbridge login')", e.Endpoint)
}

// AuthFailedError indicates an interactive authentication attempt failed.
type AuthFailedError struct {
	// Endpoint is the auth server the attempt ran against.
	Endpoint string
	// Reason is the underlying error.
	Reason error
}

// Error implements the error interface.
func (e *AuthFailedError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("authentication to %s failed: %v", e.Endpoint, e.Reason)
	}
	return fmt.Sprintf("authentication to %s failed", e.Endpoint)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *AuthFailedError) Unwrap() error {
	return e.Reason
}

// WrapFlowError converts an OAuth exchange error into the matching CLI
// error. A canceled exchange stays a plain error; a timed-out or failed one
// becomes an AuthFailedError.
func WrapFlowError(endpoint string, err error) error {
	if err == nil {
		return nil
	}
	switch flow.CodeOf(err) {
	case flow.CodeUserCanceled:
		return fmt.Errorf("authentication canceled: %w", err)
	case flow.CodeAuthFailed, flow.CodeNoCallback:
		return &AuthFailedError{Endpoint: endpoint, Reason: err}
	}
	return err
}

// IsAuthRequired reports whether err is an AuthRequiredError.
func IsAuthRequired(err error) bool {
	var target *AuthRequiredError
	return errors.As(err, &target)
}

// IsAuthFailed reports whether err is an AuthFailedError.
func IsAuthFailed(err error) bool {
	var target *AuthFailedError
	return errors.As(err, &target)
}
