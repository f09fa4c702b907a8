package flow

import "errors"

// ErrExchangeInProgress is returned when Start is called while another
// exchange is still awaiting its callback. Exchanges are never queued; the
// caller decides whether to retry after the pending one resolves.
var ErrExchangeInProgress = errors.New("authorization exchange already in progress")

// Code is a stable machine-readable failure code for an exchange.
type Code string

const (
	// CodeUserCanceled means the user dismissed the flow (context canceled).
	CodeUserCanceled Code = "USER_CANCELED"

	// CodeAuthFailed means the underlying browser surface or auth step failed.
	CodeAuthFailed Code = "AUTH_FAILED"

	// CodeNoCallback means no matching callback arrived before the timeout.
	CodeNoCallback Code = "NO_CALLBACK"
)

// Error is a typed exchange failure carrying a stable code alongside a
// human-readable message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError creates a typed exchange failure.
func newError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the failure code from an error chain, or "" when the error
// is not an exchange failure.
func CodeOf(err error) Code {
	var flowErr *Error
	if errors.As(err, &flowErr) {
		return flowErr.Code
	}
	return ""
}
