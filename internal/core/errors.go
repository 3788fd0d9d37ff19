// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Notifier errors
	ErrUnrecognizedField = &Error{Code: "UNRECOGNIZED_FIELD", Message: "field is not recognised"}
	ErrRemoteLookup      = &Error{Code: "REMOTE_LOOKUP_FAILED", Message: "cannot load options right now"}
	ErrTransmission      = &Error{Code: "TRANSMISSION_FAILED", Message: "notification could not be sent"}
	ErrSettingsInvalid   = &Error{Code: "SETTINGS_INVALID", Message: "notification settings invalid"}
	ErrNotificationEmpty = &Error{Code: "NOTIFICATION_EMPTY", Message: "notification has no title or message"}

	// Lookup errors
	ErrNotifierNotFound = &Error{Code: "NOTIFIER_NOT_FOUND", Message: "notifier not found"}
	ErrChannelNotFound  = &Error{Code: "CHANNEL_NOT_FOUND", Message: "channel not found"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// API errors
	ErrUnauthorized   = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}
	ErrInvalidRequest = &Error{Code: "INVALID_REQUEST", Message: "request body is malformed"}
)
