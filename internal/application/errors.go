package application

import "errors"

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique constraint rejects a write.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when login or token material is wrong.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when the account behind valid credentials is disabled.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned when a session is past its expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a session was explicitly revoked.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrInvalidState is returned when a gig transition does not apply to its current status.
	ErrInvalidState = errors.New("application: invalid state transition")
	// ErrPaymentFailed is returned when the payment gateway rejects a hold, capture, or release.
	ErrPaymentFailed = errors.New("application: payment failed")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
