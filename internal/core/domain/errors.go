package domain

import "errors"

// ErrorKind classifies a failure independently of the transport that reports it.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
	KindValidation   ErrorKind = "validation"
	KindConflict     ErrorKind = "conflict"
	KindInternal     ErrorKind = "internal"
)

// AuthError is a classified, human-readable failure returned by the auth core.
type AuthError struct {
	Kind    ErrorKind
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

var (
	ErrUserNotFound        = &AuthError{Kind: KindNotFound, Message: "user not found"}
	ErrPasswordMismatch    = &AuthError{Kind: KindUnauthorized, Message: "password not match"}
	ErrOldPasswordMismatch = &AuthError{Kind: KindUnauthorized, Message: "old password not match"}
	ErrInvalidToken        = &AuthError{Kind: KindUnauthorized, Message: "token not valid"}
	ErrUserExists          = &AuthError{Kind: KindConflict, Message: "user already exists"}
)

// NewValidationError returns a validation failure carrying msg.
func NewValidationError(msg string) *AuthError {
	return &AuthError{Kind: KindValidation, Message: msg}
}

// KindOf returns the classification of err. Errors that are not an
// *AuthError anywhere in their chain are KindInternal.
func KindOf(err error) ErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}
