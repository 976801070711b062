package auth

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentialsFormat means the provider refused the credential shape
// before contacting the identity service.
var ErrInvalidCredentialsFormat = errors.New("invalid credentials format")

// AuthenticationError is an identity-service rejection that is safe to show
// to the user.
type AuthenticationError struct {
	Message string
	Detail  string
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// NewAuthenticationError builds an AuthenticationError with the default message.
func NewAuthenticationError(detail string, err error) *AuthenticationError {
	return &AuthenticationError{Message: "Authentication failed", Detail: detail, Err: err}
}

// RequestError is a malformed login request. Detail is either a string or a
// map of field name to messages.
type RequestError struct {
	Detail any
	Err    error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return "invalid request data: " + e.Err.Error()
	}
	return fmt.Sprintf("invalid request data: %v", e.Detail)
}

func (e *RequestError) Unwrap() error { return e.Err }
