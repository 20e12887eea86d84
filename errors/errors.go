package errors

import (
	"fmt"
	"net/http"
)

// Error is the standardized API error carried through handlers. The Message
// field is what clients see in the JSON `error` body; Kind maps to a stable
// HTTP status.
type Error struct {
	Kind    Kind   `json:"-"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// HTTPStatus returns the status code for the error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Kind classifies an error for status mapping and logging.
type Kind string

const (
	KindValidation Kind = "validation_error"
	KindAuth       Kind = "auth_error"
	KindConfig     Kind = "config_error"
	KindUpstream   Kind = "upstream_error"
	KindNotFound   Kind = "not_found"
)

// Common error constructors

func NewValidation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func NewAuth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

func NewConfig(message string) *Error {
	return &Error{Kind: KindConfig, Message: message}
}

// NewUpstream wraps a downstream failure (database, payment provider, mailer).
// The message is passed through to the client per the API contract.
func NewUpstream(message string) *Error {
	return &Error{Kind: KindUpstream, Message: message}
}

func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// NewMissingToken is the fixed response body for an exchange request without
// an access token.
func NewMissingToken() *Error {
	return &Error{Kind: KindValidation, Message: "access_token is required"}
}

// NewInvalidToken is the fixed response body for a parent token that fails
// verification or lacks the parent id claim.
func NewInvalidToken() *Error {
	return &Error{Kind: KindAuth, Message: "Invalid access token"}
}
