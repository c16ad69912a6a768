package domain

import (
	"errors"
	"net/http"
)

// DefaultErrorMessage is the public message for unclassified failures.
const DefaultErrorMessage = "Internal Server Error"

// HTTPError is implemented by every classified error kind. The HTTP layer
// uses it to pick a status code without knowing the concrete type.
type HTTPError interface {
	error
	StatusCode() int
}

// NotFoundError reports that a requested record does not exist.
type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string   { return e.Message }
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

// ValidationError reports malformed input (bad payload shape, missing query
// parameter).
type ValidationError struct{ Message string }

func (e *ValidationError) Error() string   { return e.Message }
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// UnauthorizedError reports a missing or wrong shared secret.
type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string   { return e.Message }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }

// ErrInvalidProduct is reported when a payload does not have the product shape.
var ErrInvalidProduct = Invalid("Invalid product data")

// NotFound returns a *NotFoundError carrying msg.
func NotFound(msg string) error { return &NotFoundError{Message: msg} }

// Invalid returns a *ValidationError carrying msg.
func Invalid(msg string) error { return &ValidationError{Message: msg} }

// Unauthorized returns an *UnauthorizedError carrying msg.
func Unauthorized(msg string) error { return &UnauthorizedError{Message: msg} }

// StatusOf resolves the HTTP status and public message for err. Wrapped
// chains are unwrapped; unclassified errors yield 500 and the default message.
func StatusOf(err error) (int, string) {
	var he HTTPError
	if errors.As(err, &he) {
		msg := he.Error()
		if msg == "" {
			msg = DefaultErrorMessage
		}
		return he.StatusCode(), msg
	}
	return http.StatusInternalServerError, DefaultErrorMessage
}
