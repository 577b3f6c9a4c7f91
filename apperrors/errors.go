package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP layer.
type Kind uint

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// Error is an application error with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// StatusCode maps the kind to an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Internal wraps an unexpected error. Its message is never shown to clients.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: op, Err: err}
}

// Domain errors shared by services and handlers.
var (
	ErrInvalidTrade       = Validation("Please provide valid stockId and quantity")
	ErrStockNotFound      = NotFound("Stock not found")
	ErrUserNotFound       = NotFound("User not found")
	ErrInsufficientFunds  = Validation("Insufficient funds")
	ErrNoPortfolio        = Validation("You do not have a portfolio")
	ErrStockNotOwned      = Validation("You do not own this stock")
	ErrInsufficientShares = Validation("You do not have enough shares to sell")
	ErrInvalidCredentials = Unauthorized("Invalid email or password")
	ErrEmailTaken         = Conflict("User already exists")
	ErrSymbolTaken        = Conflict("Stock symbol already exists")
	ErrStockInUse         = Conflict("Stock is referenced by portfolios or transactions")
	ErrNegativeBalance    = Validation("Balance cannot become negative")
	ErrInvalidToken       = Unauthorized("Not authorized, token failed")
)

// As extracts an *Error from err, wrapping anything else as internal.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("unexpected error", err)
}
