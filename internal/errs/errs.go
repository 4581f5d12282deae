// README: Error taxonomy shared by all modules; handlers map kinds to HTTP status codes.
package errs

import (
	"errors"
	"fmt"
)

// Kinds. Every module error wraps exactly one of these.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrExternal         = errors.New("external service error")
	ErrInvariant        = errors.New("internal invariant violation")
)

// Error carries a machine-readable code next to the message shown to clients.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func New(kind error, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// Invariant wraps a data-corruption condition. These abort the open transaction.
func Invariant(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// External wraps a failed call to a collaborator (gateway, provider, SMS).
func External(service string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExternal, service, err)
}

// CodeOf returns the machine-readable code of err, or "" when it has none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
