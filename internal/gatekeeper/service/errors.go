package service

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
)

// Error kinds. Every error a service returns matches exactly one of these
// with errors.Is; anything else is a bug and is reported as ErrInternal.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrInternal         = errors.New("internal error")
)

// Error carries a kind, a client-safe message and an optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the kind sentinel for err, ErrInternal when err is not a
// service error, or nil for a nil err.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict, ErrInvalidOperation} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}

// MessageOf returns the client-safe message for err. Internal errors never
// expose their cause.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Kind != ErrInternal && se.Message != "" {
		return se.Message
	}
	if KindOf(err) == ErrInternal {
		return "An internal error occurred"
	}
	return KindOf(err).Error()
}

func newErr(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func unauthorized(format string, args ...any) error { return newErr(ErrUnauthorized, format, args...) }
func forbidden(format string, args ...any) error    { return newErr(ErrForbidden, format, args...) }
func notFound(format string, args ...any) error     { return newErr(ErrNotFound, format, args...) }
func conflict(format string, args ...any) error     { return newErr(ErrConflict, format, args...) }
func invalidOperation(format string, args ...any) error {
	return newErr(ErrInvalidOperation, format, args...)
}

func internal(err error) error {
	return &Error{Kind: ErrInternal, Err: err}
}

// fromStore classifies a repository error raised by a write. Late uniqueness
// or foreign key failures, and a row that vanished between the read and the
// write, all mean a concurrent transaction won: they become Conflict with
// msg.
func fromStore(err error, msg string) error {
	var se *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &se):
		return err
	case errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, store.ErrConstraint),
		errors.Is(err, store.ErrNotFound):
		return &Error{Kind: ErrConflict, Message: msg, Err: err}
	default:
		return internal(err)
	}
}

// fromWrite is fromStore for updates and deletes, where a row that vanished
// gets its own message rather than the uniqueness one.
func fromWrite(err error, clashMsg, goneMsg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return &Error{Kind: ErrConflict, Message: goneMsg, Err: err}
	}
	return fromStore(err, clashMsg)
}
