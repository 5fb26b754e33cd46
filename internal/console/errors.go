// Package console implements the admin console's domain: intake requests, attorney
// onboarding, blog posts, media, SMTP settings and the admin login.
package console

import (
	"errors"
	"fmt"
)

// Kind classifies domain errors for presentation.
type Kind string

// Error kinds.
const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindUnavailable  Kind = "storage_unavailable"
	KindInternal     Kind = "internal"
)

// Store-level sentinels. Stores return these; services turn them into *Error.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
	// ErrStaleStatus means a conditional status write found the row in another status
	// than the one the caller read. It matches ErrConflict.
	ErrStaleStatus = fmt.Errorf("%w: status changed concurrently", ErrConflict)
)

// Error is a domain error with a client-safe message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func invalid(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: "validation." + code, Message: message}
}

func notFound(entity string, cause error) *Error {
	return &Error{Kind: KindNotFound, Code: entity + ".not_found", Message: entity + " not found", Cause: cause}
}

func conflict(code, message string, cause error) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message, Cause: cause}
}

func unavailable(cause error) *Error {
	return &Error{Kind: KindUnavailable, Code: "storage.unavailable", Message: "storage backend is unavailable", Cause: cause}
}

// lookupErr maps a store error for entity, passing other errors through wrapped.
func lookupErr(entity string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return notFound(entity, err)
	}
	return fmt.Errorf("%s: %w", entity, err)
}
