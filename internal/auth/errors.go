package auth

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure categories the service can return.
// Every precondition violation inside the service is translated into one of
// these at the point of detection; no raw collaborator error crosses the
// package boundary.
type ErrorKind int

const (
	// KindConflict signals a duplicate resource (e.g. email already taken).
	KindConflict ErrorKind = iota + 1
	// KindUnauthorized signals a malformed, expired, or wrong-purpose
	// bearer token.
	KindUnauthorized
	// KindNotFound signals a missing user or token subject.
	KindNotFound
	// KindBadRequest signals a caller-supplied precondition violation on a
	// privileged action (wrong password, already-enabled state).
	KindBadRequest
	// KindClient is a generic client-facing failure with a specific message
	// (invalid credentials, invalid or expired OTP, invalid token).
	KindClient
	// KindServer is an unexpected internal fault. The wrapped cause is kept
	// for logs but never exposed in the message.
	KindServer
)

type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

func ClientError(message string) *Error {
	return &Error{Kind: KindClient, Message: message}
}

func ServerError(message string, cause error) *Error {
	return &Error{Kind: KindServer, Message: message, cause: cause}
}

// AsError extracts a typed *Error from err, if it carries one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the error's kind, defaulting to KindServer for anything
// that escaped translation.
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindServer
}
