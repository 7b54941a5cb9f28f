package account

import (
	"errors"
	"fmt"
)

// Kind classifies the outcome of a failed account operation.
type Kind int

const (
	// KindInternal is an unexpected failure of the store, the hasher or the file storage.
	KindInternal Kind = iota
	// KindConflict means the email is already registered.
	KindConflict
	// KindNotFound means no user with the given email exists.
	KindNotFound
	// KindUnauthorized means the password did not match.
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Client facing messages.
const (
	MsgEmailRegistered    = "Email already registered"
	MsgInvalidCredentials = "Invalid email or password"
	MsgUserNotFound       = "User not found"
	MsgInternal           = "Internal Server Error"
)

// Error is returned by every Service operation that does not succeed.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func internalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: MsgInternal, Err: err}
}

// KindOf returns the kind of err, KindInternal for errors not produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
