// Package errorspkg provides common app errors.
//
// Every error that may reach a caller is an *Error tagged with a Kind, so the delivery layer can
// pick a status code and a stable error code without knowing where the error came from.
package errorspkg

import "errors"

// Kind classifies an error by the outcome it represents for the caller.
type Kind uint8

// Error kinds.
const (
	KindInternal Kind = iota
	KindInvalid
	KindNotFound
	KindInsufficientBalance
	KindLockUnavailable
	KindDuplicate
	KindConflict
)

var kindNames = map[Kind]string{
	KindInternal:            "internal",
	KindInvalid:             "invalid",
	KindNotFound:            "not_found",
	KindInsufficientBalance: "insufficient_balance",
	KindLockUnavailable:     "lock_unavailable",
	KindDuplicate:           "duplicate",
	KindConflict:            "conflict",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "unknown"
}

// Error is an app error with a stable code and a message that is safe to show to the caller.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

// New returns a new tagged error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// ErrInternal indicates internal server error.
var ErrInternal = New(KindInternal, "INTERNAL_SERVER_ERROR", "an unexpected error occurred")

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// As returns the first *Error in err's chain. Errors without one are reported as ErrInternal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return ErrInternal
}
