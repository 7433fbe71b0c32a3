// Package errs defines the error taxonomy shared by the agent, the popup
// controller and the data service client.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the operation family that produced it.
type Kind uint8

const (
	Unknown    Kind = iota
	Auth            // sign-in, sign-out, missing or rejected credentials
	Fetch           // listing and reading
	Write           // insert, delete, update, tag creation and attachment
	Validation      // a save attempt without a usable url
)

func (k Kind) String() string {
	switch k {
	case Auth:
		return "auth"
	case Fetch:
		return "fetch"
	case Write:
		return "write"
	case Validation:
		return "validation"
	default:
		return "unknown"
	}
}

// ErrNoURL is wrapped by Validation errors raised when the active page has no
// url (privileged browser pages, closed tabs).
var ErrNoURL = errors.New("url is not allowed")

// ErrNoSession is wrapped by Auth errors raised when no signed-in session exists.
var ErrNoSession = errors.New("user is not logged in")

// Error carries a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind and op. An err that already carries a Kind keeps it
// unless it is Unknown.
func New(kind Kind, op string, err error) error {
	var existing *Error
	if errors.As(err, &existing) && existing.Kind != Unknown {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the Kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
