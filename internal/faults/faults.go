// Package faults defines the internal error taxonomy for idbridge.
//
// Every upstream failure is translated into one of the kinds defined
// here at the adapter boundary; no external library error type crosses
// into calling code.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindInternal is an unexpected upstream failure wrapping the original cause.
	KindInternal Kind = iota

	// KindNotFound means the requested resource is absent. This is not an
	// error state for by-id/by-username/by-email lookups, which return an
	// absent value instead.
	KindNotFound

	// KindUnauthenticated means the credential is missing or was rejected.
	KindUnauthenticated

	// KindInvalidToken means the token is malformed, expired, or its
	// signature does not verify.
	KindInvalidToken

	// KindUnavailable means the upstream service is unreachable.
	KindUnavailable

	// KindInvalidArgument means a caller-supplied value (typically
	// configuration) has the wrong type or shape.
	KindInvalidArgument
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidToken:
		return "invalid_token"
	case KindUnavailable:
		return "unavailable"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "internal"
	}
}

// Sentinel errors, one per kind, usable with errors.Is.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrInvalidToken    = errors.New("invalid token")
	ErrUnavailable     = errors.New("service unavailable")
	ErrInternal        = errors.New("internal error")
	ErrInvalidArgument = errors.New("invalid argument")
)

// sentinel returns the sentinel error for a kind.
func sentinel(k Kind) error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindUnauthenticated:
		return ErrUnauthenticated
	case KindInvalidToken:
		return ErrInvalidToken
	case KindUnavailable:
		return ErrUnavailable
	case KindInvalidArgument:
		return ErrInvalidArgument
	default:
		return ErrInternal
	}
}

// Fault is a classified error with operation context.
type Fault struct {
	Kind    Kind   // failure classification
	Op      string // operation that failed, e.g. "identity.GetUserByID"
	Message string // optional human-readable detail
	Err     error  // underlying cause, if any
}

// Error implements the error interface.
func (f *Fault) Error() string {
	msg := f.Message
	if msg == "" {
		msg = sentinel(f.Kind).Error()
	}
	if f.Op != "" && f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Op, msg, f.Err)
	}
	if f.Op != "" {
		return fmt.Sprintf("%s: %s", f.Op, msg)
	}
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", msg, f.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (f *Fault) Unwrap() error {
	return f.Err
}

// Is matches the kind's sentinel as well as the wrapped cause.
func (f *Fault) Is(target error) bool {
	if target == sentinel(f.Kind) {
		return true
	}
	return errors.Is(f.Err, target)
}

// New creates a Fault of the given kind.
func New(kind Kind, op, message string) *Fault {
	return &Fault{Kind: kind, Op: op, Message: message}
}

// Wrap creates a Fault of the given kind wrapping a cause.
func Wrap(kind Kind, op string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, Err: err}
}

// Wrapf creates a Fault with a formatted message wrapping a cause.
func Wrapf(kind Kind, op string, err error, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind == kind
	}
	return false
}
