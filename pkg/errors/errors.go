// Package errors provides the shared sentinel errors used across the contract
// service. Domain packages wrap these with %w so transports can classify a
// failure with errors.Is without knowing the domain.
package errors

import stderrors "errors"

var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = stderrors.New("not found")

	// ErrClosed indicates the resource has been closed.
	ErrClosed = stderrors.New("closed")

	// ErrInvalidInput indicates the input is invalid.
	ErrInvalidInput = stderrors.New("invalid input")

	// ErrAlreadyExists indicates the resource already exists.
	ErrAlreadyExists = stderrors.New("already exists")

	// ErrConflict indicates a write lost a race against a concurrent writer.
	ErrConflict = stderrors.New("conflict")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = stderrors.New("timeout")
)

// Kind returns a short machine-readable code for err, used in error
// envelopes. Unclassified errors map to "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrNotFound):
		return "not_found"
	case stderrors.Is(err, ErrInvalidInput):
		return "invalid_request"
	case stderrors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case stderrors.Is(err, ErrConflict):
		return "conflict"
	case stderrors.Is(err, ErrTimeout):
		return "timeout"
	case stderrors.Is(err, ErrClosed):
		return "closed"
	default:
		return "internal"
	}
}

// FromKind is the inverse of Kind, used by clients decoding error envelopes.
// It returns nil for unknown or internal codes.
func FromKind(kind string) error {
	switch kind {
	case "not_found":
		return ErrNotFound
	case "invalid_request":
		return ErrInvalidInput
	case "already_exists":
		return ErrAlreadyExists
	case "conflict":
		return ErrConflict
	case "timeout":
		return ErrTimeout
	case "closed":
		return ErrClosed
	default:
		return nil
	}
}

type classified struct {
	msg  string
	kind error
}

func (e *classified) Error() string { return e.msg }
func (e *classified) Unwrap() error { return e.kind }

// New returns a distinct sentinel error that also matches kind under
// errors.Is. Packages use it to declare domain errors:
//
//	var ErrContractNotFound = errors.New("contract not found", errors.ErrNotFound)
func New(msg string, kind error) error {
	return &classified{msg: msg, kind: kind}
}
