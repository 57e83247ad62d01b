// Package errkind classifies failures surfaced by the scheduling core into a
// small, closed set of kinds, so that callers (RetryDriver classifiers,
// UploadQueue spill logic) can branch on data rather than on concrete error
// types.
package errkind

import "errors"

// Kind is a closed classification of failure modes seen by the scheduling
// core. Kinds describe *why* an operation failed, independent of which
// collaborator (sink, disk, context) produced the failure.
type Kind int

const (
	// Unknown is the zero value; treated as non-recoverable by default.
	Unknown Kind = iota
	TransientNetwork
	AuthRejected
	RateLimited
	BadRequest
	ConflictDuplicate
	NotFound
	FatalServer
	FatalClient
	Cancelled
	InvalidArgument
	Configuration
)

func (k Kind) String() string {
	switch k {
	case TransientNetwork:
		return "TransientNetwork"
	case AuthRejected:
		return "AuthRejected"
	case RateLimited:
		return "RateLimited"
	case BadRequest:
		return "BadRequest"
	case ConflictDuplicate:
		return "ConflictDuplicate"
	case NotFound:
		return "NotFound"
	case FatalServer:
		return "FatalServer"
	case FatalClient:
		return "FatalClient"
	case Cancelled:
		return "Cancelled"
	case InvalidArgument:
		return "InvalidArgument"
	case Configuration:
		return "Configuration"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying error with a Kind, so classifiers and spill
// logic can dispatch without concrete-type assertions.
type Error struct {
	kind Kind
	err  error
}

// New wraps err with kind. Passing a nil err still yields a non-nil *Error
// (matching the "report a kind even without a cause" need of InvalidArgument
// argument-validation call sites).
func New(kind Kind, err error) *Error {
	return &Error{kind: kind, err: err}
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Error() string {
	if e.err == nil {
		return e.kind.String()
	}
	return e.kind.String() + ": " + e.err.Error()
}

func (e *Error) Unwrap() error { return e.err }

// Is reports whether target carries the same Kind - this lets callers write
// errors.Is(err, errkind.New(errkind.RateLimited, nil)) as a kind probe.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.kind == e.kind
	}
	return false
}

// KindOf extracts the Kind from err, returning Unknown if err does not carry
// one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return Unknown
}

// IsServerFault reports whether kind is the "HTTP 5xx-equivalent" class of
// fatal failure that UploadQueue spills to disk (spec §4.8).
func IsServerFault(kind Kind) bool {
	return kind == FatalServer || kind == TransientNetwork
}
