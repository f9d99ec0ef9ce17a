package checkin

import (
	"errors"
	"strings"
)

// Code classifies a check-in failure for programmatic handling.
type Code int

const (
	// ErrMalformedTag: the badge's NDEF content could not be decoded.
	ErrMalformedTag Code = iota + 1

	// ErrInvalidParameters: local validation failed before any I/O.
	ErrInvalidParameters

	// ErrUnknownUser: the decoded identifier matched no service-side user.
	ErrUnknownUser

	// ErrCheckInRejected: the service refused the mutation for a reason other
	// than the tag already being in the requested state.
	ErrCheckInRejected

	// ErrTransport: network or protocol failure. The mutation may or may not
	// have been applied; it is never retried automatically.
	ErrTransport

	// ErrTimeout: a phase exceeded its caller-supplied deadline.
	ErrTimeout

	// ErrCancelled: the caller cancelled the scan. An in-flight mutation is
	// not retracted, so this is reported distinctly from other failures.
	ErrCancelled

	// ErrReader: badge reader hardware failure.
	ErrReader
)

func (c Code) String() string {
	switch c {
	case ErrMalformedTag:
		return "malformed tag"
	case ErrInvalidParameters:
		return "invalid parameters"
	case ErrUnknownUser:
		return "unknown user"
	case ErrCheckInRejected:
		return "check-in rejected"
	case ErrTransport:
		return "transport error"
	case ErrTimeout:
		return "timeout"
	case ErrCancelled:
		return "cancelled"
	case ErrReader:
		return "reader error"
	default:
		return "unknown"
	}
}

// Error is the check-in error type. AlreadyInState is not part of the
// taxonomy: it is a notable success surfaced as an Outcome status.
type Error struct {
	Code    Code
	Op      string // Operation that failed (e.g., "UserGet", "CheckInTag")
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	if e.Message != "" {
		sb.WriteString(e.Message)
	} else {
		sb.WriteString(e.Code.String())
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// CodeOf extracts the Code from an error. Returns 0 for non check-in errors.
func CodeOf(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return 0
}

func newError(code Code, op, message string, cause error) *Error {
	return &Error{Code: code, Op: op, Message: message, Cause: cause}
}

// IsMalformedTag reports whether err is a badge decoding failure.
func IsMalformedTag(err error) bool { return CodeOf(err) == ErrMalformedTag }

// IsInvalidParameters reports whether err is a local validation failure.
func IsInvalidParameters(err error) bool { return CodeOf(err) == ErrInvalidParameters }

// IsUnknownUser reports whether err means the badge identifier matched no user.
func IsUnknownUser(err error) bool { return CodeOf(err) == ErrUnknownUser }

// IsCheckInRejected reports whether the service refused the mutation.
func IsCheckInRejected(err error) bool { return CodeOf(err) == ErrCheckInRejected }

// IsTransportError reports whether err is a network or protocol failure.
func IsTransportError(err error) bool { return CodeOf(err) == ErrTransport }

// IsTimeout reports whether a scan phase exceeded its deadline.
func IsTimeout(err error) bool { return CodeOf(err) == ErrTimeout }

// IsCancelled reports whether the caller cancelled the scan.
func IsCancelled(err error) bool { return CodeOf(err) == ErrCancelled }

// IsReaderError reports whether err is a badge reader hardware failure.
func IsReaderError(err error) bool { return CodeOf(err) == ErrReader }

// GraphQLError carries service-level errors from a response envelope.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	if len(e.Messages) == 0 {
		return "graphql error"
	}
	return "graphql error: " + strings.Join(e.Messages, "; ")
}
