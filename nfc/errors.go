package nfc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a specific type of reader error for programmatic handling.
type ErrorCode int

const (
	ErrCodeNoDevice ErrorCode = iota + 100
	ErrCodeNoCard
	ErrCodeCardRemoved
	ErrCodeTransceiveFailed
	ErrCodeBadResponse
	ErrCodeSessionClosed
	ErrCodeNotSupported
)

// Sentinel errors shared across device backends.
var (
	// ErrTimeout indicates a timeout occurred during device communication.
	ErrTimeout = errors.New("device operation timed out")

	// ErrDeviceClosed indicates the device connection was closed.
	ErrDeviceClosed = errors.New("device closed")
)

// ReaderError provides structured error information for reader failures.
type ReaderError struct {
	Code    ErrorCode
	Op      string // Operation that failed (e.g., "ReadTagMemory", "Transceive")
	Reader  string // Optional: name of the reader involved
	Message string // Human-readable message
	Cause   error  // Underlying error
}

func (e *ReaderError) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Reader != "" {
		sb.WriteString(" (reader: ")
		sb.WriteString(e.Reader)
		sb.WriteString(")")
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *ReaderError) Unwrap() error {
	return e.Cause
}

func (e *ReaderError) Is(target error) bool {
	if t, ok := target.(*ReaderError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewNoDeviceError creates an error for when no reader hardware is available.
func NewNoDeviceError(op string, cause error) *ReaderError {
	return &ReaderError{
		Code:    ErrCodeNoDevice,
		Op:      op,
		Message: "no NFC reader available",
		Cause:   cause,
	}
}

// NewNoCardError creates an error for when no badge is present on the reader.
// This is a normal condition while waiting for a tap.
func NewNoCardError(op, reader string) *ReaderError {
	return &ReaderError{
		Code:    ErrCodeNoCard,
		Op:      op,
		Reader:  reader,
		Message: "no card present",
	}
}

// NewCardRemovedError creates an error for when a badge is removed mid-operation.
func NewCardRemovedError(op string, cause error) *ReaderError {
	return &ReaderError{
		Code:    ErrCodeCardRemoved,
		Op:      op,
		Message: "card removed during operation",
		Cause:   cause,
	}
}

// NewTransceiveError creates an error for command/response exchange failures.
func NewTransceiveError(op string, cause error) *ReaderError {
	return &ReaderError{
		Code:    ErrCodeTransceiveFailed,
		Op:      op,
		Message: "transceive failed",
		Cause:   cause,
	}
}

// NewBadResponseError creates an error for malformed or unexpected card responses.
func NewBadResponseError(op, message string) *ReaderError {
	return &ReaderError{
		Code:    ErrCodeBadResponse,
		Op:      op,
		Message: message,
	}
}

// IsNoCardError checks if an error indicates no badge is present in the reader.
func IsNoCardError(err error) bool {
	if err == nil {
		return false
	}
	var re *ReaderError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNoCard
	}
	// Fallback to string matching for errors raised by backend libraries
	errLower := strings.ToLower(err.Error())
	return strings.Contains(errLower, "no card present") ||
		strings.Contains(errLower, "no smart card") ||
		strings.Contains(errLower, "no smartcard")
}

// IsCardRemovedError checks if an error indicates the badge was removed mid-operation.
func IsCardRemovedError(err error) bool {
	if err == nil {
		return false
	}
	var re *ReaderError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCardRemoved
	}
	errLower := strings.ToLower(err.Error())
	return strings.Contains(errLower, "card was removed") ||
		strings.Contains(errLower, "tag lost") ||
		strings.Contains(errLower, "target was removed")
}

// IsTimeoutError checks if an error indicates a device timeout.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}
	errLower := strings.ToLower(err.Error())
	return strings.Contains(errLower, "timed out") ||
		strings.Contains(errLower, "timeout")
}

// GetErrorCode extracts the ErrorCode from an error if it's a ReaderError.
// Returns 0 if the error is not a ReaderError.
func GetErrorCode(err error) ErrorCode {
	var re *ReaderError
	if errors.As(err, &re) {
		return re.Code
	}
	return 0
}

// TagFormatError indicates the bytes read from a badge do not contain a
// decodable identifier. It never reaches the network layer.
type TagFormatError struct {
	Reason string
}

func (e *TagFormatError) Error() string {
	return fmt.Sprintf("malformed tag: %s", e.Reason)
}

// NewTagFormatError creates a tag format error with the given reason.
func NewTagFormatError(format string, args ...interface{}) *TagFormatError {
	return &TagFormatError{Reason: fmt.Sprintf(format, args...)}
}

// IsTagFormatError checks if an error indicates an undecodable badge.
func IsTagFormatError(err error) bool {
	var tfe *TagFormatError
	return errors.As(err, &tfe)
}
