package nfc

import "context"

// Device is the raw command/response exchange with a single badge on a reader.
// Implementations wrap a connected card handle from a specific backend.
type Device interface {
	// Transceive sends a raw command frame to the card and returns the
	// response payload with any status trailer already validated/stripped.
	Transceive(cmd []byte) ([]byte, error)
	Close() error
	String() string
}

// Session is an exclusively-held scan session for one badge presentation.
// It is acquired per scan and must be closed on every exit path.
type Session interface {
	// UID returns the card's unique identifier, if the backend exposes it.
	UID() string

	// ReadTagMemory reads the badge's NDEF message area. The returned bytes
	// may include the TLV wrapper around the NDEF message.
	ReadTagMemory(ctx context.Context) ([]byte, error)

	// Beep toggles the reader's buzzer where supported.
	Beep(enabled bool) error

	Close() error
}

// Manager abstracts reader enumeration and session acquisition for a backend.
type Manager interface {
	// ListDevices returns the names of readers the backend can open.
	ListDevices() ([]string, error)

	// OpenSession blocks until a badge is presented on the named reader (or
	// any reader when device is empty) and returns an exclusive session for
	// it. Bounded by ctx.
	OpenSession(ctx context.Context, device string) (Session, error)
}
