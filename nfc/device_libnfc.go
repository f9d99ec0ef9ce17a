package nfc

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/clausecker/freefare"
	libnfc "github.com/clausecker/nfc/v2"
)

const libnfcPollInterval = 100 * time.Millisecond

// LibNFCManager opens badge sessions through libnfc (PN532 boards and other
// readers without a PC/SC driver).
type LibNFCManager struct {
	logger *log.Logger
}

// NewLibNFCManager creates a libnfc backed reader manager.
func NewLibNFCManager(logger *log.Logger) *LibNFCManager {
	if logger == nil {
		logger = log.Default()
	}
	return &LibNFCManager{logger: logger}
}

// ListDevices returns the connection strings of libnfc devices.
func (m *LibNFCManager) ListDevices() ([]string, error) {
	devices, err := libnfc.ListDevices()
	if err != nil {
		return nil, NewNoDeviceError("ListDevices", err)
	}
	return devices, nil
}

// OpenSession opens the named device (or the first libnfc finds when device
// is empty), waits for a badge in the field, and returns an exclusive
// session for it. Bounded by ctx.
func (m *LibNFCManager) OpenSession(ctx context.Context, device string) (Session, error) {
	dev, err := libnfc.Open(device)
	if err != nil {
		return nil, NewNoDeviceError("OpenSession", err)
	}
	if err := dev.InitiatorInit(); err != nil {
		dev.Close()
		return nil, NewNoDeviceError("OpenSession", err)
	}

	uid, err := m.waitForTag(ctx, dev)
	if err != nil {
		dev.Close()
		return nil, err
	}

	return &libnfcSession{dev: dev, uid: uid, logger: m.logger}, nil
}

// waitForTag polls for a tag in the reader field until ctx expires.
func (m *LibNFCManager) waitForTag(ctx context.Context, dev libnfc.Device) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		tags, err := freefare.GetTags(dev)
		if err != nil {
			return "", NewTransceiveError("OpenSession", err)
		}
		if len(tags) > 0 {
			return tags[0].UID(), nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(libnfcPollInterval):
		}
	}
}

// libnfcSession holds an exclusive connection to one presented badge.
type libnfcSession struct {
	dev    libnfc.Device
	uid    string
	logger *log.Logger

	mu     sync.Mutex
	closed bool
}

func (s *libnfcSession) UID() string {
	return s.uid
}

func (s *libnfcSession) String() string {
	return s.dev.String()
}

// Transceive exchanges a raw frame with the tag. libnfc handles the
// transport framing, so NTAG commands are sent as-is.
func (s *libnfcSession) Transceive(cmd []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, &ReaderError{Code: ErrCodeSessionClosed, Op: "Transceive", Message: "session closed"}
	}

	rx := make([]byte, 256)
	n, err := s.dev.InitiatorTransceiveBytes(cmd, rx, -1)
	if err != nil {
		if IsCardRemovedError(err) {
			return nil, NewCardRemovedError("Transceive", err)
		}
		return nil, NewTransceiveError("Transceive", err)
	}
	return rx[:n], nil
}

// ReadTagMemory reads the badge's NDEF message area with one NTAG FAST_READ.
func (s *libnfcSession) ReadTagMemory(ctx context.Context) ([]byte, error) {
	data, err := transceiveWithContext(ctx, s, FastReadCommand())
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, NewBadResponseError("ReadTagMemory", "empty FAST_READ response")
	}
	return data, nil
}

// Beep is a reader feature of the ACR122U; libnfc devices have no buzzer.
func (s *libnfcSession) Beep(enabled bool) error {
	return &ReaderError{Code: ErrCodeNotSupported, Op: "Beep", Message: "buzzer not supported on libnfc devices"}
}

func (s *libnfcSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.dev.Close()
}

var _ Session = (*libnfcSession)(nil)
var _ Device = (*libnfcSession)(nil)
var _ fmt.Stringer = (*libnfcSession)(nil)
