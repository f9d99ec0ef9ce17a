package nfc

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ebfe/scard"
)

const pcscPollInterval = 500 * time.Millisecond

// PCSCManager opens badge sessions through PC/SC (ACR122U and compatible
// USB readers).
type PCSCManager struct {
	logger *log.Logger
}

// NewPCSCManager creates a PC/SC backed reader manager.
func NewPCSCManager(logger *log.Logger) *PCSCManager {
	if logger == nil {
		logger = log.Default()
	}
	return &PCSCManager{logger: logger}
}

// ListDevices returns the names of connected PC/SC readers.
func (m *PCSCManager) ListDevices() ([]string, error) {
	sctx, err := scard.EstablishContext()
	if err != nil {
		return nil, NewNoDeviceError("ListDevices", err)
	}
	defer sctx.Release()

	readers, err := sctx.ListReaders()
	if err != nil {
		return nil, NewNoDeviceError("ListDevices", err)
	}
	return filterReaders(readers), nil
}

// filterReaders drops pseudo readers that can never hold a badge.
func filterReaders(readers []string) []string {
	out := readers[:0]
	for _, r := range readers {
		// Windows registers a virtual reader for Windows Hello
		if strings.Contains(r, "Windows Hello") {
			continue
		}
		out = append(out, r)
	}
	return out
}

// OpenSession waits for a badge on the named reader (or any reader when
// device is empty) and returns an exclusive session for it. Bounded by ctx.
func (m *PCSCManager) OpenSession(ctx context.Context, device string) (Session, error) {
	sctx, err := scard.EstablishContext()
	if err != nil {
		return nil, NewNoDeviceError("OpenSession", err)
	}

	session, err := m.waitForBadge(ctx, sctx, device)
	if err != nil {
		sctx.Release()
		return nil, err
	}
	return session, nil
}

func (m *PCSCManager) waitForBadge(ctx context.Context, sctx *scard.Context, device string) (*pcscSession, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var readers []string
		if device != "" {
			readers = []string{device}
		} else {
			all, err := sctx.ListReaders()
			if err != nil {
				return nil, NewNoDeviceError("OpenSession", err)
			}
			readers = filterReaders(all)
		}
		if len(readers) == 0 {
			return nil, NewNoDeviceError("OpenSession", nil)
		}

		states := make([]scard.ReaderState, len(readers))
		for i, r := range readers {
			states[i] = scard.ReaderState{Reader: r, CurrentState: scard.StateUnaware}
		}

		// Short timeout so ctx cancellation is observed promptly; a PC/SC
		// timeout here just means no state change yet.
		err := sctx.GetStatusChange(states, pcscPollInterval)
		if err != nil && err != scard.ErrTimeout {
			return nil, NewNoDeviceError("OpenSession", err)
		}

		for i := range states {
			if states[i].EventState&scard.StatePresent == 0 {
				continue
			}
			card, err := sctx.Connect(states[i].Reader, scard.ShareShared, scard.ProtocolAny)
			if err != nil {
				if err == scard.ErrNoSmartcard {
					continue
				}
				m.logger.Printf("pcsc: connect to %s failed: %v", states[i].Reader, err)
				continue
			}
			return newPCSCSession(sctx, card, states[i].Reader, m.logger), nil
		}
	}
}

// pcscSession holds an exclusive connection to one presented badge.
type pcscSession struct {
	sctx   *scard.Context
	card   *scard.Card
	reader string
	uid    string
	logger *log.Logger

	mu     sync.Mutex
	closed bool
}

func newPCSCSession(sctx *scard.Context, card *scard.Card, reader string, logger *log.Logger) *pcscSession {
	s := &pcscSession{
		sctx:   sctx,
		card:   card,
		reader: reader,
		logger: logger,
	}
	uid, err := s.readUID()
	if err != nil {
		logger.Printf("pcsc: could not read UID: %v", err)
	} else {
		s.uid = uid
	}
	return s
}

func (s *pcscSession) UID() string {
	return s.uid
}

func (s *pcscSession) String() string {
	return s.reader
}

// Transceive sends an APDU to the reader and strips the SW1/SW2 status
// trailer, failing unless the command reported success (0x90 0x00).
func (s *pcscSession) Transceive(apdu []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.card == nil {
		return nil, &ReaderError{Code: ErrCodeSessionClosed, Op: "Transceive", Message: "session closed"}
	}

	resp, err := s.card.Transmit(apdu)
	if err != nil {
		if err == scard.ErrRemovedCard || err == scard.ErrResetCard {
			return nil, NewCardRemovedError("Transceive", err)
		}
		return nil, NewTransceiveError("Transceive", err)
	}
	if len(resp) < 2 {
		return nil, NewBadResponseError("Transceive", "response shorter than status trailer")
	}

	sw1, sw2 := resp[len(resp)-2], resp[len(resp)-1]
	if sw1 != 0x90 || sw2 != 0x00 {
		return nil, NewBadResponseError("Transceive", fmt.Sprintf("command failed with status %02x%02x", sw1, sw2))
	}
	return resp[:len(resp)-2], nil
}

// ReadTagMemory reads the badge's NDEF message area with one NTAG FAST_READ.
//
// FAST_READ is not part of ISO/IEC 14443, so it cannot be issued as a plain
// Read Binary APDU. The reader's PN532 controller is driven directly through
// the InCommunicateThru (0xD4 0x42) pseudo-APDU, and answers 0xD5 0x43
// followed by a status byte where 0x00 means success.
func (s *pcscSession) ReadTagMemory(ctx context.Context) ([]byte, error) {
	cmd := FastReadCommand()
	apdu := append([]byte{0xFF, 0x00, 0x00, 0x00, byte(2 + len(cmd)), 0xD4, 0x42}, cmd...)

	resp, err := transceiveWithContext(ctx, s, apdu)
	if err != nil {
		return nil, err
	}
	if len(resp) < 3 || resp[0] != 0xD5 || resp[1] != 0x43 || resp[2] != 0x00 {
		return nil, NewBadResponseError("ReadTagMemory", "invalid PN532 response")
	}
	return resp[3:], nil
}

// Beep toggles the ACR122U buzzer. Failures are non-fatal for a scan.
func (s *pcscSession) Beep(enabled bool) error {
	value := byte(0x00)
	if enabled {
		value = 0xFF
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.card == nil {
		return &ReaderError{Code: ErrCodeSessionClosed, Op: "Beep", Message: "session closed"}
	}
	// The buzzer control response does not carry a 9000 trailer
	_, err := s.card.Transmit([]byte{0xFF, 0x00, 0x52, value, 0x00})
	if err != nil {
		return NewTransceiveError("Beep", err)
	}
	return nil
}

func (s *pcscSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.card != nil {
		err = s.card.Disconnect(scard.LeaveCard)
		s.card = nil
	}
	if s.sctx != nil {
		s.sctx.Release()
		s.sctx = nil
	}
	return err
}

// readUID issues the Get Data APDU for the card's UID.
func (s *pcscSession) readUID() (string, error) {
	data, err := s.Transceive([]byte{0xFF, 0xCA, 0x00, 0x00, 0x00})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", data), nil
}
