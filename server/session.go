package server

import (
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"sync"
	"time"
)

// SessionManager hands out the single status-client session. The agent sits
// at a door with one dashboard; a second client connecting is a
// misconfiguration, not a use case.
type SessionManager struct {
	token     string
	origin    string // Bound origin for the session
	ip        string // Bound IP address for the session
	apiSecret string // Optional API secret for handshake
	timeout   time.Duration
	timer     *time.Timer
	logger    *log.Logger
	mu        sync.RWMutex
}

// NewSessionManager creates a session manager. An empty apiSecret disables
// the secret check; a zero timeout means sessions never expire on their own.
func NewSessionManager(apiSecret string, timeout time.Duration, logger *log.Logger) *SessionManager {
	if logger == nil {
		logger = log.Default()
	}
	return &SessionManager{
		apiSecret: apiSecret,
		timeout:   timeout,
		logger:    logger,
	}
}

func generateSessionToken() string {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		panic(fmt.Sprintf("session token: %v", err))
	}
	return fmt.Sprintf("%x", b)
}

// Acquire claims the session. Returns the token, or "" when the secret is
// wrong or the session is already held. origin and remoteAddr are bound to
// the session and checked on Validate.
func (m *SessionManager) Acquire(secret, origin, remoteAddr string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.apiSecret != "" && secret != m.apiSecret {
		return ""
	}
	if m.token != "" {
		return ""
	}

	m.token = generateSessionToken()
	m.origin = origin
	m.ip = remoteAddr

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.timeout > 0 {
		m.timer = time.AfterFunc(m.timeout, func() {
			m.Release()
			m.logger.Println("session timed out, token released")
		})
	}

	m.logger.Printf("session acquired: %s... (origin: %s, ip: %s)", m.token[:8], origin, remoteAddr)
	return m.token
}

// Validate reports whether token matches the held session and its bindings.
func (m *SessionManager) Validate(token, origin, remoteAddr string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == "" || m.token != token {
		return false
	}
	if m.origin != "" && origin != m.origin {
		m.logger.Printf("session validation failed: origin mismatch (expected: %s, got: %s)", m.origin, origin)
		return false
	}
	if m.ip != "" && remoteAddr != m.ip {
		m.logger.Printf("session validation failed: IP mismatch (expected: %s, got: %s)", m.ip, remoteAddr)
		return false
	}
	return true
}

// Release frees the session for the next client.
func (m *SessionManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == "" {
		return
	}
	m.logger.Printf("session released: %s...", m.token[:8])
	m.token = ""
	m.origin = ""
	m.ip = ""
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// RefreshTimeout pushes the expiry back by the configured timeout.
func (m *SessionManager) RefreshTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Reset(m.timeout)
	}
}
