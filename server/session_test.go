package server

import (
	"io"
	"log"
	"testing"
	"time"
)

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(io.Discard, "", 0)
}

func TestSessionSingleClaim(t *testing.T) {
	m := NewSessionManager("", time.Minute, testLogger(t))

	token := m.Acquire("", "http://localhost:3000", "127.0.0.1:12345")
	if token == "" {
		t.Fatal("first acquisition must succeed")
	}
	if m.Acquire("", "http://localhost:3001", "127.0.0.1:12346") != "" {
		t.Error("second acquisition must fail while the session is held")
	}

	m.Release()
	if m.Acquire("", "http://localhost:3002", "127.0.0.1:12347") == "" {
		t.Error("acquisition must succeed again after release")
	}
}

func TestSessionSecret(t *testing.T) {
	m := NewSessionManager("door-secret", time.Minute, testLogger(t))

	tests := []struct {
		name   string
		secret string
		want   bool
	}{
		{"valid secret", "door-secret", true},
		{"wrong secret", "other", false},
		{"missing secret", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.Release()
			got := m.Acquire(tt.secret, "http://localhost:3000", "127.0.0.1:12345") != ""
			if got != tt.want {
				t.Errorf("acquired = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestSessionValidateBindings(t *testing.T) {
	m := NewSessionManager("", time.Minute, testLogger(t))

	origin := "http://localhost:3000"
	ip := "127.0.0.1:12345"
	token := m.Acquire("", origin, ip)
	if token == "" {
		t.Fatal("failed to acquire session")
	}

	tests := []struct {
		name   string
		token  string
		origin string
		ip     string
		want   bool
	}{
		{"matching bindings", token, origin, ip, true},
		{"wrong token", "nope", origin, ip, false},
		{"wrong origin", token, "http://evil.example.com", ip, false},
		{"wrong ip", token, origin, "10.0.0.9:1", false},
		{"empty token", "", origin, ip, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Validate(tt.token, tt.origin, tt.ip); got != tt.want {
				t.Errorf("Validate = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestSessionTimeoutAndRefresh(t *testing.T) {
	m := NewSessionManager("", 100*time.Millisecond, testLogger(t))

	origin := "http://localhost:3000"
	ip := "127.0.0.1:12345"
	token := m.Acquire("", origin, ip)
	if token == "" {
		t.Fatal("failed to acquire session")
	}

	time.Sleep(50 * time.Millisecond)
	m.RefreshTimeout()
	time.Sleep(50 * time.Millisecond)

	if !m.Validate(token, origin, ip) {
		t.Error("session must survive a refreshed timeout")
	}

	time.Sleep(150 * time.Millisecond)
	if m.Validate(token, origin, ip) {
		t.Error("session must expire after the timeout")
	}
	if m.Acquire("", origin, ip) == "" {
		t.Error("a new session must be acquirable after expiry")
	}
}

func TestSessionZeroTimeoutNeverExpires(t *testing.T) {
	m := NewSessionManager("", 0, testLogger(t))

	origin := "http://localhost:3000"
	ip := "127.0.0.1:12345"
	token := m.Acquire("", origin, ip)
	if token == "" {
		t.Fatal("failed to acquire session")
	}

	time.Sleep(50 * time.Millisecond)
	if !m.Validate(token, origin, ip) {
		t.Error("zero-timeout session must not expire")
	}
}
