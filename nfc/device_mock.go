package nfc

import (
	"context"
	"sync"
	"time"
)

// MockSession is an in-memory Session for tests.
type MockSession struct {
	TagUID    string
	Memory    []byte        // Bytes returned by ReadTagMemory
	ReadErr   error         // Error returned by ReadTagMemory
	ReadDelay time.Duration // Simulated read latency

	mu         sync.Mutex
	closeCount int
	beepCalls  []bool
}

func (s *MockSession) UID() string {
	return s.TagUID
}

func (s *MockSession) ReadTagMemory(ctx context.Context) ([]byte, error) {
	if s.ReadDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.ReadDelay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}
	return s.Memory, nil
}

func (s *MockSession) Beep(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beepCalls = append(s.beepCalls, enabled)
	return nil
}

func (s *MockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	return nil
}

// CloseCount returns how many times Close was called.
func (s *MockSession) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

// MockManager is an in-memory Manager for tests.
type MockManager struct {
	Devices   []string
	Session   *MockSession
	OpenErr   error
	OpenDelay time.Duration // Simulated wait for a badge tap

	mu        sync.Mutex
	openCalls int
}

func (m *MockManager) ListDevices() ([]string, error) {
	return m.Devices, nil
}

func (m *MockManager) OpenSession(ctx context.Context, device string) (Session, error) {
	m.mu.Lock()
	m.openCalls++
	m.mu.Unlock()

	if m.OpenDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.OpenDelay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	if m.Session == nil {
		return nil, NewNoCardError("OpenSession", device)
	}
	return m.Session, nil
}

// OpenCalls returns how many times OpenSession was called.
func (m *MockManager) OpenCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCalls
}
