package nfc

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff"
)

// transceiveWithContext runs a blocking command/response exchange bounded by
// ctx. The underlying exchange cannot be aborted once started; on ctx expiry
// the result is discarded and the ctx error returned.
func transceiveWithContext(ctx context.Context, dev Device, cmd []byte) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := dev.Transceive(cmd)
		done <- result{data, err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reader acquires badge sessions from a backend, riding out transient
// hardware hiccups (reader unplugged, service restarting) with exponential
// backoff. It does not serialize scans; the orchestrator owns that.
type Reader struct {
	manager Manager
	device  string
	logger  *log.Logger
}

// NewReader creates a Reader for the named device ("" means any reader the
// backend finds).
func NewReader(manager Manager, device string, logger *log.Logger) *Reader {
	if logger == nil {
		logger = log.Default()
	}
	return &Reader{manager: manager, device: device, logger: logger}
}

// DevicePath returns the configured device name.
func (r *Reader) DevicePath() string {
	return r.device
}

// ListDevices returns the backend's reader names.
func (r *Reader) ListDevices() ([]string, error) {
	return r.manager.ListDevices()
}

// OpenSession blocks until a badge is presented and returns an exclusive
// session for it, bounded by ctx. Transient no-device conditions are retried
// with backoff; everything else fails immediately.
func (r *Reader) OpenSession(ctx context.Context) (Session, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 0 // bounded by ctx instead

	for {
		session, err := r.manager.OpenSession(ctx, r.device)
		if err == nil {
			return session, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if GetErrorCode(err) != ErrCodeNoDevice {
			return nil, err
		}

		wait := bo.NextBackOff()
		r.logger.Printf("reader: no device available, retrying in %v: %v", wait, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}
