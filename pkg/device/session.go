package device

import (
	"context"
	"fmt"
	"time"

	"github.com/switchbot-ble/switchbot/pkg/crypt"
	"github.com/switchbot-ble/switchbot/pkg/gatt"
)

// ============================================================================
// Session lifecycle
// ============================================================================

// session is one open GATT link plus everything scoped to it: the
// notification channel and, for encrypted models, the negotiated cipher.
// A session is created under connMu and torn down exactly once.
type session struct {
	client gatt.Client
	cipher *crypt.SessionCipher

	// notifyCh receives raw notification payloads. Buffered so the
	// transport callback never blocks on a slow reader.
	notifyCh chan []byte

	idleTimer *time.Timer
	closed    chan struct{}
}

// connect returns the current session, opening a new link when none exists.
// Each call resets the idle disconnect timer.
func (d *Device) connect(ctx context.Context) (*session, error) {
	d.connMu.Lock()
	defer d.connMu.Unlock()

	if d.session != nil {
		d.session.idleTimer.Reset(disconnectDelay)
		return d.session, nil
	}

	d.logger.Debug("Connecting")
	client, err := d.transport.Connect(ctx, d.address)
	if err != nil {
		return nil, gatt.NormalizeError(err)
	}

	s := &session{
		client:   client,
		notifyCh: make(chan []byte, 8),
		closed:   make(chan struct{}),
	}

	if err := client.Subscribe(func(data []byte) {
		// The payload is only valid for the duration of the callback.
		buf := append([]byte(nil), data...)
		// Keep only the most recent payload when the reader lags.
		select {
		case s.notifyCh <- buf:
		default:
			select {
			case <-s.notifyCh:
			default:
			}
			s.notifyCh <- buf
		}
	}); err != nil {
		_ = client.Disconnect()
		return nil, gatt.NormalizeError(err)
	}

	s.idleTimer = time.AfterFunc(disconnectDelay, func() {
		d.logger.Debug("Idle timeout, disconnecting")
		d.dropSession(s)
	})

	// Clear engine state when the peripheral drops the link on its own.
	go func() {
		select {
		case <-client.Disconnected():
			d.logger.Debug("Remote disconnect")
			d.dropSession(s)
		case <-s.closed:
		}
	}()

	d.session = s
	d.logger.Debug("Connected")
	return s, nil
}

// dropSession tears a specific session down. It is a no-op when the current
// session has already been replaced, so the idle timer, the remote
// disconnect watcher and forced reconnects can all call it safely.
func (d *Device) dropSession(s *session) {
	d.connMu.Lock()
	if d.session != s {
		d.connMu.Unlock()
		return
	}
	d.session = nil
	d.connMu.Unlock()

	s.idleTimer.Stop()
	close(s.closed)
	if err := s.client.Disconnect(); err != nil {
		d.logger.WithError(err).Debug("Disconnect failed")
	}
}

// Disconnect drops the current link, if any. Idle teardown makes calling
// this optional; it exists for callers that want the peripheral advertising
// again immediately.
func (d *Device) Disconnect() {
	d.connMu.Lock()
	s := d.session
	d.connMu.Unlock()
	if s != nil {
		d.dropSession(s)
	}
}

// awaitNotification blocks for the next notification payload on s, bounded
// by notificationTimeout and ctx.
func (d *Device) awaitNotification(ctx context.Context, s *session) ([]byte, error) {
	timer := time.NewTimer(notificationTimeout)
	defer timer.Stop()

	select {
	case data := <-s.notifyCh:
		return data, nil
	case <-timer.C:
		return nil, fmt.Errorf("waiting for response: %w", gatt.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, gatt.Transient(fmt.Errorf("link closed while waiting for response"))
	}
}

// drainNotifications discards payloads left over from a previous exchange
// so a stale response is never matched to a new command.
func (s *session) drainNotifications() {
	for {
		select {
		case <-s.notifyCh:
		default:
			return
		}
	}
}
