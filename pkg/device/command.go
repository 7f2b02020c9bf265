package device

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/switchbot-ble/switchbot/pkg/crypt"
	"github.com/switchbot-ble/switchbot/pkg/gatt"
)

// ============================================================================
// Command execution
// ============================================================================

const (
	// CmdHeader opens every request frame.
	CmdHeader = 0x57

	// CmdByte is the fixed second request byte.
	CmdByte = 0x0f
)

// keyExchangePrefix requests the per-session IV from an encrypted model.
// The credential key ID is appended before sending.
var keyExchangePrefix = []byte{CmdHeader, CmdByte, 0x21, 0x03}

// StatusOK is the response status shared by most commands.
const StatusOK = 0x01

// SendCommand writes cmd and returns the device's notification response.
// Commands are serialized; concurrent callers queue. Transient failures are
// retried with a forced disconnect between attempts, so each retry starts
// from a fresh link (and, on encrypted models, a fresh session key).
func (d *Device) SendCommand(ctx context.Context, cmd []byte) ([]byte, error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if d.password != nil {
		cmd = applyPasswordDigest(cmd, d.password)
	}

	var lastErr error
	attempts := d.retryCount + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			d.logger.WithField("attempt", attempt+1).
				WithError(lastErr).
				Debug("Retrying command")
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := d.execute(ctx, cmd)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !gatt.IsTransient(err) {
			return nil, err
		}

		// Force a clean slate for the next attempt.
		d.Disconnect()
	}
	return nil, fmt.Errorf("command %x failed after %d attempts: %w", cmd, attempts, lastErr)
}

// execute performs a single command exchange on the current or a fresh link.
func (d *Device) execute(ctx context.Context, cmd []byte) ([]byte, error) {
	s, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	if d.caps.RequiresEncryption && s.cipher == nil {
		if err := d.exchangeKey(ctx, s); err != nil {
			return nil, err
		}
	}

	frame := cmd
	if s.cipher != nil {
		frame = encryptFrame(s.cipher, d.creds.KeyID, cmd)
	}

	s.drainNotifications()
	if err := s.client.Write(frame); err != nil {
		return nil, gatt.NormalizeError(err)
	}

	resp, err := d.awaitNotification(ctx, s)
	if err != nil {
		return nil, err
	}

	if s.cipher != nil {
		if len(resp) < 4 {
			return nil, d.protocolErrorf(cmd, "encrypted response too short: %d bytes", len(resp))
		}
		plain := make([]byte, 0, 1+len(resp)-4)
		plain = append(plain, resp[0])
		plain = append(plain, s.cipher.Decrypt(resp[4:])...)
		resp = plain
	}

	s.idleTimer.Reset(disconnectDelay)
	return resp, nil
}

// exchangeKey negotiates the session IV and installs the cipher on s. The
// request travels unencrypted with a zero IV placeholder; everything after
// it is wrapped.
func (d *Device) exchangeKey(ctx context.Context, s *session) error {
	if d.creds == nil {
		return d.protocolErrorf(nil, "encryption required but no credentials configured")
	}

	cmd := append(append([]byte{}, keyExchangePrefix...), d.creds.KeyID)
	frame := append([]byte{cmd[0], 0x00, 0x00, 0x00}, cmd[1:]...)

	s.drainNotifications()
	if err := s.client.Write(frame); err != nil {
		return gatt.NormalizeError(err)
	}
	resp, err := d.awaitNotification(ctx, s)
	if err != nil {
		return err
	}
	if len(resp) < 4 || resp[0] != StatusOK {
		return d.protocolErrorf(cmd, "key exchange rejected: % x", resp)
	}

	iv := resp[4:]
	cipher, err := crypt.NewSessionCipher(d.creds.Key, iv)
	if err != nil {
		return d.protocolErrorf(cmd, "key exchange returned unusable IV: %v", err)
	}
	s.cipher = cipher
	d.logger.Debug("Session key established")
	return nil
}

// encryptFrame wraps cmd for the wire: opcode in the clear, then the key ID
// and the first two IV bytes, then the encrypted remainder.
func encryptFrame(c *crypt.SessionCipher, keyID byte, cmd []byte) []byte {
	frame := make([]byte, 0, len(cmd)+3)
	frame = append(frame, cmd[0], keyID)
	frame = append(frame, c.IVPrefix()...)
	frame = append(frame, c.Encrypt(cmd[1:])...)
	return frame
}

// CheckResult validates the response byte at index against the set a
// command accepts, returning a ProtocolError otherwise. Most commands
// report status at index 0; some report it one byte in.
func (d *Device) CheckResult(cmd, resp []byte, index int, accepted ...byte) error {
	if len(resp) <= index {
		return d.protocolErrorf(cmd, "response too short: % x", resp)
	}
	for _, a := range accepted {
		if resp[index] == a {
			return nil
		}
	}
	return d.protocolErrorf(cmd, "unexpected status 0x%02x", resp[index])
}

// ============================================================================
// Legacy password digest
// ============================================================================

func passwordDigest(password string) []byte {
	sum := crc32.ChecksumIEEE([]byte(password))
	digest := make([]byte, 4)
	binary.BigEndian.PutUint32(digest, sum)
	return digest
}

// applyPasswordDigest rewrites cmd to carry the password digest: the second
// byte's high nibble becomes 0x1 and the four digest bytes are spliced in
// after it.
func applyPasswordDigest(cmd []byte, digest []byte) []byte {
	if len(cmd) < 2 {
		return cmd
	}
	out := make([]byte, 0, len(cmd)+4)
	out = append(out, cmd[0], 0x10|(cmd[1]&0x0f))
	out = append(out, digest...)
	out = append(out, cmd[2:]...)
	return out
}
