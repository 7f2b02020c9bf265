package device

import "fmt"

// ============================================================================
// Errors
// ============================================================================

// ProtocolError reports a device response that violates the wire protocol:
// a notification that is too short, a status byte outside the accepted set,
// or an encrypted payload that cannot be decrypted. Protocol errors are
// never retried.
type ProtocolError struct {
	Address string
	Command []byte
	Reason  string
}

func (e *ProtocolError) Error() string {
	if len(e.Command) > 0 {
		return fmt.Sprintf("protocol error from %s (command %x): %s", e.Address, e.Command, e.Reason)
	}
	return fmt.Sprintf("protocol error from %s: %s", e.Address, e.Reason)
}

func (d *Device) protocolErrorf(cmd []byte, format string, args ...interface{}) error {
	return &ProtocolError{
		Address: d.address,
		Command: cmd,
		Reason:  fmt.Sprintf(format, args...),
	}
}
