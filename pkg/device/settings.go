package device

import "context"

// ============================================================================
// Shared settings command
// ============================================================================

var basicSettingsKey = []byte{CmdHeader, 0x02}

// BasicSettings requests the raw settings page shared by most models. The
// layout past the status byte is model-specific; facades expose typed views
// of it.
func (d *Device) BasicSettings(ctx context.Context) ([]byte, error) {
	resp, err := d.SendCommand(ctx, basicSettingsKey)
	if err != nil {
		return nil, err
	}
	// A lone 0x07 or 0x00 is the firmware's busy reply.
	if len(resp) == 1 && (resp[0] == 0x07 || resp[0] == 0x00) {
		return nil, d.protocolErrorf(basicSettingsKey, "device busy, status 0x%02x", resp[0])
	}
	return resp, nil
}
