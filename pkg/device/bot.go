package device

import (
	"context"
	"fmt"

	"github.com/switchbot-ble/switchbot/pkg/gatt"
)

// ============================================================================
// Bot (WoHand)
// ============================================================================

var (
	botPressKey = []byte{CmdHeader, 0x01, 0x00}
	botOnKey    = []byte{CmdHeader, 0x01, 0x01}
	botOffKey   = []byte{CmdHeader, 0x01, 0x02}
	botDownKey  = []byte{CmdHeader, 0x01, 0x03}
	botUpKey    = []byte{CmdHeader, 0x01, 0x04}
)

// statusBusyOK is returned by bots in switch mode that are already in the
// requested state. Treated as success.
const statusBusyOK = 0x05

// Bot drives the button-pressing robot. Inverse mode swaps the reported
// on/off orientation for arms mounted upside down.
type Bot struct {
	*Device
	inverse bool
}

// NewBot builds a Bot facade. Set inverse for arms mounted so that the
// pressed position means off.
func NewBot(transport gatt.Transport, address string, inverse bool, opts Options) *Bot {
	return &Bot{
		Device:  New(transport, address, Capabilities{}, nil, opts),
		inverse: inverse,
	}
}

func (b *Bot) action(ctx context.Context, cmd []byte) error {
	resp, err := b.SendCommand(ctx, cmd)
	if err != nil {
		return err
	}
	return b.CheckResult(cmd, resp, 0, StatusOK, statusBusyOK)
}

// Press performs a momentary press.
func (b *Bot) Press(ctx context.Context) error { return b.action(ctx, botPressKey) }

// TurnOn moves the arm to the on position.
func (b *Bot) TurnOn(ctx context.Context) error { return b.action(ctx, botOnKey) }

// TurnOff moves the arm to the off position.
func (b *Bot) TurnOff(ctx context.Context) error { return b.action(ctx, botOffKey) }

// HandUp retracts the arm.
func (b *Bot) HandUp(ctx context.Context) error { return b.action(ctx, botUpKey) }

// HandDown extends the arm.
func (b *Bot) HandDown(ctx context.Context) error { return b.action(ctx, botDownKey) }

// SetSwitchMode switches the bot between press mode and switch mode.
// strength is the push strength percentage.
func (b *Bot) SetSwitchMode(ctx context.Context, switchMode bool, strength int, inverse bool) error {
	var mode byte
	if switchMode {
		mode |= 0x10
	}
	if inverse {
		mode |= 0x01
	}
	cmd := []byte{CmdHeader, 0x03, byte(strength), mode}
	resp, err := b.SendCommand(ctx, cmd)
	if err != nil {
		return err
	}
	return b.CheckResult(cmd, resp, 0, StatusOK)
}

// SetLongPress sets the hold duration in seconds for press mode.
func (b *Bot) SetLongPress(ctx context.Context, seconds int) error {
	if seconds < 0 || seconds > 0xff {
		return fmt.Errorf("long press duration %d out of range", seconds)
	}
	cmd := []byte{CmdHeader, CmdByte, 0x08, byte(seconds)}
	resp, err := b.SendCommand(ctx, cmd)
	if err != nil {
		return err
	}
	return b.CheckResult(cmd, resp, 0, StatusOK)
}

// BotSettings is the typed view of a bot's settings page.
type BotSettings struct {
	Battery          int
	Firmware         float64
	Strength         int
	Timers           int
	SwitchMode       bool
	InverseDirection bool
	HoldSeconds      int
}

// BasicInfo reads and parses the settings page.
func (b *Bot) BasicInfo(ctx context.Context) (*BotSettings, error) {
	data, err := b.BasicSettings(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) < 11 {
		return nil, b.protocolErrorf(basicSettingsKey, "settings page truncated: %d bytes", len(data))
	}
	return &BotSettings{
		Battery:          int(data[1]),
		Firmware:         float64(data[2]) / 10.0,
		Strength:         int(data[3]),
		Timers:           int(data[8]),
		SwitchMode:       data[9]&0x10 != 0,
		InverseDirection: data[9]&0x01 != 0,
		HoldSeconds:      int(data[10]),
	}, nil
}

// SwitchMode reports whether the bot advertised switch mode.
func (b *Bot) SwitchMode() bool {
	v, _ := b.AdvValue("switchMode").(bool)
	return v
}

// IsOn returns the cached switch state, honoring inverse mode. The second
// return is false when no state has been seen.
func (b *Bot) IsOn() (bool, bool) {
	v, ok := b.AdvValue("isOn").(bool)
	if !ok {
		return false, false
	}
	if b.inverse {
		return !v, true
	}
	return v, true
}
