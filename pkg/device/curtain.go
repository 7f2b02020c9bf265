package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/switchbot-ble/switchbot/pkg/adv"
	"github.com/switchbot-ble/switchbot/pkg/gatt"
)

// ============================================================================
// Curtain (WoCurtain)
// ============================================================================

// The firmware changed the motion command layout between revisions. We have
// no way to tell which one a device speaks, so movement commands send both
// variants and accept success from either.
var (
	curtainOpenKeys = [][]byte{
		{CmdHeader, CmdByte, 0x45, 0x01, 0x01, 0x01, 0x00},
		{CmdHeader, CmdByte, 0x45, 0x01, 0x05, 0xff, 0x00},
	}
	curtainCloseKeys = [][]byte{
		{CmdHeader, CmdByte, 0x45, 0x01, 0x01, 0x01, 0x64},
		{CmdHeader, CmdByte, 0x45, 0x01, 0x05, 0xff, 0x64},
	}
	curtainPositionKeys = [][]byte{
		{CmdHeader, CmdByte, 0x45, 0x01, 0x01, 0x01},
		{CmdHeader, CmdByte, 0x45, 0x01, 0x05, 0xff},
	}
	curtainStopKeys = [][]byte{
		{CmdHeader, CmdByte, 0x45, 0x01, 0x00, 0x01},
		{CmdHeader, CmdByte, 0x45, 0x01, 0x00, 0xff},
	}

	curtainExtSumKey   = []byte{CmdHeader, CmdByte, 0x46, 0x04, 0x01}
	curtainExtAdvKey   = []byte{CmdHeader, CmdByte, 0x46, 0x04, 0x02}
	curtainExtChainKey = []byte{CmdHeader, CmdByte, 0x46, 0x81, 0x01}
)

// Curtain drives the curtain motor. Positions are 0..100; with reverse set
// (the default orientation most integrations expect) 100 means open, which
// flips the firmware's convention of 0 meaning open.
type Curtain struct {
	*Device
	reverse bool

	motionMu sync.Mutex
	opening  bool
	closing  bool
}

// NewCurtain builds a Curtain facade.
func NewCurtain(transport gatt.Transport, address string, reverse bool, opts Options) *Curtain {
	return &Curtain{
		Device:  New(transport, address, Capabilities{}, nil, opts),
		reverse: reverse,
	}
}

// sendAll sends every key and succeeds when at least one is accepted.
// The last failure is returned when none is.
func (c *Curtain) sendAll(ctx context.Context, keys [][]byte) error {
	accepted := false
	var lastErr error
	for _, cmd := range keys {
		resp, err := c.SendCommand(ctx, cmd)
		if err != nil {
			lastErr = err
			continue
		}
		if err := c.CheckResult(cmd, resp, 0, StatusOK); err != nil {
			lastErr = err
			continue
		}
		accepted = true
	}
	if accepted {
		return nil
	}
	return lastErr
}

// Open runs the curtain fully open.
func (c *Curtain) Open(ctx context.Context) error { return c.sendAll(ctx, curtainOpenKeys) }

// Close runs the curtain fully closed.
func (c *Curtain) Close(ctx context.Context) error { return c.sendAll(ctx, curtainCloseKeys) }

// Stop halts any movement in progress.
func (c *Curtain) Stop(ctx context.Context) error { return c.sendAll(ctx, curtainStopKeys) }

// SetPosition runs the curtain to a target position between 0 and 100.
func (c *Curtain) SetPosition(ctx context.Context, position int) error {
	if position < 0 || position > 100 {
		return fmt.Errorf("position %d out of range", position)
	}
	if c.reverse {
		position = 100 - position
	}
	keys := make([][]byte, 0, len(curtainPositionKeys))
	for _, k := range curtainPositionKeys {
		keys = append(keys, append(append([]byte{}, k...), byte(position)))
	}
	return c.sendAll(ctx, keys)
}

// UpdateFromAdvertisement applies a decoded advertisement and derives the
// movement direction from consecutive position reports.
func (c *Curtain) UpdateFromAdvertisement(a *adv.Advertisement) {
	prev, prevOK := c.Position()
	c.Device.UpdateFromAdvertisement(a)
	next, nextOK := c.Position()
	inMotion, _ := c.AdvValue("inMotion").(bool)

	c.motionMu.Lock()
	defer c.motionMu.Unlock()
	if !inMotion || !prevOK || !nextOK || prev == next {
		c.opening, c.closing = false, false
		return
	}
	c.opening = next > prev
	c.closing = next < prev
}

// Position returns the cached position, or false when none has been seen.
func (c *Curtain) Position() (int, bool) {
	v, ok := c.AdvValue("position").(int)
	return v, ok
}

// LightLevel returns the cached ambient light level (1..10).
func (c *Curtain) LightLevel() (int, bool) {
	v, ok := c.AdvValue("lightLevel").(int)
	return v, ok
}

// IsCalibrated reports whether the travel range has been calibrated.
func (c *Curtain) IsCalibrated() bool {
	v, _ := c.AdvValue("calibration").(bool)
	return v
}

// IsReversed reports whether positions are flipped from the firmware's
// convention.
func (c *Curtain) IsReversed() bool { return c.reverse }

// IsOpening reports whether the last two position reports showed movement
// toward open.
func (c *Curtain) IsOpening() bool {
	c.motionMu.Lock()
	defer c.motionMu.Unlock()
	return c.opening
}

// IsClosing reports whether the last two position reports showed movement
// toward closed.
func (c *Curtain) IsClosing() bool {
	c.motionMu.Lock()
	defer c.motionMu.Unlock()
	return c.closing
}

// CurtainSettings is the typed view of a curtain's settings page.
type CurtainSettings struct {
	Battery       int
	Firmware      float64
	ChainLength   int
	OpenDirection string
	TouchToOpen   bool
	Light         bool
	Fault         bool
	SolarPanel    bool
	Calibrated    bool
	InMotion      bool
	Position      int
	Timers        int
}

// BasicInfo reads and parses the settings page.
func (c *Curtain) BasicInfo(ctx context.Context) (*CurtainSettings, error) {
	data, err := c.BasicSettings(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) < 8 {
		return nil, c.protocolErrorf(basicSettingsKey, "settings page truncated: %d bytes", len(data))
	}

	position := int(data[6])
	if position > 100 {
		position = 100
	}
	if c.reverse {
		position = 100 - position
	}
	direction := "left_to_right"
	if data[4]&0x80 != 0 {
		direction = "right_to_left"
	}
	return &CurtainSettings{
		Battery:       int(data[1]),
		Firmware:      float64(data[2]) / 10.0,
		ChainLength:   int(data[3]),
		OpenDirection: direction,
		TouchToOpen:   data[4]&0x40 != 0,
		Light:         data[4]&0x20 != 0,
		Fault:         data[4]&0x08 != 0,
		SolarPanel:    data[5]&0x08 != 0,
		Calibrated:    data[5]&0x04 != 0,
		InMotion:      data[5]&0x43 != 0,
		Position:      position,
		Timers:        int(data[7]),
	}, nil
}

// CurtainDeviceSummary describes one device in a grouped curtain chain.
type CurtainDeviceSummary struct {
	OpenDirectionDefault bool
	TouchToOpen          bool
	Light                bool
	OpenDirection        string
}

// CurtainExtendedSummary is the chain settings page. Device1 is nil for an
// ungrouped curtain.
type CurtainExtendedSummary struct {
	Device0 CurtainDeviceSummary
	Device1 *CurtainDeviceSummary
}

// ExtendedInfoSummary reads settings for every device in the chain.
func (c *Curtain) ExtendedInfoSummary(ctx context.Context) (*CurtainExtendedSummary, error) {
	data, err := c.SendCommand(ctx, curtainExtSumKey)
	if err != nil {
		return nil, err
	}
	if len(data) < 3 {
		return nil, c.protocolErrorf(curtainExtSumKey, "chain summary truncated: %d bytes", len(data))
	}

	parse := func(b byte) CurtainDeviceSummary {
		direction := "right_to_left"
		if b&0x10 != 0 {
			direction = "left_to_right"
		}
		return CurtainDeviceSummary{
			OpenDirectionDefault: b&0x80 == 0,
			TouchToOpen:          b&0x40 != 0,
			Light:                b&0x20 != 0,
			OpenDirection:        direction,
		}
	}

	sum := &CurtainExtendedSummary{Device0: parse(data[1])}
	if data[2] != 0 {
		second := parse(data[2])
		sum.Device1 = &second
	}
	return sum, nil
}

var chargeStates = []string{
	"not_charging",
	"charging_by_adapter",
	"charging_by_solar",
	"fully_charged",
	"solar_not_charging",
	"charging_error",
}

// CurtainDeviceStatus describes battery and charging for one device in a
// chain.
type CurtainDeviceStatus struct {
	Battery       int
	Firmware      float64
	StateOfCharge string
}

// CurtainExtendedAdv is the chain status page. Device1 is nil for an
// ungrouped curtain.
type CurtainExtendedAdv struct {
	Device0 CurtainDeviceStatus
	Device1 *CurtainDeviceStatus
}

// ExtendedInfoAdv reads battery and charge state for every device in the
// chain.
func (c *Curtain) ExtendedInfoAdv(ctx context.Context) (*CurtainExtendedAdv, error) {
	data, err := c.SendCommand(ctx, curtainExtAdvKey)
	if err != nil {
		return nil, err
	}
	if len(data) < 5 {
		return nil, c.protocolErrorf(curtainExtAdvKey, "chain status truncated: %d bytes", len(data))
	}

	charge := func(b byte) string {
		if int(b) < len(chargeStates) {
			return chargeStates[b]
		}
		return "unknown"
	}

	out := &CurtainExtendedAdv{
		Device0: CurtainDeviceStatus{
			Battery:       int(data[1]),
			Firmware:      float64(data[2]) / 10.0,
			StateOfCharge: charge(data[3]),
		},
	}
	if data[4] != 0 && len(data) >= 7 {
		out.Device1 = &CurtainDeviceStatus{
			Battery:       int(data[4]),
			Firmware:      float64(data[5]) / 10.0,
			StateOfCharge: charge(data[6]),
		}
	}
	return out, nil
}

// ChainInfo returns the raw chain topology page.
func (c *Curtain) ChainInfo(ctx context.Context) ([]byte, error) {
	data, err := c.SendCommand(ctx, curtainExtChainKey)
	if err != nil {
		return nil, err
	}
	if err := c.CheckResult(curtainExtChainKey, data, 0, StatusOK); err != nil {
		return nil, err
	}
	return data, nil
}
