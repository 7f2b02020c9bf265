package device

import "github.com/switchbot-ble/switchbot/pkg/gatt"

// ============================================================================
// Passive state readers
// ============================================================================

// Meter reads the thermometer/hygrometer. All state arrives in
// advertisements; there is nothing to write.
type Meter struct {
	*Device
}

// NewMeter builds a Meter reader.
func NewMeter(transport gatt.Transport, address string, opts Options) *Meter {
	return &Meter{Device: New(transport, address, Capabilities{}, nil, opts)}
}

// Temperature returns the cached reading in degrees Celsius.
func (m *Meter) Temperature() (float64, bool) {
	v, ok := m.AdvValue("temperature").(float64)
	return v, ok
}

// Humidity returns the cached relative humidity percentage.
func (m *Meter) Humidity() (int, bool) {
	v, ok := m.AdvValue("humidity").(int)
	return v, ok
}

// CO2 returns the cached CO2 concentration in ppm, when the model meters
// it.
func (m *Meter) CO2() (int, bool) {
	v, ok := m.AdvValue("co2").(int)
	return v, ok
}

// Plug reads the plug mini's advertised state.
type Plug struct {
	*Device
}

// NewPlug builds a Plug reader.
func NewPlug(transport gatt.Transport, address string, opts Options) *Plug {
	caps := Capabilities{ConsumeAdvertisementDuringConnection: true}
	return &Plug{Device: New(transport, address, caps, nil, opts)}
}

// IsOn returns the cached relay state.
func (p *Plug) IsOn() (bool, bool) {
	v, ok := p.AdvValue("isOn").(bool)
	return v, ok
}

// PowerW returns the cached power draw in watts.
func (p *Plug) PowerW() (float64, bool) {
	v, ok := p.AdvValue("power").(float64)
	return v, ok
}

// ColorBulb reads the bulb's advertised state.
type ColorBulb struct {
	*Device
}

// NewColorBulb builds a ColorBulb reader.
func NewColorBulb(transport gatt.Transport, address string, opts Options) *ColorBulb {
	caps := Capabilities{ConsumeAdvertisementDuringConnection: true}
	return &ColorBulb{Device: New(transport, address, caps, nil, opts)}
}

// IsOn returns the cached power state.
func (b *ColorBulb) IsOn() (bool, bool) {
	v, ok := b.AdvValue("isOn").(bool)
	return v, ok
}

// Brightness returns the cached brightness percentage.
func (b *ColorBulb) Brightness() (int, bool) {
	v, ok := b.AdvValue("brightness").(int)
	return v, ok
}
