// Package scanner implements continuous BLE discovery. Every received
// advertisement is decoded and folded into a per-address table holding the
// best known state for each device.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cornelk/hashmap"
	blelib "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/switchbot-ble/switchbot/internal/ringchan"
	"github.com/switchbot-ble/switchbot/pkg/adv"
	"github.com/switchbot-ble/switchbot/pkg/gatt"
)

// DeviceEventType marks whether the address was newly discovered or
// refreshed.
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

// DeviceEvent is one decoded advertisement attributed to an address.
type DeviceEvent struct {
	Type          DeviceEventType
	Advertisement *adv.Advertisement
}

// Options configures scanning behavior.
type Options struct {
	// Duration bounds one Scan call; zero scans until the context ends.
	Duration time.Duration

	// DuplicateFilter lets the controller suppress repeated frames.
	// Disable it for passive monitoring where every frame matters.
	DuplicateFilter bool

	// AllowList restricts results to these addresses when non-empty.
	AllowList []string

	// BlockList drops these addresses.
	BlockList []string

	// ModelHint forces passive frames toward one model when the
	// manufacturer data alone is ambiguous.
	ModelHint adv.Model

	// ReversePositions flips cover positions in decoded fields.
	ReversePositions bool
}

// DefaultOptions returns the options used when Scan is given nil.
func DefaultOptions() *Options {
	return &Options{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
	}
}

// Scanner folds BLE advertisements into per-address device state.
type Scanner struct {
	devices *hashmap.Map[string, *adv.Advertisement]
	events  *ringchan.Ring[DeviceEvent]
	logger  *logrus.Logger

	opts       *Options
	scanDevice blelib.Device
}

// New creates a Scanner. A nil logger falls back to a fresh logrus logger.
func New(logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		devices: hashmap.New[string, *adv.Advertisement](),
		events:  ringchan.New[DeviceEvent](100),
		logger:  logger,
	}
}

// Scan runs discovery until the duration or context ends and returns a
// snapshot of the best known state per address.
func (s *Scanner) Scan(ctx context.Context, opts *Options) (map[string]*adv.Advertisement, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	s.opts = opts
	defer func() { s.opts = nil }()

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	dev, err := gatt.DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}
	s.scanDevice = dev

	s.logger.WithField("duration", opts.Duration).Info("Starting BLE scan")
	err = dev.Scan(ctx, opts.DuplicateFilter, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan completed")

	return s.Snapshot(), nil
}

// Snapshot returns the current per-address state table.
func (s *Scanner) Snapshot() map[string]*adv.Advertisement {
	out := make(map[string]*adv.Advertisement, s.devices.Len())
	s.devices.Range(func(addr string, a *adv.Advertisement) bool {
		out[addr] = a
		return true
	})
	return out
}

// Get returns the best known state for one address.
func (s *Scanner) Get(address string) (*adv.Advertisement, bool) {
	return s.devices.Get(address)
}

// Events returns the decoded advertisement stream. Slow consumers lose the
// oldest events, never the newest.
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}

func (s *Scanner) handleAdvertisement(a blelib.Advertisement) {
	opts := s.opts
	if opts == nil {
		return
	}
	address := a.Addr().String()
	if !s.shouldInclude(address, opts) {
		return
	}

	serviceData, mfrData, mfrID := extractPayload(a)
	decoded := adv.Decode(serviceData, mfrData, mfrID, &adv.DecodeOptions{
		ModelHint: opts.ModelHint,
		Reverse:   opts.ReversePositions,
	})
	if decoded == nil {
		return
	}
	withAddr := *decoded
	withAddr.Address = address
	withAddr.RSSI = a.RSSI()
	if name := a.LocalName(); name != "" {
		withAddr.FriendlyName = name
	}

	prev, existing := s.devices.Get(address)
	// A frame with no decoded fields never replaces one that has them.
	if !existing || withAddr.HasData() || !prev.HasData() {
		s.devices.Set(address, &withAddr)
	}

	event := DeviceEvent{Type: EventUpdated, Advertisement: &withAddr}
	if !existing {
		event.Type = EventNew
		s.logger.WithFields(logrus.Fields{
			"address": address,
			"model":   withAddr.Model,
			"rssi":    withAddr.RSSI,
		}).Info("Discovered new device")
	}
	s.events.Send(event)
}

func (s *Scanner) shouldInclude(address string, opts *Options) bool {
	for _, blocked := range opts.BlockList {
		if address == blocked {
			return false
		}
	}
	if len(opts.AllowList) > 0 {
		for _, allowed := range opts.AllowList {
			if address == allowed {
				return true
			}
		}
		return false
	}
	return true
}

// Newer firmware advertises under fd3d, older under 0d00. Prefer the newer
// entry when both are present.
var serviceDataOrder = []blelib.UUID{
	blelib.MustParse("0000fd3d-0000-1000-8000-00805f9b34fb"),
	blelib.MustParse("00000d00-0000-1000-8000-00805f9b34fb"),
}

// extractPayload pulls the vendor service data and manufacturer data out of
// a raw advertisement.
func extractPayload(a blelib.Advertisement) (serviceData, mfrData []byte, mfrID int) {
	entries := a.ServiceData()
	for _, want := range serviceDataOrder {
		for _, sd := range entries {
			if sd.UUID.Equal(want) {
				serviceData = sd.Data
				break
			}
		}
		if serviceData != nil {
			break
		}
	}
	if serviceData == nil && len(entries) > 0 {
		serviceData = entries[0].Data
	}
	raw := a.ManufacturerData()
	if len(raw) >= 2 {
		mfrID = int(raw[0]) | int(raw[1])<<8
		mfrData = raw[2:]
	}
	return serviceData, mfrData, mfrID
}
