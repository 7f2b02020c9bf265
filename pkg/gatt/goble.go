package gatt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
	"github.com/sirupsen/logrus"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests)
var DeviceFactory = func() (ble.Device, error) {
	return darwin.NewDevice()
}

var (
	setupOnce sync.Once
	setupErr  error
)

// normalizeUUID converts a UUID string to the internal BLE library format
// (lowercase, no dashes).
func normalizeUUID(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}

// BLETransport is the production Transport over go-ble.
type BLETransport struct {
	logger *logrus.Logger
}

// NewBLETransport creates a go-ble backed transport.
func NewBLETransport(logger *logrus.Logger) *BLETransport {
	if logger == nil {
		logger = logrus.New()
	}
	return &BLETransport{logger: logger}
}

// Connect dials the peripheral, discovers its profile and resolves the
// protocol characteristics. The service list is re-fetched once before a
// missing characteristic becomes an error.
func (t *BLETransport) Connect(ctx context.Context, address string) (Client, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("device address is not set")
	}

	setupOnce.Do(func() {
		dev, err := DeviceFactory()
		if err != nil {
			setupErr = fmt.Errorf("failed to create BLE device: %w", err)
			return
		}
		ble.SetDefaultDevice(dev)
	})
	if setupErr != nil {
		return nil, setupErr
	}

	t.logger.WithField("address", address).Debug("Connecting to BLE device")

	client, err := ble.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, NormalizeError(err)
	}

	conn := &bleClient{client: client, logger: t.logger}
	if err := conn.resolveCharacteristics(); err != nil {
		_ = client.CancelConnection()
		return nil, err
	}

	t.logger.WithField("address", address).Debug("BLE device connected")
	return conn, nil
}

// bleClient adapts one go-ble connection to the Client interface.
type bleClient struct {
	client    ble.Client
	logger    *logrus.Logger
	writeChar *ble.Characteristic
	readChar  *ble.Characteristic

	mu      sync.Mutex
	handler NotificationHandler
}

// resolveCharacteristics locates the protocol's read and write
// characteristics, forcing a profile re-discovery once if the first
// (possibly cached) fetch is incomplete.
func (c *bleClient) resolveCharacteristics() error {
	for _, force := range []bool{false, true} {
		profile, err := c.client.DiscoverProfile(force)
		if err != nil {
			return Transient(fmt.Errorf("failed to discover profile: %w", err))
		}
		c.writeChar = findCharacteristic(profile, WriteCharUUID)
		c.readChar = findCharacteristic(profile, ReadCharUUID)
		if c.writeChar != nil && c.readChar != nil {
			return nil
		}
	}

	missing := WriteCharUUID
	if c.writeChar != nil {
		missing = ReadCharUUID
	}
	return &CharacteristicMissingError{UUID: missing}
}

func findCharacteristic(profile *ble.Profile, uuid string) *ble.Characteristic {
	want := normalizeUUID(uuid)
	for _, svc := range profile.Services {
		for _, char := range svc.Characteristics {
			if normalizeUUID(char.UUID.String()) == want {
				return char
			}
		}
	}
	return nil
}

func (c *bleClient) Write(data []byte) error {
	if c.writeChar == nil {
		return &CharacteristicMissingError{UUID: WriteCharUUID}
	}
	// Write without response: the acknowledgement arrives via notification.
	if err := c.client.WriteCharacteristic(c.writeChar, data, true); err != nil {
		return NormalizeError(err)
	}
	return nil
}

func (c *bleClient) Subscribe(handler NotificationHandler) error {
	if c.readChar == nil {
		return &CharacteristicMissingError{UUID: ReadCharUUID}
	}

	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()

	err := c.client.Subscribe(c.readChar, false, func(data []byte) {
		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		if h != nil {
			h(data)
		}
	})
	if err != nil {
		return NormalizeError(err)
	}
	return nil
}

func (c *bleClient) Disconnect() error {
	c.mu.Lock()
	c.handler = nil
	c.mu.Unlock()

	if c.readChar != nil {
		// Best effort; the link is going away anyway.
		_ = c.client.Unsubscribe(c.readChar, false)
	}
	if err := c.client.CancelConnection(); err != nil {
		return NormalizeError(err)
	}
	return nil
}

func (c *bleClient) Disconnected() <-chan struct{} {
	return c.client.Disconnected()
}
