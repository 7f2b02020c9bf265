// Package gatt defines the transport boundary of the protocol: the
// interfaces a BLE backend must satisfy, the protocol's fixed UUIDs, and
// the error taxonomy command execution is built on. The production
// implementation over go-ble lives in this package too; tests inject
// fakes through the same interfaces.
package gatt

import (
	"context"
)

// Fixed protocol UUIDs. Commands go to the write ("tx") characteristic;
// acknowledgements and state arrive as notifications on the read ("rx")
// characteristic.
const (
	ServiceUUID   = "cba20d00-224d-11e6-9fb8-0002a5d5c51b"
	WriteCharUUID = "cba20002-224d-11e6-9fb8-0002a5d5c51b"
	ReadCharUUID  = "cba20003-224d-11e6-9fb8-0002a5d5c51b"
)

// NotificationHandler receives raw notification payloads. The slice is
// only valid for the duration of the call; handlers copy what they keep.
type NotificationHandler func(data []byte)

// Client is one live GATT session with both protocol characteristics
// resolved. Implementations map backend failures into this package's
// error taxonomy before returning them.
type Client interface {
	// Write sends a frame to the write characteristic. No response is
	// expected at the write level; the acknowledgement arrives
	// asynchronously on the read characteristic.
	Write(data []byte) error

	// Subscribe registers the handler for notifications on the read
	// characteristic. At most one handler is active per session.
	Subscribe(handler NotificationHandler) error

	// Disconnect tears down the link. Safe to call more than once.
	Disconnect() error

	// Disconnected returns a channel that is closed when the link drops,
	// whether requested or not.
	Disconnected() <-chan struct{}
}

// Transport establishes GATT sessions. Connect resolves the protocol's
// read and write characteristics, re-fetching the service list once
// before giving up with a CharacteristicMissingError.
type Transport interface {
	Connect(ctx context.Context, address string) (Client, error)
}
