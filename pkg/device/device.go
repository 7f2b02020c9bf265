// Package device implements the connection and command engine shared by all
// device facades. A Device serializes commands over a single GATT link,
// retries transient failures with a forced reconnect between attempts, and
// tears the link down after an idle period so the peripheral returns to
// advertising.
package device

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/switchbot-ble/switchbot/pkg/adv"
	"github.com/switchbot-ble/switchbot/pkg/crypt"
	"github.com/switchbot-ble/switchbot/pkg/gatt"
)

// ============================================================================
// Constants
// ============================================================================

// DefaultRetryCount is the number of retries after the first attempt.
const DefaultRetryCount = 3

// Overridable in tests.
var (
	// notificationTimeout bounds the wait for a command response.
	notificationTimeout = 5 * time.Second

	// disconnectDelay is the idle period after the last command before the
	// link is dropped. Kept short of 10s so battery devices resume
	// advertising promptly.
	disconnectDelay = 8500 * time.Millisecond

	retryBackoff = 250 * time.Millisecond
)

// ============================================================================
// Capabilities and options
// ============================================================================

// Capabilities declares per-model protocol behavior. Facades set these at
// construction; the engine never inspects the model directly.
type Capabilities struct {
	// RequiresEncryption makes every command negotiate a session key and
	// wrap payloads in AES-CTR.
	RequiresEncryption bool

	// ConsumeAdvertisementDuringConnection keeps applying advertisement
	// updates while a connection is open. Most models stop advertising
	// when connected, so stale frames would clobber fresh state.
	ConsumeAdvertisementDuringConnection bool

	// TracksSequenceNumber flags models whose advertisements carry a
	// monotonic sequence number; a change marks cached state as stale.
	TracksSequenceNumber bool
}

// Options configures a Device beyond its address and capabilities.
type Options struct {
	// Name is a human-readable label used in logs. Defaults to the address.
	Name string

	// RetryCount is the number of retries after the initial attempt.
	RetryCount int

	// Password, when set, prepends a CRC32 digest to every command for
	// models with legacy password protection.
	Password string

	// Logger receives structured connection and command logs.
	Logger *logrus.Logger
}

// DefaultOptions returns the options applied when a field is left zero.
func DefaultOptions() Options {
	return Options{
		RetryCount: DefaultRetryCount,
		Logger:     logrus.StandardLogger(),
	}
}

// ============================================================================
// Device
// ============================================================================

// Device is the per-peripheral engine. All exported methods are safe for
// concurrent use; command execution is serialized internally.
type Device struct {
	address   string
	name      string
	transport gatt.Transport
	logger    *logrus.Entry
	caps      Capabilities

	retryCount int
	creds      *crypt.Credentials
	password   []byte

	// opMu serializes command execution end to end.
	opMu sync.Mutex
	// connMu guards session establishment and teardown.
	connMu sync.Mutex
	// stateMu guards advertisement state, overrides and callbacks.
	stateMu sync.Mutex

	session *session

	advertisement *adv.Advertisement
	override      adv.Fields
	forcePoll     bool
	callbacks     map[int]func()
	nextCallback  int
}

// New builds a Device over the given transport. creds may be nil for
// unencrypted models; when caps.RequiresEncryption is set, creds must be
// non-nil.
func New(transport gatt.Transport, address string, caps Capabilities, creds *crypt.Credentials, opts Options) *Device {
	def := DefaultOptions()
	if opts.RetryCount == 0 {
		opts.RetryCount = def.RetryCount
	}
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}
	if opts.Name == "" {
		opts.Name = address
	}

	d := &Device{
		address:    address,
		name:       opts.Name,
		transport:  transport,
		caps:       caps,
		retryCount: opts.RetryCount,
		creds:      creds,
		logger: opts.Logger.WithFields(logrus.Fields{
			"device":  opts.Name,
			"address": address,
		}),
	}
	if opts.Password != "" {
		d.password = passwordDigest(opts.Password)
	}
	return d
}

// Address returns the peripheral address the device was built with.
func (d *Device) Address() string { return d.address }

// Name returns the human-readable label used in logs.
func (d *Device) Name() string { return d.name }

// RSSI returns the signal strength from the last advertisement, or 0 when
// no advertisement has been seen.
func (d *Device) RSSI() int {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.advertisement == nil {
		return 0
	}
	return d.advertisement.RSSI
}

// Advertisement returns the last advertisement applied to this device, or
// nil when none has been seen.
func (d *Device) Advertisement() *adv.Advertisement {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.advertisement
}

// IsConnected reports whether a GATT link is currently open.
func (d *Device) IsConnected() bool {
	d.connMu.Lock()
	defer d.connMu.Unlock()
	return d.session != nil
}

// ============================================================================
// Advertisement state
// ============================================================================

// UpdateFromAdvertisement applies a decoded advertisement to the cached
// state. Frames received while connected are dropped unless the model keeps
// advertising during connections. An update with no decoded fields never
// replaces one that has them.
func (d *Device) UpdateFromAdvertisement(a *adv.Advertisement) {
	if a == nil {
		return
	}
	if !d.caps.ConsumeAdvertisementDuringConnection && d.IsConnected() {
		return
	}

	d.stateMu.Lock()
	changed := false
	if a.HasData() || d.advertisement == nil || !d.advertisement.HasData() {
		if d.caps.TracksSequenceNumber && d.advertisement != nil {
			prev, prevOK := sequenceNumber(d.advertisement)
			next, nextOK := sequenceNumber(a)
			if prevOK && nextOK && prev != next {
				d.forcePoll = true
				d.logger.WithFields(logrus.Fields{
					"previous": prev,
					"current":  next,
				}).Debug("Sequence number changed, poll needed")
			}
		}
		d.advertisement = a
		changed = true
	}
	callbacks := snapshotCallbacks(d.callbacks)
	d.stateMu.Unlock()

	if changed {
		for _, cb := range callbacks {
			cb()
		}
	}
}

func sequenceNumber(a *adv.Advertisement) (int, bool) {
	if a == nil || a.Fields == nil {
		return 0, false
	}
	v, ok := a.Fields["sequence_number"]
	if !ok {
		return 0, false
	}
	n, ok := v.(int)
	return n, ok
}

// PollNeeded reports whether cached state went stale since the last call
// and clears the flag.
func (d *Device) PollNeeded() bool {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	v := d.forcePoll
	d.forcePoll = false
	return v
}

// AdvValue returns a decoded advertisement field, preferring any value set
// through OverrideState.
func (d *Device) AdvValue(key string) interface{} {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.override != nil {
		if v, ok := d.override[key]; ok {
			return v
		}
	}
	if d.advertisement == nil || d.advertisement.Fields == nil {
		return nil
	}
	return d.advertisement.Fields[key]
}

// OverrideState layers key/value pairs over advertisement fields until the
// next advertisement replaces them. Facades use it to reflect a command's
// effect before the device broadcasts it.
func (d *Device) OverrideState(fields adv.Fields) {
	d.stateMu.Lock()
	if d.override == nil {
		d.override = adv.Fields{}
	}
	for k, v := range fields {
		d.override[k] = v
	}
	callbacks := snapshotCallbacks(d.callbacks)
	d.stateMu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

func snapshotCallbacks(m map[int]func()) []func() {
	out := make([]func(), 0, len(m))
	for _, cb := range m {
		out = append(out, cb)
	}
	return out
}

// BatteryPercent returns the advertised battery level, or -1 when unknown.
func (d *Device) BatteryPercent() int {
	if v, ok := d.AdvValue("battery").(int); ok {
		return v
	}
	return -1
}

// Subscribe registers a callback fired on every state change. The returned
// function removes the registration and is safe to call more than once.
func (d *Device) Subscribe(cb func()) func() {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.callbacks == nil {
		d.callbacks = map[int]func(){}
	}
	id := d.nextCallback
	d.nextCallback++
	d.callbacks[id] = cb
	return func() {
		d.stateMu.Lock()
		defer d.stateMu.Unlock()
		delete(d.callbacks, id)
	}
}
