package device

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchbot-ble/switchbot/pkg/adv"
	"github.com/switchbot-ble/switchbot/pkg/crypt"
	"github.com/switchbot-ble/switchbot/pkg/gatt"
)

// fakeClient scripts one GATT link. respond maps each written frame to the
// notification the peripheral would push; a nil response means silence.
type fakeClient struct {
	mu           sync.Mutex
	writes       [][]byte
	handler      gatt.NotificationHandler
	respond      func(frame []byte) []byte
	disconnected chan struct{}
	closeOnce    sync.Once
	disconnects  int32
}

func newFakeClient(respond func(frame []byte) []byte) *fakeClient {
	return &fakeClient{
		respond:      respond,
		disconnected: make(chan struct{}),
	}
}

func (c *fakeClient) Write(p []byte) error {
	c.mu.Lock()
	c.writes = append(c.writes, append([]byte{}, p...))
	handler := c.handler
	respond := c.respond
	c.mu.Unlock()

	if respond == nil || handler == nil {
		return nil
	}
	if resp := respond(p); resp != nil {
		go handler(resp)
	}
	return nil
}

func (c *fakeClient) Subscribe(h gatt.NotificationHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
	return nil
}

func (c *fakeClient) Disconnect() error {
	atomic.AddInt32(&c.disconnects, 1)
	c.closeOnce.Do(func() { close(c.disconnected) })
	return nil
}

func (c *fakeClient) Disconnected() <-chan struct{} { return c.disconnected }

func (c *fakeClient) writtenFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte{}, c.writes...)
}

// fakeTransport hands out one scripted client per connect attempt.
type fakeTransport struct {
	mu       sync.Mutex
	connects int
	clients  []*fakeClient
	// dial is called per attempt; returning an error fails the connect.
	dial func(attempt int) (*fakeClient, error)
}

func (t *fakeTransport) Connect(_ context.Context, _ string) (gatt.Client, error) {
	t.mu.Lock()
	t.connects++
	attempt := t.connects
	t.mu.Unlock()

	c, err := t.dial(attempt)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.clients = append(t.clients, c)
	t.mu.Unlock()
	return c, nil
}

func (t *fakeTransport) connectCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

// clientTransport hands out one fixed client.
type clientTransport struct {
	client gatt.Client
}

func (t *clientTransport) Connect(context.Context, string) (gatt.Client, error) {
	return t.client, nil
}

// reuseBufClient delivers every notification from a single receive buffer
// and scribbles over it once the handler returns, the way a backend that
// reuses its read buffer does.
type reuseBufClient struct {
	handler      gatt.NotificationHandler
	buf          []byte
	disconnected chan struct{}
}

func (c *reuseBufClient) Write([]byte) error {
	copy(c.buf, []byte{0x01, 0x64, 0x32})
	c.handler(c.buf)
	for i := range c.buf {
		c.buf[i] = 0xee
	}
	return nil
}

func (c *reuseBufClient) Subscribe(h gatt.NotificationHandler) error {
	c.handler = h
	return nil
}

func (c *reuseBufClient) Disconnect() error             { return nil }
func (c *reuseBufClient) Disconnected() <-chan struct{} { return c.disconnected }

func okResponder(status byte, payload ...byte) func([]byte) []byte {
	return func([]byte) []byte {
		return append([]byte{status}, payload...)
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testOptions() Options {
	return Options{Logger: quietLogger()}
}

func shortenTimeouts(t *testing.T) {
	t.Helper()
	prevNotif, prevIdle, prevBackoff := notificationTimeout, disconnectDelay, retryBackoff
	notificationTimeout = 100 * time.Millisecond
	disconnectDelay = 50 * time.Millisecond
	retryBackoff = time.Millisecond
	t.Cleanup(func() {
		notificationTimeout, disconnectDelay, retryBackoff = prevNotif, prevIdle, prevBackoff
	})
}

func TestSendCommandRoundTrip(t *testing.T) {
	transport := &fakeTransport{dial: func(int) (*fakeClient, error) {
		return newFakeClient(okResponder(0x01, 0x64, 0x32)), nil
	}}
	d := New(transport, "aa:bb:cc:dd:ee:ff", Capabilities{}, nil, testOptions())

	resp, err := d.SendCommand(context.Background(), []byte{0x57, 0x02})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x64, 0x32}, resp)
	assert.Equal(t, 1, transport.connectCount())
	assert.Equal(t, [][]byte{{0x57, 0x02}}, transport.clients[0].writtenFrames())
}

func TestSendCommandSerialized(t *testing.T) {
	var inFlight, maxInFlight int32
	transport := &fakeTransport{dial: func(int) (*fakeClient, error) {
		return newFakeClient(func([]byte) []byte {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				m := atomic.LoadInt32(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return []byte{0x01}
		}), nil
	}}
	d := New(transport, "aa:bb:cc:dd:ee:ff", Capabilities{}, nil, testOptions())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.SendCommand(context.Background(), []byte{0x57, 0x01, 0x00})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestRetryReconnectsThenSucceeds(t *testing.T) {
	shortenTimeouts(t)

	// First attempt connects but times out waiting for a response; the
	// second attempt gets a fresh link that answers.
	transport := &fakeTransport{dial: func(attempt int) (*fakeClient, error) {
		if attempt == 1 {
			return newFakeClient(nil), nil
		}
		return newFakeClient(okResponder(0x01)), nil
	}}
	d := New(transport, "aa:bb:cc:dd:ee:ff", Capabilities{}, nil, Options{
		Logger:     quietLogger(),
		RetryCount: 2,
	})

	resp, err := d.SendCommand(context.Background(), []byte{0x57, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, resp)
	assert.Equal(t, 2, transport.connectCount())
	// The silent first link was torn down before the retry.
	assert.Equal(t, int32(1), atomic.LoadInt32(&transport.clients[0].disconnects))
}

func TestRetryExhaustion(t *testing.T) {
	shortenTimeouts(t)

	dialErr := gatt.Transient(errors.New("le connection failed"))
	transport := &fakeTransport{dial: func(int) (*fakeClient, error) {
		return nil, dialErr
	}}
	d := New(transport, "aa:bb:cc:dd:ee:ff", Capabilities{}, nil, Options{
		Logger:     quietLogger(),
		RetryCount: 2,
	})

	_, err := d.SendCommand(context.Background(), []byte{0x57, 0x01, 0x00})
	require.Error(t, err)
	assert.Equal(t, 3, transport.connectCount())
	assert.True(t, gatt.IsTransient(err))
}

func TestUnreachableNotRetried(t *testing.T) {
	transport := &fakeTransport{dial: func(int) (*fakeClient, error) {
		return nil, gatt.ErrDeviceUnreachable
	}}
	d := New(transport, "aa:bb:cc:dd:ee:ff", Capabilities{}, nil, testOptions())

	_, err := d.SendCommand(context.Background(), []byte{0x57, 0x01, 0x00})
	require.ErrorIs(t, err, gatt.ErrDeviceUnreachable)
	assert.Equal(t, 1, transport.connectCount())
}

func TestProtocolErrorNotRetried(t *testing.T) {
	transport := &fakeTransport{dial: func(int) (*fakeClient, error) {
		return newFakeClient(okResponder(0x07)), nil
	}}
	b := NewBot(transport, "aa:bb:cc:dd:ee:ff", false, testOptions())

	err := b.Press(context.Background())
	require.Error(t, err)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, transport.connectCount())
}

func TestIdleDisconnect(t *testing.T) {
	shortenTimeouts(t)

	transport := &fakeTransport{dial: func(int) (*fakeClient, error) {
		return newFakeClient(okResponder(0x01)), nil
	}}
	d := New(transport, "aa:bb:cc:dd:ee:ff", Capabilities{}, nil, testOptions())

	_, err := d.SendCommand(context.Background(), []byte{0x57, 0x01, 0x00})
	require.NoError(t, err)
	assert.True(t, d.IsConnected())

	assert.Eventually(t, func() bool {
		return !d.IsConnected()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&transport.clients[0].disconnects))

	// The next command opens a fresh link.
	_, err = d.SendCommand(context.Background(), []byte{0x57, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 2, transport.connectCount())
}

func TestIdleTimerResetByCommand(t *testing.T) {
	prev := disconnectDelay
	disconnectDelay = 200 * time.Millisecond
	t.Cleanup(func() { disconnectDelay = prev })

	transport := &fakeTransport{dial: func(int) (*fakeClient, error) {
		return newFakeClient(okResponder(0x01)), nil
	}}
	d := New(transport, "aa:bb:cc:dd:ee:ff", Capabilities{}, nil, testOptions())

	_, err := d.SendCommand(context.Background(), []byte{0x57, 0x01, 0x00})
	require.NoError(t, err)

	// A command arriving just before the window elapses restarts it, so
	// the session survives past the original deadline on the same link.
	time.Sleep(3 * disconnectDelay / 4)
	_, err = d.SendCommand(context.Background(), []byte{0x57, 0x01, 0x00})
	require.NoError(t, err)

	time.Sleep(disconnectDelay / 2)
	assert.True(t, d.IsConnected())
	assert.Equal(t, 1, transport.connectCount())
	assert.Equal(t, int32(0), atomic.LoadInt32(&transport.clients[0].disconnects))

	// Once idle for a full window the session goes down exactly once.
	assert.Eventually(t, func() bool {
		return !d.IsConnected()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, transport.connectCount())
	assert.Equal(t, int32(1), atomic.LoadInt32(&transport.clients[0].disconnects))
}

func TestNotificationPayloadCopied(t *testing.T) {
	client := &reuseBufClient{
		buf:          make([]byte, 3),
		disconnected: make(chan struct{}),
	}
	d := New(&clientTransport{client: client}, "aa:bb:cc:dd:ee:ff", Capabilities{}, nil, testOptions())

	// The response must hold the bytes as delivered, not whatever the
	// backend later wrote into its buffer.
	resp, err := d.SendCommand(context.Background(), []byte{0x57, 0x02})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x64, 0x32}, resp)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	d := New(&fakeTransport{}, "aa:bb:cc:dd:ee:ff", Capabilities{}, nil, testOptions())

	var aCalls, bCalls, cCalls int
	unsubA := d.Subscribe(func() { aCalls++ })
	unsubB := d.Subscribe(func() { bCalls++ })
	d.Subscribe(func() { cCalls++ })

	d.OverrideState(adv.Fields{"isOn": true})
	assert.Equal(t, 1, aCalls)
	assert.Equal(t, 1, bCalls)
	assert.Equal(t, 1, cCalls)

	// Removing an earlier registration must not detach a later one.
	unsubA()
	d.OverrideState(adv.Fields{"isOn": false})
	assert.Equal(t, 1, aCalls)
	assert.Equal(t, 2, bCalls)
	assert.Equal(t, 2, cCalls)

	unsubB()
	unsubB() // repeat calls are no-ops
	d.OverrideState(adv.Fields{"isOn": true})
	assert.Equal(t, 2, bCalls)
	assert.Equal(t, 3, cCalls)
}

func TestRemoteDisconnectClearsSession(t *testing.T) {
	transport := &fakeTransport{dial: func(int) (*fakeClient, error) {
		return newFakeClient(okResponder(0x01)), nil
	}}
	d := New(transport, "aa:bb:cc:dd:ee:ff", Capabilities{}, nil, testOptions())

	_, err := d.SendCommand(context.Background(), []byte{0x57, 0x01, 0x00})
	require.NoError(t, err)

	require.NoError(t, transport.clients[0].Disconnect())
	assert.Eventually(t, func() bool {
		return !d.IsConnected()
	}, time.Second, 5*time.Millisecond)
}

func TestEncryptedRoundTrip(t *testing.T) {
	key := make([]byte, crypt.KeySize)
	for i := range key {
		key[i] = byte(i + 1)
	}
	iv := make([]byte, crypt.IVSize)
	for i := range iv {
		iv[i] = byte(0xa0 + i)
	}
	deviceCipher, err := crypt.NewSessionCipher(key, iv)
	require.NoError(t, err)

	var gotPlaintext []byte
	transport := &fakeTransport{dial: func(int) (*fakeClient, error) {
		return newFakeClient(func(frame []byte) []byte {
			// Key exchange travels with a zeroed IV placeholder.
			if len(frame) >= 4 && frame[1] == 0 && frame[2] == 0 && frame[3] == 0 {
				return append([]byte{0x01, 0x00, 0x00, 0x00}, iv...)
			}
			// Data frame: opcode, key id, iv prefix, ciphertext.
			gotPlaintext = deviceCipher.Decrypt(frame[4:])
			body := deviceCipher.Encrypt([]byte{0x80, 0x42})
			return append([]byte{0x01, 0x00, 0x00, 0x00}, body...)
		}), nil
	}}

	creds := &crypt.Credentials{KeyID: 0x0b, Key: key}
	d := New(transport, "aa:bb:cc:dd:ee:ff", Capabilities{RequiresEncryption: true}, creds, testOptions())

	cmd := []byte{0x57, 0x0f, 0x4e, 0x01, 0x01, 0x10, 0x00}
	resp, err := d.SendCommand(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x80, 0x42}, resp)
	assert.Equal(t, cmd[1:], gotPlaintext)

	frames := transport.clients[0].writtenFrames()
	require.Len(t, frames, 2)
	// GET_CK_IV carries the key id after the placeholder.
	assert.Equal(t, []byte{0x57, 0x00, 0x00, 0x00, 0x0f, 0x21, 0x03, 0x0b}, frames[0])
	assert.Equal(t, byte(0x57), frames[1][0])
	assert.Equal(t, byte(0x0b), frames[1][1])
	assert.Equal(t, iv[:2], frames[1][2:4])
}

func TestEncryptionRequiresCredentials(t *testing.T) {
	transport := &fakeTransport{dial: func(int) (*fakeClient, error) {
		return newFakeClient(okResponder(0x01)), nil
	}}
	d := New(transport, "aa:bb:cc:dd:ee:ff", Capabilities{RequiresEncryption: true}, nil, testOptions())

	_, err := d.SendCommand(context.Background(), []byte{0x57, 0x02})
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestApplyPasswordDigest(t *testing.T) {
	digest := passwordDigest("password")
	out := applyPasswordDigest([]byte{0x57, 0x01, 0x00}, digest)

	require.Len(t, out, 7)
	assert.Equal(t, byte(0x57), out[0])
	assert.Equal(t, byte(0x11), out[1])
	assert.Equal(t, digest, out[2:6])
	assert.Equal(t, byte(0x00), out[6])
	// CRC32 of "password".
	assert.Equal(t, []byte{0x35, 0xc2, 0x46, 0xd5}, digest)
}

func TestCheckResult(t *testing.T) {
	d := New(&fakeTransport{}, "aa:bb:cc:dd:ee:ff", Capabilities{}, nil, testOptions())

	assert.NoError(t, d.CheckResult(nil, []byte{0x01}, 0, 0x01))
	assert.NoError(t, d.CheckResult(nil, []byte{0x05}, 0, 0x01, 0x05))
	assert.Error(t, d.CheckResult(nil, []byte{0x07}, 0, 0x01))
	assert.Error(t, d.CheckResult(nil, nil, 0, 0x01))

	// Some pages report status one byte in; a response shorter than the
	// checked index is a protocol error, not a panic.
	assert.NoError(t, d.CheckResult(nil, []byte{0x00, 0x01}, 1, 0x01))
	err := d.CheckResult(nil, []byte{0x01}, 1, 0x01)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}
