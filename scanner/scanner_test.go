package scanner

import (
	"testing"

	blelib "github.com/go-ble/ble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchbot-ble/switchbot/pkg/adv"
)

type fakeAdvertisement struct {
	addr        string
	name        string
	rssi        int
	serviceData []byte
	mfrData     []byte
}

func (f *fakeAdvertisement) LocalName() string { return f.name }

func (f *fakeAdvertisement) ManufacturerData() []byte { return f.mfrData }

func (f *fakeAdvertisement) ServiceData() []blelib.ServiceData {
	if f.serviceData == nil {
		return nil
	}
	return []blelib.ServiceData{{UUID: serviceDataOrder[0], Data: f.serviceData}}
}

func (f *fakeAdvertisement) Services() []blelib.UUID         { return nil }
func (f *fakeAdvertisement) OverflowService() []blelib.UUID  { return nil }
func (f *fakeAdvertisement) TxPowerLevel() int               { return 0 }
func (f *fakeAdvertisement) Connectable() bool               { return true }
func (f *fakeAdvertisement) SolicitedService() []blelib.UUID { return nil }
func (f *fakeAdvertisement) RSSI() int                       { return f.rssi }
func (f *fakeAdvertisement) Addr() blelib.Addr               { return blelib.NewAddr(f.addr) }

func newTestScanner(opts *Options) *Scanner {
	s := New(nil)
	if opts == nil {
		opts = DefaultOptions()
	}
	s.opts = opts
	return s
}

func TestHandleAdvertisementDecodesCurtain(t *testing.T) {
	s := newTestScanner(nil)

	s.handleAdvertisement(&fakeAdvertisement{
		addr:        "aa:bb:cc:dd:ee:ff",
		name:        "WoCurtain",
		rssi:        -60,
		serviceData: []byte{0x63, 0xc0, 0x58, 0x00, 0x11, 0x04},
	})

	got, ok := s.Get("aa:bb:cc:dd:ee:ff")
	require.True(t, ok)
	assert.Equal(t, adv.ModelCurtain, got.Model)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", got.Address)
	assert.Equal(t, -60, got.RSSI)
	assert.Equal(t, "WoCurtain", got.FriendlyName)
	assert.True(t, got.HasData())

	select {
	case ev := <-s.Events():
		assert.Equal(t, EventNew, ev.Type)
		assert.Equal(t, "aa:bb:cc:dd:ee:ff", ev.Advertisement.Address)
	default:
		t.Fatal("expected a discovery event")
	}
}

func TestEmptyUpdateKeepsGoodState(t *testing.T) {
	s := newTestScanner(nil)

	// A meter frame with readings, then an all-zero frame that decodes to
	// no fields.
	s.handleAdvertisement(&fakeAdvertisement{
		addr:        "aa:bb:cc:dd:ee:ff",
		serviceData: []byte{0x54, 0x00, 0xe4, 0x06, 0x98, 0x35},
	})
	s.handleAdvertisement(&fakeAdvertisement{
		addr:        "aa:bb:cc:dd:ee:ff",
		serviceData: []byte{0x54, 0x00, 0x00, 0x00, 0x00, 0x00},
	})

	got, ok := s.Get("aa:bb:cc:dd:ee:ff")
	require.True(t, ok)
	assert.Equal(t, 24.6, got.Fields["temperature"])
	assert.Equal(t, 53, got.Fields["humidity"])
}

func TestUpdateReplacesState(t *testing.T) {
	s := newTestScanner(nil)

	s.handleAdvertisement(&fakeAdvertisement{
		addr:        "aa:bb:cc:dd:ee:ff",
		serviceData: []byte{0x54, 0x00, 0xe4, 0x06, 0x98, 0x35},
	})
	s.handleAdvertisement(&fakeAdvertisement{
		addr:        "aa:bb:cc:dd:ee:ff",
		serviceData: []byte{0x54, 0x00, 0xe4, 0x06, 0x99, 0x35},
	})

	got, ok := s.Get("aa:bb:cc:dd:ee:ff")
	require.True(t, ok)
	assert.Equal(t, 25.6, got.Fields["temperature"])
}

func TestAllowAndBlockLists(t *testing.T) {
	tests := []struct {
		name    string
		opts    *Options
		address string
		want    bool
	}{
		{"no filters", &Options{}, "aa:aa:aa:aa:aa:aa", true},
		{"blocked", &Options{BlockList: []string{"aa:aa:aa:aa:aa:aa"}}, "aa:aa:aa:aa:aa:aa", false},
		{"allowed", &Options{AllowList: []string{"aa:aa:aa:aa:aa:aa"}}, "aa:aa:aa:aa:aa:aa", true},
		{"not in allow list", &Options{AllowList: []string{"bb:bb:bb:bb:bb:bb"}}, "aa:aa:aa:aa:aa:aa", false},
		{"block wins over allow", &Options{
			AllowList: []string{"aa:aa:aa:aa:aa:aa"},
			BlockList: []string{"aa:aa:aa:aa:aa:aa"},
		}, "aa:aa:aa:aa:aa:aa", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScanner(tt.opts)
			s.handleAdvertisement(&fakeAdvertisement{
				addr:        tt.address,
				serviceData: []byte{0x54, 0x00, 0xe4, 0x06, 0x98, 0x35},
			})
			_, ok := s.Get(tt.address)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestEventsOverwriteOldest(t *testing.T) {
	s := newTestScanner(nil)

	for i := 0; i < 150; i++ {
		s.handleAdvertisement(&fakeAdvertisement{
			addr:        "aa:bb:cc:dd:ee:ff",
			rssi:        -30 - i%40,
			serviceData: []byte{0x54, 0x00, 0xe4, 0x06, 0x98, byte(0x30 + i%10)},
		})
	}

	count := 0
	for {
		select {
		case <-s.Events():
			count++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 100, count)
}
