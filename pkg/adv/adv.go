// Package adv decodes SwitchBot BLE broadcast payloads into typed device
// state without connecting.
//
// Two independent sources may be present in one advertisement: a short
// service-data blob (the "active" source, first byte carries the model tag
// and encryption flag) and a longer vendor-specific manufacturer-data blob
// (the "passive" source, first six bytes are the MAC). Decoding is a pure
// function of the raw bytes and is memoized, since devices repeat
// identical broadcasts many times per second.
package adv

import (
	"fmt"

	"github.com/cornelk/hashmap"
)

// Fields is a normalized, unit-converted field set produced by a decoder.
// Keys are stable per model across active and passive decoding: a field
// the passive path cannot determine is present with a nil value, never
// omitted, so online and offline consumers observe the same schema.
type Fields map[string]interface{}

// Advertisement is fully decoded broadcast state for one device.
// Instances are immutable once produced; a newer broadcast replaces the
// whole value, it is never merged field by field.
type Advertisement struct {
	Address        string
	RSSI           int
	Tag            byte
	Model          Model
	FriendlyName   string
	IsEncrypted    bool
	Active         bool
	RawServiceData []byte
	Fields         Fields
}

// HasData reports whether the advertisement carries decoded fields.
// Cached state must not be clobbered by an empty update.
func (a *Advertisement) HasData() bool {
	return a != nil && len(a.Fields) > 0
}

// DecodeOptions tunes decoding for a single call.
type DecodeOptions struct {
	// ModelHint selects the decoder directly when the caller already knows
	// the device kind (prior active observation or static configuration)
	// and only manufacturer data is present.
	ModelHint Model

	// Reverse flips position/tilt values at decode time for cover devices
	// mounted in the opposite direction.
	Reverse bool
}

// decodeCache memoizes Decode results by exact input bytes. Bounded to
// roughly the working set of one scan; cleared wholesale when it
// overflows rather than tracking recency.
var decodeCache = hashmap.New[string, *Advertisement]()

const decodeCacheLimit = 128

// Decode parses one advertisement. Either byte source may be nil.
// Returns nil when no registered model can be selected from the inputs.
// Address and RSSI on the result are zero; callers owning the scan
// observation fill them in on their own copy.
func Decode(serviceData, mfrData []byte, mfrID int, opts *DecodeOptions) *Advertisement {
	if serviceData == nil && mfrData == nil {
		return nil
	}
	if opts == nil {
		opts = &DecodeOptions{}
	}

	key := cacheKey(serviceData, mfrData, mfrID, opts)
	if cached, ok := decodeCache.Get(key); ok {
		return cached
	}

	decoded := decode(serviceData, mfrData, mfrID, opts)
	if decoded != nil {
		if decodeCache.Len() >= decodeCacheLimit {
			decodeCache.Range(func(k string, _ *Advertisement) bool {
				decodeCache.Del(k)
				return true
			})
		}
		decodeCache.Set(key, decoded)
	}
	return decoded
}

func decode(serviceData, mfrData []byte, mfrID int, opts *DecodeOptions) *Advertisement {
	var reg *Registration
	var tag byte

	// Model selection order: service-data tag byte, then an explicit hint,
	// then manufacturer id + payload length heuristics.
	switch {
	case len(serviceData) > 0:
		tag = serviceData[0] & 0x7f
		reg, _ = Lookup(tag)
	case opts.ModelHint != "":
		if r, ok := LookupModel(opts.ModelHint); ok {
			reg = r
			tag = r.Tag
		}
	default:
		if r, ok := lookupByManufacturer(mfrID, len(mfrData)); ok {
			reg = r
			tag = r.Tag
		}
	}

	if tag == 0 {
		return nil
	}

	a := &Advertisement{
		Tag:            tag,
		Active:         len(serviceData) > 0,
		RawServiceData: serviceData,
		Fields:         Fields{},
	}
	if len(serviceData) > 0 {
		a.IsEncrypted = serviceData[0]&0x80 != 0
	}

	if reg != nil {
		a.Model = reg.Model
		a.FriendlyName = reg.FriendlyName
		if fields := reg.Decode(serviceData, mfrData, opts); fields != nil {
			a.Fields = fields
		}
	}
	return a
}

func cacheKey(serviceData, mfrData []byte, mfrID int, opts *DecodeOptions) string {
	return fmt.Sprintf("%x|%x|%d|%s|%t", serviceData, mfrData, mfrID, opts.ModelHint, opts.Reverse)
}

// clamp bounds v to [0, 100], the range of all position/percentage fields.
func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
