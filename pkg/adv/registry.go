package adv

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Model is the canonical model identifier of a supported device kind.
type Model string

const (
	ModelBot            Model = "WoHand"
	ModelCurtain        Model = "WoCurtain"
	ModelHumidifier     Model = "WoHumi"
	ModelPlugMini       Model = "WoPlug"
	ModelContactSensor  Model = "WoContact"
	ModelLightStrip     Model = "WoStrip"
	ModelMeter          Model = "WoSensorTH"
	ModelMeterProCO2    Model = "WoSensorTHPc"
	ModelMotionSensor   Model = "WoPresence"
	ModelColorBulb      Model = "WoBulb"
	ModelCeilingLight   Model = "WoCeiling"
	ModelLock           Model = "WoLock"
	ModelBlindTilt      Model = "WoBlindTilt"
	ModelKeypad         Model = "WoKeypad"
	ModelLeakDetector   Model = "WoLeakDetector"
	ModelHub2           Model = "WoHub2"
	ModelRelaySwitch1   Model = "Relay Switch 1"
	ModelRelaySwitch1PM Model = "Relay Switch 1PM"
)

// Manufacturer ids observed in SwitchBot advertisements. Newer devices
// advertise under 2409, first-generation bots under 89.
const (
	ManufacturerIDWonderlabs = 2409
	ManufacturerIDLegacy     = 89
)

// DecodeFunc turns raw advertisement bytes into a normalized field set.
// Either source may be nil; decoders return nil-valued keys for fields
// the available sources cannot determine, and an empty map when the
// payload carries no reading at all.
type DecodeFunc func(serviceData, mfrData []byte, opts *DecodeOptions) Fields

// Registration describes one supported model tag.
type Registration struct {
	Tag          byte
	Model        Model
	FriendlyName string
	Decode       DecodeFunc

	// Passive disambiguation hints: a model can be recognized from a
	// manufacturer-data-only advertisement when its manufacturer id is
	// known and the payload length matches. Zero means unspecified.
	ManufacturerID         int
	ManufacturerDataLength int
}

// registry maps model tags to registrations in registration order.
// Ordering matters: length-based passive disambiguation resolves ties as
// "first registered match wins" (a known limitation, two models sharing
// manufacturer id and payload length cannot be told apart passively).
var registry = orderedmap.New[byte, *Registration]()

// byModel is a reverse index for model-hint lookups.
var byModel = map[Model]*Registration{}

func register(r *Registration) {
	registry.Set(r.Tag, r)
	if _, ok := byModel[r.Model]; !ok {
		byModel[r.Model] = r
	}
}

// Lookup returns the registration for a model tag.
func Lookup(tag byte) (*Registration, bool) {
	return registry.Get(tag)
}

// LookupModel returns the registration for a canonical model id.
func LookupModel(model Model) (*Registration, bool) {
	r, ok := byModel[model]
	return r, ok
}

// lookupByManufacturer finds the first registered model whose manufacturer
// id and payload length match a passive advertisement.
func lookupByManufacturer(mfrID, dataLen int) (*Registration, bool) {
	for pair := registry.Oldest(); pair != nil; pair = pair.Next() {
		r := pair.Value
		if r.ManufacturerID == mfrID && r.ManufacturerDataLength == dataLen && r.ManufacturerDataLength != 0 {
			return r, true
		}
	}
	return nil, false
}

func init() {
	register(&Registration{
		Tag:                    'd',
		Model:                  ModelContactSensor,
		FriendlyName:           "Contact Sensor",
		Decode:                 decodeContact,
		ManufacturerID:         ManufacturerIDWonderlabs,
		ManufacturerDataLength: 13,
	})
	register(&Registration{
		Tag:            'H',
		Model:          ModelBot,
		FriendlyName:   "Bot",
		Decode:         decodeBot,
		ManufacturerID: ManufacturerIDLegacy,
	})
	register(&Registration{
		Tag:                    's',
		Model:                  ModelMotionSensor,
		FriendlyName:           "Motion Sensor",
		Decode:                 decodeMotion,
		ManufacturerID:         ManufacturerIDWonderlabs,
		ManufacturerDataLength: 10,
	})
	register(&Registration{
		Tag:                    'r',
		Model:                  ModelLightStrip,
		FriendlyName:           "Light Strip",
		Decode:                 decodeLightStrip,
		ManufacturerID:         ManufacturerIDWonderlabs,
		ManufacturerDataLength: 16,
	})
	register(&Registration{
		Tag:            'c',
		Model:          ModelCurtain,
		FriendlyName:   "Curtain",
		Decode:         decodeCurtain,
		ManufacturerID: ManufacturerIDWonderlabs,
	})
	register(&Registration{
		Tag:            'i',
		Model:          ModelMeter,
		FriendlyName:   "Meter Plus",
		Decode:         decodeMeter,
		ManufacturerID: ManufacturerIDWonderlabs,
	})
	register(&Registration{
		Tag:            'T',
		Model:          ModelMeter,
		FriendlyName:   "Meter",
		Decode:         decodeMeter,
		ManufacturerID: ManufacturerIDWonderlabs,
	})
	register(&Registration{
		Tag:                    '5',
		Model:                  ModelMeterProCO2,
		FriendlyName:           "Meter Pro CO2",
		Decode:                 decodeMeterCO2,
		ManufacturerID:         ManufacturerIDWonderlabs,
		ManufacturerDataLength: 16,
	})
	register(&Registration{
		Tag:          'g',
		Model:        ModelPlugMini,
		FriendlyName: "Plug Mini",
		Decode:       decodePlugMini,
	})
	register(&Registration{
		Tag:          'j',
		Model:        ModelPlugMini,
		FriendlyName: "Plug Mini (JP)",
		Decode:       decodePlugMini,
	})
	register(&Registration{
		Tag:            'u',
		Model:          ModelColorBulb,
		FriendlyName:   "Color Bulb",
		Decode:         decodeColorBulb,
		ManufacturerID: ManufacturerIDWonderlabs,
	})
	register(&Registration{
		Tag:          'q',
		Model:        ModelCeilingLight,
		FriendlyName: "Ceiling Light",
		Decode:       decodeCeilingLight,
	})
	register(&Registration{
		Tag:          'e',
		Model:        ModelHumidifier,
		FriendlyName: "Humidifier",
		Decode:       decodeHumidifier,
	})
	register(&Registration{
		Tag:          'o',
		Model:        ModelLock,
		FriendlyName: "Lock",
		Decode:       decodeLock,
	})
	register(&Registration{
		Tag:            'x',
		Model:          ModelBlindTilt,
		FriendlyName:   "Blind Tilt",
		Decode:         decodeBlindTilt,
		ManufacturerID: ManufacturerIDWonderlabs,
	})
	register(&Registration{
		Tag:          'y',
		Model:        ModelKeypad,
		FriendlyName: "Keypad",
		Decode:       decodeKeypad,
	})
	register(&Registration{
		Tag:          '&',
		Model:        ModelLeakDetector,
		FriendlyName: "Water Leak Detector",
		Decode:       decodeLeak,
	})
	register(&Registration{
		Tag:                    'v',
		Model:                  ModelHub2,
		FriendlyName:           "Hub 2",
		Decode:                 decodeHub2,
		ManufacturerID:         ManufacturerIDWonderlabs,
		ManufacturerDataLength: 16,
	})
	register(&Registration{
		Tag:            ';',
		Model:          ModelRelaySwitch1,
		FriendlyName:   "Relay Switch 1",
		Decode:         decodeRelaySwitch1,
		ManufacturerID: ManufacturerIDWonderlabs,
	})
	register(&Registration{
		Tag:            '<',
		Model:          ModelRelaySwitch1PM,
		FriendlyName:   "Relay Switch 1PM",
		Decode:         decodeRelaySwitch1PM,
		ManufacturerID: ManufacturerIDWonderlabs,
	})
}
