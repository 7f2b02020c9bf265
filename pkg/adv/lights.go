package adv

import "encoding/binary"

// decodeColorBulb handles the color bulb ('u'). All state lives in
// manufacturer data.
func decodeColorBulb(_, mfrData []byte, _ *DecodeOptions) Fields {
	if len(mfrData) < 11 {
		return Fields{}
	}
	return Fields{
		"sequence_number": int(mfrData[6]),
		"isOn":            mfrData[7]&0x80 != 0,
		"brightness":      int(mfrData[7] & 0x7f),
		"delay":           mfrData[8]&0x80 != 0,
		"preset":          mfrData[8]&0x08 != 0,
		"color_mode":      int(mfrData[8] & 0x07),
		"speed":           int(mfrData[9] & 0x7f),
		"loop_index":      int(mfrData[10] & 0xfe),
	}
}

// decodeLightStrip handles the light strip ('r'), which shares the bulb's
// manufacturer-data layout.
func decodeLightStrip(serviceData, mfrData []byte, opts *DecodeOptions) Fields {
	return decodeColorBulb(serviceData, mfrData, opts)
}

// decodeCeilingLight handles the ceiling light ('q'). The cold/warm white
// level is a big-endian 16-bit value; the power bit sits past it.
func decodeCeilingLight(_, mfrData []byte, _ *DecodeOptions) Fields {
	if len(mfrData) < 11 {
		return Fields{}
	}
	return Fields{
		"sequence_number": int(mfrData[6]),
		"isOn":            mfrData[10]&0x80 != 0,
		"brightness":      int(mfrData[7] & 0x7f),
		"cw":              int(binary.BigEndian.Uint16(mfrData[8:10])),
		"color_mode":      1,
	}
}
