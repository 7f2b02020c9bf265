package adv

import "encoding/binary"

// decodeMeter handles the temperature/humidity meter family ('T', 'i').
//
// Temperature is a sign bit plus integer/tenths split across two bytes,
// already converted to signed decimal Celsius here. An all-zero payload
// means the sensor has no reading yet and yields an empty field set
// rather than a spurious 0°C.
func decodeMeter(serviceData, mfrData []byte, _ *DecodeOptions) Fields {
	var tempData []byte
	var battery interface{}

	if len(mfrData) >= 11 {
		tempData = mfrData[8:11]
	}
	if len(serviceData) >= 6 {
		if tempData == nil {
			tempData = serviceData[3:6]
		}
		battery = int(serviceData[2] & 0x7f)
	}
	if tempData == nil {
		return Fields{}
	}

	sign := 1.0
	if tempData[1]&0x80 == 0 {
		sign = -1.0
	}
	tempC := sign * (float64(tempData[1]&0x7f) + float64(tempData[0]&0x0f)/10)
	humidity := int(tempData[2] & 0x7f)

	batteryZero := battery == nil || battery == 0
	if tempC == 0 && humidity == 0 && batteryZero {
		return Fields{}
	}

	return Fields{
		"temperature": tempC,
		"fahrenheit":  tempData[2]&0x80 != 0,
		"humidity":    humidity,
		"battery":     battery,
	}
}

// decodeMeterCO2 handles the CO2-equipped meter ('5'): the base meter
// fields plus a big-endian ppm reading from the manufacturer data.
func decodeMeterCO2(serviceData, mfrData []byte, opts *DecodeOptions) Fields {
	fields := decodeMeter(serviceData, mfrData, opts)
	if len(fields) > 0 && len(mfrData) >= 15 {
		fields["co2"] = int(binary.BigEndian.Uint16(mfrData[13:15]))
	}
	return fields
}

// decodeHub2 handles the Hub 2 ('v'), whose meter readings live only in
// manufacturer data.
func decodeHub2(_, mfrData []byte, _ *DecodeOptions) Fields {
	if len(mfrData) < 16 {
		return Fields{}
	}
	status := mfrData[12]
	tempData := mfrData[13:16]

	sign := 1.0
	if tempData[1]&0x80 == 0 {
		sign = -1.0
	}
	tempC := sign * (float64(tempData[1]&0x7f) + float64(tempData[0]&0x0f)/10)
	humidity := int(tempData[2] & 0x7f)

	if tempC == 0 && humidity == 0 {
		return Fields{}
	}

	return Fields{
		"temperature": tempC,
		"fahrenheit":  tempData[2]&0x80 != 0,
		"humidity":    humidity,
		"lightLevel":  int(status & 0x1f),
	}
}

// decodeMotion handles the motion sensor ('s'). Motion state is present
// in both sources; configuration bits (LED, sense distance) only in the
// richer service data.
func decodeMotion(serviceData, mfrData []byte, _ *DecodeOptions) Fields {
	if serviceData == nil && mfrData == nil {
		return Fields{}
	}

	fields := Fields{
		"tested":          nil,
		"motion_detected": nil,
		"battery":         nil,
		"led":             nil,
		"iot":             nil,
		"sense_distance":  nil,
		"light_intensity": nil,
		"is_light":        nil,
	}

	if len(serviceData) >= 6 {
		fields["tested"] = serviceData[1]&0x80 != 0
		fields["motion_detected"] = serviceData[1]&0x40 != 0
		fields["battery"] = int(serviceData[2] & 0x7f)
		fields["led"] = int(serviceData[5]&0x20) >> 5
		fields["iot"] = int(serviceData[5]&0x10) >> 4
		fields["sense_distance"] = int(serviceData[5]&0x0c) >> 2
		fields["light_intensity"] = int(serviceData[5] & 0x03)
		fields["is_light"] = serviceData[5]&0x02 != 0
	}
	if len(mfrData) >= 8 {
		fields["motion_detected"] = mfrData[7]&0x40 != 0
		fields["is_light"] = mfrData[7]&0x20 != 0
	}
	return fields
}

// decodeContact handles the contact sensor ('d').
func decodeContact(serviceData, mfrData []byte, _ *DecodeOptions) Fields {
	if serviceData == nil && mfrData == nil {
		return Fields{}
	}

	var battery, tested interface{}
	if len(serviceData) >= 3 {
		battery = int(serviceData[2] & 0x7f)
		tested = serviceData[1]&0x80 != 0
	}

	var motionDetected, contactOpen, contactTimeout, isLight bool
	var buttonCount int
	switch {
	case len(mfrData) >= 13:
		motionDetected = mfrData[7]&0x80 != 0
		contactOpen = mfrData[7]&0x10 != 0
		contactTimeout = mfrData[7]&0x20 != 0
		buttonCount = int(mfrData[12] & 0x0f)
		isLight = mfrData[7]&0x40 != 0
	case len(serviceData) >= 9:
		motionDetected = serviceData[1]&0x40 != 0
		contactOpen = serviceData[3]&0x02 != 0
		contactTimeout = serviceData[3]&0x04 != 0
		buttonCount = int(serviceData[8] & 0x0f)
		isLight = serviceData[3]&0x01 != 0
	default:
		return Fields{}
	}

	return Fields{
		"tested":          tested,
		"motion_detected": motionDetected,
		"battery":         battery,
		// A timed-out contact is still an open contact.
		"contact_open":    contactOpen || contactTimeout,
		"contact_timeout": contactTimeout,
		"is_light":        isLight,
		"button_count":    buttonCount,
	}
}

// decodeLeak handles the water leak detector ('&').
func decodeLeak(serviceData, mfrData []byte, _ *DecodeOptions) Fields {
	if len(serviceData) < 3 || len(mfrData) < 9 {
		return Fields{}
	}

	eventFlags := mfrData[8]
	batteryInfo := mfrData[7]

	return Fields{
		"leak":        eventFlags&0x01 != 0,
		"tampered":    eventFlags&0x02 != 0,
		"battery":     int(batteryInfo & 0x7f),
		"low_battery": batteryInfo&0x80 != 0,
	}
}
