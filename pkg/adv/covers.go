package adv

// decodeCurtain handles the curtain ('c'). Position and motion bits are
// available from either source; calibration and battery only from
// service data, so they are nil in passive mode.
//
// Raw position is 0 = open, 100 = closed. opts.Reverse flips it so that
// 100 = open, matching the common home-automation convention.
func decodeCurtain(serviceData, mfrData []byte, opts *DecodeOptions) Fields {
	var deviceData []byte
	switch {
	case len(mfrData) >= 11:
		deviceData = mfrData[8:11]
	case len(serviceData) >= 6:
		deviceData = serviceData[3:6]
	default:
		return Fields{}
	}

	position := clamp(int(deviceData[0] & 0x7f))
	if opts.Reverse {
		position = 100 - position
	}

	var calibration, battery interface{}
	if len(serviceData) >= 3 {
		calibration = serviceData[1]&0x40 != 0
		battery = int(serviceData[2] & 0x7f)
	}

	return Fields{
		"calibration": calibration,
		"battery":     battery,
		"inMotion":    deviceData[0]&0x80 != 0,
		"position":    position,
		"lightLevel":  int(deviceData[1]>>4) & 0x0f,
		"deviceChain": int(deviceData[1] & 0x07),
	}
}

// decodeBlindTilt handles the blind tilt ('x'). All state lives in
// manufacturer data; battery comes from service data when present.
func decodeBlindTilt(serviceData, mfrData []byte, opts *DecodeOptions) Fields {
	if len(mfrData) < 9 {
		return Fields{}
	}
	deviceData := mfrData[6:]

	tilt := clamp(int(deviceData[2] & 0x7f))
	if opts.Reverse {
		tilt = 100 - tilt
	}

	var battery interface{}
	if len(serviceData) >= 3 {
		battery = int(serviceData[2] & 0x7f)
	}

	return Fields{
		"calibration":     deviceData[1]&0x01 != 0,
		"battery":         battery,
		"inMotion":        deviceData[2]&0x80 != 0,
		"tilt":            tilt,
		"lightLevel":      int(deviceData[1]>>4) & 0x0f,
		"sequence_number": int(deviceData[0]),
	}
}
