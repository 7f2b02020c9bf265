package adv

// decodeBot handles the Bot ('H'), the original press/switch actuator.
// Its state lives entirely in service data; the legacy manufacturer blob
// carries nothing decodable.
func decodeBot(serviceData, _ []byte, _ *DecodeOptions) Fields {
	fields := Fields{
		"switchMode": nil,
		"isOn":       nil,
		"battery":    nil,
	}
	if len(serviceData) < 3 {
		return fields
	}

	switchMode := serviceData[1]&0x80 != 0
	fields["switchMode"] = switchMode
	if switchMode {
		fields["isOn"] = serviceData[1]&0x40 == 0
	} else {
		fields["isOn"] = false
	}
	fields["battery"] = int(serviceData[2] & 0x7f)
	return fields
}

// decodePlugMini handles the plug mini ('g', 'j').
func decodePlugMini(_, mfrData []byte, _ *DecodeOptions) Fields {
	if len(mfrData) < 10 {
		return Fields{}
	}
	return Fields{
		"switchMode": true,
		"isOn":       mfrData[7] == 0x80,
		"wifi_rssi":  -int(mfrData[9]),
	}
}

// decodeHumidifier handles the humidifier ('e'). Passive advertisements
// carry no usable state, so the schema is kept with nil values.
func decodeHumidifier(serviceData, _ []byte, _ *DecodeOptions) Fields {
	if len(serviceData) < 5 {
		return Fields{
			"isOn":       nil,
			"level":      nil,
			"switchMode": true,
		}
	}
	return Fields{
		"isOn":       serviceData[1] != 0,
		"level":      int(serviceData[4]),
		"switchMode": true,
	}
}

// decodeRelaySwitch1PM handles the metered relay switch ('<'). The
// sequence number lets callers detect missed state changes and force a
// poll; power is reported in tenths of a watt on the wire.
func decodeRelaySwitch1PM(_, mfrData []byte, _ *DecodeOptions) Fields {
	if len(mfrData) < 12 {
		return Fields{}
	}
	return Fields{
		"switchMode":      true,
		"sequence_number": int(mfrData[6]),
		"isOn":            mfrData[7]&0x80 != 0,
		"power":           float64(int(mfrData[10])<<8+int(mfrData[11])) / 10,
		// Voltage and current are not broadcast; they are filled in by a
		// connected read and preserved across advertisement updates.
		"voltage": 0,
		"current": 0,
	}
}

// decodeRelaySwitch1 handles the unmetered relay switch (';').
func decodeRelaySwitch1(_, mfrData []byte, _ *DecodeOptions) Fields {
	if len(mfrData) < 8 {
		return Fields{}
	}
	return Fields{
		"switchMode":      true,
		"sequence_number": int(mfrData[6]),
		"isOn":            mfrData[7]&0x80 != 0,
	}
}
