package adv

// LockStatus is the lock's motor state reported in advertisements and
// command responses.
type LockStatus int

const (
	LockStatusLocked LockStatus = iota
	LockStatusUnlocked
	LockStatusLocking
	LockStatusUnlocking
	LockStatusLockingStop
	LockStatusUnlockingStop
	LockStatusNotFullyLocked
)

func (s LockStatus) String() string {
	switch s {
	case LockStatusLocked:
		return "locked"
	case LockStatusUnlocked:
		return "unlocked"
	case LockStatusLocking:
		return "locking"
	case LockStatusUnlocking:
		return "unlocking"
	case LockStatusLockingStop:
		return "locking_stop"
	case LockStatusUnlockingStop:
		return "unlocking_stop"
	case LockStatusNotFullyLocked:
		return "not_fully_locked"
	default:
		return "unknown"
	}
}

// ParseLockStatus extracts the status nibble shared by the advertisement
// and the lock-info command response.
func ParseLockStatus(b byte) LockStatus {
	return LockStatus((b & 0x70) >> 4)
}

// decodeLock handles the lock ('o'). Mechanism state lives in
// manufacturer data; only battery comes from service data.
func decodeLock(serviceData, mfrData []byte, _ *DecodeOptions) Fields {
	if len(mfrData) < 9 {
		return Fields{}
	}

	var battery interface{}
	if len(serviceData) >= 3 {
		battery = int(serviceData[2] & 0x7f)
	}

	return Fields{
		"battery":                    battery,
		"calibration":                mfrData[7]&0x80 != 0,
		"status":                     ParseLockStatus(mfrData[7]),
		"update_from_secondary_lock": mfrData[7]&0x08 != 0,
		"door_open":                  mfrData[7]&0x04 != 0,
		"double_lock_mode":           mfrData[8]&0x80 != 0,
		"unclosed_alarm":             mfrData[8]&0x20 != 0,
		"unlocked_alarm":             mfrData[8]&0x10 != 0,
		"auto_lock_paused":           mfrData[8]&0x02 != 0,
	}
}

// decodeKeypad handles the keypad ('y'). The attempt-state counter in
// manufacturer data increments on every entry attempt.
func decodeKeypad(serviceData, mfrData []byte, _ *DecodeOptions) Fields {
	if len(serviceData) < 3 || len(mfrData) < 7 {
		return Fields{
			"battery":       nil,
			"attempt_state": nil,
		}
	}
	return Fields{
		"battery":       int(serviceData[2] & 0x7f),
		"attempt_state": int(mfrData[6]),
	}
}
