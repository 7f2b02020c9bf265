package gatt

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrDeviceUnreachable indicates the peripheral was not found or is out
// of range. Never retried: retrying cannot fix absence.
var ErrDeviceUnreachable = errors.New("device unreachable")

// ErrTimeout indicates an awaited notification did not arrive in time.
// Treated as transient.
var ErrTimeout = errors.New("notification timeout")

// TransientError wraps a transport failure that a reconnect may fix:
// a dropped link mid-command, a BLE stack hiccup, a write that failed
// on a stale handle.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient transport error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientError. Returns nil for nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// CharacteristicMissingError indicates a protocol characteristic was
// absent even after a fallback re-fetch of the service list. Retried
// like a transient failure, since it can indicate a stale service cache
// that a fresh connect resolves.
type CharacteristicMissingError struct {
	UUID string
}

func (e *CharacteristicMissingError) Error() string {
	return fmt.Sprintf("characteristic %q missing", e.UUID)
}

// IsTransient reports whether err is worth a reconnect-and-retry.
func IsTransient(err error) bool {
	var transient *TransientError
	var missing *CharacteristicMissingError
	return errors.As(err, &transient) ||
		errors.As(err, &missing) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// NormalizeError maps backend error strings into the taxonomy. Absence
// ("not found", "can't dial") becomes ErrDeviceUnreachable; everything
// else is assumed transient. Returns wrapped errors to preserve the
// original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDeviceUnreachable) || IsTransient(err) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found"),
		strings.Contains(msg, "no such device"),
		strings.Contains(msg, "can't dial"),
		strings.Contains(msg, "out of range"):
		return fmt.Errorf("%w: %v", ErrDeviceUnreachable, err)
	default:
		return Transient(err)
	}
}
