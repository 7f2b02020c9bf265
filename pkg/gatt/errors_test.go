package gatt

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		wantUnreachable bool
	}{
		{"peripheral not found", errors.New("peripheral not found"), true},
		{"no such device", errors.New("no such device"), true},
		{"dial failure", errors.New("can't dial: connection refused"), true},
		{"out of range", errors.New("device went out of range"), true},
		{"generic failure", errors.New("att request failed"), false},
		{"connection reset", errors.New("connection reset by peer"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeError(tt.err)
			if tt.wantUnreachable {
				assert.ErrorIs(t, got, ErrDeviceUnreachable)
				assert.False(t, IsTransient(got))
			} else {
				assert.True(t, IsTransient(got))
			}
		})
	}
}

func TestNormalizeErrorNil(t *testing.T) {
	assert.NoError(t, NormalizeError(nil))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(Transient(errors.New("boom"))))
	assert.True(t, IsTransient(fmt.Errorf("await: %w", ErrTimeout)))
	assert.True(t, IsTransient(&CharacteristicMissingError{UUID: WriteCharUUID}))
	assert.False(t, IsTransient(ErrDeviceUnreachable))
	assert.False(t, IsTransient(errors.New("plain")))
}

func TestTransientUnwraps(t *testing.T) {
	inner := errors.New("link dropped")
	err := Transient(inner)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "link dropped")
}
