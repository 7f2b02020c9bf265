package crypt

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCredentials(t *testing.T) {
	tests := []struct {
		name          string
		keyID         string
		encryptionKey string
		wantErr       bool
		wantKeyID     byte
	}{
		{
			name:          "valid material",
			keyID:         "0f",
			encryptionKey: "00112233445566778899aabbccddeeff",
			wantKeyID:     0x0f,
		},
		{
			name:          "missing key id",
			keyID:         "",
			encryptionKey: "00112233445566778899aabbccddeeff",
			wantErr:       true,
		},
		{
			name:          "key id too long",
			keyID:         "0f0f",
			encryptionKey: "00112233445566778899aabbccddeeff",
			wantErr:       true,
		},
		{
			name:          "missing encryption key",
			keyID:         "0f",
			encryptionKey: "",
			wantErr:       true,
		},
		{
			name:          "encryption key too short",
			keyID:         "0f",
			encryptionKey: "001122",
			wantErr:       true,
		},
		{
			name:          "non-hex key id",
			keyID:         "zz",
			encryptionKey: "00112233445566778899aabbccddeeff",
			wantErr:       true,
		},
		{
			name:          "non-hex encryption key",
			keyID:         "0f",
			encryptionKey: "zz112233445566778899aabbccddeeff",
			wantErr:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := ParseCredentials(tt.keyID, tt.encryptionKey)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrKeyMaterial)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKeyID, creds.KeyID)
			assert.Len(t, creds.Key, KeySize)
		})
	}
}

func TestNewSessionCipherValidation(t *testing.T) {
	key := make([]byte, KeySize)
	iv := make([]byte, IVSize)

	_, err := NewSessionCipher(key[:8], iv)
	assert.ErrorIs(t, err, ErrKeyMaterial)

	_, err = NewSessionCipher(key, iv[:4])
	assert.ErrorIs(t, err, ErrKeyMaterial)

	c, err := NewSessionCipher(key, iv)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestSessionCipherRoundTrip(t *testing.T) {
	key := make([]byte, KeySize)
	iv := make([]byte, IVSize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	_, err = rand.Read(iv)
	require.NoError(t, err)

	c, err := NewSessionCipher(key, iv)
	require.NoError(t, err)

	// Every payload length a command frame can carry
	for size := 0; size <= 64; size++ {
		payload := make([]byte, size)
		_, err := rand.Read(payload)
		require.NoError(t, err)

		enc := c.Encrypt(payload)
		dec := c.Decrypt(enc)
		assert.True(t, bytes.Equal(payload, dec), "round trip must be identity for size %d", size)

		// Short frames can collide with the keystream by chance, so only
		// longer payloads assert that encryption changed the bytes.
		if size >= 8 {
			assert.NotEqual(t, payload, enc, "ciphertext must differ from plaintext for size %d", size)
		}
	}
}

func TestSessionCipherKeystreamRestartsPerFrame(t *testing.T) {
	key := make([]byte, KeySize)
	iv := make([]byte, IVSize)
	c, err := NewSessionCipher(key, iv)
	require.NoError(t, err)

	// The device restarts its counter for every frame, so encrypting the
	// same payload twice must produce identical ciphertext.
	payload := []byte{0x4e, 0x01, 0x01, 0x10, 0x80}
	assert.Equal(t, c.Encrypt(payload), c.Encrypt(payload))
}

func TestSessionCipherIVPrefix(t *testing.T) {
	key := make([]byte, KeySize)
	iv := bytes.Repeat([]byte{0xab}, IVSize)
	iv[0] = 0x01
	iv[1] = 0x02

	c, err := NewSessionCipher(key, iv)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, c.IVPrefix())
}
