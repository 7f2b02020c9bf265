// Package crypt implements the per-session AES-128-CTR command encryption
// used by authenticated device kinds (locks, metered relay switches).
//
// Key material is provisioned out of band (cloud account flow) and supplied
// as two hex strings: a 2-character key id and a 32-character encryption key.
// The initialization vector is negotiated once per GATT session and must
// never be reused across sessions; callers discard the SessionCipher on
// disconnect and negotiate a fresh IV on the next connection.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
)

// KeySize is the AES-128 key length in bytes.
const KeySize = 16

// IVSize is the initialization vector length required by CTR mode.
const IVSize = aes.BlockSize

// ErrKeyMaterial indicates malformed provisioned key material. It is
// surfaced at construction time, before any transport activity.
var ErrKeyMaterial = errors.New("invalid key material")

// Credentials holds validated, decoded key material for one device.
type Credentials struct {
	KeyID byte
	Key   []byte // 16 bytes
}

// ParseCredentials validates and decodes provisioned key material.
// keyID must be exactly 2 hex characters, encryptionKey exactly 32.
func ParseCredentials(keyID, encryptionKey string) (*Credentials, error) {
	if keyID == "" {
		return nil, fmt.Errorf("%w: key id is missing", ErrKeyMaterial)
	}
	if len(keyID) != 2 {
		return nil, fmt.Errorf("%w: key id must be 2 hex characters, got %d", ErrKeyMaterial, len(keyID))
	}
	if encryptionKey == "" {
		return nil, fmt.Errorf("%w: encryption key is missing", ErrKeyMaterial)
	}
	if len(encryptionKey) != KeySize*2 {
		return nil, fmt.Errorf("%w: encryption key must be %d hex characters, got %d", ErrKeyMaterial, KeySize*2, len(encryptionKey))
	}

	id, err := hex.DecodeString(keyID)
	if err != nil {
		return nil, fmt.Errorf("%w: key id is not valid hex: %v", ErrKeyMaterial, err)
	}
	key, err := hex.DecodeString(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: encryption key is not valid hex: %v", ErrKeyMaterial, err)
	}

	return &Credentials{KeyID: id[0], Key: key}, nil
}

// SessionCipher encrypts and decrypts command payloads for one session.
//
// Each Encrypt/Decrypt call runs an independent CTR keystream starting at
// the negotiated IV, matching the device firmware, which restarts its
// counter for every frame. Encrypt and Decrypt are therefore the same
// operation; both are provided for readability at call sites.
type SessionCipher struct {
	block cipher.Block
	iv    []byte
}

// NewSessionCipher builds a cipher from a 16-byte key and the IV returned
// by the device's check-value negotiation.
func NewSessionCipher(key, iv []byte) (*SessionCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrKeyMaterial, KeySize, len(key))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", ErrKeyMaterial, IVSize, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AES cipher: %w", err)
	}
	c := &SessionCipher{block: block, iv: make([]byte, IVSize)}
	copy(c.iv, iv)
	return c, nil
}

// IVPrefix returns the first two IV bytes, sent in clear in every
// encrypted frame so the device can match the session.
func (c *SessionCipher) IVPrefix() []byte {
	return c.iv[:2]
}

// Encrypt returns the CTR ciphertext of plain. Empty input yields empty output.
func (c *SessionCipher) Encrypt(plain []byte) []byte {
	return c.xor(plain)
}

// Decrypt returns the CTR plaintext of data. Empty input yields empty output.
func (c *SessionCipher) Decrypt(data []byte) []byte {
	return c.xor(data)
}

func (c *SessionCipher) xor(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	out := make([]byte, len(data))
	cipher.NewCTR(c.block, c.iv).XORKeyStream(out, data)
	return out
}
