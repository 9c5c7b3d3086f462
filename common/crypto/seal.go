// Package crypto seals persisted blobs with AES-256-GCM so that memory
// profiles and transcripts are not readable from the database file alone.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// KeySize is the required key length for AES-256-GCM.
	KeySize = 32
	// nonceSize is the GCM standard nonce size.
	nonceSize = 12
)

var (
	ErrInvalidKeySize = fmt.Errorf("crypto: key must be exactly %d bytes", KeySize)
	ErrSealedTooShort = errors.New("crypto: sealed value too short")
)

// Sealer encrypts and authenticates values with a fixed key. A Sealer is
// safe for concurrent use.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer returns a Sealer for the given 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext. The storage key is bound as additional data so
// a sealed value copied under another key fails to open.
// Output layout: [nonce(12)] + [ciphertext+tag].
func (s *Sealer) Seal(storageKey string, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize, nonceSize+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, []byte(storageKey)), nil
}

// Open reverses Seal.
func (s *Sealer) Open(storageKey string, sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+s.aead.Overhead() {
		return nil, ErrSealedTooShort
	}
	nonce, data := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, data, []byte(storageKey))
	if err != nil {
		return nil, fmt.Errorf("crypto: open: %w", err)
	}
	return plaintext, nil
}

// ParseKey decodes a 64-character hex string into a raw key.
//
// Generate one with:
//
//	openssl rand -hex 32
func ParseKey(rawHex string) ([]byte, error) {
	raw := strings.TrimSpace(rawHex)
	if raw == "" {
		return nil, errors.New("crypto: key is empty")
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid hex in key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes (%d hex chars), got %d bytes",
			KeySize, KeySize*2, len(key))
	}
	return key, nil
}
