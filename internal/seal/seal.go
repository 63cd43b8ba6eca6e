// Package seal encrypts small secrets, such as the API bearer token, before
// they are written to the local database.
package seal

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const keyInfo = "foodguard-credential-key"

var ErrMalformed = errors.New("sealed value is malformed")

type Sealer struct {
	key []byte
}

// New derives a 256-bit key from secret with HKDF-SHA256.
func New(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("seal secret must not be empty")
	}
	h := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// Seal returns nonce || ciphertext. label is bound as associated data so a
// value sealed under one credential key cannot be replayed under another.
func (s *Sealer) Seal(label string, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, []byte(label)), nil
}

func (s *Sealer) Open(label string, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrMalformed
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, []byte(label))
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed value: %w", err)
	}
	return pt, nil
}
