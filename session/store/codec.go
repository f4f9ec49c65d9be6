package store

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// Codec transforms session records before they reach durable storage.
type Codec interface {
	Encode(plaintext []byte) ([]byte, error)
	Decode(stored []byte) ([]byte, error)
}

// PlainCodec stores records as-is.
type PlainCodec struct{}

func (PlainCodec) Encode(plaintext []byte) ([]byte, error) { return plaintext, nil }
func (PlainCodec) Decode(stored []byte) ([]byte, error)    { return stored, nil }

// AEADCodec encrypts session records at rest with ChaCha20-Poly1305. The
// nonce is prepended to the ciphertext.
type AEADCodec struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// NewAEADCodec creates a codec from a base64-encoded 32-byte key.
func NewAEADCodec(base64Key string) (*AEADCodec, error) {
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, errors.Wrap(err, "[NewAEADCodec] decode key")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.Errorf("[NewAEADCodec] key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.Wrap(err, "[NewAEADCodec] cipher")
	}
	return &AEADCodec{aead: aead}, nil
}

// Encode seals the record under a fresh random nonce.
func (c *AEADCodec) Encode(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "[AEADCodec.Encode] nonce")
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decode opens a sealed record. Tampered or truncated ciphertext fails.
func (c *AEADCodec) Decode(stored []byte) ([]byte, error) {
	if len(stored) < c.aead.NonceSize() {
		return nil, errors.New("[AEADCodec.Decode] ciphertext too short")
	}
	nonce, ciphertext := stored[:c.aead.NonceSize()], stored[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[AEADCodec.Decode] open")
	}
	return plaintext, nil
}
