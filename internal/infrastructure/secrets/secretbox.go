package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// SecretboxCodec seals secrets with XSalsa20-Poly1305. Stored form is
// base64(nonce || box).
type SecretboxCodec struct {
	key [keySize]byte
}

// NewSecretboxCodec creates a codec from a raw 32-byte key
func NewSecretboxCodec(key []byte) (*SecretboxCodec, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKey, keySize, len(key))
	}
	c := &SecretboxCodec{}
	copy(c.key[:], key)
	return c, nil
}

// NewSecretboxCodecFromString creates a codec from a base64 encoded key
func NewSecretboxCodecFromString(encoded string) (*SecretboxCodec, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return NewSecretboxCodec(key)
}

// Encode implements Encoder
func (c *SecretboxCodec) Encode(raw string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secrets: failed to read nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(raw), &nonce, &c.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decode implements Decoder
func (c *SecretboxCodec) Decode(stored string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(stored))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	if len(sealed) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: sealed value too short", ErrInvalidSecret)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	raw, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", fmt.Errorf("%w: authentication failed", ErrInvalidSecret)
	}
	return string(raw), nil
}

var _ Codec = (*SecretboxCodec)(nil)
